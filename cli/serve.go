package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/NextMind-AI/repstats"
	"github.com/NextMind-AI/repstats/config"
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the event webhook, representative units and stats API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			// Environment settings apply unless the flags were given explicitly.
			flags := cmd.Flags()
			level, format := cfg.LogLevel, cfg.LogFormat
			if flags.Changed("log-level") {
				level, _ = flags.GetString("log-level")
			}
			if flags.Changed("log-format") {
				format, _ = flags.GetString("log-format")
			}
			if err := setupLogging(cmd.ErrOrStderr(), level, format); err != nil {
				return err
			}
			if port, _ := flags.GetString("port"); port != "" {
				cfg.Port = port
			}

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := repstats.New(ctx, cfg)
			if err != nil {
				return err
			}

			log.Info().Str("port", cfg.Port).Str("timezone", cfg.Timezone).Msg("Starting repstats")
			return app.Run(ctx)
		},
	}

	cmd.Flags().String("port", "", "listen port (overrides PORT)")
	return cmd
}

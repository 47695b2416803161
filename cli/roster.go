package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/NextMind-AI/repstats/roster"
)

func NewRosterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Inspect the representative roster file",
	}
	cmd.AddCommand(newRosterSchemaCmd(), newRosterCheckCmd())
	return cmd
}

func newRosterSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the roster file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd, roster.Schema())
		},
	}
}

func newRosterCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Validate a roster file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := os.Getenv("ROSTER_PATH")
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				path = "managers/config.json"
			}

			tz, _ := cmd.Flags().GetString("timezone")
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("unknown timezone %q", tz)
			}

			reps, err := roster.Load(path, loc)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				type entry struct {
					ID       string `json:"id"`
					Name     string `json:"name"`
					Timezone string `json:"timezone"`
				}
				entries := make([]entry, 0, len(reps))
				for _, rep := range reps {
					entries = append(entries, entry{ID: rep.ID, Name: rep.Name, Timezone: rep.Loc().String()})
				}
				return writeJSON(cmd, entries)
			}

			t := newTable("ID", "NAME", "TIMEZONE")
			for _, rep := range reps {
				t.Row(rep.ID, rep.Name, rep.Loc().String())
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, t.Render())
			fmt.Fprintf(out, "%s: %d representatives\n", path, len(reps))
			return nil
		},
	}
	cmd.Flags().String("timezone", "UTC", "zone for representatives without their own")
	return cmd
}

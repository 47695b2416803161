package cli

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/NextMind-AI/repstats/records"
	"github.com/NextMind-AI/repstats/server"
)

func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Query statistics from a running server",
	}

	cmd.AddCommand(
		newStatsDailyCmd(),
		newStatsWeeklyCmd(),
		newStatsChannelsCmd(),
		newStatsRecomputeCmd(),
	)
	return cmd
}

func dateValues(key, value string) url.Values {
	if value == "" {
		return nil
	}
	return url.Values{key: []string{value}}
}

func newStatsDailyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daily <representative-id>",
		Short: "Compute and show one representative's daily stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")

			var stats records.DailyStats
			path := "/stats/daily/" + url.PathEscape(args[0])
			if err := newAPIClient(cmd).do(commandContext(cmd), http.MethodGet, path, dateValues("date", date), &stats); err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd, stats)
			}

			renderFields(cmd.OutOrStdout(), fmt.Sprintf("%s on %s", stats.RepresentativeID, stats.Date), []field{
				{"New counterparts", strconv.Itoa(stats.NewCounterparts)},
				{"Returning counterparts", strconv.Itoa(stats.ReturningCounterparts)},
				{"Conversations", strconv.Itoa(stats.TotalConversations)},
				{"Messages sent", strconv.Itoa(stats.MessagesSent)},
				{"Messages received", strconv.Itoa(stats.MessagesReceived)},
				{"Avg response latency", formatLatency(stats.AvgResponseLatencyMinutes)},
			})
			return nil
		},
	}
	cmd.Flags().String("date", "", "day as YYYY-MM-DD (default today in the representative's zone)")
	return cmd
}

func newStatsWeeklyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weekly <representative-id>",
		Short: "Show a seven day summary ending at --end",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			end, _ := cmd.Flags().GetString("end")

			var summary records.WeeklySummary
			path := "/stats/weekly/" + url.PathEscape(args[0])
			err := newAPIClient(cmd).do(commandContext(cmd), http.MethodGet, path, dateValues("end", end), &summary)
			if errors.Is(err, errNoContent) {
				if jsonOutput(cmd) {
					return writeJSON(cmd, nil)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "No daily stats in this period")
				return nil
			}
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd, summary)
			}

			renderFields(cmd.OutOrStdout(), fmt.Sprintf("%s, %s", summary.RepresentativeID, summary.Period), []field{
				{"New counterparts", strconv.Itoa(summary.NewCounterparts)},
				{"Returning counterparts", strconv.Itoa(summary.ReturningCounterparts)},
				{"Messages sent", strconv.Itoa(summary.MessagesSent)},
				{"Messages received", strconv.Itoa(summary.MessagesReceived)},
				{"Avg response latency", formatLatency(summary.AvgResponseLatencyMinutes)},
				{"Days active", strconv.Itoa(summary.DaysActive)},
			})
			return nil
		},
	}
	cmd.Flags().String("end", "", "last day of the window as YYYY-MM-DD (default today)")
	return cmd
}

func newStatsChannelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Show first contacts per acquisition channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")

			var channels []records.ChannelStats
			if err := newAPIClient(cmd).do(commandContext(cmd), http.MethodGet, "/stats/channels", dateValues("date", date), &channels); err != nil {
				return err
			}
			if jsonOutput(cmd) {
				if channels == nil {
					channels = []records.ChannelStats{}
				}
				return writeJSON(cmd, channels)
			}
			if len(channels) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No first contacts on this day")
				return nil
			}

			t := newTable("CHANNEL", "NEW COUNTERPARTS", "MANAGERS")
			for _, ch := range channels {
				t.Row(ch.Channel, strconv.Itoa(ch.NewCounterparts), strconv.Itoa(ch.ManagersCount))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
	cmd.Flags().String("date", "", "day as YYYY-MM-DD (default today)")
	return cmd
}

func newStatsRecomputeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Recompute today's daily stats for every representative",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp server.RecomputeResponse
			err := newAPIClient(cmd).do(commandContext(cmd), http.MethodPost, "/stats/recompute", nil, &resp)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Daily stats recomputed")
			return nil
		},
	}
}

package cli

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/NextMind-AI/repstats/server"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of every representative unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp server.StatusResponse
			if err := newAPIClient(cmd).do(commandContext(cmd), http.MethodGet, "/status", nil, &resp); err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd, resp)
			}

			t := newTable("REPRESENTATIVE", "STATUS", "ACTIVE CHATS", "PENDING", "LAST ACTIVITY", "ERROR")
			for _, st := range resp.Representatives {
				lastActivity := "-"
				if st.LastActivity != nil {
					lastActivity = st.LastActivity.Local().Format(time.DateTime)
				}
				name := st.RepresentativeID
				if st.RepresentativeName != "" {
					name = st.RepresentativeName + " (" + st.RepresentativeID + ")"
				}
				t.Row(
					name,
					renderState(st.State),
					strconv.Itoa(st.ActiveChats),
					strconv.Itoa(st.PendingReplies),
					lastActivity,
					st.Error,
				)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, t.Render())
			fmt.Fprintf(out, "%d of %d online\n", resp.Online, len(resp.Representatives))
			return nil
		},
	}
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func newCheckpointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "Inspect step checkpoints",
	}
	cmd.AddCommand(newCheckpointsListCmd())
	return cmd
}

func newCheckpointsListCmd() *cobra.Command {
	var sessionID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the newest checkpoints of a session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStores(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.checkpoints.List(cmd.Context(), strings.TrimSpace(sessionID), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				_, err := fmt.Fprintln(out, lipgloss.NewStyle().Faint(true).Render("no checkpoints"))
				return err
			}
			header := lipgloss.NewStyle().Bold(true)
			fmt.Fprintf(out, "%s\n", header.Render(fmt.Sprintf("checkpoints: %d", len(records))))
			for _, rec := range records {
				active := rec.ActiveWorker
				if active == "" {
					active = "-"
				}
				fmt.Fprintf(out, "#%d %s -> %s active=%s messages=%d bytes=%d at=%s\n",
					rec.Seq, rec.Step, rec.Next, active, rec.MessageCount, rec.ByteSize,
					rec.CreatedAt.Format("2006-01-02T15:04:05Z"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of checkpoints")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

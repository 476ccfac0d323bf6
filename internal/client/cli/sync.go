package cli

import (
	"fmt"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/client/syncworker"
	"github.com/spf13/cobra"
)

const failedShown = 20

func newSyncCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Deliver queued changes and inspect the outbox",
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Run one sync cycle now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rep := st.app.worker.Cycle(cmd.Context())
			w := cmd.OutOrStdout()
			c := green
			if rep.Result == syncworker.Retry {
				c = yellow
			}
			c.Fprintf(w, "%s", rep.Result)
			fmt.Fprintf(w, ": sent %d, failed %d", rep.Sent, rep.Failed)
			if rep.Reason != "" {
				fmt.Fprintf(w, " (%s)", rep.Reason)
			}
			fmt.Fprintln(w)
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show outbox counts and failed operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := st.app.journal.SyncStatus(cmd.Context(), failedShown)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "pending %d, sent %d, ", s.Counts[models.StatusPending], s.Counts[models.StatusSent])
			if n := s.Counts[models.StatusFailed]; n > 0 {
				red.Fprintf(w, "failed %d\n", n)
			} else {
				fmt.Fprintln(w, "failed 0")
			}
			for _, op := range s.Failed {
				line := fmt.Sprintf("  %s  %-18s %s  retries %d", shortID(op.ID), op.Type, op.KeyRef, op.Retries)
				if op.ReplacedBy != "" {
					line += "  replaced by " + shortID(op.ReplacedBy)
				}
				faint.Fprintln(w, line)
			}
			if len(s.Failed) > 0 {
				faint.Fprintln(w, "Run 'moodkeeper sync requeue' to try failed operations again.")
			}
			return nil
		},
	}

	requeue := &cobra.Command{
		Use:   "requeue [id...]",
		Short: "Queue failed operations for another attempt",
		Long:  "Copies the given failed operations, or all of them, into new pending operations.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := st.app.journal.Requeue(cmd.Context(), args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d operation(s)\n", len(ops))
			return nil
		},
	}

	cmd.AddCommand(run, status, requeue)
	return cmd
}

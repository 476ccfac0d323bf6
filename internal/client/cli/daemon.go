package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newDaemonCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Sync in the background until interrupted",
		Long: `Runs the periodic outbox sync, retries with backoff, follows remote
changes into the local database and watches connectivity. Stops on
SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return st.app.RunDaemon(ctx)
		},
	}
}


package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/dmitrijs2005/moodkeeper/internal/client/config"
	"github.com/spf13/cobra"
)

// cliState carries the App between the root pre-run hook and the commands.
// The shell sets it once and reuses it for every line.
type cliState struct {
	app *App
	in  io.Reader
}

func (s *cliState) close() error {
	if s.app == nil {
		return nil
	}
	err := s.app.Close()
	s.app = nil
	return err
}

// NewRootCmd builds the moodkeeper command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&cliState{in: os.Stdin})
}

func newRootCmd(st *cliState) *cobra.Command {
	root := &cobra.Command{
		Use:   "moodkeeper",
		Short: "Offline-first mood journal",
		Long: `moodkeeper keeps a daily diary, mood score and short reflections in a
local database and synchronizes them with a remote store whenever it can.
Every write succeeds locally; undelivered changes wait in the outbox until
the next sync.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if st.app != nil {
				return nil
			}
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			app, err := NewApp(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			st.app = app
			return nil
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	addJournalCommands(root, st)
	root.AddCommand(newDaemonCmd(st), newShellCmd(st))
	return root
}

// addJournalCommands registers the commands that are also available in the
// shell.
func addJournalCommands(root *cobra.Command, st *cliState) {
	root.AddCommand(
		newDiaryCmd(st),
		newMoodCmd(st),
		newReflectCmd(st),
		newSyncCmd(st),
		newLoginCmd(st),
		newLogoutCmd(st),
	)
}

// Execute runs the command line in args and releases the App afterwards.
func Execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	st := &cliState{in: in}
	root := newRootCmd(st)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, st.close())
}

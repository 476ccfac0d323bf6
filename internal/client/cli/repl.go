package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The shell App adapter satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn(ctx context.Context) bool
	Exec(ctx context.Context, args []string) error
}

// runREPL starts a simple read–eval–print loop.
//
// Every line is split into words and run as a moodkeeper command, so
// "mood set 4" in the shell does what `moodkeeper mood set 4` does.
// The loop exits on scanner EOF or when the user types "exit" or "quit".
// Command errors are printed and the loop continues.
//
// The prompt is printed only when prompt is true, which keeps piped input
// output clean.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner, prompt bool) {
	for {
		if ctx.Err() != nil {
			return
		}
		if prompt {
			printlnFn(fmt.Sprintf("mk %s> ", statusFn()))
		}
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "help":
			if a.isLoggedIn(ctx) {
				printlnFn("Available commands: diary, mood, reflect, sync, logout, exit")
			} else {
				printlnFn("Available commands: diary, mood, reflect, sync, login, exit")
			}
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			if err := a.Exec(ctx, parts); err != nil {
				printlnFn("Error:", err)
			}
		}
	}
}

// shellExec runs shell lines against a fresh command tree bound to the
// already opened App.
type shellExec struct {
	st  *cliState
	out io.Writer
}

func (s *shellExec) isLoggedIn(ctx context.Context) bool {
	_, ok, err := s.st.app.session.CurrentUserID(ctx)
	return err == nil && ok
}

func (s *shellExec) Exec(ctx context.Context, args []string) error {
	root := &cobra.Command{
		Use:           "moodkeeper",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addJournalCommands(root, s.st)
	root.SetArgs(args)
	root.SetOut(s.out)
	root.SetErr(s.out)
	return root.ExecuteContext(ctx)
}

func newShellCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive prompt running moodkeeper commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// Keep connectivity fresh for the prompt and direct delivery.
			go func() { _ = st.app.watcher.Run(ctx) }()

			prompt := interactive(st.in)
			if prompt {
				printlnFn("moodkeeper shell (type 'help' for commands)")
			}
			runREPL(ctx, &shellExec{st: st, out: cmd.OutOrStdout()}, func() string { return st.app.getStatus(ctx) }, bufio.NewScanner(st.in), prompt)
			return nil
		},
	}
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// getToken is an indirection used to facilitate testing.
var getToken = GetToken

func newLoginCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "login [token]",
		Short: "Sign in with an access token issued by the server",
		Long: `Stores the access token and the user id it names. Without an argument
the token is read from standard input, hidden when it is a terminal.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := optArg(args)
			if token == "" {
				raw, err := getToken(st.in, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				token = strings.TrimSpace(string(raw))
			}

			uid, err := st.app.session.Login(cmd.Context(), token)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			green.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", uid)
			st.app.scheduler.TriggerNow()
			return nil
		},
	}
}

func newLogoutCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token; local data is kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.app.session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

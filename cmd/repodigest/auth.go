package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	keyringadapter "github.com/ericfisherdev/repodigest/internal/adapter/driven/keyring"
	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

// newCredentialStore is replaced in tests.
var newCredentialStore = func() driven.CredentialStore {
	return keyringadapter.NewStore(keyringadapter.DefaultService)
}

func newAuthCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the GitHub token kept in the OS keyring",
		Long: `A token in REPODIGEST_GITHUB_TOKEN always wins over the keyring. A running
server picks up a changed keyring token on SIGHUP.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set-token [TOKEN]",
			Short: "Store a GitHub token; reads it from stdin when omitted",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				token := ""
				if len(args) == 1 {
					token = args[0]
				} else {
					line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
					if err != nil && line == "" {
						return fmt.Errorf("read token from stdin: %w", err)
					}
					token = line
				}

				token = strings.TrimSpace(token)
				if token == "" {
					return errors.New("token must not be empty")
				}

				if err := newCredentialStore().Set(cmd.Context(), keyringadapter.GitHubTokenKey, token); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "GitHub token stored in the keyring.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear-token",
			Short: "Remove the stored GitHub token",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := newCredentialStore().Delete(cmd.Context(), keyringadapter.GitHubTokenKey); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "GitHub token removed from the keyring.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show where the GitHub token comes from",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				out := cmd.OutOrStdout()
				if c.cfg.HasGitHubToken() {
					fmt.Fprintln(out, "GitHub token: environment (REPODIGEST_GITHUB_TOKEN)")
					return nil
				}

				token, err := newCredentialStore().Get(cmd.Context(), keyringadapter.GitHubTokenKey)
				switch {
				case err != nil:
					return err
				case token == "":
					fmt.Fprintln(out, "GitHub token: none (anonymous access, hot repositories use REST search)")
				default:
					fmt.Fprintln(out, "GitHub token: keyring")
				}
				return nil
			},
		},
	)

	return cmd
}

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/repodigest/internal/config"
)

// cli carries state shared by every subcommand once the root pre-run has
// loaded configuration.
type cli struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "repodigest",
		Short: "Track GitHub repositories and mail activity digests.",
		Long: `repodigest keeps a local list of GitHub repositories, refreshes their
recent commits, issues, pull requests and releases, and mails scheduled
digests of that activity.

Configuration is read from REPODIGEST_* environment variables and an
optional .env file in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg
			slog.SetDefault(cfg.NewLogger(os.Stderr))
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(c),
		newReposCmd(c),
		newTasksCmd(c),
		newAuthCmd(c),
	)

	return root
}

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/repodigest/internal/application"
	"github.com/ericfisherdev/repodigest/internal/domain/model"
)

func newReposCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repos",
		Short: "Manage tracked repositories",
	}

	cmd.AddCommand(
		newReposListCmd(c),
		newReposTrackCmd(c),
		newReposUntrackCmd(c),
		newReposRefreshCmd(c),
		newReposSearchCmd(c),
		newReposHotCmd(c),
		newReposSummaryCmd(c),
	)
	return cmd
}

func newReposListCmd(c *cli) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked repositories and whether they had activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days == 0 {
				days = c.cfg.LookbackDays
			}
			if !model.IsLookbackWindow(days) {
				return fmt.Errorf("--days must be one of %v", model.LookbackWindows)
			}

			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			writeRepoTable(cmd.OutOrStdout(), a.registry.List(days), time.Now())
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "lookback window in days (1, 7, 30 or 90)")
	return cmd
}

func writeRepoTable(out io.Writer, statuses []model.TrackedRepoStatus, now time.Time) {
	if len(statuses) == 0 {
		fmt.Fprintln(out, "No tracked repositories.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REPOSITORY\tSTARS\tUPDATES\tLATEST\tLAST CHECKED")
	for _, s := range statuses {
		updates := "no"
		if s.HasUpdates {
			updates = "yes"
		}

		latest := "-"
		if s.LatestActivity != nil {
			latest = fmt.Sprintf("%s: %s", s.LatestActivity.Type, truncate(s.LatestActivity.Title, 48))
		}

		checked := "never"
		if s.LastCheckedAt != nil {
			checked = humanize.RelTime(*s.LastCheckedAt, now, "ago", "from now")
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.FullName, humanize.Comma(int64(s.Stars)), updates, latest, checked)
	}
	_ = tw.Flush()
}

func newReposTrackCmd(c *cli) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "track OWNER/NAME...",
		Short: "Start tracking one or more repositories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, name := range args {
				if err := a.registry.Track(cmd.Context(), name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Tracking %s\n", name)
			}

			if !refresh {
				return nil
			}
			report := a.orchestrator.RefreshMany(cmd.Context(), args, c.cfg.LookbackDays)
			writeRefreshReport(cmd.OutOrStdout(), report.Results)
			return report.Err()
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch activity right after tracking")
	return cmd
}

func newReposUntrackCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "untrack OWNER/NAME...",
		Short: "Stop tracking repositories and drop their stored activity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, name := range args {
				if err := a.registry.Untrack(cmd.Context(), name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Untracked %s\n", name)
			}
			return nil
		},
	}
}

func newReposRefreshCmd(c *cli) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "refresh [OWNER/NAME...]",
		Short: "Fetch recent activity for the given or all tracked repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days == 0 {
				days = c.cfg.LookbackDays
			}
			if !model.IsLookbackWindow(days) {
				return fmt.Errorf("--days must be one of %v", model.LookbackWindows)
			}

			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			names := args
			if len(names) == 0 {
				names = a.registry.Names()
			}

			report := a.orchestrator.RefreshMany(cmd.Context(), names, days)
			writeRefreshReport(cmd.OutOrStdout(), report.Results)
			fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d repositories in %s, %d failed.\n",
				len(report.Results), report.Duration.Round(time.Millisecond), len(report.Failed()))
			return report.Err()
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "lookback window in days (1, 7, 30 or 90)")
	return cmd
}

func newReposSearchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "search QUERY",
		Short: "Search GitHub repositories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			repos, err := a.catalog.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			writeCatalog(cmd.OutOrStdout(), repos, a.registry.IsTracked)
			return nil
		},
	}
}

func newReposHotCmd(c *cli) *cobra.Command {
	var (
		days, limit int
		summary     bool
	)
	cmd := &cobra.Command{
		Use:   "hot",
		Short: "List the most starred recently created repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !model.IsLookbackWindow(days) {
				return fmt.Errorf("--days must be one of %v", model.LookbackWindows)
			}

			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if summary {
				overview, err := a.catalog.HotOverview(cmd.Context(), days, limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), overview.Text)
				return nil
			}

			repos, err := a.catalog.Hot(cmd.Context(), days, limit)
			if err != nil {
				return err
			}
			writeCatalog(cmd.OutOrStdout(), repos, a.registry.IsTracked)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "created within the last N days (1, 7, 30 or 90)")
	cmd.Flags().IntVar(&limit, "limit", 10, "number of repositories to list")
	cmd.Flags().BoolVar(&summary, "summary", false, "print an overview instead of the list")
	return cmd
}

func newReposSummaryCmd(c *cli) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize stored activity across tracked repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days == 0 {
				days = c.cfg.LookbackDays
			}
			if !model.IsLookbackWindow(days) {
				return fmt.Errorf("--days must be one of %v", model.LookbackWindows)
			}

			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			overview := a.catalog.TrackedOverview(cmd.Context(), a.registry.List(days), days)
			fmt.Fprintln(cmd.OutOrStdout(), overview.Text)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "lookback window in days (1, 7, 30 or 90)")
	return cmd
}

func writeCatalog(out io.Writer, repos []model.Repository, tracked func(string) bool) {
	if len(repos) == 0 {
		fmt.Fprintln(out, "No repositories found.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REPOSITORY\tSTARS\tFORKS\tTRACKED\tDESCRIPTION")
	for _, r := range repos {
		mark := ""
		if tracked(r.FullName) {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.FullName, humanize.Comma(int64(r.Stars)), humanize.Comma(int64(r.Forks)), mark, truncate(catalogDescription(r), 60))
	}
	_ = tw.Flush()
}

// catalogDescription prefers the translated description when there is one.
func catalogDescription(r model.Repository) string {
	if strings.TrimSpace(r.DescriptionLocalized) != "" {
		return r.DescriptionLocalized
	}
	return r.Description
}

func writeRefreshReport(out io.Writer, results []application.RefreshResult) {
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(out, "%s: failed: %v\n", res.Repo, res.Err)
			continue
		}
		fmt.Fprintf(out, "%s: %d activities\n", res.Repo, res.Activities)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

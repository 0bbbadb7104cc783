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

func newTasksCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage scheduled digest tasks",
	}

	cmd.AddCommand(
		newTasksListCmd(c),
		newTasksDescribeCmd(c),
		newTasksCreateCmd(c),
		newTasksRunCmd(c),
		newTasksDeleteCmd(c),
	)
	return cmd
}

func newTasksListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			tasks, err := a.engine.List(cmd.Context())
			if err != nil {
				return err
			}
			writeTaskTable(cmd.OutOrStdout(), a.engine, tasks, time.Now())
			return nil
		},
	}
}

func writeTaskTable(out io.Writer, engine *application.ScheduleEngine, tasks []model.ScheduledTask, now time.Time) {
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No scheduled tasks.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tSCHEDULE\tNEXT RUN\tREPOSITORIES")
	for _, task := range tasks {
		next := "-"
		if at, ok := engine.NextFire(task, now); ok {
			next = humanize.RelTime(at, now, "ago", "from now")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			task.ID, task.Email, engine.Describe(task), next, strings.Join(task.Repositories, ", "))
	}
	_ = tw.Flush()
}

func newTasksDescribeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "describe ID",
		Short: "Show one task and its upcoming firing times",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			task, err := a.engine.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:           %s\n", task.ID)
			fmt.Fprintf(out, "Email:        %s\n", task.Email)
			fmt.Fprintf(out, "Schedule:     %s (%s)\n", a.engine.Describe(task), a.engine.Location())
			fmt.Fprintf(out, "Created:      %s\n", humanize.Time(task.CreatedAt))
			fmt.Fprintln(out, "Repositories:")
			for _, repo := range task.Repositories {
				tracked := ""
				if !a.registry.IsTracked(repo) {
					tracked = " (no longer tracked)"
				}
				fmt.Fprintf(out, "  - %s%s\n", repo, tracked)
			}

			after := time.Now()
			for i := 0; i < 3; i++ {
				next, ok := a.engine.NextFire(task, after)
				if !ok {
					break
				}
				if i == 0 {
					fmt.Fprintln(out, "Next runs:")
				}
				fmt.Fprintf(out, "  %s\n", next.Format("Mon 2006-01-02 15:04 MST"))
				after = next
			}
			return nil
		},
	}
}

func newTasksCreateCmd(c *cli) *cobra.Command {
	var (
		email     string
		repos     []string
		frequency string
		weekday   int
		monthDay  int
		at        string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a scheduled digest task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields := model.RecurrenceFields{
				Frequency:   model.Frequency(frequency),
				ExecuteTime: at,
			}
			if cmd.Flags().Changed("weekday") {
				fields.Weekday = &weekday
			}
			if cmd.Flags().Changed("month-day") {
				fields.MonthDay = &monthDay
			}

			recurrence, err := model.ParseRecurrence(fields)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			task, err := a.engine.Save(cmd.Context(), model.NewTask{}, model.TaskDraft{
				Email:        email,
				Repositories: repos,
				Recurrence:   recurrence,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created task %s: %s\n", task.ID, a.engine.Describe(task))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "digest recipient")
	cmd.Flags().StringSliceVar(&repos, "repo", nil, "tracked repository to include (repeatable)")
	cmd.Flags().StringVar(&frequency, "frequency", string(model.FrequencyDaily), "immediate, daily, weekly or monthly")
	cmd.Flags().IntVar(&weekday, "weekday", 0, "ISO weekday for weekly tasks (1=Monday, 7=Sunday)")
	cmd.Flags().IntVar(&monthDay, "month-day", 0, "day of month for monthly tasks (1-28)")
	cmd.Flags().StringVar(&at, "at", "", "time of day as HH:MM")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("repo")

	return cmd
}

func newTasksRunCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "run ID",
		Short: "Send a task's digest now, regardless of its schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.ExecuteNow(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s executed.\n", args[0])
			return nil
		},
	}
}

func newTasksDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a scheduled task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s deleted.\n", args[0])
			return nil
		},
	}
}

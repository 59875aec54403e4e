package console

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/onyx-go/dispatch/internal/schedule"
)

// scheduledJob is one row of schedule:list
type scheduledJob struct {
	schedule.Stats `yaml:",inline"`
	Description    string    `json:"description,omitempty" yaml:"description,omitempty"`
	Next           time.Time `json:"next" yaml:"next"`
}

func (c *Console) scheduleListCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "schedule:list",
		Short: "List the scheduled jobs",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.application()
			if err != nil {
				return err
			}
			if err := app.Boot(commandContext(cmd)); err != nil {
				return err
			}

			jobs := app.Schedule().Jobs()
			listed := make([]scheduledJob, len(jobs))
			rows := make([][]string, len(jobs))
			for i, job := range jobs {
				listed[i] = scheduledJob{Stats: job.Stats(), Description: job.Description(), Next: job.Next()}
				rows[i] = []string{
					job.Name(),
					job.Expression(),
					formatTime(listed[i].Next),
					formatTime(listed[i].LastRun),
					strconv.FormatInt(listed[i].Runs, 10),
					strconv.FormatBool(listed[i].Enabled),
				}
			}
			return render(cmd.OutOrStdout(), format, listed, []string{"NAME", "SCHEDULE", "NEXT", "LAST RUN", "RUNS", "ENABLED"}, rows)
		},
	}

	addFormatFlag(cmd, &format)
	return cmd
}

func (c *Console) scheduleRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule:run [NAME]",
		Short: "Run one scheduled job, or all of them, immediately",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.application()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			if err := app.Boot(ctx); err != nil {
				return err
			}

			s := app.Schedule()
			names := args
			if len(names) == 0 {
				for _, job := range s.Jobs() {
					names = append(names, job.Name())
				}
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No scheduled jobs.")
				return nil
			}

			var errs []error
			for _, name := range names {
				if err := s.RunNow(ctx, name); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "failed: %s: %v\n", name, err)
					errs = append(errs, fmt.Errorf("%s: %w", name, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ran: %s\n", name)
			}
			return errors.Join(errs...)
		},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

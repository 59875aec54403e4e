package console

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/onyx-go/dispatch/internal/database/schema"
)

func (c *Console) migrator(cmd *cobra.Command) (*schema.Migrator, error) {
	app, err := c.application()
	if err != nil {
		return nil, err
	}
	return app.Migrator(commandContext(cmd))
}

func report(w io.Writer, verb string, names []string) {
	if len(names) == 0 {
		fmt.Fprintf(w, "Nothing to %s.\n", verb)
		return
	}
	for _, name := range names {
		fmt.Fprintf(w, "%s: %s\n", verb, name)
	}
}

func (c *Console) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.migrator(cmd)
			if err != nil {
				return err
			}
			ran, err := m.Run(commandContext(cmd))
			report(cmd.OutOrStdout(), "migrate", ran)
			return err
		},
	}
}

func (c *Console) migrateRollbackCommand() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "migrate:rollback",
		Short: "Roll back the last batches of migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--step must be at least 1, got %d", steps)
			}
			m, err := c.migrator(cmd)
			if err != nil {
				return err
			}
			rolled, err := m.Rollback(commandContext(cmd), steps)
			report(cmd.OutOrStdout(), "rollback", rolled)
			return err
		},
	}

	cmd.Flags().IntVar(&steps, "step", 1, "number of batches to roll back")
	return cmd
}

func (c *Console) migrateResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate:reset",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.migrator(cmd)
			if err != nil {
				return err
			}
			rolled, err := m.Reset(commandContext(cmd))
			report(cmd.OutOrStdout(), "rollback", rolled)
			return err
		},
	}
}

func (c *Console) migrateStatusCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "migrate:status",
		Short: "Show the status of each migration",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.migrator(cmd)
			if err != nil {
				return err
			}
			status, err := m.Status(commandContext(cmd))
			if err != nil {
				return err
			}

			rows := make([][]string, len(status))
			for i, s := range status {
				ran, batch := "No", ""
				if s.Ran {
					ran, batch = "Yes", strconv.Itoa(s.Batch)
				}
				rows[i] = []string{ran, s.Name, batch}
			}
			return render(cmd.OutOrStdout(), format, status, []string{"RAN", "MIGRATION", "BATCH"}, rows)
		},
	}

	addFormatFlag(cmd, &format)
	return cmd
}

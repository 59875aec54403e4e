package console

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/onyx-go/dispatch/internal/http/middleware/security"
)

func (c *Console) downCommand() *cobra.Command {
	var payload security.DownPayload

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Put the application into maintenance mode",
		Example: `  dispatch down --retry 60 --message "Upgrading"
  dispatch down --allow 10.0.0.1 --except /health`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if payload.Retry < 0 {
				return fmt.Errorf("--retry must not be negative, got %d", payload.Retry)
			}
			app, err := c.application()
			if err != nil {
				return err
			}

			store := app.Maintenance()
			payload.Time = time.Now()
			if err := store.Down(payload); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Application is now in maintenance mode (%s)\n", store.Path())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&payload.Retry, "retry", 0, "seconds sent in the Retry-After header")
	flags.StringVar(&payload.Message, "message", "", "message shown while down")
	flags.StringSliceVar(&payload.Allowed, "allow", nil, "client IPs that may still access the application")
	flags.StringSliceVar(&payload.Except, "except", nil, "paths that stay reachable")
	return cmd
}

func (c *Console) upCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Bring the application out of maintenance mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.application()
			if err != nil {
				return err
			}

			store := app.Maintenance()
			if !store.IsDown() {
				fmt.Fprintln(cmd.OutOrStdout(), "Application is already up.")
				return nil
			}
			if err := store.Up(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Application is now live.")
			return nil
		},
	}
}

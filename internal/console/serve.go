package console

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func (c *Console) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Start the HTTP server and the scheduler",
		Long: `Start the HTTP server and the maintenance scheduler. The server drains
in-flight requests on SIGINT or SIGTERM within app.shutdown_timeout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.application()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return app.Run(ctx, addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default app.addr)")
	return cmd
}

// Package console is the command-line front end: serving, route listing,
// scaffolding, migrations, key generation, maintenance mode and the
// scheduler.
package console

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/onyx-go/dispatch/internal/config"
	"github.com/onyx-go/dispatch/internal/database/schema"
	"github.com/onyx-go/dispatch/internal/http/middleware/security"
	"github.com/onyx-go/dispatch/internal/http/router"
	"github.com/onyx-go/dispatch/internal/schedule"
)

// Application is what the commands need from the application context
type Application interface {
	Config() *config.Config
	Router() *router.Router
	Boot(ctx context.Context) error
	Run(ctx context.Context, addr string) error
	Migrator(ctx context.Context) (*schema.Migrator, error)
	Maintenance() *security.FileMaintenance
	Schedule() *schedule.Schedule
	Terminate(ctx context.Context) error
}

// Loader builds the application from the configuration sources named on
// the command line
type Loader func(opts config.Options) (Application, error)

// Console holds the state shared by every command
type Console struct {
	load Loader

	configFile string
	envFile    string
	base       string

	once sync.Once
	app  Application
	err  error
}

// New creates the root command. The application is loaded on first use,
// so scaffolding commands work without a valid configuration.
func New(load Loader) *cobra.Command {
	c := &Console{load: load}

	root := &cobra.Command{
		Use:           "dispatch",
		Short:         "Dispatch application console",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.close(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "config.yaml", "YAML configuration file")
	flags.StringVar(&c.envFile, "env-file", ".env", "dotenv file")
	flags.StringVar(&c.base, "base", ".", "project root for generated files")

	root.AddCommand(
		c.serveCommand(),
		c.routeListCommand(),
		c.makeCommand("controller"),
		c.makeCommand("middleware"),
		c.makeCommand("provider"),
		c.makeCommand("listener"),
		c.makeMigrationCommand(),
		c.migrateCommand(),
		c.migrateRollbackCommand(),
		c.migrateResetCommand(),
		c.migrateStatusCommand(),
		c.keyGenerateCommand(),
		c.downCommand(),
		c.upCommand(),
		c.scheduleListCommand(),
		c.scheduleRunCommand(),
	)
	return root
}

// application loads the application once per invocation
func (c *Console) application() (Application, error) {
	c.once.Do(func() {
		if c.load == nil {
			c.err = fmt.Errorf("no application loader configured")
			return
		}
		c.app, c.err = c.load(config.Options{File: c.configFile, EnvFile: c.envFile})
	})
	return c.app, c.err
}

func (c *Console) close(ctx context.Context) error {
	if c.app == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return c.app.Terminate(ctx)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

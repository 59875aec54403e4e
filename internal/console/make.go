package console

import (
	"bytes"
	"errors"
	"fmt"
	"go/format"
	"io/fs"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/spf13/cobra"
)

// Module is the import path generated files refer to
const Module = "github.com/onyx-go/dispatch"

// stub describes one make:* generator
type stub struct {
	short   string
	dir     string
	pkg     string
	suffix  string
	source  string
	example string
}

var stubs = map[string]stub{
	"controller": {
		short:   "Create a new controller",
		dir:     "app/http/controllers",
		pkg:     "controllers",
		suffix:  "Controller",
		source:  controllerStub,
		example: "dispatch make:controller photo --resource",
	},
	"middleware": {
		short:   "Create a new middleware",
		dir:     "app/http/middleware",
		pkg:     "middleware",
		source:  middlewareStub,
		example: "dispatch make:middleware ensure_admin",
	},
	"provider": {
		short:   "Create a new service provider",
		dir:     "app/providers",
		pkg:     "providers",
		suffix:  "Provider",
		source:  providerStub,
		example: "dispatch make:provider billing",
	},
	"listener": {
		short:   "Create a new event listener",
		dir:     "app/listeners",
		pkg:     "listeners",
		source:  listenerStub,
		example: "dispatch make:listener send_welcome_email --event user.registered",
	},
}

// stubData is passed to every stub template
type stubData struct {
	Module   string
	Package  string
	Name     string
	Resource bool
	Event    string
	Table    string
	Create   bool
	ID       string
}

func (c *Console) makeCommand(kind string) *cobra.Command {
	s := stubs[kind]
	var (
		force    bool
		resource bool
		event    string
	)

	cmd := &cobra.Command{
		Use:     "make:" + kind + " NAME",
		Short:   s.short,
		Example: "  " + s.example,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := withSuffix(args[0], s.suffix)
			if name == "" {
				return fmt.Errorf("%s name %q has no letters or digits", kind, args[0])
			}

			data := stubData{
				Module:   Module,
				Package:  s.pkg,
				Name:     name,
				Resource: resource,
				Event:    event,
			}
			path := filepath.Join(c.base, s.dir, snake(name)+".go")
			if err := writeStub(path, s.source, data, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (%s)\n", kind, name, path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	switch kind {
	case "controller":
		cmd.Flags().BoolVarP(&resource, "resource", "r", false, "generate the resource actions")
	case "listener":
		cmd.Flags().StringVarP(&event, "event", "e", "", "event name the listener handles")
	}
	return cmd
}

func (c *Console) makeMigrationCommand() *cobra.Command {
	var (
		force  bool
		create string
		table  string
	)

	cmd := &cobra.Command{
		Use:   "make:migration NAME",
		Short: "Create a new migration file",
		Example: `  dispatch make:migration create_posts_table --create posts
  dispatch make:migration add_slug_to_posts --table posts`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if create != "" && table != "" {
				return errors.New("--create and --table are mutually exclusive")
			}

			stem := snake(args[0])
			if stem == "" {
				return fmt.Errorf("migration name %q has no letters or digits", args[0])
			}
			id := time.Now().Format("2006_01_02_150405") + "_" + stem

			data := stubData{
				Module:  Module,
				Package: "migrations",
				Name:    studly(stem),
				Table:   table,
				Create:  create != "",
				ID:      id,
			}
			if create != "" {
				data.Table = create
			}

			path := filepath.Join(c.base, "database", "migrations", id+".go")
			if err := writeStub(path, migrationStub, data, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created migration %s (%s)\n", id, path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.Flags().StringVar(&create, "create", "", "table the migration creates")
	cmd.Flags().StringVar(&table, "table", "", "table the migration alters")
	return cmd
}

// writeStub renders source with data, gofmt-formats it and writes path.
// Existing files are kept unless force is set.
func writeStub(path, source string, data stubData, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	tmpl, err := template.New(filepath.Base(path)).Parse(source)
	if err != nil {
		return fmt.Errorf("parse stub: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render stub: %w", err)
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return fmt.Errorf("format %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, formatted, 0o644)
}

const controllerStub = `package {{.Package}}

import (
	"net/http"

	httpInternal "{{.Module}}/internal/http"
)

type {{.Name}} struct{}
{{if .Resource}}
func (c *{{.Name}}) Index(ctx *httpInternal.Context) (interface{}, error) {
	return ctx.JSON(http.StatusOK, []interface{}{})
}

func (c *{{.Name}}) Create(ctx *httpInternal.Context) (interface{}, error) {
	return ctx.String(http.StatusOK, "")
}

func (c *{{.Name}}) Store(ctx *httpInternal.Context) (interface{}, error) {
	return ctx.JSON(http.StatusCreated, map[string]interface{}{})
}

func (c *{{.Name}}) Show(ctx *httpInternal.Context) (interface{}, error) {
	return ctx.JSON(http.StatusOK, map[string]string{"id": ctx.Param("id")})
}

func (c *{{.Name}}) Edit(ctx *httpInternal.Context) (interface{}, error) {
	return ctx.String(http.StatusOK, "")
}

func (c *{{.Name}}) Update(ctx *httpInternal.Context) (interface{}, error) {
	return ctx.JSON(http.StatusOK, map[string]string{"id": ctx.Param("id")})
}

func (c *{{.Name}}) Destroy(ctx *httpInternal.Context) (interface{}, error) {
	return httpInternal.NoContent(), nil
}
{{else}}
func (c *{{.Name}}) Index(ctx *httpInternal.Context) (interface{}, error) {
	return ctx.JSON(http.StatusOK, map[string]string{
		"message": "Hello from {{.Name}}",
	})
}
{{end}}`

const middlewareStub = `package {{.Package}}

import (
	httpInternal "{{.Module}}/internal/http"
)

// {{.Name}} runs before the route handler
func {{.Name}}() httpInternal.Middleware {
	return httpInternal.MiddlewareFunc(func(c *httpInternal.Context, next httpInternal.Next) (*httpInternal.Response, error) {
		return next(c)
	})
}
`

const providerStub = `package {{.Package}}

import (
	"{{.Module}}/internal/app"
)

type {{.Name}} struct{}

// Register binds services into the container
func (p {{.Name}}) Register(c *app.Container) {
}

// Boot runs after every provider has registered
func (p {{.Name}}) Boot(c *app.Container) {
}
`

const listenerStub = `package {{.Package}}

import (
	"context"

	"{{.Module}}/internal/events"
)
{{if .Event}}
// {{.Name}}Event is the event {{.Name}} listens to
const {{.Name}}Event = "{{.Event}}"
{{end}}
type {{.Name}} struct{}

func (l *{{.Name}}) Handle(ctx context.Context, event events.Event) error {
	return nil
}
`

const migrationStub = `package {{.Package}}

import (
	"context"

	"{{.Module}}/internal/database/schema"
)

// {{.Name}} is migration {{.ID}}
var {{.Name}} = schema.Func{
	ID: "{{.ID}}",
	UpFn: func(ctx context.Context, s *schema.Builder) error {
{{- if .Create}}
		return s.Create(ctx, "{{.Table}}", func(t *schema.Blueprint) {
			t.ID()
			t.Timestamps()
		})
{{- else if .Table}}
		return s.Table(ctx, "{{.Table}}", func(t *schema.Blueprint) {
		})
{{- else}}
		return nil
{{- end}}
	},
	DownFn: func(ctx context.Context, s *schema.Builder) error {
{{- if .Create}}
		return s.DropIfExists(ctx, "{{.Table}}")
{{- else if .Table}}
		return s.Table(ctx, "{{.Table}}", func(t *schema.Blueprint) {
		})
{{- else}}
		return nil
{{- end}}
	},
}
`

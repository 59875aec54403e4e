package console

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/onyx-go/dispatch/internal/http/router"
)

func (c *Console) routeListCommand() *cobra.Command {
	var (
		format string
		method string
		name   string
		path   string
	)

	cmd := &cobra.Command{
		Use:   "route:list",
		Short: "List all registered routes",
		Long: `List all registered routes in registration order.

Examples:
  dispatch route:list                 # table
  dispatch route:list -f json         # JSON
  dispatch route:list --method POST   # only routes answering POST
  dispatch route:list --path api      # only URIs containing "api"`,
		Args: cobra.NoArgs,
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

			routes := filterRoutes(app.Router().Routes(), method, name, path)

			rows := make([][]string, len(routes))
			for i, r := range routes {
				rows[i] = []string{
					strings.Join(r.Methods, "|"),
					r.URI,
					r.Name,
					r.Action,
					strings.Join(r.Middleware, ","),
				}
			}
			return render(cmd.OutOrStdout(), format, routes, []string{"METHOD", "URI", "NAME", "ACTION", "MIDDLEWARE"}, rows)
		},
	}

	addFormatFlag(cmd, &format)
	cmd.Flags().StringVar(&method, "method", "", "filter by HTTP method")
	cmd.Flags().StringVar(&name, "name", "", "filter by route name substring")
	cmd.Flags().StringVar(&path, "path", "", "filter by URI substring")
	return cmd
}

func filterRoutes(routes []router.Listing, method, name, path string) []router.Listing {
	method = strings.ToUpper(method)
	filtered := make([]router.Listing, 0, len(routes))

	for _, r := range routes {
		if method != "" && !containsString(r.Methods, method) {
			continue
		}
		if name != "" && !strings.Contains(r.Name, name) {
			continue
		}
		if path != "" && !strings.Contains(r.URI, path) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

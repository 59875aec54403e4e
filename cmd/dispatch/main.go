package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/onyx-go/dispatch"
	"github.com/onyx-go/dispatch/internal/config"
	"github.com/onyx-go/dispatch/internal/console"
	httpInternal "github.com/onyx-go/dispatch/internal/http"
	"github.com/onyx-go/dispatch/internal/http/api"
)

func main() {
	root := console.New(load)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func load(opts config.Options) (console.Application, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, err
	}
	app, err := dispatch.New(cfg)
	if err != nil {
		return nil, err
	}
	routes(app)
	return app, nil
}

func routes(app *dispatch.Application) {
	started := time.Now()
	r := app.Router()

	r.GET("/", func(c *httpInternal.Context) (interface{}, error) {
		return c.JSON(http.StatusOK, map[string]string{
			"name":    app.Settings().Name,
			"message": "Welcome to " + app.Settings().Name,
		})
	}).Name("home").Middleware("web")

	r.GET("/health", func(c *httpInternal.Context) (interface{}, error) {
		return api.Success(map[string]interface{}{
			"status": "ok",
			"uptime": time.Since(started).Round(time.Second).String(),
		}, "healthy")
	}).Name("health").Middleware("api")
}

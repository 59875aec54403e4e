// Package dispatch is the application context of the framework. An
// Application owns the container, router, event dispatcher, views and
// sessions for its lifetime; nothing is process-global.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/onyx-go/dispatch/internal/app"
	"github.com/onyx-go/dispatch/internal/config"
	"github.com/onyx-go/dispatch/internal/database"
	"github.com/onyx-go/dispatch/internal/database/schema"
	httpErrors "github.com/onyx-go/dispatch/internal/errors"
	"github.com/onyx-go/dispatch/internal/events"
	httpInternal "github.com/onyx-go/dispatch/internal/http"
	"github.com/onyx-go/dispatch/internal/http/middleware/security"
	"github.com/onyx-go/dispatch/internal/http/router"
	"github.com/onyx-go/dispatch/internal/logging"
	"github.com/onyx-go/dispatch/internal/ratelimit"
	"github.com/onyx-go/dispatch/internal/schedule"
	"github.com/onyx-go/dispatch/internal/session"
	"github.com/onyx-go/dispatch/internal/template"
)

// Session drivers
const (
	SessionMemory   = "memory"
	SessionDatabase = "database"
)

// errorViews are looked up as "errors.<status>" when the application boots
var errorViews = []int{
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusMethodNotAllowed,
	security.StatusPageExpired,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusServiceUnavailable,
}

// Application wires the framework services together. Routes, providers,
// listeners and migrations are registered before Boot; after Boot the
// route table is frozen.
type Application struct {
	config    *config.Config
	settings  config.AppConfig
	proxies   *httpInternal.TrustedProxies
	container *app.Container
	events    *events.Dispatcher
	stats     *events.Stats
	router    *router.Router
	kernel    *Kernel
	errors    *httpErrors.ErrorHandler
	logs      *logging.Manager
	logger    logging.Logger
	views     *template.Factory
	databases *database.Manager
	schedule  *schedule.Schedule
	rateStore *ratelimit.MemoryStore
	limiter   *ratelimit.Limiter

	// built by Boot
	sessions    *session.Manager
	security    *security.MiddlewareFactory
	maintenance *security.FileMaintenance
	users       security.UserProvider

	providers  []ServiceProvider
	migrations []schema.Migration

	mutex      sync.Mutex
	booted     bool
	terminated bool
	bootOnce   sync.Once
	bootErr    error
}

// New creates an application from cfg. A nil cfg uses the framework
// defaults and the environment.
func New(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.New()
	}

	settings, err := cfg.App()
	if err != nil {
		return nil, err
	}
	logCfg, err := cfg.Logging()
	if err != nil {
		return nil, err
	}
	dbCfg, err := cfg.Database()
	if err != nil {
		return nil, err
	}

	logs, err := logging.FromConfig(logCfg)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	logger := logs.Default()

	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		return nil, fmt.Errorf("app.timezone: %w", err)
	}
	proxies, err := httpInternal.ParseTrustedProxies(cfg.GetStringSlice("security.trusted_proxies"))
	if err != nil {
		return nil, fmt.Errorf("security.trusted_proxies: %w", err)
	}

	container := app.NewContainer()
	eh := httpErrors.NewErrorHandler(settings.Debug)
	eh.AddReporter(httpErrors.ReporterFunc(func(err error, c *httpInternal.Context) {
		logger.LogContext(c.Context(), logging.ErrorLevel, "Request failed", map[string]interface{}{
			"error":  err.Error(),
			"method": c.Method(),
			"path":   c.Path(),
		})
	}))

	r := router.NewRouter(container)
	rateStore := ratelimit.NewMemoryStore()

	stats := events.NewStats()
	recorder := events.RecorderFunc(func(o events.Outcome) {
		stats.Record(o)
		if o.Err != nil {
			logger.Warn("Event dispatch failed", map[string]interface{}{
				"event":   o.Event,
				"error":   o.Err.Error(),
				"skipped": o.Skipped,
			})
		}
	})

	a := &Application{
		config:    cfg,
		settings:  settings,
		proxies:   proxies,
		container: container,
		events:    events.NewDispatcher(container, recorder),
		stats:     stats,
		router:    r,
		kernel:    NewKernel(r, eh, container),
		errors:    eh,
		logs:      logs,
		logger:    logger,
		databases: database.NewManager(dbCfg),
		schedule:  schedule.New(logger, loc),
		rateStore: rateStore,
		limiter:   ratelimit.NewLimiter(rateStore),
		views: template.NewFactory(template.Options{
			Path:           cfg.GetString("view.path"),
			Extensions:     []string{cfg.GetString("view.extension", ".html")},
			Env:            settings.Env,
			Debug:          settings.Debug,
			ReloadDebounce: 100 * time.Millisecond,
			Logger:         logger.WithChannel("view"),
		}),
		maintenance: security.NewFileMaintenance(settings.MaintenanceFile),
	}

	a.RegisterProvider(coreProvider{app: a})
	return a, nil
}

// Config returns the configuration repository
func (a *Application) Config() *config.Config { return a.config }

// Settings returns the decoded "app" section
func (a *Application) Settings() config.AppConfig { return a.settings }

// Container returns the service container
func (a *Application) Container() *app.Container { return a.container }

// Events returns the event dispatcher
func (a *Application) Events() *events.Dispatcher { return a.events }

// EventStats returns per-event dispatch statistics
func (a *Application) EventStats() *events.Stats { return a.stats }

// Router returns the router for route registration
func (a *Application) Router() *router.Router { return a.router }

// Kernel returns the HTTP kernel
func (a *Application) Kernel() *Kernel { return a.kernel }

// ErrorHandler returns the error renderer
func (a *Application) ErrorHandler() *httpErrors.ErrorHandler { return a.errors }

// Logger returns the default log channel
func (a *Application) Logger() logging.Logger { return a.logger }

// Views returns the template factory
func (a *Application) Views() *template.Factory { return a.views }

// Databases returns the connection manager
func (a *Application) Databases() *database.Manager { return a.databases }

// Schedule returns the maintenance scheduler
func (a *Application) Schedule() *schedule.Schedule { return a.schedule }

// Maintenance returns the flag file toggled by the down and up commands
func (a *Application) Maintenance() *security.FileMaintenance { return a.maintenance }

// Sessions returns the session manager, nil before Boot
func (a *Application) Sessions() *session.Manager {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.sessions
}

// SetUserProvider sets how the auth middleware loads users. It must be
// called before Boot.
func (a *Application) SetUserProvider(users security.UserProvider) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.users = users
}

// RegisterProvider runs the provider's Register phase now. Providers added
// after Boot are booted immediately.
func (a *Application) RegisterProvider(provider ServiceProvider) {
	a.mutex.Lock()
	a.providers = append(a.providers, provider)
	booted := a.booted
	a.mutex.Unlock()

	provider.Register(a.container)
	if booted {
		provider.Boot(a.container)
	}
}

// AddMigrations registers schema migrations run by Migrator
func (a *Application) AddMigrations(migrations ...schema.Migration) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.migrations = append(a.migrations, migrations...)
}

// Listen registers an event listener with a priority
func (a *Application) Listen(eventName string, listener interface{}, priority int) error {
	return a.events.AddListener(eventName, listener, priority)
}

// Boot builds the session, security and middleware layers, boots the
// providers, freezes the route table and fires app.booted. Boot runs once;
// later calls return the first result.
func (a *Application) Boot(ctx context.Context) error {
	a.bootOnce.Do(func() {
		a.bootErr = a.boot(ctx)
	})
	return a.bootErr
}

func (a *Application) boot(ctx context.Context) error {
	a.mutex.Lock()
	if err := a.bootLocked(ctx); err != nil {
		a.mutex.Unlock()
		return err
	}
	a.booted = true
	providers := append([]ServiceProvider(nil), a.providers...)
	a.mutex.Unlock()

	for _, provider := range providers {
		provider.Boot(a.container)
	}

	if err := a.router.Build(); err != nil {
		return fmt.Errorf("routes: %w", err)
	}

	_, err := a.events.Dispatch(ctx, events.NewBaseEvent(events.EventAppBooted, a))
	return err
}

func (a *Application) bootLocked(ctx context.Context) error {
	handler, err := a.sessionHandler(ctx)
	if err != nil {
		return err
	}
	a.sessions = session.NewManager(handler, a.config.Session())

	secCfg := security.DefaultConfig()
	secCfg.CSRFExcept = a.config.GetStringSlice("security.csrf_except")
	secCfg.CORS.Origins = a.config.GetStringSlice("security.cors_origins", secCfg.CORS.Origins)
	secCfg.LoginPath = a.config.GetString("security.login_path", secCfg.LoginPath)

	var maintenance security.MaintenanceStore = a.maintenance
	if a.settings.Maintenance {
		maintenance = security.StaticMaintenance{Down: true, Window: security.DownPayload{Time: time.Now(), Retry: 60}}
	}

	a.security = security.NewMiddlewareFactory(&security.Dependencies{
		Config:      secCfg,
		Logger:      a.logger.WithChannel("security"),
		Limiter:     a.limiter,
		Sessions:    a.sessions,
		Users:       a.users,
		Maintenance: maintenance,
		Errors:      a.errors,
	})

	a.kernel.Aliases(a.security.Aliases())
	a.kernel.Group("web", security.WebGroup()...)
	a.kernel.Group("api", security.APIGroup()...)
	a.kernel.Use(security.GlobalStack()...)

	a.errors.SetRenderer(a.views)
	for _, status := range errorViews {
		name := fmt.Sprintf("errors.%d", status)
		if a.views.Exists(name) {
			a.errors.SetTemplate(status, name)
		}
	}

	if a.settings.Debug && a.config.GetString("view.path") != "" {
		// the watcher outlives the request that may have triggered Boot; Terminate stops it
		if err := a.views.EnableHotReload(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("View hot reload unavailable", map[string]interface{}{"error": err.Error()})
		}
	}

	maintenanceJobs, err := a.config.Schedule()
	if err != nil {
		return err
	}
	return schedule.RegisterMaintenance(a.schedule, maintenanceJobs, a.sessions, a.rateStore)
}

func (a *Application) sessionHandler(ctx context.Context) (session.Handler, error) {
	switch driver := a.config.GetString("session.driver", SessionMemory); driver {
	case SessionMemory:
		return session.NewMemoryHandler(), nil
	case SessionDatabase:
		db, err := a.databases.Default(ctx)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		return session.NewDatabaseHandler(db, a.config.GetString("session.table")), nil
	default:
		return nil, fmt.Errorf("session driver %q is not supported", driver)
	}
}

// Migrator returns a migrator over the default connection with every
// registered migration, including the session table for the database
// session driver.
func (a *Application) Migrator(ctx context.Context) (*schema.Migrator, error) {
	db, err := a.databases.Default(ctx)
	if err != nil {
		return nil, err
	}
	m, err := schema.NewMigrator(db, a.config.GetString("db.migrations_table"))
	if err != nil {
		return nil, err
	}

	if a.config.GetString("session.driver") == SessionDatabase {
		sessions := session.NewDatabaseHandler(db, a.config.GetString("session.table"))
		if err := m.Register(sessions.Migration()); err != nil {
			return nil, err
		}
	}

	a.mutex.Lock()
	migrations := append([]schema.Migration(nil), a.migrations...)
	a.mutex.Unlock()

	if err := m.Register(migrations...); err != nil {
		return nil, err
	}
	return m, nil
}

// Handle runs one request through the kernel
func (a *Application) Handle(r *http.Request) *httpInternal.Response {
	c := httpInternal.NewContext(r)
	c.SetRenderer(a.views)
	c.SetTrustedProxies(a.proxies)
	return a.kernel.Handle(c)
}

// ServeHTTP implements http.Handler. It boots the application on first
// use and fires request.received and request.handled around the kernel.
func (a *Application) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := a.Boot(r.Context()); err != nil {
		a.logger.Error("Application failed to boot", map[string]interface{}{"error": err.Error()})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if _, err := a.events.Dispatch(r.Context(), events.NewRequestEvent(events.EventRequestReceived, r)); err != nil {
		a.logger.LogContext(r.Context(), logging.WarnLevel, "request.received listener failed", map[string]interface{}{"error": err.Error()})
	}

	res := a.Handle(r)
	if err := res.WriteTo(w, r); err != nil {
		a.logger.LogContext(r.Context(), logging.WarnLevel, "Response write failed", map[string]interface{}{"error": err.Error()})
	}

	handled := events.NewRequestEvent(events.EventRequestHandled, r)
	handled.Status = res.Status
	if _, err := a.events.Dispatch(r.Context(), handled); err != nil {
		a.logger.LogContext(r.Context(), logging.WarnLevel, "request.handled listener failed", map[string]interface{}{"error": err.Error()})
	}
}

// Run listens on addr, or app.addr when empty, and serves until ctx is done
func (a *Application) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = a.settings.Addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve accepts connections on ln alongside the scheduler. When ctx is done
// the server drains within app.shutdown_timeout and the application is
// terminated.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	if err := a.Boot(ctx); err != nil {
		ln.Close()
		return err
	}

	grace := a.settings.ShutdownTimeout
	if grace <= 0 {
		grace = 10 * time.Second
	}

	server := &http.Server{
		Handler:           a,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Server listening", map[string]interface{}{"addr": ln.Addr().String()})
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.schedule.Run(gctx, grace)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		a.logger.Info("Server shutting down")
		return server.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	termCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return errors.Join(err, a.Terminate(termCtx))
}

// Terminate fires app.terminating and releases the scheduler, views,
// database connections and log files. Later calls do nothing.
func (a *Application) Terminate(ctx context.Context) error {
	a.mutex.Lock()
	if a.terminated {
		a.mutex.Unlock()
		return nil
	}
	a.terminated = true
	a.mutex.Unlock()

	var errs []error
	if _, err := a.events.Dispatch(ctx, events.NewBaseEvent(events.EventAppTerminating, a)); err != nil {
		errs = append(errs, err)
	}
	if err := a.schedule.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.views.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.databases.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.logs.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

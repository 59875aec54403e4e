package dispatch

import (
	"github.com/onyx-go/dispatch/internal/app"
)

// ServiceProvider registers bindings in a first phase and boots them once
// every provider has registered
type ServiceProvider = app.ServiceProvider

// ProviderFuncs adapts a pair of functions to ServiceProvider. Either may
// be nil.
type ProviderFuncs struct {
	OnRegister func(*app.Container)
	OnBoot     func(*app.Container)
}

// Register implements ServiceProvider
func (p ProviderFuncs) Register(c *app.Container) {
	if p.OnRegister != nil {
		p.OnRegister(c)
	}
}

// Boot implements ServiceProvider
func (p ProviderFuncs) Boot(c *app.Container) {
	if p.OnBoot != nil {
		p.OnBoot(c)
	}
}

// Container binding names for the framework services
const (
	BindingApp       = "app"
	BindingConfig    = "config"
	BindingEvents    = "events"
	BindingRouter    = "router"
	BindingKernel    = "kernel"
	BindingLogger    = "logger"
	BindingView      = "view"
	BindingSession   = "session"
	BindingDatabase  = "db"
	BindingSchedule  = "schedule"
	BindingLimiter   = "limiter"
	BindingMigrator  = "migrator"
	BindingSecurity  = "security"
	BindingErrors    = "errors"
	BindingRateStore = "ratelimit.store"
)

// coreProvider exposes the application's own services through the
// container so controllers and listeners can depend on them
type coreProvider struct {
	app *Application
}

func (p coreProvider) Register(c *app.Container) {
	a := p.app
	provide(c, BindingApp, a)
	provide(c, BindingConfig, a.config)
	provide(c, BindingEvents, a.events)
	provide(c, BindingRouter, a.router)
	provide(c, BindingKernel, a.kernel)
	provide(c, BindingLogger, a.logger)
	provide(c, BindingView, a.views)
	provide(c, BindingErrors, a.errors)
	provide(c, BindingDatabase, a.databases)
	provide(c, BindingSchedule, a.schedule)
	provide(c, BindingRateStore, a.rateStore)
	provide(c, BindingLimiter, a.limiter)
}

func (p coreProvider) Boot(c *app.Container) {
	a := p.app
	provide(c, BindingSession, a.sessions)
	provide(c, BindingSecurity, a.security)
}

// provide binds value under name and makes it injectable by its static type
func provide[T any](c *app.Container, name string, value T) {
	c.Instance(name, value)
	c.Alias(app.TypeName[T](), name)
}

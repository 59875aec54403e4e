package app

// ContainerInterface defines the contract for dependency injection containers
type ContainerInterface interface {
	// Bind registers a transient service binding
	Bind(name string, factory interface{})

	// Singleton registers a singleton service binding
	Singleton(name string, factory interface{})

	// Instance registers a pre-created instance
	Instance(name string, instance interface{})

	// Make resolves a service from the container
	Make(name string) (interface{}, error)

	// MakeWith resolves a service with explicit factory parameters
	MakeWith(name string, params map[string]interface{}) (interface{}, error)

	// Call invokes a function with injected arguments
	Call(fn interface{}, params map[string]interface{}) (interface{}, error)

	// Has checks if a service is registered
	Has(name string) bool
}

// Resolver is the narrow view used by packages that only resolve services
type Resolver interface {
	Make(name string) (interface{}, error)
	Has(name string) bool
}

var (
	_ ContainerInterface = (*Container)(nil)
	_ Resolver           = (*Container)(nil)
)

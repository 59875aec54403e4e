package app

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Container provides dependency injection functionality
type Container struct {
	*registry

	// chain is the resolution path of a container handed to a factory
	chain []string
}

type registry struct {
	bindings  map[string]*binding
	instances map[string]interface{}
	aliases   map[string]string
	tags      map[string][]string
	types     map[string]reflect.Type
	flight    singleflight.Group
	mutex     sync.RWMutex
}

// ServiceProvider interface for service registration and bootstrapping
type ServiceProvider interface {
	Register(*Container)
	Boot(*Container)
}

// binding is a registered construction strategy for an abstract name
type binding struct {
	factory interface{}
	shared  bool
}

var containerType = reflect.TypeOf((*Container)(nil))

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{registry: &registry{
		bindings:  make(map[string]*binding),
		instances: make(map[string]interface{}),
		aliases:   make(map[string]string),
		tags:      make(map[string][]string),
		types:     make(map[string]reflect.Type),
	}}
}

// Bind registers a transient service binding
func (c *Container) Bind(name string, factory interface{}) {
	c.BindShared(name, factory, false)
}

// Singleton registers a singleton service binding
func (c *Container) Singleton(name string, factory interface{}) {
	c.BindShared(name, factory, true)
}

// BindShared registers a binding with an explicit shared flag. A factory that
// is not a function is treated as a literal instance.
func (c *Container) BindShared(name string, factory interface{}, shared bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.instances, name)
	delete(c.aliases, name)
	c.bindings[name] = &binding{factory: factory, shared: shared}
}

// Instance registers a pre-created instance
func (c *Container) Instance(name string, instance interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.aliases, name)
	c.instances[name] = instance
}

// Register declares concrete types that may be auto-constructed by their
// type name, e.g. Register((*UserController)(nil)) makes
// Make("*controllers.UserController") resolvable without a factory.
func (c *Container) Register(values ...interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, v := range values {
		t := reflect.TypeOf(v)
		if t == nil {
			continue
		}
		c.types[t.String()] = t
	}
}

// Alias registers an alternative name for an abstract
func (c *Container) Alias(alias, name string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.aliases[alias] = name
}

// Tag assigns a tag to a set of abstracts
func (c *Container) Tag(tag string, names ...string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.tags[tag] = append(c.tags[tag], names...)
}

// Tagged resolves every abstract carrying the given tag, in tagging order
func (c *Container) Tagged(tag string) ([]interface{}, error) {
	c.mutex.RLock()
	names := append([]string(nil), c.tags[tag]...)
	c.mutex.RUnlock()

	services := make([]interface{}, 0, len(names))
	for _, name := range names {
		service, err := c.Make(name)
		if err != nil {
			return nil, err
		}
		services = append(services, service)
	}
	return services, nil
}

// Make resolves a service from the container
func (c *Container) Make(name string) (interface{}, error) {
	return c.make(name, nil, c.chain)
}

// MakeWith resolves a service, supplying factory parameters by type name or
// by position ("0", "1", ...). Shared bindings resolved with parameters are
// never cached.
func (c *Container) MakeWith(name string, params map[string]interface{}) (interface{}, error) {
	return c.make(name, params, c.chain)
}

func (c *Container) make(name string, params map[string]interface{}, chain []string) (interface{}, error) {
	name = c.canonical(name)

	for _, seen := range chain {
		if seen == name {
			return nil, &ContainerError{
				Abstract: name,
				Chain:    append(append([]string(nil), chain...), name),
				Reason:   "circular dependency detected",
			}
		}
	}
	chain = append(append([]string(nil), chain...), name)

	c.mutex.RLock()
	if instance, exists := c.instances[name]; exists {
		c.mutex.RUnlock()
		return instance, nil
	}
	b, hasBinding := c.bindings[name]
	concrete, hasType := c.types[name]
	c.mutex.RUnlock()

	switch {
	case hasBinding && b.shared && len(params) == 0:
		return c.resolveSingleton(name, b, chain)
	case hasBinding:
		return c.build(name, b.factory, params, chain)
	case hasType:
		return c.construct(concrete, params, chain)
	}

	return nil, &ContainerError{Abstract: name, Chain: chain, Reason: "binding not found"}
}

// resolveSingleton builds a shared binding once; concurrent first
// resolutions of the same name share one build.
func (c *Container) resolveSingleton(name string, b *binding, chain []string) (interface{}, error) {
	instance, err, _ := c.flight.Do(name, func() (interface{}, error) {
		c.mutex.RLock()
		if existing, exists := c.instances[name]; exists {
			c.mutex.RUnlock()
			return existing, nil
		}
		c.mutex.RUnlock()

		built, err := c.build(name, b.factory, nil, chain)
		if err != nil {
			return nil, err
		}

		c.mutex.Lock()
		// a rebind while building wins over the stale result
		if current, ok := c.bindings[name]; ok && current == b {
			c.instances[name] = built
		}
		c.mutex.Unlock()
		return built, nil
	})
	return instance, err
}

// build calls a factory function with dependency injection. Non-function
// factories are returned as-is.
func (c *Container) build(name string, factory interface{}, params map[string]interface{}, chain []string) (interface{}, error) {
	if factory == nil {
		return nil, nil
	}

	factoryValue := reflect.ValueOf(factory)
	if factoryValue.Kind() != reflect.Func {
		return factory, nil
	}

	results, err := c.invoke(factoryValue, params, chain)
	if err != nil {
		return nil, wrapResolution(name, chain, err)
	}

	if len(results) == 0 {
		return nil, &ContainerError{Abstract: name, Chain: chain, Reason: "factory function must return at least one value"}
	}

	if last := results[len(results)-1]; last.Type() == errorType && !last.IsNil() {
		return nil, wrapResolution(name, chain, last.Interface().(error))
	}

	if results[0].Type() == errorType {
		return nil, nil
	}

	return results[0].Interface(), nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// invoke resolves each argument of fn and calls it
func (c *Container) invoke(fn reflect.Value, params map[string]interface{}, chain []string) ([]reflect.Value, error) {
	fnType := fn.Type()
	if fnType.IsVariadic() {
		return nil, fmt.Errorf("variadic functions cannot be injected")
	}

	args := make([]reflect.Value, fnType.NumIn())
	for i := range args {
		arg, err := c.resolveArgument(fnType.In(i), i, params, chain)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}

	return fn.Call(args), nil
}

// resolveArgument resolves one parameter by declared type
func (c *Container) resolveArgument(argType reflect.Type, position int, params map[string]interface{}, chain []string) (reflect.Value, error) {
	if value, ok := params[strconv.Itoa(position)]; ok {
		return assignable(argType, value)
	}
	if value, ok := params[argType.String()]; ok {
		return assignable(argType, value)
	}

	if argType == containerType {
		return reflect.ValueOf(&Container{registry: c.registry, chain: chain}), nil
	}

	typeName := c.canonical(argType.String())
	if c.bound(typeName) {
		dependency, err := c.make(typeName, nil, chain)
		if err != nil {
			return reflect.Value{}, err
		}
		return assignable(argType, dependency)
	}

	dependency, err := c.construct(argType, nil, chain)
	if err != nil {
		return reflect.Value{}, err
	}
	return assignable(argType, dependency)
}

// construct auto-instantiates a concrete struct type, injecting exported
// fields tagged `inject`. The tag value selects the binding name; "optional"
// leaves the zero value when the dependency cannot be resolved.
func (c *Container) construct(t reflect.Type, params map[string]interface{}, chain []string) (interface{}, error) {
	isPointer := t.Kind() == reflect.Ptr
	structType := t
	if isPointer {
		structType = t.Elem()
	}

	if structType.Kind() != reflect.Struct {
		return nil, &ContainerError{
			Abstract: t.String(),
			Chain:    chain,
			Reason:   fmt.Sprintf("type %s is not instantiable", t),
		}
	}

	value := reflect.New(structType)
	elem := value.Elem()

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		tag, ok := field.Tag.Lookup("inject")
		if !ok {
			continue
		}
		if !field.IsExported() {
			return nil, &ContainerError{
				Abstract: t.String(),
				Chain:    chain,
				Reason:   fmt.Sprintf("field %s is not exported", field.Name),
			}
		}

		name, optional := parseInjectTag(tag)
		var (
			dependency interface{}
			err        error
		)
		if value, ok := params[field.Name]; ok {
			dependency = value
		} else if name != "" {
			dependency, err = c.make(name, nil, chain)
		} else {
			var arg reflect.Value
			arg, err = c.resolveArgument(field.Type, -1, nil, chain)
			if err == nil {
				elem.Field(i).Set(arg)
				continue
			}
		}

		if err != nil {
			if optional {
				continue
			}
			return nil, wrapResolution(t.String(), chain, err)
		}

		arg, err := assignable(field.Type, dependency)
		if err != nil {
			return nil, wrapResolution(t.String(), chain, err)
		}
		elem.Field(i).Set(arg)
	}

	if isPointer {
		return value.Interface(), nil
	}
	return elem.Interface(), nil
}

func parseInjectTag(tag string) (name string, optional bool) {
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "optional" {
			optional = true
			continue
		}
		if part != "" {
			name = part
		}
	}
	return name, optional
}

// assignable converts a resolved value into a call argument of type t
func assignable(t reflect.Type, value interface{}) (reflect.Value, error) {
	if value == nil {
		switch t.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use nil as %s", t)
	}

	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if v.Type().ConvertibleTo(t) && v.Kind() == t.Kind() {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("resolved %s is not assignable to %s", v.Type(), t)
}

// Call invokes fn, injecting each argument from params or the container.
// The first non-error result is returned; a trailing non-nil error is
// returned as the error.
func (c *Container) Call(fn interface{}, params map[string]interface{}) (interface{}, error) {
	fnValue := reflect.ValueOf(fn)
	if fnValue.Kind() != reflect.Func {
		return nil, fmt.Errorf("cannot call %T", fn)
	}

	results, err := c.invoke(fnValue, params, c.chain)
	if err != nil {
		return nil, err
	}

	var out interface{}
	for _, result := range results {
		if result.Type() == errorType {
			if !result.IsNil() {
				return out, result.Interface().(error)
			}
			continue
		}
		if out == nil {
			out = result.Interface()
		}
	}
	return out, nil
}

// Has checks if a service is registered in the container
func (c *Container) Has(name string) bool {
	return c.bound(c.canonical(name))
}

func (c *Container) bound(name string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	_, hasInstance := c.instances[name]
	_, hasBinding := c.bindings[name]
	_, hasType := c.types[name]

	return hasInstance || hasBinding || hasType
}

// IsShared reports whether name resolves to a single shared instance
func (c *Container) IsShared(name string) bool {
	name = c.canonical(name)

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if _, ok := c.instances[name]; ok {
		return true
	}
	b, ok := c.bindings[name]
	return ok && b.shared
}

func (c *Container) canonical(name string) string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for i := 0; i < len(c.aliases)+1; i++ {
		target, ok := c.aliases[name]
		if !ok {
			return name
		}
		name = target
	}
	return name
}

// RegisterProvider registers and boots a service provider
func (c *Container) RegisterProvider(provider ServiceProvider) {
	provider.Register(c)
	provider.Boot(c)
}

// Flush removes all bindings, instances, aliases and tags
func (c *Container) Flush() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.bindings = make(map[string]*binding)
	c.instances = make(map[string]interface{})
	c.aliases = make(map[string]string)
	c.tags = make(map[string][]string)
	c.types = make(map[string]reflect.Type)
}

// Bindings returns the sorted names of everything the container can resolve
func (c *Container) Bindings() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	seen := make(map[string]struct{})
	for name := range c.bindings {
		seen[name] = struct{}{}
	}
	for name := range c.instances {
		seen[name] = struct{}{}
	}
	for name := range c.types {
		seen[name] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TypeName returns the container key used for T when resolving by type
func TypeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

// Resolve resolves name and asserts the result to T
func Resolve[T any](c *Container, name string) (T, error) {
	var zero T

	instance, err := c.Make(name)
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, &ContainerError{
			Abstract: name,
			Reason:   fmt.Sprintf("resolved %T is not a %s", instance, TypeName[T]()),
		}
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on failure
func MustResolve[T any](c *Container, name string) T {
	typed, err := Resolve[T](c, name)
	if err != nil {
		panic(err)
	}
	return typed
}

package template

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// DirectiveFunc turns the arguments of a custom directive into
// html/template source
type DirectiveFunc func(args string) (string, error)

// ConditionFunc backs a custom conditional directive
type ConditionFunc func(args ...interface{}) bool

var directiveName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Registry holds custom directives. Lookup is by exact name, so the order
// of registration never matters.
type Registry struct {
	mutex      sync.RWMutex
	directives map[string]DirectiveFunc
	conditions map[string]ConditionFunc
}

// NewRegistry creates an empty directive registry
func NewRegistry() *Registry {
	return &Registry{
		directives: make(map[string]DirectiveFunc),
		conditions: make(map[string]ConditionFunc),
	}
}

// Directive registers @name(args)
func (r *Registry) Directive(name string, fn DirectiveFunc) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if err := r.checkName(name); err != nil {
		return err
	}
	r.directives[name] = fn
	return nil
}

// If registers the conditional @name(args) ... @else ... @endname
func (r *Registry) If(name string, cond ConditionFunc) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if err := r.checkName(name); err != nil {
		return err
	}
	if err := r.checkName("end" + name); err != nil {
		return err
	}
	r.conditions[name] = cond
	return nil
}

func (r *Registry) checkName(name string) error {
	if !directiveName.MatchString(name) {
		return fmt.Errorf("invalid directive name %q", name)
	}
	if _, ok := builtins[name]; ok || name == "verbatim" || name == "endverbatim" {
		return fmt.Errorf("directive @%s is built in", name)
	}
	if _, ok := r.directives[name]; ok {
		return fmt.Errorf("directive @%s is already registered", name)
	}
	if _, ok := r.conditions[name]; ok {
		return fmt.Errorf("directive @%s is already registered", name)
	}
	return nil
}

func (r *Registry) directive(name string) (DirectiveFunc, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	fn, ok := r.directives[name]
	return fn, ok
}

func (r *Registry) isCondition(name string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, ok := r.conditions[name]
	return ok
}

// Names lists the custom directives, conditionals included
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.directives)+len(r.conditions))
	for name := range r.directives {
		names = append(names, name)
	}
	for name := range r.conditions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Funcs exposes the conditionals to compiled templates
func (r *Registry) Funcs() FuncMap {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	funcs := make(FuncMap, len(r.conditions))
	for name, cond := range r.conditions {
		funcs[conditionFunc(name)] = cond
	}
	return funcs
}

func conditionFunc(name string) string {
	return "_if_" + name
}

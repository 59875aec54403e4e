package template

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/onyx-go/dispatch/internal/logging"
)

type composer struct {
	pattern string
	fn      ComposerFunc
}

// Factory loads views from a file system, compiles each once and renders
// them with shared data and composers
type Factory struct {
	options  Options
	fsys     fs.FS
	registry *Registry
	logger   logging.Logger

	mutex     sync.RWMutex
	funcs     FuncMap
	shared    Data
	composers []composer
	compiled  map[string]*Compiled
	views     map[string]*template.Template
	group     singleflight.Group

	hotReload *HotReloader
}

// NewFactory creates a view factory
func NewFactory(opts Options) *Factory {
	defaults := DefaultOptions()
	if len(opts.Extensions) == 0 {
		opts.Extensions = defaults.Extensions
	}
	if opts.Env == "" {
		opts.Env = defaults.Env
	}
	if opts.ReloadDebounce <= 0 {
		opts.ReloadDebounce = defaults.ReloadDebounce
	}
	fsys := opts.FS
	if fsys == nil {
		fsys = os.DirFS(opts.Path)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	f := &Factory{
		options:  opts,
		fsys:     fsys,
		registry: NewRegistry(),
		logger:   logger,
		funcs:    make(FuncMap),
		shared:   make(Data),
		compiled: make(map[string]*Compiled),
		views:    make(map[string]*template.Template),
	}
	for name, fn := range opts.Funcs {
		f.funcs[name] = fn
	}
	return f
}

// Registry returns the custom directive registry
func (f *Factory) Registry() *Registry {
	return f.registry
}

// Directive registers a custom directive and drops compiled views
func (f *Factory) Directive(name string, fn DirectiveFunc) error {
	if err := f.registry.Directive(name, fn); err != nil {
		return err
	}
	f.Flush()
	return nil
}

// If registers a custom conditional directive and drops compiled views
func (f *Factory) If(name string, cond ConditionFunc) error {
	if err := f.registry.If(name, cond); err != nil {
		return err
	}
	f.Flush()
	return nil
}

// AddFunction adds a template function
func (f *Factory) AddFunction(name string, fn interface{}) *Factory {
	f.mutex.Lock()
	f.funcs[name] = fn
	f.mutex.Unlock()
	f.Flush()
	return f
}

// Share makes a value available to every view
func (f *Factory) Share(key string, value interface{}) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.shared[key] = value
}

// Shared returns a copy of the shared data
func (f *Factory) Shared() Data {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return Data{}.Merge(f.shared)
}

// Composer runs fn before rendering any view matching pattern. Patterns
// are view names where "*" matches one name segment; "*" alone matches
// every view.
func (f *Factory) Composer(pattern string, fn ComposerFunc) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.composers = append(f.composers, composer{pattern: pattern, fn: fn})
}

// Exists reports whether a view file exists
func (f *Factory) Exists(name string) bool {
	_, err := f.find(name)
	return err == nil
}

// Make returns a view ready to render
func (f *Factory) Make(name string, data Data) (*View, error) {
	if _, err := f.find(name); err != nil {
		return nil, err
	}
	return &View{factory: f, name: name, data: Data{}.Merge(data)}, nil
}

// Render renders a view to a string
func (f *Factory) Render(ctx context.Context, name string, data map[string]interface{}) (string, error) {
	v, err := f.Make(name, data)
	if err != nil {
		return "", err
	}
	return v.Render(ctx)
}

// Names lists every view under the root in sorted order
func (f *Factory) Names() ([]string, error) {
	var names []string
	err := fs.WalkDir(f.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		for _, ext := range f.options.Extensions {
			if strings.HasSuffix(p, ext) {
				names = append(names, strings.ReplaceAll(strings.TrimSuffix(p, ext), "/", "."))
				break
			}
		}
		return nil
	})
	sort.Strings(names)
	return names, err
}

// Flush drops compiled views so the next render reads them again
func (f *Factory) Flush() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.compiled = make(map[string]*Compiled)
	f.views = make(map[string]*template.Template)
}

// Compile returns the compiled form of a view
func (f *Factory) Compile(name string) (*Compiled, error) {
	f.mutex.RLock()
	c, ok := f.compiled[name]
	f.mutex.RUnlock()
	if ok {
		return c, nil
	}

	p, err := f.find(name)
	if err != nil {
		return nil, err
	}
	src, err := fs.ReadFile(f.fsys, p)
	if err != nil {
		return nil, fmt.Errorf("read view %s: %w", name, err)
	}
	c, err = Compile(name, string(src), f.registry)
	if err != nil {
		return nil, err
	}

	f.mutex.Lock()
	f.compiled[name] = c
	f.mutex.Unlock()
	return c, nil
}

func (f *Factory) find(name string) (string, error) {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: invalid name %q", ErrViewNotFound, name)
	}
	base := strings.ReplaceAll(name, ".", "/")
	for _, ext := range f.options.Extensions {
		p := base + ext
		if info, err := fs.Stat(f.fsys, p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrViewNotFound, name)
}

// template returns the assembled template set for a view, building it once
// even under concurrent first renders
func (f *Factory) template(name string) (*template.Template, error) {
	f.mutex.RLock()
	t, ok := f.views[name]
	f.mutex.RUnlock()
	if ok {
		return t, nil
	}

	v, err, _ := f.group.Do(name, func() (interface{}, error) {
		t, err := f.assemble(name)
		if err != nil {
			return nil, err
		}
		f.mutex.Lock()
		f.views[name] = t
		f.mutex.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*template.Template), nil
}

// assemble parses a view with its layouts and partials into one set.
// Layouts are parsed outermost first so that sections of inner views
// replace the defaults of the @yield blocks they fill.
func (f *Factory) assemble(name string) (*template.Template, error) {
	view, err := f.Compile(name)
	if err != nil {
		return nil, err
	}

	var layouts []*Compiled
	seen := map[string]bool{name: true}
	for layout := view.Layout; layout != ""; {
		if seen[layout] {
			return nil, fmt.Errorf("view %s: layout cycle through %s", name, layout)
		}
		seen[layout] = true
		c, err := f.Compile(layout)
		if err != nil {
			return nil, fmt.Errorf("view %s: %w", name, err)
		}
		layouts = append(layouts, c)
		layout = c.Layout
	}

	includes, err := f.collectIncludes(append([]*Compiled{view}, layouts...), seen)
	if err != nil {
		return nil, fmt.Errorf("view %s: %w", name, err)
	}

	set := template.New("").Funcs(f.funcMap())
	parse := func(c *Compiled) error {
		if _, err := set.New(viewTemplate(c.Name)).Parse(c.Source); err != nil {
			return fmt.Errorf("parse view %s: %w", c.Name, err)
		}
		return nil
	}

	for i := len(layouts) - 1; i >= 0; i-- {
		if err := parse(layouts[i]); err != nil {
			return nil, err
		}
	}
	if err := parse(view); err != nil {
		return nil, err
	}
	for _, c := range includes {
		if err := parse(c); err != nil {
			return nil, err
		}
	}

	// Stacks collect pushes from the view, its partials, then its layouts
	order := append(append([]*Compiled{view}, includes...), layouts...)
	pushes := make(map[string][]string)
	var stacks []string
	for _, c := range order {
		for _, p := range c.Pushes {
			pushes[p.Stack] = append(pushes[p.Stack], p.Template)
		}
		for _, s := range c.Stacks {
			stacks = appendUnique(stacks, s)
		}
	}
	for _, stack := range stacks {
		var body strings.Builder
		for _, id := range pushes[stack] {
			body.WriteString("{{template " + quote(id) + " .}}")
		}
		if _, err := set.New(stackTemplate(stack)).Parse(body.String()); err != nil {
			return nil, fmt.Errorf("parse stack %s: %w", stack, err)
		}
	}

	entry := view
	if len(layouts) > 0 {
		entry = layouts[len(layouts)-1]
	}
	return set.Lookup(viewTemplate(entry.Name)), nil
}

// collectIncludes compiles every partial reachable from roots
func (f *Factory) collectIncludes(roots []*Compiled, skip map[string]bool) ([]*Compiled, error) {
	var includes []*Compiled
	seen := make(map[string]bool, len(skip))
	for k := range skip {
		seen[k] = true
	}

	queue := append([]*Compiled(nil), roots...)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, name := range c.Includes {
			if seen[name] {
				continue
			}
			seen[name] = true
			partial, err := f.Compile(name)
			if err != nil {
				return nil, err
			}
			includes = append(includes, partial)
			queue = append(queue, partial)
		}
	}
	return includes, nil
}

func (f *Factory) funcMap() template.FuncMap {
	funcs := defaultFuncs(f.options.Env)
	f.mutex.RLock()
	for name, fn := range f.funcs {
		funcs[name] = fn
	}
	f.mutex.RUnlock()
	for name, fn := range f.registry.Funcs() {
		funcs[name] = fn
	}
	return funcs
}

// compose layers shared data, view data and composers
func (f *Factory) compose(v *View) {
	f.mutex.RLock()
	data := f.shared.Merge(v.data)
	composers := append([]composer(nil), f.composers...)
	f.mutex.RUnlock()

	v.data = data
	for _, c := range composers {
		if matchView(c.pattern, v.name) {
			c.fn(v)
		}
	}
}

func matchView(pattern, name string) bool {
	if pattern == "*" || pattern == name {
		return true
	}
	ok, _ := path.Match(strings.ReplaceAll(pattern, ".", "/"), strings.ReplaceAll(name, ".", "/"))
	return ok
}

// EnableHotReload watches Path and drops compiled views whenever a file
// under it changes, until ctx is done or Close is called
func (f *Factory) EnableHotReload(ctx context.Context) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.hotReload != nil {
		return nil
	}
	if f.options.Path == "" {
		return errors.New("hot reload needs a views path on disk")
	}

	reloader, err := NewHotReloader(f.options.Path, f.options.ReloadDebounce, func(changed string) {
		f.logger.Debug("Views changed, recompiling", map[string]interface{}{"path": changed})
		f.Flush()
	}, f.logger)
	if err != nil {
		return err
	}
	f.hotReload = reloader
	go reloader.Run(ctx)
	return nil
}

// IsHotReloadEnabled reports whether views are being watched
func (f *Factory) IsHotReloadEnabled() bool {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return f.hotReload != nil
}

// Close stops hot reload
func (f *Factory) Close() error {
	f.mutex.Lock()
	reloader := f.hotReload
	f.hotReload = nil
	f.mutex.Unlock()

	if reloader != nil {
		return reloader.Stop()
	}
	return nil
}

var _ Engine = (*Factory)(nil)

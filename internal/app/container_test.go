package app

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter interface {
	Greet() string
}

type englishGreeter struct{ name string }

func (g *englishGreeter) Greet() string { return "hello " + g.name }

type mailer struct {
	From string
}

type notifier struct {
	Mailer   *mailer  `inject:""`
	Greeter  greeter  `inject:"greeter"`
	Optional greeter  `inject:"missing,optional"`
	Plain    string
}

type needsInterface struct {
	Greeter greeter `inject:""`
}

func TestNewContainer(t *testing.T) {
	container := NewContainer()

	require.NotNil(t, container)
	assert.NotNil(t, container.bindings)
	assert.NotNil(t, container.instances)
}

func TestContainerSingleton(t *testing.T) {
	container := NewContainer()
	counter := 0

	container.Singleton("counter", func() *int {
		counter++
		v := counter
		return &v
	})

	first, err := container.Make("counter")
	require.NoError(t, err)
	second, err := container.Make("counter")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, counter)
	assert.True(t, container.IsShared("counter"))
}

func TestContainerTransient(t *testing.T) {
	container := NewContainer()
	counter := 0

	container.Bind("counter", func() *int {
		counter++
		v := counter
		return &v
	})

	first, err := container.Make("counter")
	require.NoError(t, err)
	second, err := container.Make("counter")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 1, *first.(*int))
	assert.Equal(t, 2, *second.(*int))
	assert.False(t, container.IsShared("counter"))
}

func TestContainerInstance(t *testing.T) {
	container := NewContainer()
	container.Instance("test", "test instance")

	result, err := container.Make("test")
	require.NoError(t, err)
	assert.Equal(t, "test instance", result)
}

func TestContainerLiteralBinding(t *testing.T) {
	container := NewContainer()
	container.BindShared("literal", 42, false)

	result, err := container.Make("literal")
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestContainerMakeNotFound(t *testing.T) {
	container := NewContainer()

	_, err := container.Make("nonexistent")
	require.Error(t, err)
	assert.True(t, IsContainerError(err))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContainerDependencyInjection(t *testing.T) {
	container := NewContainer()
	container.Instance("string", "test-config")
	container.Bind("service", func(config string) string {
		return "service with " + config
	})

	result, err := container.Make("service")
	require.NoError(t, err)
	assert.Equal(t, "service with test-config", result)
}

func TestContainerMakeWithParams(t *testing.T) {
	container := NewContainer()
	container.Singleton("report", func(title string, pages int) *mailer {
		return &mailer{From: title}
	})

	t.Run("positional and typed params", func(t *testing.T) {
		result, err := container.MakeWith("report", map[string]interface{}{
			"0":   "quarterly",
			"int": 3,
		})
		require.NoError(t, err)
		assert.Equal(t, "quarterly", result.(*mailer).From)
	})

	t.Run("params never cache a shared binding", func(t *testing.T) {
		first, err := container.MakeWith("report", map[string]interface{}{"0": "a", "1": 1})
		require.NoError(t, err)
		second, err := container.MakeWith("report", map[string]interface{}{"0": "b", "1": 1})
		require.NoError(t, err)
		assert.NotSame(t, first, second)
	})
}

func TestContainerFactoryError(t *testing.T) {
	container := NewContainer()
	container.Bind("failing", func() (string, error) {
		return "", errors.New("factory error")
	})

	_, err := container.Make("failing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "factory error")
}

func TestContainerAutoWiring(t *testing.T) {
	container := NewContainer()
	container.Instance(TypeName[*mailer](), &mailer{From: "noreply@example.com"})
	container.Singleton("greeter", func() greeter { return &englishGreeter{name: "ada"} })
	container.Register((*notifier)(nil))

	result, err := container.Make(TypeName[*notifier]())
	require.NoError(t, err)

	n := result.(*notifier)
	assert.Equal(t, "noreply@example.com", n.Mailer.From)
	assert.Equal(t, "hello ada", n.Greeter.Greet())
	assert.Nil(t, n.Optional)
	assert.Empty(t, n.Plain)
}

func TestContainerAutoWiresFactoryParameters(t *testing.T) {
	container := NewContainer()

	container.Bind("service", func(m *mailer, c *Container) string {
		return m.From + ":" + boolString(c != nil)
	})

	result, err := container.Make("service")
	require.NoError(t, err)
	assert.Equal(t, ":true", result)
}

func TestContainerUnboundInterfaceIsNotInstantiable(t *testing.T) {
	container := NewContainer()
	container.Register((*needsInterface)(nil))

	_, err := container.Make(TypeName[*needsInterface]())
	require.Error(t, err)

	var ce *ContainerError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, "not instantiable")
}

func TestContainerCircularDependency(t *testing.T) {
	container := NewContainer()
	container.Bind("a", func(c *Container) (string, error) {
		v, err := c.Make("b")
		if err != nil {
			return "", err
		}
		return v.(string), nil
	})
	container.Bind("b", func(c *Container) (string, error) {
		v, err := c.Make("a")
		if err != nil {
			return "", err
		}
		return v.(string), nil
	})

	_, err := container.Make("a")
	require.Error(t, err)
	assert.True(t, IsContainerError(err))
}

func TestContainerCircularTypes(t *testing.T) {
	type node struct {
		Next *mailer `inject:"loop"`
	}

	container := NewContainer()
	container.Bind("loop", func(n *node) *mailer { return &mailer{} })

	_, err := container.Make("loop")
	require.Error(t, err)

	var ce *ContainerError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "circular dependency detected", ce.Reason)
	assert.Equal(t, []string{"loop", "loop"}, []string{ce.Chain[0], ce.Chain[len(ce.Chain)-1]})
}

func TestContainerAliasAndTags(t *testing.T) {
	container := NewContainer()
	container.Singleton("log.console", func() string { return "console" })
	container.Singleton("log.file", func() string { return "file" })
	container.Alias("log", "log.console")
	container.Tag("loggers", "log.console", "log.file")

	aliased, err := container.Make("log")
	require.NoError(t, err)
	assert.Equal(t, "console", aliased)
	assert.True(t, container.Has("log"))

	tagged, err := container.Tagged("loggers")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"console", "file"}, tagged)

	empty, err := container.Tagged("unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestContainerCall(t *testing.T) {
	container := NewContainer()
	container.Instance(TypeName[*mailer](), &mailer{From: "ops"})

	result, err := container.Call(func(m *mailer, id string) (string, error) {
		return m.From + "#" + id, nil
	}, map[string]interface{}{"string": "7"})
	require.NoError(t, err)
	assert.Equal(t, "ops#7", result)

	_, err = container.Call(func() error { return errors.New("boom") }, nil)
	assert.EqualError(t, err, "boom")
}

func TestContainerCallInjectsAliasedType(t *testing.T) {
	container := NewContainer()
	container.Instance("greeter", greeter(&englishGreeter{name: "alias"}))
	container.Alias(TypeName[greeter](), "greeter")

	result, err := container.Call(func(g greeter) string { return g.Greet() }, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello alias", result)
}

func TestResolveGeneric(t *testing.T) {
	container := NewContainer()
	container.Instance("greeter", greeter(&englishGreeter{name: "go"}))

	g, err := Resolve[greeter](container, "greeter")
	require.NoError(t, err)
	assert.Equal(t, "hello go", g.Greet())

	_, err = Resolve[*mailer](container, "greeter")
	assert.Error(t, err)

	assert.Panics(t, func() { MustResolve[*mailer](container, "missing") })
}

func TestContainerFlush(t *testing.T) {
	container := NewContainer()
	container.Bind("test", "value")
	container.Instance("instance", "value")

	require.True(t, container.Has("test"))
	require.True(t, container.Has("instance"))

	container.Flush()

	assert.False(t, container.Has("test"))
	assert.False(t, container.Has("instance"))
	assert.Empty(t, container.Bindings())
}

func TestContainerConcurrentSingleton(t *testing.T) {
	container := NewContainer()
	var builds int32

	container.Singleton("counter", func() *int32 {
		atomic.AddInt32(&builds, 1)
		v := int32(0)
		return &v
	})

	var wg sync.WaitGroup
	results := make([]interface{}, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := container.Make("counter")
			assert.NoError(t, err)
			results[i] = result
		}(i)
	}
	wg.Wait()

	for _, result := range results {
		assert.Same(t, results[0], result)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
}

func TestSingletonResolvingAnotherSingleton(t *testing.T) {
	container := NewContainer()
	container.Singleton("config", func() *mailer { return &mailer{From: "cfg"} })
	container.Singleton("service", func(c *Container) (*notifier, error) {
		m, err := Resolve[*mailer](c, "config")
		if err != nil {
			return nil, err
		}
		return &notifier{Mailer: m}, nil
	})

	result, err := container.Make("service")
	require.NoError(t, err)
	assert.Equal(t, "cfg", result.(*notifier).Mailer.From)
}

type testServiceProvider struct {
	registered bool
	booted     bool
}

func (p *testServiceProvider) Register(c *Container) {
	p.registered = true
	c.Bind("provider-service", "test")
}

func (p *testServiceProvider) Boot(c *Container) {
	p.booted = true
}

func TestContainerRegisterProvider(t *testing.T) {
	container := NewContainer()
	provider := &testServiceProvider{}

	container.RegisterProvider(provider)

	assert.True(t, provider.registered)
	assert.True(t, provider.booted)
	assert.True(t, container.Has("provider-service"))
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

package template

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLex(t *testing.T) {
	tokens, err := Lex(`Hi {{ .name }} {!! .html !!}{{-- note --}} @if(.a == "x)") mail me@example.com @@if @{{ raw`)
	require.NoError(t, err)

	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	assert.Equal(t, []TokenType{
		TokenText, TokenEcho, TokenText, TokenRawEcho, TokenComment, TokenText, TokenDirective, TokenText,
	}, types)

	assert.Equal(t, ".name", tokens[1].Value)
	assert.Equal(t, ".html", tokens[3].Value)
	assert.Equal(t, "note", tokens[4].Value)
	assert.Equal(t, "if", tokens[6].Name)
	assert.Equal(t, `.a == "x)"`, tokens[6].Args)
	assert.Equal(t, " mail me@example.com @if {{ raw", tokens[7].Value)
}

func TestLexDirectiveSpacing(t *testing.T) {
	tokens, err := Lex("@include ('nav') @csrf")
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	assert.True(t, tokens[0].HasArgs)
	assert.Equal(t, " ", tokens[0].Spacing)
	assert.Equal(t, "@include ('nav')", tokens[0].Source())
	assert.False(t, tokens[2].HasArgs)
}

func TestLexVerbatim(t *testing.T) {
	tokens, err := Lex("@verbatim{{ .x }} @if@endverbatim")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, TokenText, tokens[0].Type)
	assert.Equal(t, "{{ .x }} @if", tokens[0].Value)
}

func TestLexErrors(t *testing.T) {
	tests := map[string]string{
		"a\nb\n{{ .x":        "unclosed echo",
		"{!! .x":             "unclosed raw echo",
		"{{-- never":         "unclosed comment",
		"@if(.a":             "unbalanced parentheses",
		"{{ }}":              "empty echo",
		"@verbatim {{ .x }}": "unclosed @verbatim",
	}
	for src, message := range tests {
		_, err := Lex(src)
		var se *SyntaxError
		require.ErrorAs(t, err, &se, src)
		assert.Contains(t, se.Message, message, src)
	}

	_, err := Lex("a\nb\n{{ .x")
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 3, se.Line)
}

func compile(t *testing.T, src string, registry *Registry) string {
	t.Helper()
	c, err := Compile("test", src, registry)
	require.NoError(t, err)
	return c.Source
}

func TestCompileConditionals(t *testing.T) {
	assert.Equal(t,
		"{{if .a}} A {{else if .b}} B {{else}} C {{end}}",
		compile(t, "@if(.a) A @elseif(.b) B @else C @endif", nil))
	assert.Equal(t,
		"{{if not (.a)}}x {{end}}",
		compile(t, "@unless(.a)x @endunless", nil))
	assert.Equal(t,
		"{{if isset (.user)}}y {{end}}",
		compile(t, "@isset(.user)y @endisset", nil))
	assert.Equal(t,
		"{{if .a}} x {{else}} (note) {{end}}",
		compile(t, "@if(.a) x @else (note) @endif", nil))
	assert.Equal(t,
		`<input {{if .on}}checked{{end}}>`,
		compile(t, "<input @checked(.on)>", nil))
}

func TestCompileLoops(t *testing.T) {
	assert.Equal(t,
		"{{range $i, $item := .items}}{{ $i }}{{end}}",
		compile(t, "@foreach(.items as $i => $item){{ $i }}@endforeach", nil))
	assert.Equal(t,
		"{{range $item := .items}}{{ $item }}{{else}} none {{end}}",
		compile(t, "@forelse(.items as $item){{ $item }}@empty none @endforelse", nil))
	assert.Equal(t,
		"{{range .items}}{{if eq . 3}}{{break}}{{end}} {{continue}} {{end}}",
		compile(t, "@foreach(.items)@break(eq . 3) @continue @endforeach", nil))
}

func TestCompileTextEscaping(t *testing.T) {
	assert.Equal(t, `a {{"{{"}} b`, compile(t, "a @{{ b", nil))
	assert.Equal(t, `{{"{"}}{{if .a}} x {{end}}}`, compile(t, "{@if(.a) x @endif}", nil))
	assert.Equal(t, "@media (max-width: 600px) { }", compile(t, "@media (max-width: 600px) { }", nil))
	assert.Equal(t, "ab", compile(t, "a{{-- gone --}}b", nil))
}

func TestCompileLayoutMetadata(t *testing.T) {
	c, err := Compile("home", `@extends('layouts.app')
@section('title', 'Home')
@section('content')@include('partials.nav')@endsection
@push('scripts')js @endpush`, nil)
	require.NoError(t, err)

	assert.Equal(t, "layouts.app", c.Layout)
	assert.Equal(t, []string{"title", "content"}, c.Sections)
	assert.Equal(t, []string{"partials.nav"}, c.Includes)
	assert.Equal(t, []Push{{Stack: "scripts", Template: "push:scripts:home:0"}}, c.Pushes)
	assert.Contains(t, c.Source, `{{define "title"}}{{"Home"}}{{end}}`)
	assert.Contains(t, c.Source, `{{define "content"}}{{template "view:partials.nav" $}}{{end}}`)
}

func TestCompileErrors(t *testing.T) {
	tests := map[string]string{
		"@if(.a) x":                                "never closed",
		"@endif":                                   "without an opening",
		"@if(.a) @endforeach":                      "closes @if",
		"@if({{ .a }}) @endif":                     "must not contain",
		"@break":                                   "outside of a loop",
		"@if(.a) @section('x') @endsection @endif": "cannot be nested",
		"@include(name)":                           "quoted view name",
		"@yield":                                   "requires arguments",
		"@extends('a') @extends('b')":              "used twice",
		"@elseif(.a)":                              "outside of a matching block",
		"@method('PUT; DROP')":                     "quoted HTTP method",
	}
	for src, message := range tests {
		_, err := Compile("broken", src, nil)
		var se *SyntaxError
		require.ErrorAs(t, err, &se, src)
		assert.Equal(t, "broken", se.Template)
		assert.Contains(t, se.Message, message, src)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Directive("money", func(args string) (string, error) {
		return `{{ printf "%.2f" ` + args + " }}", nil
	}))
	require.NoError(t, r.If("admin", func(args ...interface{}) bool { return true }))

	assert.Error(t, r.Directive("if", nil))
	assert.Error(t, r.Directive("money", nil))
	assert.Error(t, r.If("foreach", nil))
	assert.Error(t, r.Directive("9x", nil))
	assert.Equal(t, []string{"admin", "money"}, r.Names())
	assert.Contains(t, r.Funcs(), "_if_admin")

	assert.Equal(t,
		`{{ printf "%.2f" .total }} {{if _if_admin .user}}y {{else}} n {{end}}`,
		compile(t, "@money(.total) @admin(.user)y @else n @endadmin", r))
}

// Lookup is by whole name, so directives sharing a prefix with built-ins or
// with each other never interfere, whatever order they are registered in.
func TestRegistryPrefixNames(t *testing.T) {
	names := []string{"e", "en", "end", "endi", "foreac"}
	src := "@foreach(.xs)@e @en @end @endi @foreac @endforeach"

	var outputs []string
	for _, order := range [][]string{names, {"foreac", "endi", "end", "en", "e"}} {
		r := NewRegistry()
		for _, name := range order {
			name := name
			require.NoError(t, r.Directive(name, func(string) (string, error) { return "<" + name + ">", nil }))
		}
		outputs = append(outputs, compile(t, src, r))
	}

	assert.Equal(t, "{{range .xs}}<e> <en> <end> <endi> <foreac> {{end}}", outputs[0])
	assert.Equal(t, outputs[0], outputs[1])
}

func viewsFS() fstest.MapFS {
	file := func(s string) *fstest.MapFile { return &fstest.MapFile{Data: []byte(s)} }
	return fstest.MapFS{
		"layouts/app.html": file(`<title>@yield('title', 'Dispatch')</title><main>@yield('content')</main>@stack('scripts')`),
		"layouts/admin.html": file(`@extends('layouts.app')
@section('content')<nav>admin</nav>@yield('body')@endsection
@push('scripts')<script src="/admin.js"></script>@endpush`),
		"home.html": file(`@extends('layouts.app')
@section('title', 'Home')
@section('content')<h1>{{ .heading }}</h1>@include('partials.greeting', dict "name" .user)@endsection
@push('scripts')<script src="/home.js"></script>@endpush`),
		"partials/greeting.html": file(`Hello {{ .name }}!@push('scripts')<script src="/greet.js"></script>@endpush`),
		"dashboard.html":         file(`@extends('layouts.admin') @section('body')<p>{{ .heading }}</p>@endsection`),
		"bare.html":              file(`@extends('layouts.app')`),
		"escape.html":            file(`{{ .html }}|{!! .html !!}|@{{ .html }}`),
		"form.html":              file(`<form>@csrf @method('put')</form>`),
		"auth.html":              file(`@auth Hi {{ .auth.Name }} @endauth @guest Login @endguest`),
		"list.html":              file(`@forelse(.items as $i => $item){{ $i }}={{ $item }}; @empty none @endforelse`),
		"env.html":               file(`@env('local', 'staging') dev @endenv @production prod @endproduction`),
		"json.html":              file(`<script>var d = @json(.payload);</script>`),
		"users/index.html":       file(`{{ .app }}:{{ .count }}:{{ .name }}`),
		"broken.html":            file(`{{ index .list 5 }}`),
		"cycle/a.html":           file(`@extends('cycle.b')`),
		"cycle/b.html":           file(`@extends('cycle.a')`),
	}
}

func newFactory(env string) *Factory {
	return NewFactory(Options{FS: viewsFS(), Env: env})
}

func render(t *testing.T, f *Factory, name string, data Data) string {
	t.Helper()
	out, err := f.Render(context.Background(), name, data)
	require.NoError(t, err)
	return out
}

func TestFactoryLayouts(t *testing.T) {
	f := newFactory("")

	assert.Equal(t,
		`<title>Home</title><main><h1>Welcome</h1>Hello Ada!</main><script src="/home.js"></script><script src="/greet.js"></script>`,
		render(t, f, "home", Data{"heading": "Welcome", "user": "Ada"}))

	assert.Equal(t,
		`<title>Dispatch</title><main></main>`,
		render(t, f, "bare", nil))

	assert.Equal(t,
		`<title>Dispatch</title><main><nav>admin</nav><p>Stats</p></main><script src="/admin.js"></script>`,
		render(t, f, "dashboard", Data{"heading": "Stats"}))
}

func TestFactoryEscaping(t *testing.T) {
	f := newFactory("")
	assert.Equal(t,
		`&lt;b&gt;x&lt;/b&gt;|<b>x</b>|{{ .html }}`,
		render(t, f, "escape", Data{"html": "<b>x</b>"}))

	assert.Contains(t,
		render(t, f, "json", Data{"payload": map[string]string{"a": "<x>"}}),
		`var d = {"a":"\u003cx\u003e"};`)
}

func TestFactoryFormsAndAuth(t *testing.T) {
	f := newFactory("")
	assert.Equal(t,
		`<form><input type="hidden" name="_token" value="abc"> <input type="hidden" name="_method" value="PUT"></form>`,
		render(t, f, "form", Data{CSRFTokenKey: "abc"}))

	guest := render(t, f, "auth", nil)
	assert.Contains(t, guest, "Login")
	assert.NotContains(t, guest, "Hi")

	member := render(t, f, "auth", Data{AuthKey: map[string]string{"Name": "Ada"}})
	assert.Contains(t, member, "Hi Ada")
	assert.NotContains(t, member, "Login")
}

func TestFactoryLoopsAndEnv(t *testing.T) {
	f := newFactory("local")
	assert.Equal(t, "0=a; 1=b; ", render(t, f, "list", Data{"items": []string{"a", "b"}}))
	assert.Equal(t, " none ", render(t, f, "list", Data{"items": []string{}}))

	assert.Contains(t, render(t, f, "env", nil), "dev")
	assert.NotContains(t, render(t, f, "env", nil), "prod")

	prod := render(t, newFactory("production"), "env", nil)
	assert.Contains(t, prod, "prod")
	assert.NotContains(t, prod, "dev")
}

func TestFactorySharedDataAndComposers(t *testing.T) {
	f := newFactory("")
	f.Share("app", "Dispatch")
	f.Composer("users.*", func(v *View) { v.With("count", 3) })
	f.Composer("home", func(v *View) { t.Error("composer for another view ran") })

	assert.Equal(t, "Dispatch:3:Ada", render(t, f, "users.index", Data{"name": "Ada"}))
	assert.Equal(t, "Mine:3:Ada", render(t, f, "users.index", Data{"name": "Ada", "app": "Mine"}))

	v, err := f.Make("users.index", Data{"name": "Grace"})
	require.NoError(t, err)
	out, err := v.With("app", "With").Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "With:3:Grace", out)
}

func TestFactoryCustomDirectives(t *testing.T) {
	fsys := viewsFS()
	fsys["custom.html"] = &fstest.MapFile{Data: []byte(`@shout(.name) @admin(.role) yes @else no @endadmin`)}
	f := NewFactory(Options{FS: fsys})

	require.NoError(t, f.Directive("shout", func(args string) (string, error) {
		return "{{ upper " + args + " }}!", nil
	}))
	require.NoError(t, f.If("admin", func(args ...interface{}) bool {
		return len(args) == 1 && args[0] == "root"
	}))

	assert.Equal(t, "ADA!  yes ", render(t, f, "custom", Data{"name": "ada", "role": "root"}))
	assert.Equal(t, "ADA!  no ", render(t, f, "custom", Data{"name": "ada", "role": "guest"}))
}

func TestFactoryErrors(t *testing.T) {
	f := newFactory("")

	assert.False(t, f.Exists("missing"))
	assert.True(t, f.Exists("partials.greeting"))

	_, err := f.Make("missing", nil)
	assert.True(t, errors.Is(err, ErrViewNotFound))
	_, err = f.Make("../secret", nil)
	assert.True(t, errors.Is(err, ErrViewNotFound))

	_, err = f.Render(context.Background(), "broken", Data{"list": []int{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render view broken")

	_, err = f.Render(context.Background(), "cycle.a", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Render(ctx, "bare", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFactoryNames(t *testing.T) {
	names, err := newFactory("").Names()
	require.NoError(t, err)
	assert.Contains(t, names, "layouts.app")
	assert.Contains(t, names, "partials.greeting")
	assert.Contains(t, names, "users.index")
}

func TestFactoryConcurrentRender(t *testing.T) {
	f := newFactory("")
	data := Data{"heading": "Welcome", "user": "Ada"}
	want := render(t, f, "home", data)
	f.Flush()

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = f.Render(context.Background(), "home", Data{}.Merge(data))
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestFactoryHotReload(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "hello.html")
	require.NoError(t, os.WriteFile(file, []byte("v1"), 0o644))

	f := NewFactory(Options{Path: dir, ReloadDebounce: 10 * time.Millisecond})
	defer f.Close()
	assert.Equal(t, "v1", render(t, f, "hello", nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.EnableHotReload(ctx))
	assert.True(t, f.IsHotReloadEnabled())

	require.NoError(t, os.WriteFile(file, []byte("v2"), 0o644))
	assert.Eventually(t, func() bool {
		out, err := f.Render(context.Background(), "hello", nil)
		return err == nil && strings.TrimSpace(out) == "v2"
	}, 5*time.Second, 20*time.Millisecond)
}

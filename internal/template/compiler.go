package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Push is a block appended to a named stack
type Push struct {
	Stack    string
	Template string
}

// Compiled is a view translated to html/template source plus what the
// factory needs to assemble it with its layout and partials
type Compiled struct {
	Name     string
	Source   string
	Layout   string
	Includes []string
	Sections []string
	Stacks   []string
	Pushes   []Push
}

type argMode int

const (
	noArgs argMode = iota
	optionalArgs
	requiredArgs
)

type builtin struct {
	args    argMode
	compile func(c *compiler, tok Token) error
}

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"if":     {requiredArgs, func(c *compiler, t Token) error { return c.open("if", t, "{{if "+t.Args+"}}") }},
		"elseif": {requiredArgs, func(c *compiler, t Token) error { return c.branch(t, "{{else if "+t.Args+"}}", "if") }},
		"else": {noArgs, func(c *compiler, t Token) error {
			return c.branch(t, "{{else}}", "if", "unless", "isset", "empty", "auth", "guest", "env", "production", "forelse")
		}},
		"endif": {noArgs, closer("if")},

		"unless":    {requiredArgs, func(c *compiler, t Token) error { return c.open("unless", t, "{{if not ("+t.Args+")}}") }},
		"endunless": {noArgs, closer("unless")},
		"isset":     {requiredArgs, func(c *compiler, t Token) error { return c.open("isset", t, "{{if isset ("+t.Args+")}}") }},
		"endisset":  {noArgs, closer("isset")},
		"empty":     {optionalArgs, compileEmpty},
		"endempty":  {noArgs, closer("empty")},

		"foreach":    {requiredArgs, func(c *compiler, t Token) error { return c.open("foreach", t, "{{range "+rangeClause(t.Args)+"}}") }},
		"endforeach": {noArgs, closer("foreach")},
		"forelse":    {requiredArgs, func(c *compiler, t Token) error { return c.open("forelse", t, "{{range "+rangeClause(t.Args)+"}}") }},
		"endforelse": {noArgs, closer("forelse")},
		"break":      {optionalArgs, loopControl("break")},
		"continue":   {optionalArgs, loopControl("continue")},

		"auth":          {noArgs, func(c *compiler, t Token) error { return c.open("auth", t, "{{if $."+AuthKey+"}}") }},
		"endauth":       {noArgs, closer("auth")},
		"guest":         {noArgs, func(c *compiler, t Token) error { return c.open("guest", t, "{{if not $."+AuthKey+"}}") }},
		"endguest":      {noArgs, closer("guest")},
		"env":           {requiredArgs, compileEnv},
		"endenv":        {noArgs, closer("env")},
		"production":    {noArgs, func(c *compiler, t Token) error { return c.open("production", t, `{{if in_env "production"}}`) }},
		"endproduction": {noArgs, closer("production")},

		"csrf":   {noArgs, compileCSRF},
		"method": {requiredArgs, compileMethod},
		"json":   {requiredArgs, func(c *compiler, t Token) error { c.write("{{json (" + t.Args + ")}}"); return nil }},

		"checked":  {requiredArgs, attribute("checked")},
		"selected": {requiredArgs, attribute("selected")},
		"disabled": {requiredArgs, attribute("disabled")},
		"readonly": {requiredArgs, attribute("readonly")},

		"include":    {requiredArgs, compileInclude},
		"extends":    {requiredArgs, compileExtends},
		"section":    {requiredArgs, compileSection},
		"endsection": {noArgs, closer("section")},
		"stop":       {noArgs, closer("section")},
		"yield":      {requiredArgs, compileYield},
		"push":       {requiredArgs, compilePush},
		"endpush":    {noArgs, closer("push")},
		"stack":      {requiredArgs, compileStack},
	}
}

type block struct {
	kind string
	line int
}

type compiler struct {
	registry *Registry
	out      strings.Builder
	blocks   []block
	result   *Compiled
}

// Compile translates template source into html/template source. Custom
// directives come from registry, which may be nil.
func Compile(name, src string, registry *Registry) (*Compiled, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, withTemplate(err, name)
	}
	return CompileTokens(name, tokens, registry)
}

// CompileTokens translates lexed tokens into html/template source
func CompileTokens(name string, tokens []Token, registry *Registry) (*Compiled, error) {
	if registry == nil {
		registry = NewRegistry()
	}
	c := &compiler{registry: registry, result: &Compiled{Name: name}}

	for _, tok := range tokens {
		var err error
		switch tok.Type {
		case TokenText:
			c.text(tok.Value)
		case TokenEcho:
			c.write("{{ " + tok.Value + " }}")
		case TokenRawEcho:
			c.write("{{ raw (" + tok.Value + ") }}")
		case TokenComment:
		case TokenDirective:
			err = c.directive(tok)
		}
		if err != nil {
			return nil, withTemplate(err, name)
		}
	}

	if n := len(c.blocks); n > 0 {
		open := c.blocks[n-1]
		return nil, &SyntaxError{Template: name, Line: open.line, Message: fmt.Sprintf("@%s is never closed", open.kind)}
	}

	c.result.Source = c.out.String()
	return c.result, nil
}

func withTemplate(err error, name string) error {
	if se, ok := err.(*SyntaxError); ok && se.Template == "" {
		se.Template = name
	}
	return err
}

func (c *compiler) directive(tok Token) error {
	if b, ok := builtins[tok.Name]; ok {
		if b.args == requiredArgs && (!tok.HasArgs || tok.Args == "") {
			return c.errorf(tok, "@%s requires arguments", tok.Name)
		}
		if b.args == noArgs && tok.HasArgs {
			trailing := tok.Spacing + "(" + tok.Args + ")"
			tok.HasArgs, tok.Args, tok.Spacing = false, "", ""
			if err := b.compile(c, tok); err != nil {
				return err
			}
			c.text(trailing)
			return nil
		}
		if err := checkArgs(tok); err != nil {
			return err
		}
		return b.compile(c, tok)
	}

	if fn, ok := c.registry.directive(tok.Name); ok {
		if err := checkArgs(tok); err != nil {
			return err
		}
		out, err := fn(tok.Args)
		if err != nil {
			return c.errorf(tok, "@%s: %v", tok.Name, err)
		}
		c.write(out)
		return nil
	}

	if c.registry.isCondition(tok.Name) {
		if err := checkArgs(tok); err != nil {
			return err
		}
		action := "{{if " + conditionFunc(tok.Name)
		if tok.Args != "" {
			action += " " + tok.Args
		}
		return c.open(tok.Name, tok, action+"}}")
	}
	if name, ok := strings.CutPrefix(tok.Name, "end"); ok && c.registry.isCondition(name) {
		return c.close(name, tok)
	}

	// Unknown names such as CSS at-rules are text
	c.text(tok.Source())
	return nil
}

func checkArgs(tok Token) error {
	if strings.Contains(tok.Args, "{{") || strings.Contains(tok.Args, "}}") {
		return &SyntaxError{Line: tok.Line, Message: fmt.Sprintf("arguments of @%s must not contain {{ or }}", tok.Name)}
	}
	return nil
}

func (c *compiler) write(s string) {
	c.out.WriteString(s)
}

// text writes literal output, escaping what html/template would read as an
// action delimiter
func (c *compiler) text(s string) {
	s = strings.ReplaceAll(s, "{{", `{{"{{"}}`)
	if strings.HasSuffix(s, "{") {
		s = s[:len(s)-1] + `{{"{"}}`
	}
	c.out.WriteString(s)
}

func (c *compiler) open(kind string, tok Token, action string) error {
	c.blocks = append(c.blocks, block{kind: kind, line: tok.Line})
	c.write(action)
	return nil
}

func (c *compiler) branch(tok Token, action string, kinds ...string) error {
	if n := len(c.blocks); n > 0 {
		for _, kind := range kinds {
			if c.blocks[n-1].kind == kind || (kind == "if" && c.registry.isCondition(c.blocks[n-1].kind)) {
				c.write(action)
				return nil
			}
		}
	}
	return c.errorf(tok, "@%s outside of a matching block", tok.Name)
}

func (c *compiler) close(kind string, tok Token) error {
	n := len(c.blocks)
	if n == 0 {
		return c.errorf(tok, "@%s without an opening @%s", tok.Name, kind)
	}
	if open := c.blocks[n-1]; open.kind != kind {
		return c.errorf(tok, "@%s closes @%s opened on line %d", tok.Name, open.kind, open.line)
	}
	c.blocks = c.blocks[:n-1]
	c.write("{{end}}")
	return nil
}

func (c *compiler) topLevel(tok Token) error {
	if n := len(c.blocks); n > 0 {
		return c.errorf(tok, "@%s cannot be nested inside @%s", tok.Name, c.blocks[n-1].kind)
	}
	return nil
}

func (c *compiler) errorf(tok Token, format string, args ...interface{}) error {
	return &SyntaxError{Line: tok.Line, Message: fmt.Sprintf(format, args...)}
}

func closer(kind string) func(*compiler, Token) error {
	return func(c *compiler, t Token) error { return c.close(kind, t) }
}

func compileEmpty(c *compiler, t Token) error {
	if t.HasArgs && t.Args != "" {
		return c.open("empty", t, "{{if not ("+t.Args+")}}")
	}
	return c.branch(t, "{{else}}", "forelse")
}

func loopControl(keyword string) func(*compiler, Token) error {
	return func(c *compiler, t Token) error {
		inLoop := false
		for _, b := range c.blocks {
			if b.kind == "foreach" || b.kind == "forelse" {
				inLoop = true
			}
		}
		if !inLoop {
			return c.errorf(t, "@%s outside of a loop", keyword)
		}
		if t.Args != "" {
			c.write("{{if " + t.Args + "}}{{" + keyword + "}}{{end}}")
		} else {
			c.write("{{" + keyword + "}}")
		}
		return nil
	}
}

func attribute(name string) func(*compiler, Token) error {
	return func(c *compiler, t Token) error {
		c.write("{{if " + t.Args + "}}" + name + "{{end}}")
		return nil
	}
}

func compileEnv(c *compiler, t Token) error {
	envs, err := literals(t.Args)
	if err != nil {
		return c.errorf(t, "@env: %v", err)
	}
	quoted := make([]string, len(envs))
	for i, env := range envs {
		quoted[i] = strconv.Quote(env)
	}
	return c.open("env", t, "{{if in_env "+strings.Join(quoted, " ")+"}}")
}

func compileCSRF(c *compiler, _ Token) error {
	c.write(`<input type="hidden" name="_token" value="{{$.` + CSRFTokenKey + `}}">`)
	return nil
}

var methodName = regexp.MustCompile(`^[A-Za-z]+$`)

func compileMethod(c *compiler, t Token) error {
	method, err := literal(t.Args)
	if err != nil || !methodName.MatchString(method) {
		return c.errorf(t, "@method expects a quoted HTTP method")
	}
	c.write(`<input type="hidden" name="_method" value="` + strings.ToUpper(method) + `">`)
	return nil
}

func compileInclude(c *compiler, t Token) error {
	parts := splitArgs(t.Args)
	name, err := literal(parts[0])
	if err != nil {
		return c.errorf(t, "@include expects a quoted view name")
	}
	c.result.Includes = appendUnique(c.result.Includes, name)

	data := "$"
	if len(parts) > 1 {
		data = "(merge $ (" + strings.Join(parts[1:], ", ") + "))"
	}
	c.write("{{template " + strconv.Quote(viewTemplate(name)) + " " + data + "}}")
	return nil
}

func compileExtends(c *compiler, t Token) error {
	name, err := literal(t.Args)
	if err != nil {
		return c.errorf(t, "@extends expects a quoted view name")
	}
	if c.result.Layout != "" {
		return c.errorf(t, "@extends used twice")
	}
	if err := c.topLevel(t); err != nil {
		return err
	}
	c.result.Layout = name
	return nil
}

func compileSection(c *compiler, t Token) error {
	if err := c.topLevel(t); err != nil {
		return err
	}
	parts := splitArgs(t.Args)
	name, err := literal(parts[0])
	if err != nil {
		return c.errorf(t, "@section expects a quoted name")
	}
	c.result.Sections = appendUnique(c.result.Sections, name)

	if len(parts) > 1 {
		c.write("{{define " + strconv.Quote(name) + "}}" + valueAction(strings.Join(parts[1:], ", ")) + "{{end}}")
		return nil
	}
	return c.open("section", t, "{{define "+strconv.Quote(name)+"}}")
}

func compileYield(c *compiler, t Token) error {
	parts := splitArgs(t.Args)
	name, err := literal(parts[0])
	if err != nil {
		return c.errorf(t, "@yield expects a quoted section name")
	}
	fallback := ""
	if len(parts) > 1 {
		fallback = valueAction(strings.Join(parts[1:], ", "))
	}
	c.write("{{block " + strconv.Quote(name) + " $}}" + fallback + "{{end}}")
	return nil
}

func compilePush(c *compiler, t Token) error {
	if err := c.topLevel(t); err != nil {
		return err
	}
	stack, err := literal(t.Args)
	if err != nil {
		return c.errorf(t, "@push expects a quoted stack name")
	}
	id := fmt.Sprintf("push:%s:%s:%d", stack, c.result.Name, len(c.result.Pushes))
	c.result.Pushes = append(c.result.Pushes, Push{Stack: stack, Template: id})
	return c.open("push", t, "{{define "+strconv.Quote(id)+"}}")
}

func compileStack(c *compiler, t Token) error {
	stack, err := literal(t.Args)
	if err != nil {
		return c.errorf(t, "@stack expects a quoted stack name")
	}
	c.result.Stacks = appendUnique(c.result.Stacks, stack)
	c.write("{{template " + strconv.Quote(stackTemplate(stack)) + " $}}")
	return nil
}

func viewTemplate(name string) string  { return "view:" + name }
func stackTemplate(name string) string { return "stack:" + name }

// valueAction renders a quoted literal as an escaped constant and anything
// else as an expression
func valueAction(arg string) string {
	if s, err := literal(arg); err == nil {
		return "{{" + strconv.Quote(s) + "}}"
	}
	return "{{ " + arg + " }}"
}

// rangeClause accepts Go range syntax as is and rewrites
// "list as $item" and "list as $key => $item"
func rangeClause(args string) string {
	idx := indexOutsideQuotes(args, " as ")
	if idx < 0 {
		return args
	}
	list := strings.TrimSpace(args[:idx])
	vars := strings.TrimSpace(args[idx+4:])
	if key, value, ok := strings.Cut(vars, "=>"); ok {
		return strings.TrimSpace(key) + ", " + strings.TrimSpace(value) + " := " + list
	}
	return vars + " := " + list
}

func indexOutsideQuotes(s, sub string) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' && quote != '`' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		if c == '"' || c == '\'' || c == '`' {
			quote = c
			continue
		}
		if strings.HasPrefix(s[i:], sub) {
			return i
		}
	}
	return -1
}

// splitArgs splits on top-level commas
func splitArgs(s string) []string {
	var parts []string
	var quote byte
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' && quote != '`' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

// literal unquotes a single, double or backquoted string
func literal(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return "", fmt.Errorf("expected a quoted string, got %q", s)
	}
	switch s[0] {
	case '"', '`':
		return strconv.Unquote(s)
	case '\'':
		if s[len(s)-1] != '\'' {
			break
		}
		body := s[1 : len(s)-1]
		body = strings.ReplaceAll(body, `\\`, "\x00")
		body = strings.ReplaceAll(body, `\'`, "'")
		if strings.Contains(body, "'") {
			break
		}
		return strings.ReplaceAll(body, "\x00", `\`), nil
	}
	return "", fmt.Errorf("expected a quoted string, got %s", s)
}

func literals(s string) ([]string, error) {
	parts := splitArgs(s)
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		v, err := literal(part)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}

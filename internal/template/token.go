package template

import "fmt"

// TokenType identifies a lexed template fragment
type TokenType int

const (
	TokenText TokenType = iota
	TokenEcho
	TokenRawEcho
	TokenComment
	TokenDirective
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "text"
	case TokenEcho:
		return "echo"
	case TokenRawEcho:
		return "raw echo"
	case TokenComment:
		return "comment"
	case TokenDirective:
		return "directive"
	default:
		return fmt.Sprintf("token(%d)", int(t))
	}
}

// Token is one fragment of template source. Value holds the text, the echo
// expression or the comment body. Directives use Name and Args; Spacing is
// the whitespace between the name and its opening parenthesis.
type Token struct {
	Type    TokenType
	Value   string
	Name    string
	Args    string
	HasArgs bool
	Spacing string
	Line    int
}

// Source returns the directive as written
func (t Token) Source() string {
	if t.Type != TokenDirective {
		return t.Value
	}
	if !t.HasArgs {
		return "@" + t.Name
	}
	return "@" + t.Name + t.Spacing + "(" + t.Args + ")"
}

// SyntaxError reports malformed template source
type SyntaxError struct {
	Template string
	Line     int
	Message  string
}

func (e *SyntaxError) Error() string {
	if e.Template == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("%s:%d: %s", e.Template, e.Line, e.Message)
}

package template

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type lexer struct {
	src      string
	pos      int
	line     int
	tokens   []Token
	text     strings.Builder
	textLine int
}

// Lex splits template source into tokens. Echoes are {{ expr }}, raw
// echoes {!! expr !!}, comments {{-- text --}} and directives @name or
// @name(args). "@@" yields a literal "@", "@{{" a literal "{{", and
// everything between @verbatim and @endverbatim is text.
func Lex(src string) ([]Token, error) {
	l := &lexer{src: src, line: 1, textLine: 1}
	for l.pos < len(l.src) {
		if err := l.next(); err != nil {
			return nil, err
		}
	}
	l.flushText()
	return l.tokens, nil
}

func (l *lexer) rest() string {
	return l.src[l.pos:]
}

func (l *lexer) next() error {
	rest := l.rest()
	switch {
	case strings.HasPrefix(rest, "{{--"):
		end := strings.Index(rest[4:], "--}}")
		if end < 0 {
			return l.errorf("unclosed comment")
		}
		l.emit(Token{Type: TokenComment, Value: strings.TrimSpace(rest[4 : 4+end])}, 4+end+4)
	case strings.HasPrefix(rest, "@{{"):
		l.writeText("{{", 3)
	case strings.HasPrefix(rest, "@@"):
		l.writeText("@", 2)
	case strings.HasPrefix(rest, "{{"):
		expr, n, ok := scanUntil(rest[2:], "}}")
		if !ok {
			return l.errorf("unclosed echo")
		}
		if err := l.checkExpr(expr); err != nil {
			return err
		}
		l.emit(Token{Type: TokenEcho, Value: strings.TrimSpace(expr)}, 2+n+2)
	case strings.HasPrefix(rest, "{!!"):
		expr, n, ok := scanUntil(rest[3:], "!!}")
		if !ok {
			return l.errorf("unclosed raw echo")
		}
		if err := l.checkExpr(expr); err != nil {
			return err
		}
		l.emit(Token{Type: TokenRawEcho, Value: strings.TrimSpace(expr)}, 3+n+3)
	case rest[0] == '@' && l.directiveStart():
		return l.directive()
	default:
		_, size := utf8.DecodeRuneInString(rest)
		l.writeText(rest[:size], size)
	}
	return nil
}

func (l *lexer) checkExpr(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return l.errorf("empty echo")
	}
	if strings.Contains(expr, "{{") {
		return l.errorf("echo contains a nested {{")
	}
	return nil
}

// directiveStart reports whether the "@" at pos begins a directive: it
// must be followed by a letter and not preceded by a word character, so
// addresses like user@example.com stay text.
func (l *lexer) directiveStart() bool {
	if l.pos+1 >= len(l.src) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos+1:])
	if !unicode.IsLetter(r) {
		return false
	}
	if l.pos == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(l.src[:l.pos])
	return !isWordRune(prev) && prev != '.'
}

func (l *lexer) directive() error {
	rest := l.rest()
	n := 1
	for n < len(rest) {
		r, size := utf8.DecodeRuneInString(rest[n:])
		if !isWordRune(r) {
			break
		}
		n += size
	}
	name := rest[1:n]

	if name == "verbatim" {
		end := strings.Index(rest[n:], "@endverbatim")
		if end < 0 {
			return l.errorf("unclosed @verbatim")
		}
		body := rest[n : n+end]
		l.writeText(body, n+end+len("@endverbatim"))
		return nil
	}

	tok := Token{Type: TokenDirective, Name: name}
	spaces := n
	for spaces < len(rest) && (rest[spaces] == ' ' || rest[spaces] == '\t') {
		spaces++
	}
	if spaces < len(rest) && rest[spaces] == '(' {
		args, consumed, ok := scanParens(rest[spaces+1:])
		if !ok {
			return l.errorf("unbalanced parentheses in @%s", name)
		}
		tok.HasArgs = true
		tok.Args = strings.TrimSpace(args)
		tok.Spacing = rest[n:spaces]
		n = spaces + 1 + consumed
	}
	l.emit(tok, n)
	return nil
}

func (l *lexer) writeText(s string, advance int) {
	if l.text.Len() == 0 {
		l.textLine = l.line
	}
	l.text.WriteString(s)
	l.advance(advance)
}

func (l *lexer) flushText() {
	if l.text.Len() == 0 {
		return
	}
	l.tokens = append(l.tokens, Token{Type: TokenText, Value: l.text.String(), Line: l.textLine})
	l.text.Reset()
}

func (l *lexer) emit(tok Token, advance int) {
	l.flushText()
	tok.Line = l.line
	l.tokens = append(l.tokens, tok)
	l.advance(advance)
}

func (l *lexer) advance(n int) {
	l.line += strings.Count(l.src[l.pos:l.pos+n], "\n")
	l.pos += n
}

func (l *lexer) errorf(message string, args ...interface{}) error {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	return &SyntaxError{Line: l.line, Message: message}
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// scanUntil returns the text before the first close outside a quoted
// string, and the byte length of that text
func scanUntil(s, close string) (string, int, bool) {
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
		switch {
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case strings.HasPrefix(s[i:], close):
			return s[:i], i, true
		}
	}
	return "", 0, false
}

// scanParens scans past the parenthesis matching one already consumed and
// returns the enclosed text and the bytes consumed including the closer
func scanParens(s string) (string, int, bool) {
	depth := 1
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
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[:i], i + 1, true
			}
		}
	}
	return "", 0, false
}

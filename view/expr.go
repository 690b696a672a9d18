package view

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

const (
	eof        rune = -1
	leftDelim       = "${"
	rightDelim      = "}"
)

// Expr holds a string with ${}-style placeholders, compiled for evaluation.
type Expr struct {
	raw  string
	segs []exprSegment
}

type exprSegment struct {
	text string
	prog *vm.Program // nil for plain text
}

// NewExpr compiles the placeholders found in s. A string without placeholders is kept as is.
func NewExpr(s string) (Expr, error) {
	x := Expr{raw: s}
	if !strings.Contains(s, leftDelim) {
		return x, nil
	}

	l := &exprLexer{input: s}
	for state := lexText; state != nil; {
		state = state(l)
	}

	for _, it := range l.items {
		switch it.typ {
		case itemError:
			return Expr{}, fmt.Errorf("%s", it.val)
		case itemText:
			x.segs = append(x.segs, exprSegment{text: it.val})
		case itemExpr:
			prog, err := expr.Compile(it.val)
			if err != nil {
				return Expr{}, fmt.Errorf("compile %q: %w", it.val, err)
			}
			x.segs = append(x.segs, exprSegment{text: it.val, prog: prog})
		}
	}

	return x, nil
}

// Raw returns the source string of the expression.
func (e Expr) Raw() string {
	return e.raw
}

// IsConst reports whether the expression has no placeholders.
func (e Expr) IsConst() bool {
	return e.segs == nil
}

// Value evaluates the expression against env. A single placeholder without surrounding text
// yields the value as is; anything else is concatenated into a string.
func (e Expr) Value(env map[string]any) (any, error) {
	if e.segs == nil {
		return e.raw, nil
	}

	if env == nil {
		env = map[string]any{}
	}

	if len(e.segs) == 1 && e.segs[0].prog != nil {
		return expr.Run(e.segs[0].prog, env)
	}

	var sb strings.Builder
	for _, seg := range e.segs {
		if seg.prog == nil {
			sb.WriteString(seg.text)
			continue
		}
		v, err := expr.Run(seg.prog, env)
		if err != nil {
			return nil, fmt.Errorf("eval %q: %w", seg.text, err)
		}
		sb.WriteString(stringify(v))
	}
	return sb.String(), nil
}

// String evaluates the expression and converts the result to a string.
func (e Expr) String(env map[string]any) (string, error) {
	v, err := e.Value(env)
	if err != nil {
		return "", err
	}
	return stringify(v), nil
}

// stringify converts v to its display form. Absent values display as an empty string.
func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Implementation of the lexer based on https://go.dev/talks/2011/lex.slide

type itemType int

const (
	itemError itemType = iota
	itemEOF
	itemText
	itemExpr
)

type item struct {
	typ itemType
	val string
}

// stateFn represents the state of the scanner as a function that returns the next state.
type stateFn func(*exprLexer) stateFn

// exprLexer holds the state of the scanner.
type exprLexer struct {
	input       string // the string being scanned
	start       int    // start position of this item.
	pos         int    // current position in the input.
	width       int    // width of last rune read from input.
	bracesDepth int    // nesting depth of braces {}
	items       []item
}

func (l *exprLexer) emit(t itemType) stateFn {
	l.items = append(l.items, item{typ: t, val: l.input[l.start:l.pos]})
	l.start = l.pos
	return nil
}

// errorf emits an error item and terminates the scan.
func (l *exprLexer) errorf(format string, args ...any) stateFn {
	l.items = append(l.items, item{typ: itemError, val: fmt.Sprintf(format, args...)})
	return nil
}

// scanString consumes a quoted string. It reports false if the string is not terminated.
func (l *exprLexer) scanString(quote rune) bool {
	for ch := l.next(); ch != quote; ch = l.next() {
		if ch == '\n' || ch == eof {
			return false
		}
		if ch == '\\' {
			l.next()
		}
	}
	return true
}

func (l *exprLexer) next() rune {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.width = w
	l.pos += w
	return r
}

func (l *exprLexer) ignore() {
	l.start = l.pos
}

func (l *exprLexer) atRightDelim() bool {
	return l.bracesDepth == 0 && strings.HasPrefix(l.input[l.pos:], rightDelim)
}

func lexText(l *exprLexer) stateFn {
	if x := strings.Index(l.input[l.pos:], leftDelim); x >= 0 {
		if x > 0 {
			l.pos += x
			l.emit(itemText)
		}
		return lexLeftDelim
	}
	l.pos = len(l.input)
	if l.pos > l.start {
		l.emit(itemText)
	}
	return l.emit(itemEOF)
}

func lexLeftDelim(l *exprLexer) stateFn {
	l.pos += len(leftDelim)
	l.ignore()
	return lexExpr
}

func lexRightDelim(l *exprLexer) stateFn {
	l.pos += len(rightDelim)
	l.ignore()
	return lexText
}

func lexExpr(l *exprLexer) stateFn {
	if l.atRightDelim() {
		if strings.TrimSpace(l.input[l.start:l.pos]) == "" {
			return l.errorf("empty expression at offset %d", l.start)
		}
		l.emit(itemExpr)
		return lexRightDelim
	}
	switch r := l.next(); r {
	case eof:
		return l.errorf("unclosed action")
	case '\'', '"', '`':
		if !l.scanString(r) {
			return l.errorf("unterminated string")
		}
	case '{':
		l.bracesDepth++
	case '}':
		l.bracesDepth--
	}
	return lexExpr
}

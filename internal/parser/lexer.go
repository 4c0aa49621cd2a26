package parser

import "strings"

type Kind int

const (
	Name Kind = iota
	Number
	String
	Op
)

func (k Kind) String() string {
	switch k {
	case Name:
		return "NAME"
	case Number:
		return "NUMBER"
	case String:
		return "STRING"
	default:
		return "OP"
	}
}

// Token is a Python token. Line and Col are 1-based; Col counts bytes.
// EndLine differs from Line only for strings spanning physical lines.
type Token struct {
	Kind    Kind
	Text    string
	Line    int
	Col     int
	EndLine int
}

// Logical is one Python logical line: physical lines joined by open
// brackets or backslashes, split at top-level semicolons.
type Logical struct {
	Line   int
	Indent int
	Tokens []Token
}

type Comment struct {
	Line      int
	Col       int
	Text      string
	Inline    bool // code precedes it on the same physical line
	Directive bool // shebang, coding cookie or tool pragma
}

type lexer struct {
	src       string
	pos       int
	line      int
	lineStart int
	depth     int
	indent    int
	hasCode   bool // current physical line carries a token

	cur      []Token
	out      []Logical
	comments []Comment
}

type mark struct {
	pos, line, col int
	first          bool
}

// Tokenize splits Python source into logical lines and comments. It never
// fails: malformed input (unterminated strings, unbalanced brackets) is
// tokenized as far as it goes.
func Tokenize(src string) ([]Logical, []Comment) {
	src = strings.TrimPrefix(src, "\ufeff")
	lx := &lexer{src: src, line: 1}
	lx.run()
	return lx.out, lx.comments
}

func (lx *lexer) run() {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\n':
			lx.pos++
			lx.newline()
			if lx.depth == 0 {
				lx.flush()
			}
		case c == ' ' || c == '\t' || c == '\f' || c == '\r':
			lx.pos++
		case c == '\\' && lx.continuation():
		case c == '#':
			lx.comment()
		case c == '"' || c == '\'':
			lx.str(lx.mark())
		case isDigit(c) || (c == '.' && lx.pos+1 < len(lx.src) && isDigit(lx.src[lx.pos+1])):
			lx.number()
		case isNameByte(c):
			lx.name()
		default:
			lx.op()
		}
	}
	lx.flush()
}

func (lx *lexer) mark() mark {
	return mark{pos: lx.pos, line: lx.line, col: lx.pos - lx.lineStart + 1, first: !lx.hasCode}
}

func (lx *lexer) newline() {
	lx.line++
	lx.lineStart = lx.pos
	lx.hasCode = false
}

func (lx *lexer) emit(k Kind, m mark) {
	if len(lx.cur) == 0 && m.first {
		lx.indent = m.col - 1
	}
	lx.cur = append(lx.cur, Token{Kind: k, Text: lx.src[m.pos:lx.pos], Line: m.line, Col: m.col, EndLine: lx.line})
	lx.hasCode = true
}

func (lx *lexer) flush() {
	if len(lx.cur) == 0 {
		return
	}
	lx.out = append(lx.out, Logical{Line: lx.cur[0].Line, Indent: lx.indent, Tokens: lx.cur})
	lx.cur = nil
}

// continuation consumes a backslash-newline pair.
func (lx *lexer) continuation() bool {
	rest := lx.src[lx.pos+1:]
	switch {
	case strings.HasPrefix(rest, "\n"):
		lx.pos += 2
	case strings.HasPrefix(rest, "\r\n"):
		lx.pos += 3
	default:
		return false
	}
	lx.newline()
	return true
}

func (lx *lexer) comment() {
	m := lx.mark()
	end := strings.IndexByte(lx.src[lx.pos:], '\n')
	if end < 0 {
		end = len(lx.src)
	} else {
		end += lx.pos
	}
	text := strings.TrimRight(lx.src[lx.pos:end], "\r")
	lx.comments = append(lx.comments, Comment{
		Line:      m.line,
		Col:       m.col,
		Text:      text,
		Inline:    lx.hasCode,
		Directive: isDirective(text, m.line),
	})
	lx.pos = end
}

func (lx *lexer) str(m mark) {
	q := lx.src[lx.pos]
	delim := strings.Repeat(string(q), 3)
	triple := strings.HasPrefix(lx.src[lx.pos:], delim)
	if triple {
		lx.pos += 3
	} else {
		lx.pos++
	}
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\\':
			lx.pos++
			if lx.pos < len(lx.src) {
				lx.pos++
				if lx.src[lx.pos-1] == '\n' {
					lx.newline()
				}
			}
			continue
		case c == '\n':
			if !triple {
				// unterminated; the newline belongs to run()
				lx.emit(String, m)
				return
			}
			lx.pos++
			lx.newline()
			continue
		case c == q:
			if !triple {
				lx.pos++
				lx.emit(String, m)
				return
			}
			if strings.HasPrefix(lx.src[lx.pos:], delim) {
				lx.pos += 3
				lx.emit(String, m)
				return
			}
		}
		lx.pos++
	}
	lx.emit(String, m)
}

func (lx *lexer) number() {
	m := lx.mark()
	hex := false
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		if isNameByte(c) || c == '.' {
			lx.pos++
			if lx.pos-m.pos == 2 && strings.EqualFold(lx.src[m.pos:lx.pos], "0x") {
				hex = true
			}
			continue
		}
		if (c == '+' || c == '-') && !hex && lx.pos > m.pos {
			if p := lx.src[lx.pos-1]; p == 'e' || p == 'E' {
				lx.pos++
				continue
			}
		}
		break
	}
	lx.emit(Number, m)
}

func (lx *lexer) name() {
	m := lx.mark()
	for lx.pos < len(lx.src) && isNameByte(lx.src[lx.pos]) {
		lx.pos++
	}
	if lx.pos < len(lx.src) && (lx.src[lx.pos] == '"' || lx.src[lx.pos] == '\'') && isStringPrefix(lx.src[m.pos:lx.pos]) {
		lx.str(m)
		return
	}
	lx.emit(Name, m)
}

var longOps = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"->", ":=", "==", "!=", "<=", ">=", "**", "//", "<<", ">>",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=",
}

func (lx *lexer) op() {
	m := lx.mark()
	c := lx.src[lx.pos]
	if c == ';' && lx.depth == 0 {
		lx.pos++
		lx.flush()
		return
	}
	for _, op := range longOps {
		if strings.HasPrefix(lx.src[lx.pos:], op) {
			lx.pos += len(op)
			lx.emit(Op, m)
			return
		}
	}
	switch c {
	case '(', '[', '{':
		lx.depth++
	case ')', ']', '}':
		if lx.depth > 0 {
			lx.depth--
		}
	}
	lx.pos++
	lx.emit(Op, m)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isNameByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || isDigit(c) || c >= 0x80
}

func isStringPrefix(s string) bool {
	switch strings.ToLower(s) {
	case "r", "u", "b", "f", "t", "br", "rb", "fr", "rf", "tr", "rt":
		return true
	}
	return false
}

var directivePrefixes = []string{
	"# type:", "# noqa", "# pyconform:", "# pragma", "# fmt:", "# pylint:", "# mypy:", "# isort:",
}

func isDirective(text string, line int) bool {
	if line == 1 && strings.HasPrefix(text, "#!") {
		return true
	}
	if line <= 2 && (strings.Contains(text, "coding:") || strings.Contains(text, "coding=")) {
		return true
	}
	norm := "# " + strings.TrimSpace(strings.TrimPrefix(text, "#"))
	for _, p := range directivePrefixes {
		if strings.HasPrefix(norm, p) {
			return true
		}
	}
	return false
}

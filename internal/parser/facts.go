package parser

import "strings"

type ImportName struct {
	Name  string
	Alias string
	Line  int
	Col   int
}

// Import is one import statement. Level counts the leading dots of a
// from-import; Module is empty for "from . import x".
type Import struct {
	Line   int
	Col    int
	From   bool
	Level  int
	Module string
	Names  []ImportName
}

// Relative reports whether the import resolves against the current package.
func (im Import) Relative() bool { return im.Level > 0 }

type AnnotationKind string

const (
	ParamAnnotation    AnnotationKind = "param"
	ReturnAnnotation   AnnotationKind = "return"
	VariableAnnotation AnnotationKind = "variable"
)

type Annotation struct {
	Kind   AnnotationKind
	Target string
	Line   int
	Col    int
	Tokens []Token
}

// Text renders the annotation tokens the way they appear in source,
// without the original spacing.
func (a Annotation) Text() string {
	var sb strings.Builder
	for i, t := range a.Tokens {
		if i > 0 && spaced(a.Tokens[i-1], t) {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Text)
	}
	return sb.String()
}

func spaced(prev, cur Token) bool {
	switch cur.Text {
	case ",", ")", "]", "}", ".", "[", "(":
		return false
	}
	switch prev.Text {
	case "(", "[", "{", ".":
		return false
	}
	return true
}

var compoundKeywords = map[string]bool{
	"if": true, "elif": true, "else": true, "while": true, "for": true,
	"try": true, "except": true, "finally": true, "with": true,
	"def": true, "class": true,
}

var statementKeywords = map[string]bool{
	"if": true, "elif": true, "else": true, "while": true, "for": true,
	"try": true, "except": true, "finally": true, "with": true, "def": true,
	"class": true, "async": true, "return": true, "yield": true, "raise": true,
	"assert": true, "del": true, "pass": true, "break": true, "continue": true,
	"global": true, "nonlocal": true, "import": true, "from": true, "lambda": true,
	"await": true, "not": true,
}

// Statements splits logical lines into simple statements. One-line
// compound statements ("if x: import y") yield the header and the body
// as separate statements.
func Statements(lines []Logical) [][]Token {
	var out [][]Token
	for _, l := range lines {
		toks := l.Tokens
		for len(toks) > 0 {
			if !compoundHeader(toks) {
				out = append(out, toks)
				break
			}
			i := topLevel(toks, 0, len(toks), ":")
			if i < 0 {
				out = append(out, toks)
				break
			}
			out = append(out, toks[:i+1])
			toks = toks[i+1:]
		}
	}
	return out
}

func compoundHeader(toks []Token) bool {
	if toks[0].Kind != Name {
		return false
	}
	if toks[0].Text == "async" && len(toks) > 1 {
		return compoundKeywords[toks[1].Text]
	}
	switch toks[0].Text {
	case "match", "case":
		return softHeader(toks)
	}
	return compoundKeywords[toks[0].Text]
}

// patternStart lists the operators a match subject or case pattern may
// begin with.
var patternStart = map[string]bool{"(": true, "[": true, "{": true, "-": true, "*": true}

// softHeader reports whether a statement led by the soft keyword match or
// case opens a block rather than using the word as a name. A match header
// never carries its body on the same line; a case header may.
func softHeader(toks []Token) bool {
	if len(toks) < 3 {
		return false
	}
	if next := toks[1]; next.Kind == Op && !patternStart[next.Text] {
		return false
	}
	i := topLevel(toks, 1, len(toks), ":")
	if i < 0 {
		return false
	}
	if toks[0].Text == "match" {
		return i == len(toks)-1
	}
	return true
}

// topLevel returns the index of the first op token with text op in
// toks[from:to] that is not nested in brackets, or -1.
func topLevel(toks []Token, from, to int, op string) int {
	depth := 0
	for i := from; i < to; i++ {
		t := toks[i]
		if t.Kind != Op {
			continue
		}
		switch t.Text {
		case "(", "[", "{":
			depth++
			continue
		case ")", "]", "}":
			depth--
			continue
		}
		if depth == 0 && t.Text == op {
			return i
		}
	}
	return -1
}

// closing returns the index of the bracket matching toks[open], or len(toks)-1.
func closing(toks []Token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		if toks[i].Kind != Op {
			continue
		}
		switch toks[i].Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(toks) - 1
}

// splitTopLevel splits toks at top-level commas.
func splitTopLevel(toks []Token) [][]Token {
	var out [][]Token
	start := 0
	for {
		i := topLevel(toks, start, len(toks), ",")
		if i < 0 {
			if start < len(toks) {
				out = append(out, toks[start:])
			}
			return out
		}
		out = append(out, toks[start:i])
		start = i + 1
	}
}

func extractImport(stmt []Token) (Import, bool) {
	if len(stmt) == 0 || stmt[0].Kind != Name {
		return Import{}, false
	}
	switch stmt[0].Text {
	case "import":
		im := Import{Line: stmt[0].Line, Col: stmt[0].Col}
		for _, part := range splitTopLevel(stmt[1:]) {
			if n, ok := importName(part); ok {
				im.Names = append(im.Names, n)
			}
		}
		if len(im.Names) > 0 {
			im.Module = im.Names[0].Name
		}
		return im, true
	case "from":
		im := Import{Line: stmt[0].Line, Col: stmt[0].Col, From: true}
		i := 1
		for ; i < len(stmt) && stmt[i].Kind == Op && (stmt[i].Text == "." || stmt[i].Text == "..."); i++ {
			im.Level += len(stmt[i].Text)
		}
		var mod strings.Builder
		for ; i < len(stmt) && !(stmt[i].Kind == Name && stmt[i].Text == "import"); i++ {
			mod.WriteString(stmt[i].Text)
		}
		if i == len(stmt) {
			return Import{}, false
		}
		im.Module = mod.String()
		var names []Token
		for _, t := range stmt[i+1:] {
			if t.Kind == Op && (t.Text == "(" || t.Text == ")") {
				continue
			}
			names = append(names, t)
		}
		for _, part := range splitTopLevel(names) {
			if n, ok := importName(part); ok {
				im.Names = append(im.Names, n)
			}
		}
		return im, true
	}
	return Import{}, false
}

func importName(part []Token) (ImportName, bool) {
	if len(part) == 0 {
		return ImportName{}, false
	}
	n := ImportName{Line: part[0].Line, Col: part[0].Col}
	var sb strings.Builder
	i := 0
	for ; i < len(part); i++ {
		if part[i].Kind == Name && part[i].Text == "as" {
			break
		}
		sb.WriteString(part[i].Text)
	}
	if i+1 < len(part) {
		n.Alias = part[i+1].Text
	}
	n.Name = sb.String()
	return n, n.Name != ""
}

func extractAnnotations(stmt []Token) []Annotation {
	if len(stmt) == 0 {
		return nil
	}
	first := 0
	if stmt[0].Text == "async" {
		first = 1
	}
	if first < len(stmt) && stmt[first].Kind == Name && stmt[first].Text == "def" {
		return defAnnotations(stmt[first:])
	}
	if a, ok := variableAnnotation(stmt); ok {
		return []Annotation{a}
	}
	return nil
}

func defAnnotations(stmt []Token) []Annotation {
	open := -1
	for i, t := range stmt {
		if t.Kind == Op && t.Text == "(" {
			open = i
			break
		}
	}
	if open < 0 {
		return nil
	}
	end := closing(stmt, open)
	var out []Annotation
	for _, param := range splitTopLevel(stmt[open+1 : end]) {
		name := ""
		for _, t := range param {
			if t.Kind == Name {
				name = t.Text
				break
			}
		}
		eq := topLevel(param, 0, len(param), "=")
		if eq < 0 {
			eq = len(param)
		}
		colon := topLevel(param, 0, eq, ":")
		if colon < 0 || colon+1 >= eq {
			continue
		}
		ann := param[colon+1 : eq]
		out = append(out, Annotation{Kind: ParamAnnotation, Target: name, Line: ann[0].Line, Col: ann[0].Col, Tokens: ann})
	}
	if end+1 < len(stmt) && stmt[end+1].Kind == Op && stmt[end+1].Text == "->" {
		stop := topLevel(stmt, end+2, len(stmt), ":")
		if stop < 0 {
			stop = len(stmt)
		}
		if ann := stmt[end+2 : stop]; len(ann) > 0 {
			out = append(out, Annotation{Kind: ReturnAnnotation, Target: defName(stmt), Line: ann[0].Line, Col: ann[0].Col, Tokens: ann})
		}
	}
	return out
}

func defName(stmt []Token) string {
	if len(stmt) > 1 && stmt[1].Kind == Name {
		return stmt[1].Text
	}
	return ""
}

// variableAnnotation recognises "target: T" and "target: T = value" where
// target is a name, attribute or subscript.
func variableAnnotation(stmt []Token) (Annotation, bool) {
	if stmt[0].Kind != Name || statementKeywords[stmt[0].Text] {
		return Annotation{}, false
	}
	colon := topLevel(stmt, 0, len(stmt), ":")
	if colon < 0 || colon+1 >= len(stmt) {
		return Annotation{}, false
	}
	if !assignable(stmt[:colon]) {
		return Annotation{}, false
	}
	eq := topLevel(stmt, colon+1, len(stmt), "=")
	if eq < 0 {
		eq = len(stmt)
	}
	ann := stmt[colon+1 : eq]
	if len(ann) == 0 {
		return Annotation{}, false
	}
	var target strings.Builder
	for _, t := range stmt[:colon] {
		target.WriteString(t.Text)
	}
	return Annotation{Kind: VariableAnnotation, Target: target.String(), Line: ann[0].Line, Col: ann[0].Col, Tokens: ann}, true
}

func assignable(toks []Token) bool {
	if len(toks) == 0 || toks[0].Kind != Name {
		return false
	}
	for i := 1; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.Kind == Op && t.Text == "." && i+1 < len(toks) && toks[i+1].Kind == Name:
			i++
		case t.Kind == Op && t.Text == "[":
			i = closing(toks, i)
		default:
			return false
		}
	}
	return true
}

// ForwardRefs returns the string tokens of an annotation that act as
// forward references. Literal[...] arguments and Annotated[...] metadata
// are values and are skipped.
func ForwardRefs(toks []Token) []Token {
	var out []Token
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind == Name && i+1 < len(toks) && toks[i+1].Kind == Op && toks[i+1].Text == "[" {
			switch t.Text {
			case "Literal":
				i = closing(toks, i+1)
				continue
			case "Annotated":
				end := closing(toks, i+1)
				first := topLevel(toks, i+2, end, ",")
				if first < 0 {
					first = end
				}
				out = append(out, ForwardRefs(toks[i+2:first])...)
				i = end
				continue
			}
		}
		if t.Kind == String {
			out = append(out, t)
		}
	}
	return out
}

package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrEncoding is returned for files that are not valid UTF-8.
var ErrEncoding = errors.New("source is not valid UTF-8")

// Stats classifies physical lines. A line holding code and an inline
// comment counts as code.
type Stats struct {
	Lines     int
	Blank     int
	Code      int
	Comment   int // full-line comments, directives excluded
	Docstring int
}

// SourceFile is a read-only view of one Python file and the facts the
// rules need.
type SourceFile struct {
	Path        string
	Lines       []string
	Logical     []Logical
	Comments    []Comment
	Imports     []Import
	Annotations []Annotation
	Stats       Stats

	statements   int
	suppressed   map[int]map[string]bool
	fileDisabled map[string]bool
}

// ParseFile reads and parses the file at path.
func ParseFile(path string) (*SourceFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(path, b)
}

// Parse builds a SourceFile from raw bytes.
func Parse(path string, src []byte) (*SourceFile, error) {
	if !utf8.Valid(src) {
		return nil, fmt.Errorf("%s: %w", path, ErrEncoding)
	}
	text := string(src)
	f := &SourceFile{
		Path:         path,
		Lines:        splitLines(text),
		suppressed:   map[int]map[string]bool{},
		fileDisabled: map[string]bool{},
	}
	f.Logical, f.Comments = Tokenize(text)
	for _, stmt := range Statements(f.Logical) {
		if im, ok := extractImport(stmt); ok {
			f.Imports = append(f.Imports, im)
		}
		f.Annotations = append(f.Annotations, extractAnnotations(stmt)...)
	}
	for _, c := range f.Comments {
		f.addPragma(c)
	}
	f.measure()
	return f, nil
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}

// IsStub reports whether the file is a type stub.
func (f *SourceFile) IsStub() bool {
	return strings.EqualFold(filepath.Ext(f.Path), ".pyi")
}

// HasStatements reports whether the file holds code beyond a docstring.
func (f *SourceFile) HasStatements() bool { return f.statements > 0 }

// Suppressed reports whether rule is disabled for line by a
// "# pyconform: disable=" comment on that line or a file-wide
// "# pyconform: disable-file=" comment.
func (f *SourceFile) Suppressed(rule string, line int) bool {
	rule = strings.ToLower(rule)
	if f.fileDisabled["all"] || f.fileDisabled[rule] {
		return true
	}
	ids := f.suppressed[line]
	return ids["all"] || ids[rule]
}

func (f *SourceFile) addPragma(c Comment) {
	body := strings.TrimSpace(strings.TrimPrefix(c.Text, "#"))
	rest, ok := strings.CutPrefix(body, "pyconform:")
	if !ok {
		return
	}
	rest = strings.TrimSpace(rest)
	target := f.suppressed[c.Line]
	switch {
	case strings.HasPrefix(rest, "disable-file="):
		rest = strings.TrimPrefix(rest, "disable-file=")
		target = f.fileDisabled
	case strings.HasPrefix(rest, "disable="):
		rest = strings.TrimPrefix(rest, "disable=")
		if target == nil {
			target = map[string]bool{}
			f.suppressed[c.Line] = target
		}
	default:
		return
	}
	for _, id := range strings.Split(rest, ",") {
		if id = strings.TrimSpace(id); id != "" {
			target[strings.ToLower(id)] = true
		}
	}
}

func (f *SourceFile) measure() {
	n := len(f.Lines)
	kind := make([]byte, n+2) // 'c' code, 'd' docstring, '#' comment
	for _, l := range f.Logical {
		doc := docstringOnly(l.Tokens)
		if !doc {
			f.statements++
		}
		for _, t := range l.Tokens {
			for ln := t.Line; ln <= t.EndLine && ln <= n; ln++ {
				if doc && kind[ln] != 'c' {
					kind[ln] = 'd'
				} else {
					kind[ln] = 'c'
				}
			}
		}
	}
	for _, c := range f.Comments {
		if !c.Inline && !c.Directive && c.Line <= n && kind[c.Line] == 0 {
			kind[c.Line] = '#'
		}
	}
	f.Stats.Lines = n
	for i := 1; i <= n; i++ {
		switch {
		case kind[i] == 'c':
			f.Stats.Code++
		case kind[i] == 'd':
			f.Stats.Docstring++
		case kind[i] == '#':
			f.Stats.Comment++
		case strings.TrimSpace(f.Lines[i-1]) == "":
			f.Stats.Blank++
		}
	}
}

// docstringOnly reports whether a logical line is a bare string expression.
func docstringOnly(toks []Token) bool {
	for _, t := range toks {
		if t.Kind != String {
			return false
		}
	}
	return len(toks) > 0
}

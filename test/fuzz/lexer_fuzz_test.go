package fuzz

import (
	"testing"

	"github.com/codewithboateng/pyconform/internal/parser"
	"github.com/codewithboateng/pyconform/internal/rules"
)

// Arbitrary input must never panic the lexer, the fact extraction or the
// rules, and every reported position must lie inside the file.
func FuzzParseNoPanic(f *testing.F) {
	seeds := []string{
		"from .x import y\n",
		"def f(a: \"A\" = 1, *args, **kw) -> 'B': ...\n",
		"x: Literal['a'] = 'a'\n",
		"s = '''unterminated\n",
		"if TYPE_CHECKING: from . import z; import os\n",
		"(((\n",
		"\\\n",
		"# only a comment\n",
		"\ufeffimport os\r\n",
	}
	for _, s := range seeds {
		f.Add([]byte(s))
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		src, err := parser.Parse("fuzz.py", data)
		if err != nil {
			return // invalid UTF-8
		}
		for _, v := range rules.EvaluateFile(src) {
			if v.Line < 1 || (len(src.Lines) > 0 && v.Line > len(src.Lines)) {
				t.Fatalf("violation %s at line %d outside %d lines", v.RuleID, v.Line, len(src.Lines))
			}
		}
	})
}

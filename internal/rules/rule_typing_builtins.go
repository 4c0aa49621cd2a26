package rules

import (
	"fmt"

	"github.com/codewithboateng/pyconform/internal/ir"
	"github.com/codewithboateng/pyconform/internal/parser"
)

const ruleTypingBuiltins = "typing-builtins"

var typingReplacements = map[string]string{
	"Dict":      "dict[K, V]",
	"List":      "list[T]",
	"Set":       "set[T]",
	"FrozenSet": "frozenset[T]",
	"Tuple":     "tuple[...]",
	"Type":      "type[T]",
	"Union":     "X | Y",
	"Optional":  "X | None",
}

func init() {
	Register(Rule{
		ID:       ruleTypingBuiltins,
		Summary:  "Use builtin generics and | unions instead of typing.Dict/List/Set/Union/Optional.",
		Severity: "LOW",
		Eval:     evalTypingBuiltins,
	})
}

func evalTypingBuiltins(src *parser.SourceFile) []ir.Violation {
	disallowed := make(map[string]bool, len(rsettings.DisallowedTyping))
	for _, n := range rsettings.DisallowedTyping {
		disallowed[n] = true
	}
	var out []ir.Violation
	for _, im := range src.Imports {
		if !im.From || im.Level != 0 || im.Module != "typing" {
			continue
		}
		for _, n := range im.Names {
			if !disallowed[n.Name] {
				continue
			}
			msg := fmt.Sprintf("typing.%s imported", n.Name)
			if repl, ok := typingReplacements[n.Name]; ok {
				msg += "; use " + repl + " instead"
			}
			out = append(out, ir.Violation{
				RuleID:   ruleTypingBuiltins,
				Line:     n.Line,
				Column:   n.Col,
				Message:  msg,
				Evidence: "from typing import " + n.Name,
			})
		}
	}
	return out
}

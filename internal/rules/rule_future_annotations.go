package rules

import (
	"github.com/codewithboateng/pyconform/internal/ir"
	"github.com/codewithboateng/pyconform/internal/parser"
)

const ruleFutureAnnotations = "future-annotations"

func init() {
	Register(Rule{
		ID:       ruleFutureAnnotations,
		Summary:  "Modules must start with `from __future__ import annotations`.",
		Severity: "MEDIUM",
		Eval:     evalFutureAnnotations,
	})
}

// Stubs and files without statements are exempt.
func evalFutureAnnotations(src *parser.SourceFile) []ir.Violation {
	if src.IsStub() || !src.HasStatements() {
		return nil
	}
	for _, im := range src.Imports {
		if !im.From || im.Level != 0 || im.Module != "__future__" {
			continue
		}
		for _, n := range im.Names {
			if n.Name == "annotations" {
				return nil
			}
		}
	}
	return []ir.Violation{{
		RuleID:   ruleFutureAnnotations,
		Line:     1,
		Column:   1,
		Message:  "missing `from __future__ import annotations`",
		Evidence: "from __future__ import annotations",
	}}
}

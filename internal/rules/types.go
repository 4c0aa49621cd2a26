package rules

import (
	"github.com/codewithboateng/pyconform/internal/ir"
	"github.com/codewithboateng/pyconform/internal/parser"
)

// Rule represents a single convention checked over a source file.
type Rule struct {
	ID       string
	Summary  string
	Severity string // default severity of its violations
	// Eval inspects the file and returns one violation per failed check.
	// It must not mutate the file.
	Eval func(src *parser.SourceFile) []ir.Violation
}

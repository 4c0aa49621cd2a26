package rules

import (
	"fmt"
	"strings"

	"github.com/codewithboateng/pyconform/internal/ir"
	"github.com/codewithboateng/pyconform/internal/parser"
)

const ruleAbsoluteImports = "absolute-imports"

func init() {
	Register(Rule{
		ID:       ruleAbsoluteImports,
		Summary:  "Imports must be absolute; relative imports are not allowed.",
		Severity: "MEDIUM",
		Eval:     evalAbsoluteImports,
	})
}

func evalAbsoluteImports(src *parser.SourceFile) []ir.Violation {
	var out []ir.Violation
	for _, im := range src.Imports {
		if !im.Relative() {
			continue
		}
		out = append(out, ir.Violation{
			RuleID:   ruleAbsoluteImports,
			Line:     im.Line,
			Column:   im.Col,
			Message:  fmt.Sprintf("relative import from %q; import from the absolute module path instead", strings.Repeat(".", im.Level)+im.Module),
			Evidence: importText(im),
		})
	}
	return out
}

func importText(im parser.Import) string {
	names := make([]string, 0, len(im.Names))
	for _, n := range im.Names {
		if n.Alias != "" {
			names = append(names, n.Name+" as "+n.Alias)
		} else {
			names = append(names, n.Name)
		}
	}
	if !im.From {
		return "import " + strings.Join(names, ", ")
	}
	return "from " + strings.Repeat(".", im.Level) + im.Module + " import " + strings.Join(names, ", ")
}

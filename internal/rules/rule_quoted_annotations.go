package rules

import (
	"fmt"

	"github.com/codewithboateng/pyconform/internal/ir"
	"github.com/codewithboateng/pyconform/internal/parser"
)

const ruleQuotedAnnotations = "quoted-annotations"

func init() {
	Register(Rule{
		ID:       ruleQuotedAnnotations,
		Summary:  "Annotations must not quote forward references; postponed evaluation makes them unnecessary.",
		Severity: "LOW",
		Eval:     evalQuotedAnnotations,
	})
}

func evalQuotedAnnotations(src *parser.SourceFile) []ir.Violation {
	var out []ir.Violation
	for _, a := range src.Annotations {
		refs := parser.ForwardRefs(a.Tokens)
		if len(refs) == 0 {
			continue
		}
		out = append(out, ir.Violation{
			RuleID:   ruleQuotedAnnotations,
			Line:     refs[0].Line,
			Column:   refs[0].Col,
			Message:  fmt.Sprintf("%s annotation of %s quotes %s; drop the quotes", a.Kind, a.Target, refs[0].Text),
			Evidence: a.Text(),
		})
	}
	return out
}

package rules

import (
	"fmt"

	"github.com/codewithboateng/pyconform/internal/ir"
	"github.com/codewithboateng/pyconform/internal/parser"
)

const ruleCommentDensity = "comment-density"

func init() {
	Register(Rule{
		ID:       ruleCommentDensity,
		Summary:  "Comments should be sparse; prefer clear names and docstrings over line-by-line narration.",
		Severity: "LOW",
		Eval:     evalCommentDensity,
	})
}

func evalCommentDensity(src *parser.SourceFile) []ir.Violation {
	st := src.Stats
	if st.Code < rsettings.MinCodeLines || st.Comment == 0 {
		return nil
	}
	ratio := float64(st.Comment) / float64(st.Code)
	if ratio <= rsettings.MaxCommentRatio {
		return nil
	}
	line, col := 1, 1
	for _, c := range src.Comments {
		if !c.Inline && !c.Directive {
			line, col = c.Line, c.Col
			break
		}
	}
	return []ir.Violation{{
		RuleID: ruleCommentDensity,
		Line:   line,
		Column: col,
		Message: fmt.Sprintf("%d comment lines for %d code lines (%.0f%%) exceeds the %.0f%% limit",
			st.Comment, st.Code, ratio*100, rsettings.MaxCommentRatio*100),
		Evidence: fmt.Sprintf("ratio=%.2f", ratio),
	}}
}

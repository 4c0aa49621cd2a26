package stats

import (
	"sort"

	"github.com/codewithboateng/pyconform/internal/ir"
	"github.com/codewithboateng/pyconform/internal/parser"
)

// Summarize builds the per-file record stored in a run.
func Summarize(src *parser.SourceFile, violations int) ir.FileResult {
	return ir.FileResult{
		Path:         src.Path,
		Lines:        src.Stats.Lines,
		CodeLines:    src.Stats.Code,
		CommentLines: src.Stats.Comment,
		Violations:   violations,
	}
}

type Totals struct {
	Files          int
	CleanFiles     int
	Lines          int
	CodeLines      int
	CommentLines   int
	Violations     int
	CommentRatio   float64
	BySeverity     map[string]int
	ByRule         []RuleCount
	WorstOffenders []ir.FileResult
}

type RuleCount struct {
	RuleID string
	Count  int
}

// Compute aggregates a run. ByRule is ordered by count, then rule ID;
// WorstOffenders holds up to limit files with the most violations.
func Compute(run *ir.Run, limit int) Totals {
	t := Totals{BySeverity: map[string]int{}}
	for _, f := range run.Files {
		t.Files++
		t.Lines += f.Lines
		t.CodeLines += f.CodeLines
		t.CommentLines += f.CommentLines
		if f.Violations == 0 {
			t.CleanFiles++
		}
	}
	if t.CodeLines > 0 {
		t.CommentRatio = float64(t.CommentLines) / float64(t.CodeLines)
	}
	for _, v := range run.Violations {
		t.Violations++
		t.BySeverity[v.Severity]++
	}
	for id, n := range run.Counts() {
		t.ByRule = append(t.ByRule, RuleCount{RuleID: id, Count: n})
	}
	sort.Slice(t.ByRule, func(i, j int) bool {
		if t.ByRule[i].Count == t.ByRule[j].Count {
			return t.ByRule[i].RuleID < t.ByRule[j].RuleID
		}
		return t.ByRule[i].Count > t.ByRule[j].Count
	})

	offenders := make([]ir.FileResult, 0, len(run.Files))
	for _, f := range run.Files {
		if f.Violations > 0 {
			offenders = append(offenders, f)
		}
	}
	sort.Slice(offenders, func(i, j int) bool {
		if offenders[i].Violations == offenders[j].Violations {
			return offenders[i].Path < offenders[j].Path
		}
		return offenders[i].Violations > offenders[j].Violations
	})
	if limit > 0 && len(offenders) > limit {
		offenders = offenders[:limit]
	}
	t.WorstOffenders = offenders
	return t
}

package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewithboateng/pyconform/internal/ir"
	"github.com/codewithboateng/pyconform/internal/parser"
)

func TestSummarize(t *testing.T) {
	src, err := parser.Parse("m.py", []byte("# header\nimport os\n\nx = 1  # inline\n"))
	require.NoError(t, err)
	fr := Summarize(src, 3)
	assert.Equal(t, ir.FileResult{Path: "m.py", Lines: 4, CodeLines: 2, CommentLines: 1, Violations: 3}, fr)
}

func TestCompute(t *testing.T) {
	run := &ir.Run{
		Files: []ir.FileResult{
			{Path: "a.py", CodeLines: 10, CommentLines: 2, Violations: 2},
			{Path: "b.py", CodeLines: 10, CommentLines: 0, Violations: 0},
			{Path: "c.py", CodeLines: 20, CommentLines: 2, Violations: 2},
			{Path: "d.py", CodeLines: 5, Violations: 1},
		},
		Violations: []ir.Violation{
			{RuleID: "typing-builtins", Severity: "LOW"},
			{RuleID: "typing-builtins", Severity: "LOW"},
			{RuleID: "absolute-imports", Severity: "MEDIUM"},
			{RuleID: "absolute-imports", Severity: "MEDIUM"},
			{RuleID: "comment-density", Severity: "LOW"},
		},
	}
	tot := Compute(run, 2)

	assert.Equal(t, 4, tot.Files)
	assert.Equal(t, 1, tot.CleanFiles)
	assert.Equal(t, 45, tot.CodeLines)
	assert.InDelta(t, 4.0/45.0, tot.CommentRatio, 1e-9)
	assert.Equal(t, map[string]int{"LOW": 3, "MEDIUM": 2}, tot.BySeverity)
	assert.Equal(t, []RuleCount{
		{RuleID: "absolute-imports", Count: 2},
		{RuleID: "typing-builtins", Count: 2},
		{RuleID: "comment-density", Count: 1},
	}, tot.ByRule)
	require.Len(t, tot.WorstOffenders, 2)
	assert.Equal(t, "a.py", tot.WorstOffenders[0].Path)
	assert.Equal(t, "c.py", tot.WorstOffenders[1].Path)
}

func TestCompute_Empty(t *testing.T) {
	tot := Compute(&ir.Run{}, 0)
	assert.Zero(t, tot.Files)
	assert.Zero(t, tot.CommentRatio)
	assert.Empty(t, tot.ByRule)
	assert.Empty(t, tot.WorstOffenders)
}

package golden

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/codewithboateng/pyconform/internal/ir"
	"github.com/codewithboateng/pyconform/internal/parser"
	"github.com/codewithboateng/pyconform/internal/reporting"
	"github.com/codewithboateng/pyconform/internal/rules"
	"github.com/codewithboateng/pyconform/internal/stats"
)

const modelsPy = `from typing import Dict, Optional
from .base import Model


def load(name: "Model") -> Optional[Dict[str, int]]:
    return None
`

const cleanPy = `from __future__ import annotations


def add(a: int, b: int) -> int:
    return a + b
`

// buildRun evaluates fixed sources in memory so paths and IDs are stable.
func buildRun(t *testing.T, files map[string]string, order []string) ir.Run {
	t.Helper()
	rules.SetSettings(rules.Settings{SeverityThreshold: "LOW"})

	run := ir.Run{ID: "run-golden", SchemaVersion: ir.Version}
	var all []ir.Violation
	for _, path := range order {
		src, err := parser.Parse(path, []byte(files[path]))
		if err != nil {
			t.Fatalf("parse %s: %v", path, err)
		}
		vs := rules.EvaluateFile(src)
		run.Files = append(run.Files, stats.Summarize(src, len(vs)))
		all = append(all, vs...)
	}
	run.Violations = rules.Finalize(all)
	return run
}

func sampleRun(t *testing.T) ir.Run {
	return buildRun(t,
		map[string]string{"pkg/models.py": modelsPy, "pkg/clean.py": cleanPy},
		[]string{"pkg/clean.py", "pkg/models.py"})
}

func TestGolden_TextReport(t *testing.T) {
	run := sampleRun(t)
	var buf bytes.Buffer
	if err := reporting.WriteText(&buf, &run, false); err != nil {
		t.Fatalf("write text: %v", err)
	}
	g := goldie.New(t)
	g.Assert(t, "report_text", buf.Bytes())
}

func TestGolden_JSONLReport(t *testing.T) {
	run := sampleRun(t)
	var buf bytes.Buffer
	if err := reporting.WriteJSONL(&buf, run.Violations); err != nil {
		t.Fatalf("write jsonl: %v", err)
	}
	g := goldie.New(t)
	g.Assert(t, "report_jsonl", buf.Bytes())
}

func TestGolden_SeverityThresholdDropsLow(t *testing.T) {
	low := sampleRun(t)

	rules.SetSettings(rules.Settings{SeverityThreshold: "MEDIUM"})
	defer rules.SetSettings(rules.Settings{})
	src, err := parser.Parse("pkg/models.py", []byte(modelsPy))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	med := rules.Finalize(rules.EvaluateFile(src))

	if len(med) >= len(low.Violations) {
		t.Fatalf("expected MEDIUM to report fewer violations than LOW; got MEDIUM=%d LOW=%d", len(med), len(low.Violations))
	}
	for _, v := range med {
		if v.Severity == "LOW" {
			t.Fatalf("LOW violation %s survived a MEDIUM threshold", v.ID)
		}
	}
}

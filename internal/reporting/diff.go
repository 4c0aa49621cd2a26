package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codewithboateng/pyconform/internal/ir"
)

type DiffResult struct {
	BaseID  string        `json:"base_id"`
	HeadID  string        `json:"head_id"`
	Summary DiffSummary   `json:"summary"`
	New     []DiffEntry   `json:"new"`
	Removed []DiffEntry   `json:"removed"`
	Changed []DiffChanged `json:"changed"`
}

type DiffSummary struct {
	NewCount     int `json:"new"`
	RemovedCount int `json:"removed"`
	ChangedCount int `json:"changed"`
}

type DiffEntry struct {
	RuleID   string `json:"rule_id"`
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Severity string `json:"severity,omitempty"`
	Message  string `json:"message,omitempty"`
	Evidence string `json:"evidence,omitempty"`
}

type DiffChanged struct {
	Key     string    `json:"key"`
	Base    DiffEntry `json:"base"`
	Head    DiffEntry `json:"head"`
	Changed []string  `json:"fields_changed"`
}

// Diff matches violations of two runs by rule, path and evidence. Line
// numbers are not part of the identity, so code moving within a file
// shows up as a changed line rather than a new violation.
func Diff(base, head *ir.Run) DiffResult {
	bm := index(base.Violations)
	hm := index(head.Violations)

	res := DiffResult{BaseID: base.ID, HeadID: head.ID}
	for k, hv := range hm {
		bv, ok := bm[k]
		if !ok {
			res.New = append(res.New, asEntry(hv))
			continue
		}
		var fields []string
		if norm(bv.Severity) != norm(hv.Severity) {
			fields = append(fields, "severity")
		}
		if strings.TrimSpace(bv.Message) != strings.TrimSpace(hv.Message) {
			fields = append(fields, "message")
		}
		if bv.Line != hv.Line {
			fields = append(fields, "line")
		}
		if len(fields) > 0 {
			res.Changed = append(res.Changed, DiffChanged{Key: k, Base: asEntry(bv), Head: asEntry(hv), Changed: fields})
		}
	}
	for k, bv := range bm {
		if _, ok := hm[k]; !ok {
			res.Removed = append(res.Removed, asEntry(bv))
		}
	}

	sortEntries(res.New)
	sortEntries(res.Removed)
	sort.Slice(res.Changed, func(i, j int) bool { return res.Changed[i].Key < res.Changed[j].Key })
	res.Summary = DiffSummary{
		NewCount:     len(res.New),
		RemovedCount: len(res.Removed),
		ChangedCount: len(res.Changed),
	}
	return res
}

// WriteDiffJSON writes the diff of two runs to
// <outDir>/diff_<base>__<head>.json.
func WriteDiffJSON(outDir string, base, head *ir.Run) (string, DiffResult, error) {
	res := Diff(base, head)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", res, err
	}
	path := filepath.Join(outDir, "diff_"+base.ID+"__"+head.ID+".json")
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", res, err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", res, fmt.Errorf("write %s: %w", path, err)
	}
	return path, res, nil
}

// index keys violations; repeated keys within a run get an occurrence
// suffix in line order.
func index(vs []ir.Violation) map[string]ir.Violation {
	out := make(map[string]ir.Violation, len(vs))
	seen := map[string]int{}
	for _, v := range vs {
		k := keyOf(v)
		n := seen[k]
		seen[k] = n + 1
		if n > 0 {
			k = fmt.Sprintf("%s#%d", k, n)
		}
		out[k] = v
	}
	return out
}

func keyOf(v ir.Violation) string {
	return strings.ToLower(strings.TrimSpace(v.RuleID)) + "|" +
		strings.ReplaceAll(v.Path, "\\", "/") + "|" +
		strings.TrimSpace(v.Evidence)
}

func asEntry(v ir.Violation) DiffEntry {
	return DiffEntry{
		RuleID:   v.RuleID,
		Path:     v.Path,
		Line:     v.Line,
		Severity: v.Severity,
		Message:  v.Message,
		Evidence: v.Evidence,
	}
}

func sortEntries(es []DiffEntry) {
	sort.Slice(es, func(i, j int) bool {
		a, b := es[i], es[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.RuleID < b.RuleID
	})
}

func norm(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

package reporting

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"

	"github.com/codewithboateng/pyconform/internal/ir"
	"github.com/codewithboateng/pyconform/internal/stats"
)

const topOffenders = 20

func WriteHTML(runID, outDir string, run *ir.Run) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, runID+".html")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	RenderHTML(bw, run)
	if err := bw.Flush(); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// RenderHTML writes a self-contained HTML page for the run. All
// user-controlled text is escaped.
func RenderHTML(w io.Writer, run *ir.Run) {
	t := stats.Compute(run, topOffenders)
	esc := html.EscapeString

	fmt.Fprintf(w, "<!doctype html><html><head><meta charset='utf-8'><title>%s</title>", esc(run.ID))
	fmt.Fprint(w, "<style>body{font-family:system-ui,Arial,sans-serif;padding:20px;line-height:1.4} table{border-collapse:collapse;margin:8px 0} td,th{border:1px solid #ddd;padding:6px} h1,h2{margin:6px 0 4px} .dim{color:#666} .mono{font-family:ui-monospace,Menlo,Consolas,monospace}</style>")
	fmt.Fprint(w, "</head><body>")

	fmt.Fprintf(w, "<h1>pyconform report <span class='mono'>%s</span></h1>", esc(run.ID))
	fmt.Fprintf(w, "<p>Files: %d (%d clean) &nbsp; Violations: %d &nbsp; Code lines: %d &nbsp; Comment ratio: %.2f</p>",
		t.Files, t.CleanFiles, t.Violations, t.CodeLines, t.CommentRatio)
	fmt.Fprintf(w, "<p class='dim'>Severity threshold: %s", esc(run.Context.SeverityThreshold))
	if n := len(run.Context.DisabledRules); n > 0 {
		fmt.Fprintf(w, " &nbsp; Disabled rules: %d", n)
	}
	if run.Context.Waived > 0 {
		fmt.Fprintf(w, " &nbsp; Waived: %d", run.Context.Waived)
	}
	fmt.Fprint(w, "</p>")

	if len(t.ByRule) > 0 {
		fmt.Fprint(w, "<h2>By Rule</h2><table><tr><th>Rule</th><th>Violations</th></tr>")
		for _, rc := range t.ByRule {
			fmt.Fprintf(w, "<tr><td class='mono'>%s</td><td>%d</td></tr>", esc(rc.RuleID), rc.Count)
		}
		fmt.Fprint(w, "</table>")
	}

	if len(t.WorstOffenders) > 0 {
		fmt.Fprint(w, "<h2>Top Offenders</h2><table><tr><th>File</th><th>Violations</th><th>Code lines</th><th>Comment lines</th></tr>")
		for _, f := range t.WorstOffenders {
			fmt.Fprintf(w, "<tr><td class='mono'>%s</td><td>%d</td><td>%d</td><td>%d</td></tr>",
				esc(f.Path), f.Violations, f.CodeLines, f.CommentLines)
		}
		fmt.Fprint(w, "</table>")
	}

	fmt.Fprint(w, "<h2>All Violations</h2>")
	if len(run.Violations) == 0 {
		fmt.Fprint(w, "<p class='dim'>No violations at or above the configured threshold.</p>")
	} else {
		fmt.Fprint(w, "<table><tr><th>Severity</th><th>Rule</th><th>Location</th><th>Message</th><th>Evidence</th></tr>")
		for _, v := range run.Violations {
			fmt.Fprintf(w, "<tr><td>%s</td><td class='mono'>%s</td><td class='mono'>%s:%d:%d</td><td>%s</td><td class='mono'>%s</td></tr>",
				esc(v.Severity), esc(v.RuleID), esc(v.Path), v.Line, v.Column, esc(v.Message), esc(v.Evidence))
		}
		fmt.Fprint(w, "</table>")
	}

	if len(run.Warnings) > 0 {
		fmt.Fprint(w, "<h2>Warnings</h2><ul>")
		for _, msg := range run.Warnings {
			fmt.Fprintf(w, "<li>%s</li>", esc(msg))
		}
		fmt.Fprint(w, "</ul>")
	}
	fmt.Fprint(w, "</body></html>")
}

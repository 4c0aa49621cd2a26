package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/codewithboateng/pyconform/internal/ir"
)

type paint func(string) string

type textStyles struct {
	path, high, medium, low, rule, dim, ok paint
}

func newTextStyles(w io.Writer, color bool) textStyles {
	if !color {
		plain := func(s string) string { return s }
		return textStyles{plain, plain, plain, plain, plain, plain, plain}
	}
	r := lipgloss.NewRenderer(w)
	return textStyles{
		path:   styled(r.NewStyle().Bold(true).Underline(true)),
		high:   styled(r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)),
		medium: styled(r.NewStyle().Foreground(lipgloss.Color("214"))),
		low:    styled(r.NewStyle().Foreground(lipgloss.Color("39"))),
		rule:   styled(r.NewStyle().Foreground(lipgloss.Color("245"))),
		dim:    styled(r.NewStyle().Faint(true)),
		ok:     styled(r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)),
	}
}

func styled(st lipgloss.Style) paint {
	return func(s string) string { return st.Render(s) }
}

func (s textStyles) severity(sev string) paint {
	switch strings.ToUpper(sev) {
	case "HIGH":
		return s.high
	case "MEDIUM":
		return s.medium
	default:
		return s.low
	}
}

// WriteText prints violations grouped by file as
// "path:line:col: [SEVERITY] rule-id message" followed by a summary.
// With color set, styling follows the capabilities of w; a writer that is
// not a terminal receives plain text.
func WriteText(w io.Writer, run *ir.Run, color bool) error {
	st := newTextStyles(w, color)
	var b strings.Builder

	last := ""
	for _, v := range run.Violations {
		if v.Path != last {
			if last != "" {
				b.WriteByte('\n')
			}
			b.WriteString(st.path(v.Path))
			b.WriteByte('\n')
			last = v.Path
		}
		fmt.Fprintf(&b, "%s:%d:%d: %s %s %s\n",
			v.Path, v.Line, v.Column,
			st.severity(v.Severity)("["+v.Severity+"]"),
			st.rule(v.RuleID),
			v.Message)
	}
	if len(run.Violations) > 0 {
		b.WriteByte('\n')
	}
	for _, msg := range run.Warnings {
		b.WriteString(st.dim("warning: " + msg))
		b.WriteByte('\n')
	}
	b.WriteString(summaryLine(run, st))
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

func summaryLine(run *ir.Run, st textStyles) string {
	files := len(run.Files)
	if len(run.Violations) == 0 {
		return st.ok(fmt.Sprintf("no violations in %d %s", files, plural(files, "file")))
	}
	bySev := map[string]int{}
	affected := map[string]struct{}{}
	for _, v := range run.Violations {
		bySev[strings.ToUpper(v.Severity)]++
		affected[v.Path] = struct{}{}
	}
	var parts []string
	for _, sev := range []string{"HIGH", "MEDIUM", "LOW"} {
		if n := bySev[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	n := len(run.Violations)
	out := fmt.Sprintf("%d %s (%s) in %d of %d %s",
		n, plural(n, "violation"), strings.Join(parts, ", "), len(affected), files, plural(files, "file"))
	if run.Context.Waived > 0 {
		out += fmt.Sprintf("; %d waived", run.Context.Waived)
	}
	return st.severity(worst(bySev))(out)
}

func worst(bySev map[string]int) string {
	for _, sev := range []string{"HIGH", "MEDIUM"} {
		if bySev[sev] > 0 {
			return sev
		}
	}
	return "LOW"
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

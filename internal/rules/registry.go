package rules

import (
	"fmt"
	"hash/crc32"
	"sort"

	"github.com/codewithboateng/pyconform/internal/ir"
	"github.com/codewithboateng/pyconform/internal/parser"
)

var (
	registry  []Rule
	ruleIndex = map[string]int{} // lower(ruleID) -> index
)

// Register adds r to the rule table. Registering an ID twice replaces the
// earlier rule. Registration happens before scanning starts; the table is
// read-only while files are evaluated.
func Register(r Rule) {
	key := normID(r.ID)
	if i, ok := ruleIndex[key]; ok {
		registry[i] = r
		return
	}
	registry = append(registry, r)
	ruleIndex[key] = len(registry) - 1
}

// List returns the enabled rules ordered by ID.
func List() []Rule {
	out := make([]Rule, 0, len(registry))
	for _, r := range registry {
		if rsettings.Disabled[normID(r.ID)] {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// All returns every registered rule, including disabled ones, ordered by ID.
func All() []Rule {
	out := append([]Rule(nil), registry...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a rule by ID if registered.
func Get(id string) (Rule, bool) {
	idx, ok := ruleIndex[normID(id)]
	if !ok || idx < 0 || idx >= len(registry) {
		return Rule{}, false
	}
	return registry[idx], true
}

// EvaluateFile runs every enabled rule over src. Violations below the
// severity threshold or suppressed by a pyconform pragma are dropped.
// It is safe to call concurrently for different files.
func EvaluateFile(src *parser.SourceFile) []ir.Violation {
	var out []ir.Violation
	for _, rule := range List() {
		for _, v := range rule.Eval(src) {
			if v.RuleID == "" {
				v.RuleID = rule.ID
			}
			if v.Path == "" {
				v.Path = src.Path
			}
			if v.Severity == "" {
				v.Severity = rule.Severity
			}
			if !severityOK(v.Severity) || src.Suppressed(v.RuleID, v.Line) {
				continue
			}
			out = append(out, v)
		}
	}
	return out
}

// Finalize orders violations by path, line, column and rule, and assigns
// each a stable ID unique within the run.
func Finalize(vs []ir.Violation) []ir.Violation {
	sort.SliceStable(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.RuleID < b.RuleID
	})

	seen := make(map[string]struct{}, len(vs))
	for i := range vs {
		for idx := 0; ; idx++ {
			id := makeID(vs[i].RuleID, vs[i].Path, vs[i].Evidence, vs[i].Line, idx)
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				vs[i].ID = id
				break
			}
		}
	}
	return vs
}

func makeID(ruleID, path, evidence string, line, idx int) string {
	data := fmt.Sprintf("%s|%s|%d|%s|%d", ruleID, path, line, evidence, idx)
	sum := crc32.ChecksumIEEE([]byte(data))
	return fmt.Sprintf("%s-%08x", ruleID, sum)
}

package rules

import (
	"path/filepath"
	"strings"

	"github.com/codewithboateng/pyconform/internal/ir"
	"github.com/codewithboateng/pyconform/internal/storage"
)

// ApplyWaivers filters out violations that match any active waiver.
// Returns (kept, waivedCount)
func ApplyWaivers(in []ir.Violation, waivers []storage.Waiver) ([]ir.Violation, int) {
	if len(waivers) == 0 || len(in) == 0 {
		return in, 0
	}
	var out []ir.Violation
	waived := 0
nextViolation:
	for _, v := range in {
		for _, w := range waivers {
			if !eqCI(v.RuleID, w.RuleID) {
				continue
			}
			if w.PathGlob != "" && !pathMatches(w.PathGlob, v.Path) {
				continue
			}
			if w.PatternSub != "" {
				ps := strings.ToUpper(w.PatternSub)
				if !strings.Contains(strings.ToUpper(v.Evidence), ps) &&
					!strings.Contains(strings.ToUpper(v.Message), ps) {
					continue
				}
			}
			// matched → waive it
			waived++
			continue nextViolation
		}
		out = append(out, v)
	}
	return out, waived
}

// pathMatches tries the glob against the whole slash path and against
// the base name.
func pathMatches(glob, path string) bool {
	path = filepath.ToSlash(path)
	if ok, _ := filepath.Match(glob, path); ok {
		return true
	}
	ok, _ := filepath.Match(glob, filepath.Base(path))
	return ok
}

func eqCI(a, b string) bool { return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) }

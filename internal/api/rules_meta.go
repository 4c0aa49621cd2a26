package api

import (
	"net/http"

	"github.com/codewithboateng/pyconform/internal/rules"
)

type ruleMeta struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	Severity string `json:"severity"`
	Enabled  bool   `json:"enabled"`
}

// GET /api/v1/rules lists every registered rule, disabled ones included.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	enabled := map[string]bool{}
	for _, rr := range rules.List() {
		enabled[rr.ID] = true
	}
	all := rules.All()
	out := make([]ruleMeta, 0, len(all))
	for _, rr := range all {
		out = append(out, ruleMeta{ID: rr.ID, Summary: rr.Summary, Severity: rr.Severity, Enabled: enabled[rr.ID]})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":     out,
		"count":     len(out),
		"threshold": rules.CurrentSettings().SeverityThreshold,
	})
}

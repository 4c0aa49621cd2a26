package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/codewithboateng/pyconform/internal/rules"
	"github.com/codewithboateng/pyconform/internal/storage"
)

type waiverCreateReq struct {
	RuleID     string `json:"rule_id"`
	PathGlob   string `json:"path_glob,omitempty"`
	PatternSub string `json:"pattern_sub,omitempty"`
	Reason     string `json:"reason"`
	ExpiresAt  string `json:"expires_at"` // RFC3339
}

func (s *Server) handleListWaivers(w http.ResponseWriter, r *http.Request) {
	active := r.URL.Query().Get("active")
	only := active == "1" || active == "true" || active == "yes"
	ws, err := s.DB.ListWaivers(only)
	if err != nil {
		s.dbErr(w, err)
		return
	}
	if ws == nil {
		ws = []storage.Waiver{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": ws, "active_only": only})
}

func (s *Server) handleCreateWaiver(w http.ResponseWriter, r *http.Request) {
	var in waiverCreateReq
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.err(w, http.StatusBadRequest, "invalid json")
		return
	}
	if in.RuleID == "" || in.Reason == "" || in.ExpiresAt == "" {
		s.err(w, http.StatusBadRequest, "rule_id, reason, expires_at required")
		return
	}
	if _, ok := rules.Get(in.RuleID); !ok {
		s.err(w, http.StatusBadRequest, "unknown rule_id")
		return
	}
	if in.PathGlob != "" {
		if _, err := filepath.Match(in.PathGlob, ""); err != nil {
			s.err(w, http.StatusBadRequest, "bad path_glob")
			return
		}
	}
	exp, err := time.Parse(time.RFC3339, in.ExpiresAt)
	if err != nil {
		s.err(w, http.StatusBadRequest, "bad expires_at (use RFC3339)")
		return
	}
	if !exp.After(time.Now()) {
		s.err(w, http.StatusBadRequest, "expires_at must be in the future")
		return
	}
	u, _ := userFromCtx(r.Context())
	id, err := s.DB.CreateWaiver(in.RuleID, in.PathGlob, in.PatternSub, in.Reason, u.Username, exp)
	if err != nil {
		s.dbErr(w, err)
		return
	}
	_ = s.UserStore.LogAudit(u.Username, "waiver:create", "", map[string]any{"id": id, "rule": in.RuleID})
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleRevokeWaiver(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.err(w, http.StatusBadRequest, "invalid id")
		return
	}
	u, _ := userFromCtx(r.Context())
	if err := s.DB.RevokeWaiver(id, u.Username); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.err(w, http.StatusNotFound, "waiver not found or already revoked")
			return
		}
		s.dbErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

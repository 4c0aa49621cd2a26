package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/codewithboateng/pyconform/internal/ir"
	"github.com/codewithboateng/pyconform/internal/storage"
)

// Store is the minimal contract the API needs.
type Store interface {
	ListRuns(limit, offset int) ([]storage.RunRow, error)
	LoadRun(id string) (ir.Run, error)
	LoadLatestRun() (ir.Run, error)
	ListViolations(runID, minSeverity string) ([]ir.Violation, error)
	HasRun(id string) (bool, error)

	ListWaivers(activeOnly bool) ([]storage.Waiver, error)
	CreateWaiver(ruleID, pathGlob, pattern, reason, createdBy string, expires time.Time) (int64, error)
	RevokeWaiver(id int64, by string) error
}

// UserStore is the auth/audit contract the API uses.
type UserStore interface {
	GetUserByUsername(string) (storage.User, string, error)
	CreateSession(int64, string, time.Time) error
	GetSession(string) (storage.User, error)
	DeleteSession(string) error
	LogAudit(username, action, resource string, meta map[string]any) error
}

type Server struct {
	DB              Store
	UserStore       UserStore
	Logger          *slog.Logger
	AllowedOrigins  []string
	SessionDuration time.Duration
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	cors := s.withCORS

	mux.HandleFunc("GET /api/v1/health", cors(s.handleHealth))

	mux.HandleFunc("POST /api/v1/auth/login", cors(s.handleLogin))
	mux.HandleFunc("POST /api/v1/auth/logout", cors(withAuth(s, s.handleLogout, "auth:logout")))
	mux.HandleFunc("GET /api/v1/me", cors(withAuth(s, s.handleMe, "me")))

	mux.HandleFunc("GET /api/v1/runs", cors(s.handleListRuns))
	mux.HandleFunc("GET /api/v1/runs/latest", cors(s.handleGetLatest))
	mux.HandleFunc("GET /api/v1/runs/{id}", cors(s.handleGetRun))
	mux.HandleFunc("GET /api/v1/runs/{id}/violations", cors(s.handleListViolations))

	mux.HandleFunc("GET /api/v1/rules", cors(s.handleRules))

	mux.HandleFunc("GET /api/v1/waivers", cors(withAuth(s, s.handleListWaivers, "waivers:list")))
	mux.HandleFunc("POST /api/v1/waivers", cors(withAdmin(s, s.handleCreateWaiver, "waivers:create")))
	mux.HandleFunc("POST /api/v1/waivers/{id}/revoke", cors(withAdmin(s, s.handleRevokeWaiver, "waivers:revoke")))

	mux.HandleFunc("/", cors(func(w http.ResponseWriter, r *http.Request) {
		s.err(w, http.StatusNotFound, "not found")
	}))
	return withRequestLog(s.logger(), mux)
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := clamp(parseInt(q.Get("limit"), 20), 1, 200)
	offset := max(parseInt(q.Get("offset"), 0), 0)

	rows, err := s.DB.ListRuns(limit, offset)
	if err != nil {
		s.dbErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": rows, "limit": limit, "offset": offset,
	})
}

func (s *Server) handleGetLatest(w http.ResponseWriter, r *http.Request) {
	run, err := s.DB.LoadLatestRun()
	if errors.Is(err, storage.ErrNotFound) {
		s.err(w, http.StatusNotFound, "no runs")
		return
	}
	if err != nil {
		s.dbErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.DB.LoadRun(r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		s.err(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.dbErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListViolations(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	minSev := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("min_severity")))
	switch minSev {
	case "":
		minSev = "LOW"
	case "LOW", "MEDIUM", "HIGH":
	default:
		s.err(w, http.StatusBadRequest, "min_severity must be LOW, MEDIUM or HIGH")
		return
	}
	ok, err := s.DB.HasRun(id)
	if err != nil {
		s.dbErr(w, err)
		return
	}
	if !ok {
		s.err(w, http.StatusNotFound, "run not found")
		return
	}
	items, err := s.DB.ListViolations(id, minSev)
	if err != nil {
		s.dbErr(w, err)
		return
	}
	if items == nil {
		items = []ir.Violation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": id, "min_severity": minSev, "items": items, "count": len(items),
	})
}

func (s *Server) err(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func (s *Server) dbErr(w http.ResponseWriter, err error) {
	s.logger().Error("store error", "err", err)
	s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

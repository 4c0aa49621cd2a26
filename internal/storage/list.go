package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/codewithboateng/pyconform/internal/ir"
)

// ListRuns returns a lightweight list of runs with counts.
func (db *DB) ListRuns(limit, offset int) ([]RunRow, error) {
	const q = `
		SELECT r.id, r.started_at, r.source, r.schema_version,
		       (SELECT COUNT(1) FROM violations v WHERE v.run_id = r.id) AS violations
		  FROM runs r
		 ORDER BY r.started_at DESC, r.id DESC
		 LIMIT ? OFFSET ?`
	rows, err := db.conn.Query(q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var rr RunRow
		var startedAtStr string
		if err := rows.Scan(&rr.ID, &startedAtStr, &rr.Source, &rr.SchemaVersion, &rr.Violations); err != nil {
			return nil, err
		}
		rr.StartedAt = parseTime(startedAtStr)
		out = append(out, rr)
	}
	return out, rows.Err()
}

// ListViolations returns violations for a run at or above a minimum severity.
func (db *DB) ListViolations(runID, minSeverity string) ([]ir.Violation, error) {
	const q = `
		SELECT id, rule_id, path, line, col, severity, message, evidence
		  FROM violations
		 WHERE run_id = ?
		   AND (CASE severity WHEN 'HIGH' THEN 3 WHEN 'MEDIUM' THEN 2 ELSE 1 END)
		       >= (CASE ? WHEN 'HIGH' THEN 3 WHEN 'MEDIUM' THEN 2 ELSE 1 END)
		 ORDER BY path, line, col, rule_id, id`
	rows, err := db.conn.Query(q, runID, minSeverity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ir.Violation
	for rows.Next() {
		var v ir.Violation
		if err := rows.Scan(&v.ID, &v.RuleID, &v.Path, &v.Line, &v.Column, &v.Severity, &v.Message, &v.Evidence); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// HasRun reports whether a run with id is stored.
func (db *DB) HasRun(id string) (bool, error) {
	const q = `SELECT 1 FROM runs WHERE id = ? LIMIT 1`
	var one int
	err := db.conn.QueryRow(q, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// parseTime accepts RFC3339Nano first, then RFC3339; unparsable input
// yields the zero time.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

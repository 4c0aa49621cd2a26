package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Waiver silences violations of one rule, optionally narrowed to paths
// matching PathGlob and to evidence or messages containing PatternSub.
type Waiver struct {
	ID         int64      `json:"id"`
	RuleID     string     `json:"rule_id"`
	PathGlob   string     `json:"path_glob,omitempty"`
	PatternSub string     `json:"pattern_sub,omitempty"`
	Reason     string     `json:"reason"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedBy  string     `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

func (db *DB) CreateWaiver(ruleID, pathGlob, pattern, reason, createdBy string, expires time.Time) (int64, error) {
	now := formatTime(time.Now())
	res, err := db.conn.Exec(`
INSERT INTO waivers(rule_id, path_glob, pattern_sub, reason, expires_at, created_by, created_at)
VALUES(?,?,?,?,?,?,?)`,
		ruleID, nz(pathGlob), nz(pattern), reason, formatTime(expires), createdBy, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RevokeWaiver marks a waiver revoked. The revoker is recorded in the audit log.
func (db *DB) RevokeWaiver(id int64, by string) error {
	if err := execOne(db.conn, `UPDATE waivers SET revoked_at=? WHERE id=? AND revoked_at IS NULL`,
		formatTime(time.Now()), id); err != nil {
		return fmt.Errorf("revoke waiver %d: %w", id, err)
	}
	return db.LogAudit(by, "waiver:revoke", "", map[string]any{"id": id})
}

func (db *DB) ListWaivers(activeOnly bool) ([]Waiver, error) {
	q := `
SELECT id, rule_id, COALESCE(path_glob,''), COALESCE(pattern_sub,''),
       reason, expires_at, created_by, created_at, revoked_at
FROM waivers`
	args := []any{}
	if activeOnly {
		q += ` WHERE (revoked_at IS NULL) AND (expires_at > ?)`
		args = append(args, formatTime(time.Now()))
	}
	q += ` ORDER BY id DESC`
	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Waiver
	for rows.Next() {
		var (
			w           Waiver
			exp, ca, ra sql.NullString
		)
		if err := rows.Scan(&w.ID, &w.RuleID, &w.PathGlob, &w.PatternSub, &w.Reason, &exp, &w.CreatedBy, &ca, &ra); err != nil {
			return nil, err
		}
		if exp.Valid {
			w.ExpiresAt = parseTime(exp.String)
		}
		if ca.Valid {
			w.CreatedAt = parseTime(ca.String)
		}
		if ra.Valid {
			t := parseTime(ra.String)
			w.RevokedAt = &t
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func nz(s string) any {
	if s == "" {
		return nil
	}
	return s
}

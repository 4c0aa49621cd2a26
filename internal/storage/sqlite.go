package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // CGO-free SQLite driver

	"github.com/codewithboateng/pyconform/internal/ir"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// DB is the concrete storage backed by SQLite.
type DB struct {
	conn *sql.DB
}

// OpenSQLite opens (and creates if missing) a SQLite DB at path.
func OpenSQLite(path string) (*DB, error) {
	// modernc reads pragmas from the DSN.
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	c, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return &DB{conn: c}, nil
}

func (db *DB) Close() error { return db.conn.Close() }

// CreateSchema ensures tables exist.
func (db *DB) CreateSchema() error {
	_, err := db.conn.Exec(`
CREATE TABLE IF NOT EXISTS runs (
  id             TEXT PRIMARY KEY,
  started_at     TEXT,          -- UTC, fixed width
  source         TEXT,
  schema_version TEXT,
  run_json       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS violations (
  id       TEXT,
  run_id   TEXT NOT NULL,
  rule_id  TEXT,
  path     TEXT,
  line     INTEGER,
  col      INTEGER,
  severity TEXT,
  message  TEXT,
  evidence TEXT,
  PRIMARY KEY (id, run_id),
  FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_violations_run ON violations(run_id);
CREATE INDEX IF NOT EXISTS idx_violations_rule ON violations(rule_id);

CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT UNIQUE NOT NULL,
  pass_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'viewer',
  created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
  token TEXT PRIMARY KEY,
  user_id INTEGER NOT NULL,
  expires_at TEXT NOT NULL,
  created_at TEXT NOT NULL,
  FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS audit (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts TEXT NOT NULL,
  username TEXT,
  action TEXT NOT NULL,
  resource TEXT,
  meta_json TEXT
);

CREATE TABLE IF NOT EXISTS waivers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  rule_id     TEXT NOT NULL,
  path_glob   TEXT,              -- optional glob on path or base name; NULL = any
  pattern_sub TEXT,              -- optional substring to match evidence/message
  reason      TEXT NOT NULL,
  expires_at  TEXT NOT NULL,     -- UTC, fixed width
  created_by  TEXT NOT NULL,
  created_at  TEXT NOT NULL,
  revoked_at  TEXT               -- NULL = active
);
`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SaveRun upserts a run JSON and (re)writes its violations.
func (db *DB) SaveRun(run *ir.Run) error {
	b, err := json.Marshal(run)
	if err != nil {
		return err
	}
	ts := formatTime(run.StartedAt)

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO runs (id, started_at, source, schema_version, run_json)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET started_at=excluded.started_at, source=excluded.source, schema_version=excluded.schema_version, run_json=excluded.run_json`,
		run.ID, ts, run.Source, run.SchemaVersion, string(b),
	); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM violations WHERE run_id = ?`, run.ID); err != nil {
		return err
	}
	if len(run.Violations) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO violations
			(id, run_id, rule_id, path, line, col, severity, message, evidence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, v := range run.Violations {
			if _, err := stmt.Exec(
				v.ID,
				run.ID,
				v.RuleID,
				v.Path,
				v.Line,
				v.Column,
				v.Severity,
				v.Message,
				v.Evidence,
			); err != nil {
				return fmt.Errorf("save violation %s: %w", v.ID, err)
			}
		}
	}

	return tx.Commit()
}

// LoadRun returns the full run (from stored JSON).
func (db *DB) LoadRun(id string) (ir.Run, error) {
	return db.loadRun(db.conn.QueryRow(`SELECT run_json FROM runs WHERE id = ?`, id))
}

// LoadLatestRun returns the most recently started run.
func (db *DB) LoadLatestRun() (ir.Run, error) {
	return db.loadRun(db.conn.QueryRow(`SELECT run_json FROM runs ORDER BY started_at DESC, id DESC LIMIT 1`))
}

func (db *DB) loadRun(row *sql.Row) (ir.Run, error) {
	var s string
	if err := row.Scan(&s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Run{}, ErrNotFound
		}
		return ir.Run{}, err
	}
	var run ir.Run
	if err := json.Unmarshal([]byte(s), &run); err != nil {
		return ir.Run{}, fmt.Errorf("decode run: %w", err)
	}
	return run, nil
}

package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// API roles. Admins may create and revoke waivers; viewers read.
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

var (
	ErrUserExists = errors.New("user already exists")
	ErrBadRole    = errors.New("role must be admin or viewer")
)

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAdmin reports whether u may manage waivers.
func (u User) IsAdmin() bool { return strings.EqualFold(u.Role, RoleAdmin) }

// ValidRole normalises role, returning ErrBadRole for anything but
// admin or viewer.
func ValidRole(role string) (string, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if role != RoleAdmin && role != RoleViewer {
		return "", fmt.Errorf("%w: %q", ErrBadRole, role)
	}
	return role, nil
}

func (db *DB) CreateUser(username, passHash, role string) (int64, error) {
	role, err := ValidRole(role)
	if err != nil {
		return 0, err
	}
	res, err := db.conn.Exec(`INSERT INTO users(username, pass_hash, role, created_at) VALUES(?,?,?,?)`,
		username, passHash, role, formatTime(time.Now()))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, fmt.Errorf("create user %s: %w", username, ErrUserExists)
		}
		return 0, fmt.Errorf("create user %s: %w", username, err)
	}
	return res.LastInsertId()
}

// GetUserByUsername returns the user and the stored password hash.
func (db *DB) GetUserByUsername(username string) (User, string, error) {
	var (
		u       User
		hash    string
		created string
	)
	err := db.conn.QueryRow(`SELECT id, username, role, created_at, pass_hash FROM users WHERE username=?`, username).
		Scan(&u.ID, &u.Username, &u.Role, &created, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, "", ErrNotFound
	}
	if err != nil {
		return User{}, "", err
	}
	u.CreatedAt = parseTime(created)
	return u, hash, nil
}

// CreateSession stores token for the user and drops the user's expired
// sessions in the same transaction.
func (db *DB) CreateSession(userID int64, token string, expires time.Time) error {
	now := formatTime(time.Now())
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`DELETE FROM sessions WHERE user_id=? AND expires_at <= ?`, userID, now); err != nil {
		return fmt.Errorf("prune sessions: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO sessions(token, user_id, expires_at, created_at) VALUES(?,?,?,?)`,
		token, userID, formatTime(expires), now); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return tx.Commit()
}

// GetSession resolves an unexpired session token to its user.
func (db *DB) GetSession(token string) (User, error) {
	var (
		u       User
		created string
	)
	err := db.conn.QueryRow(`
SELECT u.id, u.username, u.role, u.created_at
FROM sessions s JOIN users u ON s.user_id=u.id
WHERE s.token=? AND s.expires_at > ?`, token, formatTime(time.Now())).
		Scan(&u.ID, &u.Username, &u.Role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

func (db *DB) DeleteSession(token string) error {
	return execOne(db.conn, `DELETE FROM sessions WHERE token=?`, token)
}

// LogAudit appends an entry to the audit table. meta is stored as JSON.
func (db *DB) LogAudit(username, action, resource string, meta map[string]any) error {
	b, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("audit meta: %w", err)
	}
	_, err = db.conn.Exec(`INSERT INTO audit(ts, username, action, resource, meta_json) VALUES(?,?,?,?,?)`,
		formatTime(time.Now()), username, action, resource, string(b))
	return err
}

// execOne runs a statement that must touch at least one row.
func execOne(db *sql.DB, q string, args ...any) error {
	res, err := db.Exec(q, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

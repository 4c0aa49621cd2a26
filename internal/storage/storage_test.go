package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewithboateng/pyconform/internal/ir"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.CreateSchema())
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRun(id string, started time.Time) ir.Run {
	return ir.Run{
		ID:            id,
		StartedAt:     started,
		Source:        "src",
		SchemaVersion: ir.Version,
		Context:       ir.Context{SeverityThreshold: "LOW"},
		Files:         []ir.FileResult{{Path: "src/m.py", Lines: 3, CodeLines: 2, Violations: 2}},
		Violations: []ir.Violation{
			{ID: "absolute-imports-1", RuleID: "absolute-imports", Path: "src/m.py", Line: 2, Column: 1, Severity: "MEDIUM", Message: "relative", Evidence: "from . import x"},
			{ID: "typing-builtins-1", RuleID: "typing-builtins", Path: "src/m.py", Line: 1, Column: 20, Severity: "LOW", Message: "typing"},
		},
	}
}

func TestRuns_SaveLoadList(t *testing.T) {
	db := openTestDB(t)
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	first := sampleRun("run-a", t0)
	second := sampleRun("run-b", t0.Add(500*time.Millisecond))
	second.Violations = second.Violations[:1]
	require.NoError(t, db.SaveRun(&first))
	require.NoError(t, db.SaveRun(&second))

	got, err := db.LoadRun("run-a")
	require.NoError(t, err)
	assert.Equal(t, first.Violations, got.Violations)
	assert.True(t, first.StartedAt.Equal(got.StartedAt))

	latest, err := db.LoadLatestRun()
	require.NoError(t, err)
	assert.Equal(t, "run-b", latest.ID)

	rows, err := db.ListRuns(10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "run-b", rows[0].ID)
	assert.Equal(t, 1, rows[0].Violations)
	assert.Equal(t, 2, rows[1].Violations)

	_, err = db.LoadRun("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := db.HasRun("run-a")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = db.HasRun("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRuns_SaveIsUpsert(t *testing.T) {
	db := openTestDB(t)
	run := sampleRun("run-a", time.Now())
	require.NoError(t, db.SaveRun(&run))
	run.Violations = nil
	require.NoError(t, db.SaveRun(&run))

	vs, err := db.ListViolations("run-a", "LOW")
	require.NoError(t, err)
	assert.Empty(t, vs)
}

func TestLoadLatestRun_Empty(t *testing.T) {
	_, err := openTestDB(t).LoadLatestRun()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListViolations_MinSeverity(t *testing.T) {
	db := openTestDB(t)
	run := sampleRun("run-a", time.Now())
	require.NoError(t, db.SaveRun(&run))

	all, err := db.ListViolations("run-a", "LOW")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "typing-builtins", all[0].RuleID, "ordered by line")

	med, err := db.ListViolations("run-a", "MEDIUM")
	require.NoError(t, err)
	require.Len(t, med, 1)
	assert.Equal(t, "absolute-imports", med[0].RuleID)
}

func TestUsersAndSessions(t *testing.T) {
	db := openTestDB(t)
	id, err := db.CreateUser("ada", "hash", "admin")
	require.NoError(t, err)

	u, hash, err := db.GetUserByUsername("ada")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "hash", hash)
	assert.Equal(t, "admin", u.Role)

	_, _, err = db.GetUserByUsername("bob")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.CreateSession(id, "tok", time.Now().Add(time.Hour)))
	got, err := db.GetSession("tok")
	require.NoError(t, err)
	assert.Equal(t, "ada", got.Username)

	require.NoError(t, db.CreateSession(id, "old", time.Now().Add(-time.Minute)))
	_, err = db.GetSession("old")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.DeleteSession("tok"))
	_, err = db.GetSession("tok")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.DeleteSession("tok"), ErrNotFound)
}

func TestWaivers(t *testing.T) {
	db := openTestDB(t)
	active, err := db.CreateWaiver("absolute-imports", "pkg/*", "", "legacy", "ada", time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	_, err = db.CreateWaiver("typing-builtins", "", "Dict", "expired", "ada", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	revoked, err := db.CreateWaiver("comment-density", "", "", "gone", "ada", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, db.RevokeWaiver(revoked, "ada"))

	all, err := db.ListWaivers(false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	live, err := db.ListWaivers(true)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, active, live[0].ID)
	assert.Equal(t, "pkg/*", live[0].PathGlob)
	assert.Equal(t, "", live[0].PatternSub)
	assert.Nil(t, live[0].RevokedAt)

	assert.ErrorIs(t, db.RevokeWaiver(revoked, "ada"), ErrNotFound)
	assert.ErrorIs(t, db.RevokeWaiver(9999, "ada"), ErrNotFound)
}

func TestCreateUser_Validation(t *testing.T) {
	db := openTestDB(t)
	_, err := db.CreateUser("ada", "hash", "Viewer")
	require.NoError(t, err)

	_, err = db.CreateUser("ada", "hash", RoleAdmin)
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = db.CreateUser("bob", "hash", "root")
	assert.ErrorIs(t, err, ErrBadRole)

	u, _, err := db.GetUserByUsername("ada")
	require.NoError(t, err)
	assert.Equal(t, RoleViewer, u.Role)
	assert.False(t, u.IsAdmin())
}

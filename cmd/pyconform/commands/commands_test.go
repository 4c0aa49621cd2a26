package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewithboateng/pyconform/internal/ir"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func run(t *testing.T, args ...string) result {
	t.Helper()
	var out, errb bytes.Buffer
	code := Execute(context.Background(), args, &out, &errb)
	return result{code: code, stdout: out.String(), stderr: errb.String()}
}

func tree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return root
}

const (
	relativePy = "from __future__ import annotations\nfrom . import sibling\n"
	cleanPy    = "from __future__ import annotations\n\nx: list[int] = []\n"
)

func TestVersion(t *testing.T) {
	r := run(t, "version")
	assert.Equal(t, exitOK, r.code)
	assert.Equal(t, "pyconform dev (run schema "+ir.Version+")\n", r.stdout)
}

func TestCheck_ExitCodes(t *testing.T) {
	dirty := tree(t, map[string]string{"pkg/m.py": relativePy})
	clean := tree(t, map[string]string{"m.py": cleanPy})

	r := run(t, "check", "--no-db", "--no-color", dirty)
	assert.Equal(t, exitViolations, r.code, r.stderr)
	assert.Contains(t, r.stdout, "[MEDIUM] absolute-imports")
	assert.Contains(t, r.stdout, "1 violation (1 MEDIUM) in 1 of 1 file")

	r = run(t, "check", "--no-db", "--fail-on", "none", dirty)
	assert.Equal(t, exitOK, r.code)

	r = run(t, "check", "--no-db", "--fail-on", "high", dirty)
	assert.Equal(t, exitOK, r.code)

	r = run(t, "check", "--no-db", "--severity", "HIGH", dirty)
	assert.Equal(t, exitOK, r.code)

	r = run(t, "check", "--no-db", "--disable", "absolute-imports", dirty)
	assert.Equal(t, exitOK, r.code)

	r = run(t, "check", "--no-db", "--no-color", clean)
	assert.Equal(t, exitOK, r.code)
	assert.Equal(t, "no violations in 1 file\n", r.stdout)
}

func TestCheck_KeepsNoHistoryByDefault(t *testing.T) {
	dir := tree(t, map[string]string{"pkg/m.py": relativePy})
	t.Chdir(dir)

	r := run(t, "check", "--no-color")
	assert.Equal(t, exitViolations, r.code, r.stderr)
	assert.Contains(t, r.stdout, "absolute-imports")

	dbs, err := filepath.Glob(filepath.Join(dir, "*.db*"))
	require.NoError(t, err)
	assert.Empty(t, dbs)

	r = run(t, "runs")
	assert.Equal(t, exitOK, r.code, r.stderr)
	assert.Equal(t, "no runs stored\n", r.stdout)
	assert.FileExists(t, filepath.Join(dir, "pyconform.db"))
}

func TestCheck_UsageErrors(t *testing.T) {
	dir := tree(t, map[string]string{"m.py": cleanPy})
	cases := map[string][]string{
		"bad format":     {"check", "--no-db", "--format", "xml", dir},
		"bad fail-on":    {"check", "--no-db", "--fail-on", "sometimes", dir},
		"bad severity":   {"check", "--no-db", "--severity", "URGENT", dir},
		"missing path":   {"check", "--no-db", filepath.Join(dir, "missing")},
		"unknown flag":   {"check", "--bogus"},
		"missing pack":   {"check", "--no-db", "--rules", filepath.Join(dir, "nope.yaml"), dir},
		"missing config": {"--config", filepath.Join(dir, "nope.yaml"), "check", "--no-db", dir},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			r := run(t, args...)
			assert.Equal(t, exitUsage, r.code, r.stdout)
			assert.NotEmpty(t, r.stderr)
		})
	}
}

func TestCheck_JSONLOutput(t *testing.T) {
	dir := tree(t, map[string]string{"m.py": "from typing import Dict, List\nfrom . import x\n"})
	r := run(t, "check", "--no-db", "--format", "jsonl", "--disable", "future-annotations", dir)
	require.Equal(t, exitViolations, r.code, r.stderr)

	lines := strings.Split(strings.TrimSpace(r.stdout), "\n")
	require.Len(t, lines, 3)
	rulesSeen := map[string]int{}
	for _, l := range lines {
		var v ir.Violation
		require.NoError(t, json.Unmarshal([]byte(l), &v))
		assert.True(t, strings.HasPrefix(v.ID, v.RuleID+"-"))
		rulesSeen[v.RuleID]++
	}
	assert.Equal(t, map[string]int{"typing-builtins": 2, "absolute-imports": 1}, rulesSeen)
}

func TestCheck_RulePack(t *testing.T) {
	dir := tree(t, map[string]string{
		"cli_pack_target.py": "from __future__ import annotations\nprint('hi')\n",
		"pack.yaml": `rules:
  - id: cli-no-print
    severity: HIGH
    message: print call
    where:
      path: "cli_pack_target\\.py$"
      pattern: "^print\\("
`,
	})
	r := run(t, "check", "--no-db", "--no-color", "--rules", filepath.Join(dir, "pack.yaml"), "--fail-on", "high", dir)
	assert.Equal(t, exitViolations, r.code, r.stderr)
	assert.Contains(t, r.stdout, "[HIGH] cli-no-print print call")
}

func TestHistoryWorkflow(t *testing.T) {
	src := tree(t, map[string]string{"pkg/m.py": relativePy})
	db := filepath.Join(t.TempDir(), "runs.db")
	out := filepath.Join(t.TempDir(), "reports")

	r := run(t, "check", "--db", db, "--format", "json", src)
	require.Equal(t, exitViolations, r.code, r.stderr)
	var first ir.Run
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &first))
	require.Len(t, first.Violations, 1)

	require.NoError(t, os.WriteFile(filepath.Join(src, "pkg", "m.py"), []byte(cleanPy), 0o644))
	r = run(t, "check", "--db", db, "--format", "json", src)
	require.Equal(t, exitOK, r.code, r.stderr)
	var second ir.Run
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &second))

	r = run(t, "runs", "--db", db)
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, first.ID)
	assert.Contains(t, r.stdout, second.ID)

	r = run(t, "report", "--db", db, "--run", first.ID, "--out", out)
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.FileExists(t, filepath.Join(out, first.ID+".json"))
	assert.FileExists(t, filepath.Join(out, first.ID+".html"))

	r = run(t, "report", "--db", db, "--out", out)
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, second.ID)

	r = run(t, "report", "--db", db, "--run", "run-missing", "--out", out)
	assert.Equal(t, exitUsage, r.code)

	r = run(t, "diff", "--db", db, "--base", first.ID, "--head", second.ID)
	require.Equal(t, exitOK, r.code, r.stderr)
	var d struct {
		Summary struct {
			New     int `json:"new"`
			Removed int `json:"removed"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &d))
	assert.Equal(t, 0, d.Summary.New)
	assert.Equal(t, 1, d.Summary.Removed)

	r = run(t, "diff", "--db", db, "--base", first.ID, "--head", second.ID, "--out", out)
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "new=0 removed=1 changed=0")

	r = run(t, "diff", "--db", db, "--base", first.ID)
	assert.Equal(t, exitUsage, r.code)
}

func TestRunsAndReport_EmptyDB(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	r := run(t, "runs", "--db", db)
	assert.Equal(t, exitOK, r.code, r.stderr)
	assert.Equal(t, "no runs stored\n", r.stdout)

	r = run(t, "report", "--db", db, "--out", t.TempDir())
	assert.Equal(t, exitUsage, r.code)
}

func TestWaiverWorkflow(t *testing.T) {
	src := tree(t, map[string]string{"legacy/m.py": relativePy})
	db := filepath.Join(t.TempDir(), "runs.db")

	r := run(t, "waiver", "add", "--db", db, "--rule", "absolute-imports", "--path", "m.py", "--reason", "migration", "--by", "ada")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "waiver 1 created")

	r = run(t, "check", "--db", db, "--no-color", src)
	assert.Equal(t, exitOK, r.code, r.stderr)

	r = run(t, "check", "--db", db, "--format", "json", src)
	var got ir.Run
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &got))
	assert.Equal(t, 1, got.Context.Waived)

	r = run(t, "waiver", "list", "--db", db)
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "active")

	r = run(t, "waiver", "revoke", "--db", db, "1")
	require.Equal(t, exitOK, r.code, r.stderr)
	r = run(t, "waiver", "revoke", "--db", db, "1")
	assert.NotEqual(t, exitOK, r.code)

	r = run(t, "check", "--db", db, "--no-color", src)
	assert.Equal(t, exitViolations, r.code, r.stderr)

	r = run(t, "waiver", "add", "--db", db, "--rule", "no-such-rule", "--reason", "x")
	assert.Equal(t, exitUsage, r.code)
	r = run(t, "waiver", "add", "--db", db, "--rule", "absolute-imports", "--reason", "x", "--expires", "someday")
	assert.Equal(t, exitUsage, r.code)
}

func TestUserAdd(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	r := run(t, "user", "add", "--db", db, "--username", "ada", "--password", "long enough pw", "--role", "admin")
	assert.Equal(t, exitOK, r.code, r.stderr)

	r = run(t, "user", "add", "--db", db, "--username", "bob", "--password", "long enough pw", "--role", "root")
	assert.Equal(t, exitUsage, r.code)
}

func TestRulesCommand(t *testing.T) {
	r := run(t, "rules")
	require.Equal(t, exitOK, r.code, r.stderr)
	for _, id := range []string{"absolute-imports", "typing-builtins", "future-annotations", "quoted-annotations", "comment-density"} {
		assert.Contains(t, r.stdout, id)
	}
	assert.Contains(t, r.stdout, "severity threshold: LOW")
}

func TestParseExpiry(t *testing.T) {
	now := mustTime(t, "2026-01-01T00:00:00Z")
	got, err := parseExpiry("48h", now)
	require.NoError(t, err)
	assert.Equal(t, mustTime(t, "2026-01-03T00:00:00Z"), got)

	got, err = parseExpiry("2026-02-01", now)
	require.NoError(t, err)
	assert.Equal(t, 2026, got.Year())

	_, err = parseExpiry("-1h", now)
	assert.Error(t, err)
}

func TestFailing(t *testing.T) {
	vs := []ir.Violation{{Severity: "MEDIUM"}}
	assert.True(t, failing(vs, "LOW"))
	assert.True(t, failing(vs, "MEDIUM"))
	assert.False(t, failing(vs, "HIGH"))
	assert.False(t, failing(vs, "NONE"))
	assert.False(t, failing(nil, "LOW"))
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return tm
}

package scan

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/codewithboateng/pyconform/internal/rules"
	"github.com/codewithboateng/pyconform/internal/storage"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return root
}

func resetSettings(t *testing.T) {
	t.Helper()
	rules.SetSettings(rules.Settings{})
	t.Cleanup(func() { rules.SetSettings(rules.Settings{}) })
}

const clean = "from __future__ import annotations\n\nx: dict[str, int] = {}\n"

func TestRun_Tree(t *testing.T) {
	resetSettings(t)
	root := writeTree(t, map[string]string{
		"pkg/clean.py":         clean,
		"pkg/rel.py":           "from __future__ import annotations\nfrom . import sibling\n",
		"pkg/typed.py":         "from __future__ import annotations\nfrom typing import Dict, List\n",
		"pkg/__pycache__/x.py": "from . import ignored\n",
		"pkg/notes.txt":        "from . import ignored\n",
		"pkg/bad.py":           "x = '\xff\xfe'\n",
	})

	run, err := Run(context.Background(), Options{Paths: []string{root}, Workers: 2})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(run.ID, "run-"))
	assert.Equal(t, "LOW", run.Context.SeverityThreshold)
	assert.Len(t, run.Files, 3)

	counts := run.Counts()
	assert.Equal(t, 1, counts["absolute-imports"])
	assert.Equal(t, 2, counts["typing-builtins"])
	assert.Len(t, run.Violations, 3)

	require.Len(t, run.Warnings, 1)
	assert.Contains(t, run.Warnings[0], "bad.py")

	for _, f := range run.Files {
		switch filepath.Base(f.Path) {
		case "clean.py":
			assert.Zero(t, f.Violations)
		case "typed.py":
			assert.Equal(t, 2, f.Violations)
		}
	}
	for i := 1; i < len(run.Violations); i++ {
		assert.LessOrEqual(t, run.Violations[i-1].Path, run.Violations[i].Path)
	}
}

func TestRun_Deterministic(t *testing.T) {
	resetSettings(t)
	root := writeTree(t, map[string]string{
		"a.py": "from .x import y\nfrom typing import Optional\n",
		"b.py": "import os\n",
		"c.py": "def f(a: 'A') -> \"B\": ...\n",
	})
	first, err := Run(context.Background(), Options{Paths: []string{root}, Workers: 1})
	require.NoError(t, err)
	second, err := Run(context.Background(), Options{Paths: []string{root}, Workers: 8})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Violations, second.Violations)
	assert.Equal(t, first.Files, second.Files)
}

func TestRun_Waivers(t *testing.T) {
	resetSettings(t)
	root := writeTree(t, map[string]string{
		"legacy/old.py": "from __future__ import annotations\nfrom . import a\nfrom . import b\n",
		"new.py":        "from __future__ import annotations\nfrom . import c\n",
	})
	waivers := []storage.Waiver{{ID: 1, RuleID: "absolute-imports", PathGlob: "old.py", ExpiresAt: time.Now().Add(time.Hour)}}

	run, err := Run(context.Background(), Options{Paths: []string{root}, Waivers: waivers})
	require.NoError(t, err)
	assert.Equal(t, 2, run.Context.Waived)
	require.Len(t, run.Violations, 1)
	assert.Equal(t, "new.py", filepath.Base(run.Violations[0].Path))

	for _, f := range run.Files {
		if filepath.Base(f.Path) == "old.py" {
			assert.Zero(t, f.Violations)
		}
	}
}

func TestRun_ThresholdAndDisabled(t *testing.T) {
	resetSettings(t)
	root := writeTree(t, map[string]string{
		"m.py": "from . import a\nfrom typing import List\n",
	})
	rules.SetSettings(rules.Settings{SeverityThreshold: "MEDIUM", Disabled: map[string]bool{"future-annotations": true}})

	run, err := Run(context.Background(), Options{Paths: []string{root}})
	require.NoError(t, err)
	assert.Equal(t, "MEDIUM", run.Context.SeverityThreshold)
	assert.Equal(t, []string{"future-annotations"}, run.Context.DisabledRules)
	require.Len(t, run.Violations, 1)
	assert.Equal(t, "absolute-imports", run.Violations[0].RuleID)
}

func TestRun_MissingRoot(t *testing.T) {
	resetSettings(t)
	_, err := Run(context.Background(), Options{Paths: []string{filepath.Join(t.TempDir(), "missing")}})
	assert.Error(t, err)
}

func TestRun_Cancelled(t *testing.T) {
	resetSettings(t)
	root := writeTree(t, map[string]string{"a.py": clean, "b.py": clean})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Options{Paths: []string{root}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_EmptyTree(t *testing.T) {
	resetSettings(t)
	run, err := Run(context.Background(), Options{Paths: []string{t.TempDir()}})
	require.NoError(t, err)
	assert.Empty(t, run.Files)
	assert.Empty(t, run.Violations)
	assert.Contains(t, run.Warnings, "no Python source files found")
}

func TestRun_RecordsMetrics(t *testing.T) {
	resetSettings(t)
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = mp.Shutdown(context.Background())
	})

	root := writeTree(t, map[string]string{
		"a.py":   clean,
		"b.py":   "from __future__ import annotations\nfrom typing import Dict, List\n",
		"bad.py": "x = '\xff'\n",
	})
	_, err := Run(context.Background(), Options{Paths: []string{root}})
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), sums["pyconform.scan.files"])
	assert.Equal(t, int64(1), sums["pyconform.scan.skipped"])
	assert.Equal(t, int64(2), sums["pyconform.scan.violations"])
}

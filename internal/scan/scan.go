package scan

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/codewithboateng/pyconform/internal/ir"
	"github.com/codewithboateng/pyconform/internal/parser"
	"github.com/codewithboateng/pyconform/internal/rules"
	"github.com/codewithboateng/pyconform/internal/stats"
	"github.com/codewithboateng/pyconform/internal/storage"
	"github.com/codewithboateng/pyconform/internal/telemetry"
)

type Options struct {
	Paths   []string
	Include []string
	Exclude []string
	// Workers bounds concurrent file scans; 0 means NumCPU.
	Workers int
	// Waivers filter violations after evaluation.
	Waivers []storage.Waiver
}

type outcome struct {
	file       ir.FileResult
	violations []ir.Violation
	warning    string
	scanned    bool
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return "run-" + uuid.NewString() }

// Run discovers the files under opts.Paths, evaluates every enabled rule
// against each of them in parallel and returns the assembled run.
// Unreadable or undecodable files become warnings. Cancelling ctx stops
// the scan and returns the context error.
func Run(ctx context.Context, opts Options) (ir.Run, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "scan.run", trace.WithAttributes(
		attribute.StringSlice("paths", opts.Paths),
	))
	defer span.End()
	start := time.Now()

	run := ir.Run{
		ID:            NewRunID(),
		StartedAt:     time.Now().UTC(),
		Source:        strings.Join(opts.Paths, ","),
		SchemaVersion: ir.Version,
	}
	settings := rules.CurrentSettings()
	run.Context.SeverityThreshold = settings.SeverityThreshold
	for id := range settings.Disabled {
		run.Context.DisabledRules = append(run.Context.DisabledRules, id)
	}
	sort.Strings(run.Context.DisabledRules)

	files, diags, err := parser.Discover(opts.Paths, opts.Include, opts.Exclude)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return run, err
	}
	run.Warnings = append(run.Warnings, diags.Warnings...)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	results := make([]outcome, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = scanFile(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return run, fmt.Errorf("scan interrupted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return run, fmt.Errorf("scan interrupted: %w", err)
	}

	var all []ir.Violation
	skipped := 0
	for _, r := range results {
		if r.warning != "" {
			run.Warnings = append(run.Warnings, r.warning)
			skipped++
		}
		all = append(all, r.violations...)
	}
	kept, waived := rules.ApplyWaivers(all, opts.Waivers)
	run.Context.Waived = waived
	run.Violations = rules.Finalize(kept)

	perFile := map[string]int{}
	for _, v := range run.Violations {
		perFile[v.Path]++
	}
	for _, r := range results {
		if !r.scanned {
			continue
		}
		r.file.Violations = perFile[r.file.Path]
		run.Files = append(run.Files, r.file)
	}

	if m, err := telemetry.NewScanMetrics(); err != nil {
		slog.Debug("scan metrics disabled", "err", err)
	} else {
		m.Record(ctx, len(run.Files), skipped, run.Counts(), time.Since(start))
	}
	span.SetAttributes(
		attribute.Int("files", len(run.Files)),
		attribute.Int("violations", len(run.Violations)),
		attribute.Int("warnings", len(run.Warnings)),
	)
	slog.Debug("scan complete", "run", run.ID, "files", len(run.Files), "violations", len(run.Violations), "waived", waived)
	return run, nil
}

func scanFile(ctx context.Context, path string) outcome {
	_, span := telemetry.Tracer().Start(ctx, "scan.file", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	src, err := parser.ParseFile(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Warn("skipping file", "path", path, "err", err)
		return outcome{warning: fmt.Sprintf("skipped %s: %v", path, err)}
	}
	vs := rules.EvaluateFile(src)
	span.SetAttributes(attribute.Int("violations", len(vs)))
	return outcome{
		file:       stats.Summarize(src, len(vs)),
		violations: vs,
		scanned:    true,
	}
}

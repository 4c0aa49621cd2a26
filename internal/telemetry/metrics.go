package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ScanMetrics holds the instruments recorded by a scan.
type ScanMetrics struct {
	files      metric.Int64Counter
	skipped    metric.Int64Counter
	violations metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewScanMetrics creates the scan instruments on the global meter.
func NewScanMetrics() (*ScanMetrics, error) {
	return newScanMetrics(otel.Meter(TracerName))
}

func newScanMetrics(m metric.Meter) (*ScanMetrics, error) {
	var (
		sm  ScanMetrics
		err error
	)
	if sm.files, err = m.Int64Counter("pyconform.scan.files",
		metric.WithDescription("Files parsed and evaluated"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("files counter: %w", err)
	}
	if sm.skipped, err = m.Int64Counter("pyconform.scan.skipped",
		metric.WithDescription("Files skipped as unreadable or not UTF-8"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("skipped counter: %w", err)
	}
	if sm.violations, err = m.Int64Counter("pyconform.scan.violations",
		metric.WithDescription("Violations reported after waivers"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("violations counter: %w", err)
	}
	if sm.duration, err = m.Float64Histogram("pyconform.scan.duration",
		metric.WithDescription("Wall time of a whole scan in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("duration histogram: %w", err)
	}
	return &sm, nil
}

// Record adds the totals of one finished scan. Violations are counted per rule.
func (sm *ScanMetrics) Record(ctx context.Context, files, skipped int, perRule map[string]int, elapsed time.Duration) {
	if sm == nil {
		return
	}
	sm.files.Add(ctx, int64(files))
	sm.skipped.Add(ctx, int64(skipped))
	for rule, n := range perRule {
		sm.violations.Add(ctx, int64(n), metric.WithAttributes(attribute.String("rule", rule)))
	}
	sm.duration.Record(ctx, float64(elapsed.Microseconds())/1000)
}

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/orderhub/orderhub/internal/domain"
)

// SyncMetrics records sync pass outcomes per platform
type SyncMetrics struct {
	passes       metric.Int64Counter
	upserts      metric.Int64Counter
	skipped      metric.Int64Counter
	retries      metric.Int64Counter
	stock        metric.Int64Counter
	pageDuration metric.Float64Histogram
}

func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	m := &SyncMetrics{}
	var err error
	if m.passes, err = meter.Int64Counter("orderhub.sync.passes",
		metric.WithDescription("Completed sync passes by final status"), metric.WithUnit("{pass}")); err != nil {
		return nil, fmt.Errorf("failed to create passes counter: %w", err)
	}
	if m.upserts, err = meter.Int64Counter("orderhub.sync.upserts",
		metric.WithDescription("Orders applied by outcome"), metric.WithUnit("{order}")); err != nil {
		return nil, fmt.Errorf("failed to create upserts counter: %w", err)
	}
	if m.skipped, err = meter.Int64Counter("orderhub.sync.skipped",
		metric.WithDescription("Platform records skipped as unmappable"), metric.WithUnit("{record}")); err != nil {
		return nil, fmt.Errorf("failed to create skipped counter: %w", err)
	}
	if m.retries, err = meter.Int64Counter("orderhub.sync.retries",
		metric.WithDescription("Page fetch retries by error kind"), metric.WithUnit("{retry}")); err != nil {
		return nil, fmt.Errorf("failed to create retries counter: %w", err)
	}
	if m.stock, err = meter.Int64Counter("orderhub.inventory.movements",
		metric.WithDescription("Stock reservations and releases by outcome"), metric.WithUnit("{sku}")); err != nil {
		return nil, fmt.Errorf("failed to create stock counter: %w", err)
	}
	if m.pageDuration, err = meter.Float64Histogram("orderhub.sync.page.duration",
		metric.WithDescription("Time to fetch and apply one page"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create page duration histogram: %w", err)
	}
	return m, nil
}

// NopSyncMetrics discards everything
func NopSyncMetrics() *SyncMetrics {
	m, _ := NewSyncMetrics(noop.NewMeterProvider().Meter("noop"))
	return m
}

func platformAttr(p domain.Platform) attribute.KeyValue {
	return attribute.String("platform", string(p))
}

func (m *SyncMetrics) RecordPass(ctx context.Context, p domain.Platform, status domain.SyncStatus) {
	m.passes.Add(ctx, 1, metric.WithAttributes(platformAttr(p), attribute.String("status", string(status))))
}

func (m *SyncMetrics) RecordUpsert(ctx context.Context, p domain.Platform, outcome domain.UpsertOutcome) {
	m.upserts.Add(ctx, 1, metric.WithAttributes(platformAttr(p), attribute.String("outcome", string(outcome))))
}

func (m *SyncMetrics) RecordSkipped(ctx context.Context, p domain.Platform, n int) {
	if n > 0 {
		m.skipped.Add(ctx, int64(n), metric.WithAttributes(platformAttr(p)))
	}
}

func (m *SyncMetrics) RecordRetry(ctx context.Context, p domain.Platform, kind domain.ErrorKind) {
	m.retries.Add(ctx, 1, metric.WithAttributes(platformAttr(p), attribute.String("kind", string(kind))))
}

func (m *SyncMetrics) RecordStock(ctx context.Context, p domain.Platform, outcome domain.ReservationOutcome) {
	m.stock.Add(ctx, 1, metric.WithAttributes(platformAttr(p), attribute.String("outcome", string(outcome))))
}

func (m *SyncMetrics) ObservePage(ctx context.Context, p domain.Platform, d time.Duration) {
	m.pageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(platformAttr(p)))
}

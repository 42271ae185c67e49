package events

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher writes each event as a structured log line
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.Named("events")}
}

func (p *LogPublisher) Publish(_ context.Context, events ...Event) error {
	for _, e := range events {
		p.logger.Info("Order event",
			zap.String("type", string(e.Type)),
			zap.String("platform", string(e.Platform)),
			zap.String("external_order_id", e.ExternalOrderID),
			zap.String("order_id", e.OrderID.String()),
			zap.String("status", string(e.Status)),
			zap.String("previous_status", string(e.PreviousStatus)),
		)
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }

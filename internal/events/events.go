// Package events publishes order change notifications produced by sync passes.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/orderhub/orderhub/internal/domain"
)

type EventType string

const (
	OrderCreated     EventType = "order_created"
	StatusChange     EventType = "status_change"
	StatusRegression EventType = "status_regression"
)

// Event describes one observable effect of an upsert
type Event struct {
	ID              uuid.UUID          `json:"id"`
	Type            EventType          `json:"type"`
	Platform        domain.Platform    `json:"platform"`
	OrderID         uuid.UUID          `json:"order_id"`
	ExternalOrderID string             `json:"external_order_id"`
	Status          domain.OrderStatus `json:"status"`
	PreviousStatus  domain.OrderStatus `json:"previous_status,omitempty"`
	OccurredAt      time.Time          `json:"occurred_at"`
}

// Key partitions events so one order's events stay ordered
func (e Event) Key() string {
	return string(e.Platform) + ":" + e.ExternalOrderID
}

// Publisher delivers events. Delivery is best effort; callers log failures
// and carry on.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// FromUpsert returns the events implied by an upsert result. An update that
// leaves the status alone produces none.
func FromUpsert(result *domain.UpsertResult, now time.Time) []Event {
	if result == nil || result.Order == nil {
		return nil
	}
	base := Event{
		ID:              uuid.New(),
		Platform:        result.Order.Platform,
		OrderID:         result.Order.ID,
		ExternalOrderID: result.Order.ExternalOrderID,
		Status:          result.Order.Status,
		OccurredAt:      now,
	}
	switch result.Outcome {
	case domain.UpsertInserted:
		base.Type = OrderCreated
	case domain.UpsertUpdated:
		if !result.StatusChanged() {
			return nil
		}
		base.Type = StatusChange
		base.PreviousStatus = result.PreviousStatus
	case domain.UpsertRejectedRegression:
		base.Type = StatusRegression
		base.PreviousStatus = result.PreviousStatus
		if result.Anomaly != nil {
			base.Status = result.Anomaly.IncomingStatus
		}
	default:
		return nil
	}
	return []Event{base}
}

// MultiPublisher fans out to every publisher and joins their errors
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, events ...Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

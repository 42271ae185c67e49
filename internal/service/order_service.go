package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orderhub/orderhub/internal/domain"
	"github.com/orderhub/orderhub/internal/repository"
	"github.com/orderhub/orderhub/pkg/errors"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

type orderService struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewOrderService creates the read-only query facade
func NewOrderService(repos *repository.Repositories, logger *zap.Logger) *orderService {
	return &orderService{
		repos:  repos,
		logger: logger,
	}
}

// NormalizeFilter applies the default limit and rejects out-of-range values
func NormalizeFilter(filter domain.OrderFilter) (domain.OrderFilter, error) {
	if filter.Limit == 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit < 1 || filter.Limit > MaxListLimit {
		return filter, &errors.ErrValidation{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", MaxListLimit)}
	}
	if filter.Offset < 0 {
		return filter, &errors.ErrValidation{Field: "offset", Message: "must not be negative"}
	}
	if filter.Platform != nil && !filter.Platform.IsValid() {
		return filter, &errors.ErrValidation{Field: "platform", Message: fmt.Sprintf("unsupported platform %q", *filter.Platform)}
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return filter, &errors.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown status %q", *filter.Status)}
	}
	return filter, nil
}

// ListOrders returns one page of orders, newest first, plus the filtered total
func (s *orderService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int, error) {
	filter, err := NormalizeFilter(filter)
	if err != nil {
		return nil, 0, err
	}

	orders, err := s.repos.Orders.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repos.Orders.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// GetOrder retrieves an order by ID
func (s *orderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.repos.Orders.GetByID(ctx, id)
}

// PlatformSummary lists every supported platform, linked or not
func (s *orderService) PlatformSummary(ctx context.Context) (*PlatformSummary, error) {
	counts, err := s.repos.Orders.SummarizeByPlatform(ctx)
	if err != nil {
		return nil, err
	}
	conns, err := s.repos.Connections.List(ctx)
	if err != nil {
		return nil, err
	}
	byPlatform := make(map[domain.Platform]*domain.PlatformConnection, len(conns))
	for _, c := range conns {
		byPlatform[c.Platform] = c
	}

	summary := &PlatformSummary{Platforms: make([]PlatformStatus, 0, len(domain.AllPlatforms()))}
	for _, p := range domain.AllPlatforms() {
		status := PlatformStatus{
			Name:        p.DisplayName(),
			Type:        p,
			OrdersCount: counts[p],
		}
		if c, ok := byPlatform[p]; ok {
			status.Connected = c.Connected
			status.LastSyncAt = c.LastSyncAt
			if !c.Connected {
				status.LastError = c.LastError
			}
		}
		summary.Platforms = append(summary.Platforms, status)
		summary.TotalOrders += status.OrdersCount
	}
	return summary, nil
}

// PlatformHealth reports the connection state; an unlinked platform is disconnected
func (s *orderService) PlatformHealth(ctx context.Context, platform domain.Platform) (*PlatformHealth, error) {
	if !platform.IsValid() {
		return nil, &errors.ErrValidation{Field: "platform", Message: fmt.Sprintf("unsupported platform %q", platform)}
	}
	conn, err := s.repos.Connections.Get(ctx, platform)
	if err != nil {
		if errors.IsNotFound(err) {
			return healthFrom(platform, nil), nil
		}
		return nil, err
	}
	return healthFrom(platform, conn), nil
}

// ListAnomalies returns recorded anomalies, newest first
func (s *orderService) ListAnomalies(ctx context.Context, platform *domain.Platform, limit int) ([]*domain.Anomaly, error) {
	if platform != nil && !platform.IsValid() {
		return nil, &errors.ErrValidation{Field: "platform", Message: fmt.Sprintf("unsupported platform %q", *platform)}
	}
	if limit == 0 {
		limit = DefaultListLimit
	}
	if limit < 1 || limit > MaxListLimit {
		return nil, &errors.ErrValidation{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", MaxListLimit)}
	}
	return s.repos.Anomalies.List(ctx, platform, limit)
}

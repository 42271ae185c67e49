package adapter

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/orderhub/orderhub/internal/domain"
)

// Adapter fetches a platform's orders newer than a cursor and maps them
// into canonical orders. Pages come back in stable forward order, and
// fetching again with the same cursor returns the same page.
type Adapter interface {
	Platform() domain.Platform
	FetchOrdersSince(ctx context.Context, cred Credential, cursor string) (*Page, error)
}

// Page is one batch of mapped orders plus the cursor that follows it
type Page struct {
	Orders     []*domain.Order
	Skipped    []*DataError
	NextCursor string
	HasMore    bool
}

// RawOrder is a platform record before mapping
type RawOrder struct {
	ExternalID string
	Payload    json.RawMessage
}

// FetchResult is one page of raw records from a Fetcher
type FetchResult struct {
	Records    []RawOrder
	NextCursor string
	HasMore    bool
}

// Fetcher performs transport and pagination for one platform
type Fetcher interface {
	Fetch(ctx context.Context, cred Credential, cursor string, pageSize int) (*FetchResult, error)
}

// Mapper converts a raw record into a canonical order. It must be pure.
type Mapper func(raw RawOrder) (*domain.Order, error)

type platformAdapter struct {
	platform domain.Platform
	fetcher  Fetcher
	mapper   Mapper
	limiter  *rate.Limiter
	pageSize int
	logger   *zap.Logger
}

type Option func(*platformAdapter)

// WithRateLimit throttles outgoing fetches to rps with the given burst
func WithRateLimit(rps float64, burst int) Option {
	return func(a *platformAdapter) {
		a.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithPageSize(n int) Option {
	return func(a *platformAdapter) {
		if n > 0 {
			a.pageSize = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(a *platformAdapter) {
		a.logger = logger
	}
}

// New composes a platform adapter from a fetcher and a mapper
func New(platform domain.Platform, fetcher Fetcher, mapper Mapper, opts ...Option) *platformAdapter {
	a := &platformAdapter{
		platform: platform,
		fetcher:  fetcher,
		mapper:   mapper,
		pageSize: 50,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("adapter").With(zap.String("platform", string(platform)))
	return a
}

func (a *platformAdapter) Platform() domain.Platform {
	return a.platform
}

func (a *platformAdapter) FetchOrdersSince(ctx context.Context, cred Credential, cursor string) (*Page, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			if ctx.Err() == context.Canceled {
				return nil, ctx.Err()
			}
			return nil, &TransientError{Err: err}
		}
	}

	start := time.Now()
	result, err := a.fetcher.Fetch(ctx, cred, cursor, a.pageSize)
	if err != nil {
		return nil, normalize(err)
	}
	a.logger.Debug("Fetched page",
		zap.Int("records", len(result.Records)),
		zap.Bool("has_more", result.HasMore),
		zap.Duration("elapsed", time.Since(start)),
	)

	page := &Page{
		Orders:     make([]*domain.Order, 0, len(result.Records)),
		NextCursor: result.NextCursor,
		HasMore:    result.HasMore,
	}
	for _, raw := range result.Records {
		order, err := a.MapOrder(raw)
		if err != nil {
			dataErr := &DataError{ExternalID: raw.ExternalID, Err: err}
			page.Skipped = append(page.Skipped, dataErr)
			a.logger.Warn("Skipping unmappable record", zap.String("external_order_id", raw.ExternalID), zap.Error(err))
			continue
		}
		page.Orders = append(page.Orders, order)
	}
	return page, nil
}

// MapOrder maps and validates a single raw record
func (a *platformAdapter) MapOrder(raw RawOrder) (*domain.Order, error) {
	order, err := a.mapper(raw)
	if err != nil {
		return nil, err
	}
	order.Platform = a.platform
	if order.ExternalOrderID == "" {
		order.ExternalOrderID = raw.ExternalID
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return order, nil
}

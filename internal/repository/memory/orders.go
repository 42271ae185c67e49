package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orderhub/orderhub/internal/domain"
	"github.com/orderhub/orderhub/pkg/errors"
)

// orderStore keeps immutable order snapshots keyed by (platform, externalOrderId).
// Each key has its own mutex, so only upserts of the same order serialize.
type orderStore struct {
	records sync.Map // domain.OrderKey -> *domain.Order
	byID    sync.Map // uuid.UUID -> domain.OrderKey
	locks   sync.Map // domain.OrderKey -> *sync.Mutex
	now     func() time.Time
}

// NewOrderStore creates an empty in-memory order store
func NewOrderStore() *orderStore {
	return &orderStore{now: func() time.Time { return time.Now().UTC() }}
}

func (s *orderStore) lockFor(key domain.OrderKey) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *orderStore) Upsert(ctx context.Context, order *domain.Order) (*domain.UpsertResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	key := order.Key()
	mu := s.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	var existing *domain.Order
	if v, ok := s.records.Load(key); ok {
		existing = v.(*domain.Order)
	}

	result := domain.Reconcile(existing, order, s.now())
	s.records.Store(key, result.Order)
	if existing == nil {
		s.byID.Store(result.Order.ID, key)
	}

	result.Order = result.Order.Clone()
	return result, nil
}

func (s *orderStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	key, ok := s.byID.Load(id)
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	v, ok := s.records.Load(key)
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	return v.(*domain.Order).Clone(), nil
}

func (s *orderStore) GetByExternalID(ctx context.Context, platform domain.Platform, externalOrderID string) (*domain.Order, error) {
	key := domain.OrderKey{Platform: platform, ExternalOrderID: externalOrderID}
	v, ok := s.records.Load(key)
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "order", ID: key.String()}
	}
	return v.(*domain.Order).Clone(), nil
}

func (s *orderStore) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	matched := s.collect(filter)

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].OrderDate.Equal(matched[j].OrderDate) {
			return matched[i].OrderDate.After(matched[j].OrderDate)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	if filter.Offset >= len(matched) {
		return []*domain.Order{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	orders := make([]*domain.Order, len(matched))
	for i, o := range matched {
		orders[i] = o.Clone()
	}
	return orders, nil
}

func (s *orderStore) Count(ctx context.Context, filter domain.OrderFilter) (int, error) {
	return len(s.collect(filter)), nil
}

func (s *orderStore) SummarizeByPlatform(ctx context.Context) (map[domain.Platform]int, error) {
	counts := make(map[domain.Platform]int)
	s.records.Range(func(_, v any) bool {
		counts[v.(*domain.Order).Platform]++
		return true
	})
	return counts, nil
}

// collect returns the stored snapshots matching filter, unordered
func (s *orderStore) collect(filter domain.OrderFilter) []*domain.Order {
	var matched []*domain.Order
	s.records.Range(func(_, v any) bool {
		o := v.(*domain.Order)
		if filter.Matches(o) {
			matched = append(matched, o)
		}
		return true
	})
	return matched
}

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

type heldStock struct {
	quantity int
	released bool
}

type inventoryStore struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	held     map[uuid.UUID]map[string]*heldStock
	logs     []*domain.InventoryLog
	now      func() time.Time
}

// NewInventoryStore creates an empty in-memory product catalog
func NewInventoryStore() *inventoryStore {
	return &inventoryStore{
		products: make(map[string]*domain.Product),
		held:     make(map[uuid.UUID]map[string]*heldStock),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func productNotFound(sku string) error {
	return &errors.ErrNotFound{Resource: "product", ID: sku}
}

// SaveProduct creates the product or updates its catalog fields. Stock of an
// existing product only moves through SetAvailable and reservations.
func (s *inventoryStore) SaveProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if err := product.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stored := product.Clone()
	if existing, ok := s.products[product.SKU]; ok {
		stored.QuantityAvailable = existing.QuantityAvailable
		stored.QuantityReserved = existing.QuantityReserved
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.QuantityReserved = 0
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.products[stored.SKU] = stored
	return stored.Clone(), nil
}

func (s *inventoryStore) GetProduct(ctx context.Context, sku string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[sku]
	if !ok {
		return nil, productNotFound(sku)
	}
	return p.Clone(), nil
}

// ListProducts returns products ordered by SKU
func (s *inventoryStore) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.LowStock && !p.NeedsReorder() {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].SKU < matched[j].SKU })

	if filter.Offset >= len(matched) {
		return []*domain.Product{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	result := make([]*domain.Product, len(matched))
	for i, p := range matched {
		result[i] = p.Clone()
	}
	return result, nil
}

func (s *inventoryStore) SetAvailable(ctx context.Context, sku string, quantity int, reason string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[sku]
	if !ok {
		return nil, productNotFound(sku)
	}
	log, err := p.SetAvailable(quantity, reason, s.now())
	if err != nil {
		return nil, err
	}
	s.logs = append(s.logs, log)
	return p.Clone(), nil
}

func (s *inventoryStore) ReserveOrder(ctx context.Context, order *domain.Order) ([]domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	skus, quantities := order.ItemQuantities()
	held := s.held[order.ID]
	if held == nil {
		held = make(map[string]*heldStock)
		s.held[order.ID] = held
	}

	result := make([]domain.Reservation, 0, len(skus))
	for _, sku := range skus {
		r := domain.Reservation{SKU: sku, Quantity: quantities[sku]}
		p, ok := s.products[sku]
		switch {
		case !ok:
			r.Outcome = domain.ReservationUnknownSKU
		case held[sku] != nil:
			r.Outcome = domain.ReservationAlreadyHeld
		default:
			log, reserved := p.Reserve(r.Quantity, now)
			if !reserved {
				r.Outcome = domain.ReservationInsufficient
				break
			}
			s.logs = append(s.logs, attachOrder(log, order, "Order placed"))
			held[sku] = &heldStock{quantity: r.Quantity}
			r.Outcome = domain.ReservationReserved
		}
		result = append(result, r)
	}
	return result, nil
}

func (s *inventoryStore) ReleaseOrder(ctx context.Context, order *domain.Order, reason string) ([]domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	held := s.held[order.ID]
	skus := make([]string, 0, len(held))
	for sku, h := range held {
		if !h.released {
			skus = append(skus, sku)
		}
	}
	sort.Strings(skus)

	result := make([]domain.Reservation, 0, len(skus))
	for _, sku := range skus {
		h := held[sku]
		h.released = true
		r := domain.Reservation{SKU: sku, Quantity: h.quantity, Outcome: domain.ReservationReleased}
		if p, ok := s.products[sku]; ok {
			s.logs = append(s.logs, attachOrder(p.Release(h.quantity, now), order, reason))
		} else {
			r.Outcome = domain.ReservationUnknownSKU
		}
		result = append(result, r)
	}
	return result, nil
}

func attachOrder(log *domain.InventoryLog, order *domain.Order, reason string) *domain.InventoryLog {
	platform := order.Platform
	id := order.ID
	log.Platform = &platform
	log.OrderID = &id
	log.Reason = reason
	return log
}

// Logs returns the newest changes for sku first
func (s *inventoryStore) Logs(ctx context.Context, sku string, limit int) ([]*domain.InventoryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*domain.InventoryLog, 0)
	for i := len(s.logs) - 1; i >= 0; i-- {
		l := s.logs[i]
		if l.SKU != sku {
			continue
		}
		cp := *l
		result = append(result, &cp)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/orderhub/orderhub/internal/domain"
	"github.com/orderhub/orderhub/internal/repository"
	"github.com/orderhub/orderhub/pkg/errors"
)

const (
	DefaultLogLimit        = 50
	defaultAdjustReason    = "Manual update via API"
	DefaultReorderPoint    = 10
	DefaultReorderQuantity = 50
)

type inventoryService struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewInventoryService creates the product catalog and stock facade
func NewInventoryService(repos *repository.Repositories, logger *zap.Logger) *inventoryService {
	return &inventoryService{
		repos:  repos,
		logger: logger.Named("inventory"),
	}
}

func (s *inventoryService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	if filter.Limit == 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit < 1 || filter.Limit > MaxListLimit {
		return nil, &errors.ErrValidation{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", MaxListLimit)}
	}
	if filter.Offset < 0 {
		return nil, &errors.ErrValidation{Field: "offset", Message: "must not be negative"}
	}
	return s.repos.Inventory.ListProducts(ctx, filter)
}

func (s *inventoryService) GetProduct(ctx context.Context, sku string) (*domain.Product, error) {
	return s.repos.Inventory.GetProduct(ctx, sku)
}

// SaveProduct creates or updates a catalog entry. The quantity on the
// request only seeds a new product; existing stock moves through AdjustStock.
func (s *inventoryService) SaveProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	saved, err := s.repos.Inventory.SaveProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Product saved", zap.String("sku", saved.SKU), zap.Int("available", saved.QuantityAvailable))
	return saved, nil
}

// AdjustStock sets the absolute available quantity and records the change
func (s *inventoryService) AdjustStock(ctx context.Context, sku string, quantity int, reason string) (*domain.Product, error) {
	if reason == "" {
		reason = defaultAdjustReason
	}
	product, err := s.repos.Inventory.SetAvailable(ctx, sku, quantity, reason)
	if err != nil {
		return nil, err
	}
	if product.NeedsReorder() {
		s.logger.Warn("Product at or below reorder point",
			zap.String("sku", sku),
			zap.Int("available", product.QuantityAvailable),
			zap.Int("reorder_point", product.ReorderPoint),
		)
	}
	return product, nil
}

// ListStockLogs returns the newest stock changes of an existing product
func (s *inventoryService) ListStockLogs(ctx context.Context, sku string, limit int) ([]*domain.InventoryLog, error) {
	if limit == 0 {
		limit = DefaultLogLimit
	}
	if limit < 1 || limit > MaxListLimit {
		return nil, &errors.ErrValidation{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", MaxListLimit)}
	}
	if _, err := s.repos.Inventory.GetProduct(ctx, sku); err != nil {
		return nil, err
	}
	return s.repos.Inventory.Logs(ctx, sku, limit)
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/orderhub/orderhub/internal/domain"
	"github.com/orderhub/orderhub/internal/service"
)

// InventoryManager is the product catalog and stock surface
type InventoryManager interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error)
	GetProduct(ctx context.Context, sku string) (*domain.Product, error)
	SaveProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	AdjustStock(ctx context.Context, sku string, quantity int, reason string) (*domain.Product, error)
	ListStockLogs(ctx context.Context, sku string, limit int) ([]*domain.InventoryLog, error)
}

type ProductResponse struct {
	SKU               string   `json:"sku"`
	Name              string   `json:"name"`
	Description       *string  `json:"description"`
	QuantityAvailable int      `json:"quantity_available"`
	QuantityReserved  int      `json:"quantity_reserved"`
	ReorderPoint      int      `json:"reorder_point"`
	ReorderQuantity   int      `json:"reorder_quantity"`
	Price             *float64 `json:"price"`
	Cost              *float64 `json:"cost"`
	NeedsReorder      bool     `json:"needs_reorder"`
	UpdatedAt         string   `json:"updated_at"`
}

type InventoryLogResponse struct {
	ID             string                     `json:"id"`
	SKU            string                     `json:"sku"`
	ChangeType     domain.InventoryChangeType `json:"change_type"`
	QuantityBefore int                        `json:"quantity_before"`
	QuantityAfter  int                        `json:"quantity_after"`
	QuantityChange int                        `json:"quantity_change"`
	Platform       *domain.Platform           `json:"platform"`
	OrderID        *string                    `json:"order_id"`
	Reason         string                     `json:"reason"`
	CreatedAt      string                     `json:"created_at"`
}

type ListProductsQuery struct {
	LowStock bool `form:"low_stock"`
	Limit    *int `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset   int  `form:"offset" binding:"min=0"`
}

type StockLogsQuery struct {
	Limit *int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// SaveProductRequest is the body of PUT /api/inventory/:sku
type SaveProductRequest struct {
	Name              string   `json:"name" binding:"required"`
	Description       *string  `json:"description"`
	QuantityAvailable int      `json:"quantity_available" binding:"min=0"`
	ReorderPoint      *int     `json:"reorder_point" binding:"omitempty,min=0"`
	ReorderQuantity   *int     `json:"reorder_quantity" binding:"omitempty,min=0"`
	Price             *float64 `json:"price" binding:"omitempty,min=0"`
	Cost              *float64 `json:"cost" binding:"omitempty,min=0"`
}

// AdjustStockRequest is the body of PATCH /api/inventory/:sku
type AdjustStockRequest struct {
	Quantity *int   `json:"quantity" binding:"required,min=0"`
	Reason   string `json:"reason"`
}

func decimalPtr(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}

func floatPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

func toProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		SKU:               p.SKU,
		Name:              p.Name,
		Description:       p.Description,
		QuantityAvailable: p.QuantityAvailable,
		QuantityReserved:  p.QuantityReserved,
		ReorderPoint:      p.ReorderPoint,
		ReorderQuantity:   p.ReorderQuantity,
		Price:             floatPtr(p.Price),
		Cost:              floatPtr(p.Cost),
		NeedsReorder:      p.NeedsReorder(),
		UpdatedAt:         p.UpdatedAt.Format(time.RFC3339),
	}
}

// HandleListProducts handles GET /api/inventory
func HandleListProducts(inventory InventoryManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query ListProductsQuery
		if err := c.ShouldBindQuery(&query); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid query",
				"details": err.Error(),
			})
			return
		}

		filter := domain.ProductFilter{LowStock: query.LowStock, Offset: query.Offset}
		if query.Limit != nil {
			filter.Limit = *query.Limit
		}

		products, err := inventory.ListProducts(c.Request.Context(), filter)
		if err != nil {
			respondError(c, logger, err, "Failed to list products")
			return
		}

		response := make([]ProductResponse, len(products))
		for i, p := range products {
			response[i] = toProductResponse(p)
		}
		c.JSON(http.StatusOK, response)
	}
}

// HandleGetProduct handles GET /api/inventory/:sku
func HandleGetProduct(inventory InventoryManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		product, err := inventory.GetProduct(c.Request.Context(), c.Param("sku"))
		if err != nil {
			respondError(c, logger, err, "Failed to get product")
			return
		}
		c.JSON(http.StatusOK, toProductResponse(product))
	}
}

// HandleSaveProduct handles PUT /api/inventory/:sku
func HandleSaveProduct(inventory InventoryManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SaveProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid request",
				"details": err.Error(),
			})
			return
		}

		product := &domain.Product{
			SKU:               c.Param("sku"),
			Name:              req.Name,
			Description:       req.Description,
			QuantityAvailable: req.QuantityAvailable,
			ReorderPoint:      service.DefaultReorderPoint,
			ReorderQuantity:   service.DefaultReorderQuantity,
			Price:             decimalPtr(req.Price),
			Cost:              decimalPtr(req.Cost),
		}
		if req.ReorderPoint != nil {
			product.ReorderPoint = *req.ReorderPoint
		}
		if req.ReorderQuantity != nil {
			product.ReorderQuantity = *req.ReorderQuantity
		}

		saved, err := inventory.SaveProduct(c.Request.Context(), product)
		if err != nil {
			respondError(c, logger, err, "Failed to save product")
			return
		}
		c.JSON(http.StatusOK, toProductResponse(saved))
	}
}

// HandleAdjustStock handles PATCH /api/inventory/:sku
func HandleAdjustStock(inventory InventoryManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AdjustStockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid request",
				"details": err.Error(),
			})
			return
		}

		product, err := inventory.AdjustStock(c.Request.Context(), c.Param("sku"), *req.Quantity, req.Reason)
		if err != nil {
			respondError(c, logger, err, "Failed to adjust stock")
			return
		}
		c.JSON(http.StatusOK, toProductResponse(product))
	}
}

// HandleStockLogs handles GET /api/inventory/:sku/logs
func HandleStockLogs(inventory InventoryManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query StockLogsQuery
		if err := c.ShouldBindQuery(&query); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid query",
				"details": err.Error(),
			})
			return
		}
		limit := 0
		if query.Limit != nil {
			limit = *query.Limit
		}

		logs, err := inventory.ListStockLogs(c.Request.Context(), c.Param("sku"), limit)
		if err != nil {
			respondError(c, logger, err, "Failed to list stock changes")
			return
		}

		response := make([]InventoryLogResponse, len(logs))
		for i, l := range logs {
			r := InventoryLogResponse{
				ID:             l.ID.String(),
				SKU:            l.SKU,
				ChangeType:     l.ChangeType,
				QuantityBefore: l.QuantityBefore,
				QuantityAfter:  l.QuantityAfter,
				QuantityChange: l.QuantityChange,
				Platform:       l.Platform,
				Reason:         l.Reason,
				CreatedAt:      l.CreatedAt.Format(time.RFC3339),
			}
			if l.OrderID != nil {
				id := l.OrderID.String()
				r.OrderID = &id
			}
			response[i] = r
		}
		c.JSON(http.StatusOK, response)
	}
}

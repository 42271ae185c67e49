package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orderhub/orderhub/internal/domain"
	"github.com/orderhub/orderhub/internal/service"
)

// OrderReader is the read side the order and platform handlers serve
type OrderReader interface {
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	PlatformSummary(ctx context.Context) (*service.PlatformSummary, error)
	PlatformHealth(ctx context.Context, platform domain.Platform) (*service.PlatformHealth, error)
	ListAnomalies(ctx context.Context, platform *domain.Platform, limit int) ([]*domain.Anomaly, error)
}

// OrderResponse represents the order response
type OrderResponse struct {
	ID                  string              `json:"id"`
	Platform            domain.Platform     `json:"platform"`
	ExternalOrderID     string              `json:"external_order_id"`
	OrderNumber         string              `json:"order_number"`
	Status              domain.OrderStatus  `json:"status"`
	OrderDate           string              `json:"order_date"`
	CustomerName        string              `json:"customer_name"`
	CustomerEmail       *string             `json:"customer_email"`
	ShippingAddress     *domain.Address     `json:"shipping_address"`
	Items               []OrderItemResponse `json:"items"`
	Subtotal            float64             `json:"subtotal"`
	Tax                 float64             `json:"tax"`
	ShippingCost        float64             `json:"shipping_cost"`
	Total               float64             `json:"total"`
	Currency            string              `json:"currency"`
	TrackingNumber      *string             `json:"tracking_number"`
	Carrier             *string             `json:"carrier"`
	Inconsistent        bool                `json:"inconsistent"`
	InconsistencyReason *string             `json:"inconsistency_reason,omitempty"`
	LastSyncedAt        string              `json:"last_synced_at"`
}

type OrderItemResponse struct {
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	VariantTitle *string `json:"variant_title"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	TotalPrice   float64 `json:"total_price"`
}

// ListOrdersQuery is bound from the query string of GET /api/orders
type ListOrdersQuery struct {
	Limit    *int   `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset   int    `form:"offset" binding:"min=0"`
	Platform string `form:"platform"`
	Status   string `form:"status"`
}

func toOrderResponse(o *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = OrderItemResponse{
			SKU:          item.SKU,
			Name:         item.Name,
			VariantTitle: item.VariantTitle,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice.InexactFloat64(),
			TotalPrice:   item.LineTotal.InexactFloat64(),
		}
	}
	return OrderResponse{
		ID:                  o.ID.String(),
		Platform:            o.Platform,
		ExternalOrderID:     o.ExternalOrderID,
		OrderNumber:         o.OrderNumber,
		Status:              o.Status,
		OrderDate:           o.OrderDate.Format(time.RFC3339),
		CustomerName:        o.CustomerName,
		CustomerEmail:       o.CustomerEmail,
		ShippingAddress:     o.ShippingAddress,
		Items:               items,
		Subtotal:            o.Subtotal.InexactFloat64(),
		Tax:                 o.Tax.InexactFloat64(),
		ShippingCost:        o.ShippingCost.InexactFloat64(),
		Total:               o.Total.InexactFloat64(),
		Currency:            o.Currency,
		TrackingNumber:      o.TrackingNumber,
		Carrier:             o.Carrier,
		Inconsistent:        o.Inconsistent,
		InconsistencyReason: o.InconsistencyReason,
		LastSyncedAt:        o.LastSyncedAt.Format(time.RFC3339),
	}
}

// HandleListOrders handles GET /api/orders
func HandleListOrders(orders OrderReader, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query ListOrdersQuery
		if err := c.ShouldBindQuery(&query); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid query",
				"details": err.Error(),
			})
			return
		}

		filter := domain.OrderFilter{Offset: query.Offset}
		if query.Limit != nil {
			filter.Limit = *query.Limit
		}
		if query.Platform != "" {
			p := domain.Platform(query.Platform)
			filter.Platform = &p
		}
		if query.Status != "" {
			s := domain.OrderStatus(query.Status)
			filter.Status = &s
		}

		list, total, err := orders.ListOrders(c.Request.Context(), filter)
		if err != nil {
			respondError(c, logger, err, "Failed to list orders")
			return
		}

		response := make([]OrderResponse, len(list))
		for i, o := range list {
			response[i] = toOrderResponse(o)
		}
		c.Header("X-Total-Count", strconv.Itoa(total))
		c.JSON(http.StatusOK, response)
	}
}

// HandleGetOrder handles GET /api/orders/:id
func HandleGetOrder(orders OrderReader, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
			return
		}

		order, err := orders.GetOrder(c.Request.Context(), orderID)
		if err != nil {
			respondError(c, logger, err, "Failed to get order")
			return
		}

		c.JSON(http.StatusOK, toOrderResponse(order))
	}
}

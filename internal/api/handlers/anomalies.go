package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/orderhub/orderhub/internal/domain"
)

type AnomalyResponse struct {
	ID              string             `json:"id"`
	Kind            domain.AnomalyKind `json:"kind"`
	Platform        domain.Platform    `json:"platform"`
	ExternalOrderID string             `json:"external_order_id"`
	OrderID         string             `json:"order_id"`
	StoredStatus    domain.OrderStatus `json:"stored_status"`
	IncomingStatus  domain.OrderStatus `json:"incoming_status"`
	DetectedAt      string             `json:"detected_at"`
}

type ListAnomaliesQuery struct {
	Platform string `form:"platform"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

// HandleListAnomalies handles GET /api/anomalies
func HandleListAnomalies(orders OrderReader, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query ListAnomaliesQuery
		if err := c.ShouldBindQuery(&query); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid query",
				"details": err.Error(),
			})
			return
		}

		var platform *domain.Platform
		if query.Platform != "" {
			p := domain.Platform(query.Platform)
			platform = &p
		}

		anomalies, err := orders.ListAnomalies(c.Request.Context(), platform, query.Limit)
		if err != nil {
			respondError(c, logger, err, "Failed to list anomalies")
			return
		}

		response := make([]AnomalyResponse, len(anomalies))
		for i, a := range anomalies {
			response[i] = AnomalyResponse{
				ID:              a.ID.String(),
				Kind:            a.Kind,
				Platform:        a.Platform,
				ExternalOrderID: a.ExternalOrderID,
				OrderID:         a.OrderID.String(),
				StoredStatus:    a.StoredStatus,
				IncomingStatus:  a.IncomingStatus,
				DetectedAt:      a.DetectedAt.Format(time.RFC3339),
			}
		}
		c.JSON(http.StatusOK, response)
	}
}

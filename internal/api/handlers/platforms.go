package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/orderhub/orderhub/internal/domain"
	"github.com/orderhub/orderhub/internal/service"
)

// SyncController starts passes and manages connections
type SyncController interface {
	TriggerPlatform(ctx context.Context, platform domain.Platform) error
	TriggerAll(ctx context.Context) (*service.TriggerResult, error)
	Reconnect(ctx context.Context, platform domain.Platform) (*domain.PlatformConnection, error)
}

// platformParam reads :platform and rejects names outside the supported set
func platformParam(c *gin.Context) (domain.Platform, bool) {
	p := domain.Platform(c.Param("platform"))
	if !p.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported platform: " + string(p)})
		return p, false
	}
	return p, true
}

// HandlePlatformSummary handles GET /api/platforms
func HandlePlatformSummary(orders OrderReader, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := orders.PlatformSummary(c.Request.Context())
		if err != nil {
			respondError(c, logger, err, "Failed to summarize platforms")
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// HandlePlatformHealth handles GET /api/platforms/:platform/health
func HandlePlatformHealth(orders OrderReader, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		platform, ok := platformParam(c)
		if !ok {
			return
		}
		health, err := orders.PlatformHealth(c.Request.Context(), platform)
		if err != nil {
			respondError(c, logger, err, "Failed to get platform health")
			return
		}
		c.JSON(http.StatusOK, health)
	}
}

// HandleReconnect handles POST /api/platforms/:platform/reconnect
func HandleReconnect(syncer SyncController, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		platform, ok := platformParam(c)
		if !ok {
			return
		}
		conn, err := syncer.Reconnect(c.Request.Context(), platform)
		if err != nil {
			respondError(c, logger, err, "Failed to reconnect platform")
			return
		}
		logger.Info("Platform reconnected via API", zap.String("platform", string(platform)))
		c.JSON(http.StatusOK, service.HealthFromConnection(conn))
	}
}

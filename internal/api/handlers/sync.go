package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandleSyncPlatform handles POST /api/platforms/:platform/sync
func HandleSyncPlatform(syncer SyncController, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		platform, ok := platformParam(c)
		if !ok {
			return
		}
		if err := syncer.TriggerPlatform(c.Request.Context(), platform); err != nil {
			respondError(c, logger, err, "Failed to trigger sync")
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"platform": platform,
			"status":   "accepted",
		})
	}
}

// HandleSyncAll handles POST /api/orders/sync
func HandleSyncAll(syncer SyncController, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := syncer.TriggerAll(c.Request.Context())
		if err != nil {
			respondError(c, logger, err, "Failed to trigger sync")
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"message":         "sync started",
			"accepted":        result.Accepted,
			"already_running": result.AlreadyRunning,
		})
	}
}

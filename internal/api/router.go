package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/orderhub/orderhub/internal/api/handlers"
	"github.com/orderhub/orderhub/internal/api/middleware"
	"github.com/orderhub/orderhub/internal/config"
)

const serviceVersion = "1.0.0"

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, orders handlers.OrderReader, syncer handlers.SyncController, inventory handlers.InventoryManager, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger.Named("http")))
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":   "orderhub",
			"version":   serviceVersion,
			"demo_mode": cfg.DemoMode,
		})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/platforms", handlers.HandlePlatformSummary(orders, logger))
		api.GET("/platforms/:platform/health", handlers.HandlePlatformHealth(orders, logger))
		api.GET("/orders", handlers.HandleListOrders(orders, logger))
		api.GET("/orders/:id", handlers.HandleGetOrder(orders, logger))
		api.GET("/anomalies", handlers.HandleListAnomalies(orders, logger))
		api.GET("/inventory", handlers.HandleListProducts(inventory, logger))
		api.GET("/inventory/:sku", handlers.HandleGetProduct(inventory, logger))
		api.GET("/inventory/:sku/logs", handlers.HandleStockLogs(inventory, logger))

		// Mutating routes require the admin key when one is configured
		admin := api.Group("")
		admin.Use(middleware.AdminAuthMiddleware(cfg.API.AdminKeyHash, logger))
		{
			admin.POST("/orders/sync", handlers.HandleSyncAll(syncer, logger))
			admin.POST("/platforms/:platform/sync", handlers.HandleSyncPlatform(syncer, logger))
			admin.POST("/platforms/:platform/reconnect", handlers.HandleReconnect(syncer, logger))
			admin.PUT("/inventory/:sku", handlers.HandleSaveProduct(inventory, logger))
			admin.PATCH("/inventory/:sku", handlers.HandleAdjustStock(inventory, logger))
		}
	}

	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP request", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	}
}

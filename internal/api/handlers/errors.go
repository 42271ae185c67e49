package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/orderhub/orderhub/internal/service"
	"github.com/orderhub/orderhub/pkg/errors"
)

// respondError maps service errors to status codes. Anything unrecognised
// is logged and hidden behind a 500.
func respondError(c *gin.Context, logger *zap.Logger, err error, msg string) {
	var (
		notFound   *errors.ErrNotFound
		validation *errors.ErrValidation
		unauth     *errors.ErrUnauthorized
	)
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &unauth):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnknownPlatform):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSyncAlreadyInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": service.ErrSyncAlreadyInProgress.Error()})
	case errors.Is(err, service.ErrReconnectRequired):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

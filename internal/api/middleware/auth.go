package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const adminContextKey = "admin"

// AdminAuthMiddleware guards mutating routes with a bcrypt-hashed bearer key.
// An empty hash leaves the routes open.
func AdminAuthMiddleware(keyHash string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if keyHash == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		apiKey, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed authorization header"})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(apiKey)); err != nil {
			logger.Warn("Rejected admin key",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}

		c.Set(adminContextKey, true)
		c.Next()
	}
}

// IsAdmin reports whether the request passed AdminAuthMiddleware with a key
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(adminContextKey)
}

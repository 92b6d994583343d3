package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"alert-service/internal/logging"
	"alert-service/internal/realtime"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	userIDKey       = "user_id"
)

func RequestLoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)

		path := c.Request.URL.Path
		method := c.Request.Method
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		logger.WithRequest(requestID).Infof("Request: %s %s, Status: %d, Latency: %v", method, path, status, latency)
	}
}

// AuthMiddleware resolves the bearer token to a user id stored under "user_id".
func AuthMiddleware(verifier realtime.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing token"})
			return
		}
		userID, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// bearerToken reads the Authorization header, falling back to the token query
// parameter since browsers cannot set headers on websocket upgrades.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
		return ""
	}
	return c.Query("token")
}

package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestID attaches a unique request ID to every request, honoring an
// incoming X-Request-ID header when the caller supplies one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}

		c.Set(string(requestIDKey), reqID)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), requestIDKey, reqID))
		c.Header("X-Request-ID", reqID)

		c.Next()
	}
}

// FromContext extracts the request ID, "" when absent.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

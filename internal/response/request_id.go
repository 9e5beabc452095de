package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the Gin context key for the request ID.
const ContextKeyRequestID = "request_id"

// maxRequestIDLen bounds client-supplied IDs before they reach logs.
const maxRequestIDLen = 64

// RequestIDMiddleware generates a unique request ID for every request.
// A client-supplied X-Request-ID is echoed back when it is short enough.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" || len(reqID) > maxRequestIDLen {
			reqID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}

// RequestID returns the ID assigned by RequestIDMiddleware.
func RequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

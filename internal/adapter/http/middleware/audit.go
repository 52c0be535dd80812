package middleware

import (
	"engagement-rewards/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// AuditContext copies the client IP into the request context, where the
// audit service picks it up for every entry it writes.
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ports.WithClientIP(c.Request.Context(), c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

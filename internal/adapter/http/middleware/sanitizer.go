package middleware

import (
	"net/http"

	"engagement-rewards/pkg/apperror"
	"engagement-rewards/pkg/response"

	"github.com/gin-gonic/gin"
)

// MaxBodySize caps request bodies at limit bytes. A declared Content-Length
// over the cap is refused with GEN_003 before the handler runs. Bodies of
// unknown length fail on the read that crosses the cap.
func MaxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := c.Request
		if req.ContentLength > limit {
			response.Error(c, apperror.ErrPayloadTooLarge(limit))
			c.Abort()
			return
		}
		if req.Body != nil {
			req.Body = http.MaxBytesReader(c.Writer, req.Body, limit)
		}
		c.Next()
	}
}

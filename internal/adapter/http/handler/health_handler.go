package handler

import (
	"context"
	"net/http"
	"time"

	"engagement-rewards/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck handles GET /health. Each dependency gets its own check
// deadline; any failure reports 503 "degraded".
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	type depStatus struct {
		Status    string `json:"status"`
		LatencyMS int64  `json:"latency_ms"`
		Error     string `json:"error,omitempty"`
	}

	return func(c *gin.Context) {
		deps := make(map[string]depStatus, len(checkers))
		healthy := true

		for _, checker := range checkers {
			ctx, cancel := context.WithTimeout(c.Request.Context(), ports.HealthCheckTimeout)
			start := time.Now()
			err := checker.Ping(ctx)
			cancel()

			st := depStatus{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				st.Status = "unhealthy"
				st.Error = err.Error()
				healthy = false
			}
			deps[checker.Name()] = st
		}

		if !healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "dependencies": deps})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "dependencies": deps})
	}
}

// Metrics handles GET /metrics for the given registry.
func Metrics(gatherer prometheus.Gatherer) gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const healthCheckKey = "health:check"

// HealthCheck implements ports.HealthChecker. Submission claims need writes,
// so the check sets a short-lived key instead of a bare PING; a read-only
// replica fails it.
type HealthCheck struct {
	client goredis.Cmdable
}

func NewHealthCheck(client goredis.Cmdable) *HealthCheck {
	return &HealthCheck{client: client}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if err := h.client.Set(ctx, healthCheckKey, time.Now().Unix(), 10*time.Second).Err(); err != nil {
		return fmt.Errorf("redis write check: %w", err)
	}
	return nil
}

func (h *HealthCheck) Name() string { return "redis" }

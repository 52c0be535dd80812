package ports

import (
	"context"
	"time"
)

// HealthCheckTimeout bounds a single dependency check on GET /health.
const HealthCheckTimeout = 2 * time.Second

// HealthChecker is a store the ledger cannot serve traffic without.
type HealthChecker interface {
	// Ping returns nil when the store can take ledger reads and writes.
	Ping(ctx context.Context) error
	// Name labels the store in the health report, e.g. "postgresql".
	Name() string
}

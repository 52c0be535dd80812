package postgres

import (
	"context"
	"errors"
	"fmt"
)

var errSchemaMissing = errors.New("ledger tables are missing, migrations have not run")

// ledgerTablesSQL reports whether every table the ledger writes to exists.
const ledgerTablesSQL = `SELECT to_regclass('public.submissions') IS NOT NULL
	AND to_regclass('public.earnings_accounts') IS NOT NULL
	AND to_regclass('public.withdrawals') IS NOT NULL`

// HealthCheck implements ports.HealthChecker. A reachable database with an
// unmigrated schema is reported unhealthy.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	var ready bool
	if err := h.pool.QueryRow(ctx, ledgerTablesSQL).Scan(&ready); err != nil {
		return fmt.Errorf("check ledger tables: %w", err)
	}
	if !ready {
		return errSchemaMissing
	}
	return nil
}

func (h *HealthCheck) Name() string { return "postgresql" }

package postgres

import (
	"context"
	"errors"
	"fmt"

	"engagement-rewards/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const idempotencyColumns = `key, request_hash, resource_id, response_json, created_at`

// IdempotencyRepo implements ports.IdempotencyRepository on idempotency_logs.
// Rows are never updated; the first response stored for a key is final.
type IdempotencyRepo struct {
	pool Pool
}

func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Create stores the log inside the transaction that produced the response,
// so a rolled-back request leaves the key unused.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, entry *domain.IdempotencyLog) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO idempotency_logs (`+idempotencyColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		entry.Key, entry.RequestHash, entry.ResourceID, entry.ResponseJSON, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert idempotency log %s: %w", entry.Key, err)
	}
	return nil
}

// Get returns nil, nil for an unused key.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	entry := &domain.IdempotencyLog{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+idempotencyColumns+` FROM idempotency_logs WHERE key = $1`, key).
		Scan(&entry.Key, &entry.RequestHash, &entry.ResourceID, &entry.ResponseJSON, &entry.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency log: %w", err)
	}
	return entry, nil
}

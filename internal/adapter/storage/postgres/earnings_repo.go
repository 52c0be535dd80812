package postgres

import (
	"context"
	"errors"
	"fmt"

	"engagement-rewards/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const earningsColumns = `user_id, total_earned, available_balance, pending_withdrawal, withdrawn_amount, created_at, updated_at`

// EarningsRepo implements ports.EarningsRepository.
// Each mutation is one statement incrementing columns in place, so concurrent
// writers never overwrite each other's totals.
type EarningsRepo struct {
	pool Pool
}

// NewEarningsRepo creates a new EarningsRepo.
func NewEarningsRepo(pool Pool) *EarningsRepo {
	return &EarningsRepo{pool: pool}
}

// Get fetches an account by user ID. Returns nil, nil if the user never earned.
func (r *EarningsRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.EarningsAccount, error) {
	query := `SELECT ` + earningsColumns + ` FROM earnings_accounts WHERE user_id = $1`
	return scanEarnings(r.pool.QueryRow(ctx, query, userID))
}

// Credit creates the account on first credit, otherwise increments it.
func (r *EarningsRepo) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*domain.EarningsAccount, error) {
	query := `INSERT INTO earnings_accounts (user_id, total_earned, available_balance, pending_withdrawal, withdrawn_amount, created_at, updated_at)
		VALUES ($1, $2, $2, 0, 0, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			total_earned = earnings_accounts.total_earned + EXCLUDED.total_earned,
			available_balance = earnings_accounts.available_balance + EXCLUDED.available_balance,
			updated_at = NOW()
		RETURNING ` + earningsColumns

	a, err := scanEarnings(tx.QueryRow(ctx, query, userID, amount))
	if err != nil {
		return nil, fmt.Errorf("credit earnings: %w", err)
	}
	if a == nil {
		return nil, fmt.Errorf("credit earnings: no row returned for %s", userID)
	}
	return a, nil
}

// Reserve moves amount from available to pending if the balance covers it.
func (r *EarningsRepo) Reserve(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*domain.EarningsAccount, error) {
	query := `UPDATE earnings_accounts SET
			available_balance = available_balance - $2,
			pending_withdrawal = pending_withdrawal + $2,
			updated_at = NOW()
		WHERE user_id = $1 AND available_balance >= $2
		RETURNING ` + earningsColumns

	a, err := scanEarnings(tx.QueryRow(ctx, query, userID, amount))
	if err != nil {
		return nil, fmt.Errorf("reserve earnings: %w", err)
	}
	return a, nil
}

// Settle moves amount from pending to withdrawn.
func (r *EarningsRepo) Settle(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*domain.EarningsAccount, error) {
	query := `UPDATE earnings_accounts SET
			pending_withdrawal = pending_withdrawal - $2,
			withdrawn_amount = withdrawn_amount + $2,
			updated_at = NOW()
		WHERE user_id = $1 AND pending_withdrawal >= $2
		RETURNING ` + earningsColumns

	a, err := scanEarnings(tx.QueryRow(ctx, query, userID, amount))
	if err != nil {
		return nil, fmt.Errorf("settle earnings: %w", err)
	}
	return a, nil
}

// Release moves amount from pending back to available.
func (r *EarningsRepo) Release(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*domain.EarningsAccount, error) {
	query := `UPDATE earnings_accounts SET
			pending_withdrawal = pending_withdrawal - $2,
			available_balance = available_balance + $2,
			updated_at = NOW()
		WHERE user_id = $1 AND pending_withdrawal >= $2
		RETURNING ` + earningsColumns

	a, err := scanEarnings(tx.QueryRow(ctx, query, userID, amount))
	if err != nil {
		return nil, fmt.Errorf("release earnings: %w", err)
	}
	return a, nil
}

func scanEarnings(row pgx.Row) (*domain.EarningsAccount, error) {
	a := &domain.EarningsAccount{}
	err := row.Scan(
		&a.UserID, &a.TotalEarned, &a.AvailableBalance, &a.PendingWithdrawal,
		&a.WithdrawnAmount, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

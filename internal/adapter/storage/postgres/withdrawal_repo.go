package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"engagement-rewards/internal/core/domain"
	"engagement-rewards/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `id, user_id, amount, status, reference, bank_details_enc, account_last4, bank_name,
		rejection_reason, created_at, processed_at`

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

// Create inserts a new withdrawal within a database transaction.
func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalTransaction) error {
	query := `INSERT INTO withdrawals (` + withdrawalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.UserID, w.Amount, w.Status, w.Reference, w.BankDetailsEnc,
		w.AccountLast4, w.BankName, w.RejectionReason, w.CreatedAt, w.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

// GetByID fetches a withdrawal by UUID (without locking).
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalTransaction, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`
	return scanWithdrawal(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a withdrawal with a row lock.
// This MUST be called within a transaction.
func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalTransaction, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1 FOR UPDATE`
	return scanWithdrawal(tx.QueryRow(ctx, query, id))
}

// UpdateStatus finalizes a pending withdrawal.
func (r *WithdrawalRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalTransaction) error {
	query := `UPDATE withdrawals SET status = $1, rejection_reason = $2, processed_at = $3
		WHERE id = $4 AND status = 'pending'`

	tag, err := tx.Exec(ctx, query, w.Status, w.RejectionReason, w.ProcessedAt, w.ID)
	if err != nil {
		return fmt.Errorf("update withdrawal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal not pending: %s", w.ID)
	}
	return nil
}

// List fetches withdrawals with filtering and pagination.
func (r *WithdrawalRepo) List(ctx context.Context, params ports.WithdrawalListParams) ([]domain.WithdrawalTransaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, *params.UserID)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM withdrawals %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count withdrawals: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM withdrawals %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		withdrawalColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list withdrawals: %w", err)
	}
	defer rows.Close()

	var out []domain.WithdrawalTransaction
	for rows.Next() {
		w := domain.WithdrawalTransaction{}
		err := rows.Scan(
			&w.ID, &w.UserID, &w.Amount, &w.Status, &w.Reference, &w.BankDetailsEnc,
			&w.AccountLast4, &w.BankName, &w.RejectionReason, &w.CreatedAt, &w.ProcessedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan withdrawal row: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate withdrawal rows: %w", err)
	}
	return out, total, nil
}

func scanWithdrawal(row pgx.Row) (*domain.WithdrawalTransaction, error) {
	w := &domain.WithdrawalTransaction{}
	err := row.Scan(
		&w.ID, &w.UserID, &w.Amount, &w.Status, &w.Reference, &w.BankDetailsEnc,
		&w.AccountLast4, &w.BankName, &w.RejectionReason, &w.CreatedAt, &w.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan withdrawal: %w", err)
	}
	return w, nil
}

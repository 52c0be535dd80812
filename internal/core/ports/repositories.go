package ports

import (
	"context"
	"time"

	"engagement-rewards/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SubmissionRepository defines persistence operations for submissions.
// Methods accepting pgx.Tx run inside the caller's transaction.
type SubmissionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, submission *domain.Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Submission, error)
	UpdateReview(ctx context.Context, tx pgx.Tx, submission *domain.Submission) error
	// RecentFingerprinted returns up to limit fingerprinted submissions created at or after since, newest first.
	RecentFingerprinted(ctx context.Context, tx pgx.Tx, userID uuid.UUID, platform domain.Platform, since time.Time, limit int) ([]domain.Submission, error)
	// RateWindow counts pending and approved submissions created at or after since.
	RateWindow(ctx context.Context, tx pgx.Tx, userID uuid.UUID, platform domain.Platform, since time.Time) (*domain.RateWindow, error)
	VideoRewarded(ctx context.Context, tx pgx.Tx, userID uuid.UUID, videoID string) (bool, error)
	List(ctx context.Context, params SubmissionListParams) ([]domain.Submission, int64, error)
}

// SubmissionListParams holds filter + pagination for listing submissions.
type SubmissionListParams struct {
	UserID   *uuid.UUID // nil lists every user (admin review queue)
	Platform *domain.Platform
	Status   *domain.SubmissionStatus
	Page     int
	PageSize int
}

// EarningsRepository defines persistence for earnings accounts.
// Every mutation is a single atomic increment returning the updated row.
type EarningsRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (*domain.EarningsAccount, error)
	// Credit creates the account on first use.
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*domain.EarningsAccount, error)
	// Reserve returns nil, nil when the account is missing or the available balance is short.
	Reserve(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*domain.EarningsAccount, error)
	// Settle and Release return nil, nil when the pending balance is short.
	Settle(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*domain.EarningsAccount, error)
	Release(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*domain.EarningsAccount, error)
}

// WithdrawalRepository defines persistence for withdrawal transactions.
type WithdrawalRepository interface {
	Create(ctx context.Context, tx pgx.Tx, withdrawal *domain.WithdrawalTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalTransaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalTransaction, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, withdrawal *domain.WithdrawalTransaction) error
	List(ctx context.Context, params WithdrawalListParams) ([]domain.WithdrawalTransaction, int64, error)
}

// WithdrawalListParams holds filter + pagination for listing withdrawals.
type WithdrawalListParams struct {
	UserID   *uuid.UUID
	Status   *domain.WithdrawalStatus
	Page     int
	PageSize int
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UserLocker serializes work for one user for the lifetime of tx.
type UserLocker interface {
	LockUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error
}

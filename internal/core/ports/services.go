package ports

import (
	"context"
	"time"

	"engagement-rewards/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EncryptionService seals values stored at rest. binding is authenticated
// with the value and must be repeated to open it.
type EncryptionService interface {
	Encrypt(plaintext, binding string) (string, error)
	Decrypt(ciphertext, binding string) (string, error)
}

// Token roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// TokenService validates bearer tokens issued by the auth service.
type TokenService interface {
	Generate(userID uuid.UUID, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   string
}

// IdempotencyCache is the fast path in front of IdempotencyRepository. Values
// are JSON-encoded domain.IdempotencyLog entries.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil on miss
	// Set keeps the first value stored for a live key.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// SubmissionGuard holds short-lived claims on in-flight submissions.
type SubmissionGuard interface {
	// Claim returns true if the key was free and is now held by the caller.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Fingerprinter fetches an image and returns its perceptual fingerprint.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, imageURL string) (string, error)
}

// SimilarityMatcher decides whether two fingerprints describe the same image.
type SimilarityMatcher interface {
	IsDuplicate(a, b *string) (bool, error)
}

// Notifier pushes realtime events to a user's connected clients.
// Delivery is best-effort; callers log and ignore errors.
type Notifier interface {
	Emit(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error
}

// PayoutGateway sends an approved withdrawal to the payment provider.
type PayoutGateway interface {
	Payout(ctx context.Context, withdrawal *domain.WithdrawalTransaction, bank domain.BankDetails) error
}

// --- Service Ports (Business Logic) ---

// SubmissionService accepts, deduplicates and reviews submissions.
type SubmissionService interface {
	CreateSubmission(ctx context.Context, req CreateSubmissionRequest) (*domain.Submission, error)
	CompleteVideo(ctx context.Context, req VideoCompletionRequest) (*domain.Submission, error)
	Approve(ctx context.Context, submissionID, actorID uuid.UUID) (*domain.Submission, error)
	Reject(ctx context.Context, submissionID, actorID uuid.UUID, reason string) (*domain.Submission, error)
}

// CreateSubmissionRequest holds validated input for a screenshot submission.
type CreateSubmissionRequest struct {
	UserID        uuid.UUID
	Platform      domain.Platform
	ScreenshotURL string
}

// VideoCompletionRequest holds validated input for a watched-video reward.
type VideoCompletionRequest struct {
	UserID          uuid.UUID
	VideoID         string
	WatchedSeconds  float64
	DurationSeconds float64
	Amount          int64 // Minor units
}

// EarningsLedger applies balance mutations inside the caller's transaction.
// Every returned account has passed the balance invariant check.
type EarningsLedger interface {
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*domain.EarningsAccount, error)
	ReserveForWithdrawal(ctx context.Context, tx pgx.Tx, req ReserveRequest) (*domain.WithdrawalTransaction, *domain.EarningsAccount, error)
	FinalizeWithdrawal(ctx context.Context, tx pgx.Tx, withdrawalID uuid.UUID, outcome domain.WithdrawalOutcome, reason string) (*domain.WithdrawalTransaction, *domain.EarningsAccount, error)
}

// ReserveRequest moves available balance into a new pending withdrawal.
type ReserveRequest struct {
	UserID         uuid.UUID
	Amount         int64
	BankDetailsEnc string
	AccountLast4   string
	BankName       string
}

// WithdrawalService orchestrates withdrawal requests and admin finalization.
type WithdrawalService interface {
	Request(ctx context.Context, req WithdrawalRequest) (*domain.WithdrawalTransaction, error)
	Approve(ctx context.Context, withdrawalID, actorID uuid.UUID) (*domain.WithdrawalTransaction, error)
	Reject(ctx context.Context, withdrawalID, actorID uuid.UUID, reason string) (*domain.WithdrawalTransaction, error)
}

// WithdrawalRequest holds validated input for a withdrawal request.
type WithdrawalRequest struct {
	UserID         uuid.UUID
	Amount         int64
	Bank           domain.BankDetails
	IdempotencyKey string // Optional
}

// ReportingService serves read-only views of earnings and history.
type ReportingService interface {
	GetEarnings(ctx context.Context, userID uuid.UUID) (*domain.EarningsAccount, error)
	ListSubmissions(ctx context.Context, params SubmissionListParams) ([]domain.Submission, int64, error)
	ListWithdrawals(ctx context.Context, params WithdrawalListParams) ([]domain.WithdrawalTransaction, int64, error)
}

// AuditService records audited actions asynchronously.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

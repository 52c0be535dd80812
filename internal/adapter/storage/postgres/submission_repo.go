package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"engagement-rewards/internal/core/domain"
	"engagement-rewards/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const submissionColumns = `id, user_id, platform, screenshot_ref, fingerprint, video_id, status, amount,
		rejection_reason, reviewed_by, created_at, reviewed_at`

// SubmissionRepo implements ports.SubmissionRepository.
type SubmissionRepo struct {
	pool Pool
}

// NewSubmissionRepo creates a new SubmissionRepo.
func NewSubmissionRepo(pool Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

// Create inserts a new submission within a database transaction.
func (r *SubmissionRepo) Create(ctx context.Context, tx pgx.Tx, s *domain.Submission) error {
	query := `INSERT INTO submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := tx.Exec(ctx, query,
		s.ID, s.UserID, s.Platform, s.ScreenshotRef, s.Fingerprint, s.VideoID,
		s.Status, s.Amount, s.RejectionReason, s.ReviewedBy, s.CreatedAt, s.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// GetByID fetches a submission by UUID (without locking).
func (r *SubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	return scanSubmission(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a submission with a row lock.
// This MUST be called within a transaction.
func (r *SubmissionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1 FOR UPDATE`
	return scanSubmission(tx.QueryRow(ctx, query, id))
}

// UpdateReview persists the review outcome. Only pending rows are updated.
func (r *SubmissionRepo) UpdateReview(ctx context.Context, tx pgx.Tx, s *domain.Submission) error {
	query := `UPDATE submissions SET status = $1, rejection_reason = $2, reviewed_by = $3, reviewed_at = $4
		WHERE id = $5 AND status = 'pending'`

	tag, err := tx.Exec(ctx, query, s.Status, s.RejectionReason, s.ReviewedBy, s.ReviewedAt, s.ID)
	if err != nil {
		return fmt.Errorf("update submission review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission not pending: %s", s.ID)
	}
	return nil
}

// RecentFingerprinted returns the user's newest fingerprinted submissions for a platform.
func (r *SubmissionRepo) RecentFingerprinted(ctx context.Context, tx pgx.Tx, userID uuid.UUID, platform domain.Platform, since time.Time, limit int) ([]domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
		WHERE user_id = $1 AND platform = $2 AND fingerprint IS NOT NULL AND created_at >= $3
		ORDER BY created_at DESC LIMIT $4`

	rows, err := tx.Query(ctx, query, userID, platform, since, limit)
	if err != nil {
		return nil, fmt.Errorf("recent fingerprinted submissions: %w", err)
	}
	defer rows.Close()

	return collectSubmissions(rows)
}

// RateWindow counts the user's pending and approved submissions created after since.
func (r *SubmissionRepo) RateWindow(ctx context.Context, tx pgx.Tx, userID uuid.UUID, platform domain.Platform, since time.Time) (*domain.RateWindow, error) {
	query := `SELECT COUNT(*), MIN(created_at) FROM submissions
		WHERE user_id = $1 AND platform = $2 AND status IN ('pending', 'approved') AND created_at > $3`

	w := &domain.RateWindow{}
	var count int64
	if err := tx.QueryRow(ctx, query, userID, platform, since).Scan(&count, &w.Oldest); err != nil {
		return nil, fmt.Errorf("submission rate window: %w", err)
	}
	w.Count = int(count)
	return w, nil
}

// VideoRewarded reports whether the user already holds a non-rejected reward for videoID.
func (r *SubmissionRepo) VideoRewarded(ctx context.Context, tx pgx.Tx, userID uuid.UUID, videoID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM submissions WHERE user_id = $1 AND video_id = $2 AND status <> 'rejected')`

	var exists bool
	if err := tx.QueryRow(ctx, query, userID, videoID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check video reward: %w", err)
	}
	return exists, nil
}

// List fetches submissions with filtering and pagination.
func (r *SubmissionRepo) List(ctx context.Context, params ports.SubmissionListParams) ([]domain.Submission, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, *params.UserID)
		argIdx++
	}
	if params.Platform != nil {
		conditions = append(conditions, fmt.Sprintf("platform = $%d", argIdx))
		args = append(args, *params.Platform)
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

	// Count total
	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM submissions %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM submissions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		submissionColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	subs, err := collectSubmissions(rows)
	if err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

func collectSubmissions(rows pgx.Rows) ([]domain.Submission, error) {
	var subs []domain.Submission
	for rows.Next() {
		s := domain.Submission{}
		err := rows.Scan(
			&s.ID, &s.UserID, &s.Platform, &s.ScreenshotRef, &s.Fingerprint, &s.VideoID,
			&s.Status, &s.Amount, &s.RejectionReason, &s.ReviewedBy, &s.CreatedAt, &s.ReviewedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan submission row: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submission rows: %w", err)
	}
	return subs, nil
}

// scanSubmission is a helper to scan a single row into a Submission.
func scanSubmission(row pgx.Row) (*domain.Submission, error) {
	s := &domain.Submission{}
	err := row.Scan(
		&s.ID, &s.UserID, &s.Platform, &s.ScreenshotRef, &s.Fingerprint, &s.VideoID,
		&s.Status, &s.Amount, &s.RejectionReason, &s.ReviewedBy, &s.CreatedAt, &s.ReviewedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	return s, nil
}

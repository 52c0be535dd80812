package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"engagement-rewards/internal/core/domain"
	"engagement-rewards/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SubmissionRepo implements ports.SubmissionRepository.
type SubmissionRepo struct {
	store *Store
}

// NewSubmissionRepo creates a SubmissionRepo on s.
func NewSubmissionRepo(s *Store) *SubmissionRepo {
	return &SubmissionRepo{store: s}
}

func (r *SubmissionRepo) Create(ctx context.Context, tx pgx.Tx, sub *domain.Submission) error {
	return r.store.write(tx, func(d *state) error {
		if _, ok := d.submissions[sub.ID]; ok {
			return fmt.Errorf("insert submission: duplicate id %s", sub.ID)
		}
		if sub.VideoID != nil && sub.Status != domain.SubmissionStatusRejected {
			for _, existing := range d.submissions {
				if existing.UserID == sub.UserID && existing.VideoID != nil &&
					*existing.VideoID == *sub.VideoID && existing.Status != domain.SubmissionStatusRejected {
					return fmt.Errorf("insert submission: video %s already rewarded", *sub.VideoID)
				}
			}
		}
		d.seq++
		d.submissions[sub.ID] = *sub
		d.order[sub.ID] = d.seq
		return nil
	})
}

func (r *SubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	var out *domain.Submission
	r.store.read(func(d *state) {
		if s, ok := d.submissions[id]; ok {
			out = &s
		}
	})
	return out, nil
}

func (r *SubmissionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Submission, error) {
	if _, err := r.store.own(tx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *SubmissionRepo) UpdateReview(ctx context.Context, tx pgx.Tx, sub *domain.Submission) error {
	return r.store.write(tx, func(d *state) error {
		existing, ok := d.submissions[sub.ID]
		if !ok || existing.Status != domain.SubmissionStatusPending {
			return fmt.Errorf("submission not pending: %s", sub.ID)
		}
		existing.Status = sub.Status
		existing.RejectionReason = sub.RejectionReason
		existing.ReviewedBy = sub.ReviewedBy
		existing.ReviewedAt = sub.ReviewedAt
		d.submissions[sub.ID] = existing
		return nil
	})
}

func (r *SubmissionRepo) RecentFingerprinted(ctx context.Context, tx pgx.Tx, userID uuid.UUID, platform domain.Platform, since time.Time, limit int) ([]domain.Submission, error) {
	var out []domain.Submission
	err := r.store.write(tx, func(d *state) error {
		out = d.filterSubmissions(func(s domain.Submission) bool {
			return s.UserID == userID && s.Platform == platform && s.Fingerprint != nil && !s.CreatedAt.Before(since)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SubmissionRepo) RateWindow(ctx context.Context, tx pgx.Tx, userID uuid.UUID, platform domain.Platform, since time.Time) (*domain.RateWindow, error) {
	w := &domain.RateWindow{}
	err := r.store.write(tx, func(d *state) error {
		for _, s := range d.submissions {
			if s.UserID != userID || s.Platform != platform || !s.CountsTowardLimit() || !s.CreatedAt.After(since) {
				continue
			}
			w.Count++
			if w.Oldest == nil || s.CreatedAt.Before(*w.Oldest) {
				at := s.CreatedAt
				w.Oldest = &at
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *SubmissionRepo) VideoRewarded(ctx context.Context, tx pgx.Tx, userID uuid.UUID, videoID string) (bool, error) {
	var found bool
	err := r.store.write(tx, func(d *state) error {
		for _, s := range d.submissions {
			if s.UserID == userID && s.VideoID != nil && *s.VideoID == videoID && s.Status != domain.SubmissionStatusRejected {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}

func (r *SubmissionRepo) List(ctx context.Context, params ports.SubmissionListParams) ([]domain.Submission, int64, error) {
	var all []domain.Submission
	r.store.read(func(d *state) {
		all = d.filterSubmissions(func(s domain.Submission) bool {
			if params.UserID != nil && s.UserID != *params.UserID {
				return false
			}
			if params.Platform != nil && s.Platform != *params.Platform {
				return false
			}
			if params.Status != nil && s.Status != *params.Status {
				return false
			}
			return true
		})
	})
	return page(all, params.Page, params.PageSize), int64(len(all)), nil
}

// filterSubmissions returns matching rows newest first.
func (d *state) filterSubmissions(match func(domain.Submission) bool) []domain.Submission {
	var out []domain.Submission
	for _, s := range d.submissions {
		if match(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return d.order[out[i].ID] > d.order[out[j].ID]
	})
	return out
}

func page[T any](items []T, pageNum, pageSize int) []T {
	if pageSize <= 0 {
		return items
	}
	if pageNum < 1 {
		pageNum = 1
	}
	start := (pageNum - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

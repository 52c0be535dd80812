package memory

import (
	"context"
	"fmt"
	"sort"

	"engagement-rewards/internal/core/domain"
	"engagement-rewards/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	store *Store
}

// NewWithdrawalRepo creates a WithdrawalRepo on s.
func NewWithdrawalRepo(s *Store) *WithdrawalRepo {
	return &WithdrawalRepo{store: s}
}

func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalTransaction) error {
	return r.store.write(tx, func(d *state) error {
		if _, ok := d.withdrawals[w.ID]; ok {
			return fmt.Errorf("insert withdrawal: duplicate id %s", w.ID)
		}
		for _, existing := range d.withdrawals {
			if existing.Reference == w.Reference {
				return fmt.Errorf("insert withdrawal: duplicate reference %s", w.Reference)
			}
		}
		d.seq++
		d.order[w.ID] = d.seq
		d.withdrawals[w.ID] = *w
		return nil
	})
}

func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalTransaction, error) {
	var out *domain.WithdrawalTransaction
	r.store.read(func(d *state) {
		if w, ok := d.withdrawals[id]; ok {
			out = &w
		}
	})
	return out, nil
}

func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalTransaction, error) {
	if _, err := r.store.own(tx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *WithdrawalRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalTransaction) error {
	return r.store.write(tx, func(d *state) error {
		existing, ok := d.withdrawals[w.ID]
		if !ok || existing.Status != domain.WithdrawalStatusPending {
			return fmt.Errorf("withdrawal not pending: %s", w.ID)
		}
		existing.Status = w.Status
		existing.RejectionReason = w.RejectionReason
		existing.ProcessedAt = w.ProcessedAt
		d.withdrawals[w.ID] = existing
		return nil
	})
}

func (r *WithdrawalRepo) List(ctx context.Context, params ports.WithdrawalListParams) ([]domain.WithdrawalTransaction, int64, error) {
	var all []domain.WithdrawalTransaction
	r.store.read(func(d *state) {
		for _, w := range d.withdrawals {
			if params.UserID != nil && w.UserID != *params.UserID {
				continue
			}
			if params.Status != nil && w.Status != *params.Status {
				continue
			}
			all = append(all, w)
		}
		sort.Slice(all, func(i, j int) bool {
			if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
				return all[i].CreatedAt.After(all[j].CreatedAt)
			}
			return d.order[all[i].ID] > d.order[all[j].ID]
		})
	})
	return page(all, params.Page, params.PageSize), int64(len(all)), nil
}

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	store *Store
}

// NewIdempotencyRepo creates an IdempotencyRepo on s.
func NewIdempotencyRepo(s *Store) *IdempotencyRepo {
	return &IdempotencyRepo{store: s}
}

func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	return r.store.write(tx, func(d *state) error {
		if _, ok := d.idempotency[log.Key]; ok {
			return fmt.Errorf("insert idempotency log: duplicate key %s", log.Key)
		}
		d.idempotency[log.Key] = *log
		return nil
	})
}

func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	var out *domain.IdempotencyLog
	r.store.read(func(d *state) {
		if l, ok := d.idempotency[key]; ok {
			out = &l
		}
	})
	return out, nil
}

// AuditRepo implements ports.AuditRepository. Entries are written outside
// any transaction, as with the SQL driver.
type AuditRepo struct {
	store *Store
}

// NewAuditRepo creates an AuditRepo on s.
func NewAuditRepo(s *Store) *AuditRepo {
	return &AuditRepo{store: s}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.audit = append(r.store.audit, *log)
	return nil
}

// Entries returns a copy of every stored audit entry in insertion order.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return append([]domain.AuditLog(nil), r.store.audit...)
}

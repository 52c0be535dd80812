package memory

import (
	"context"
	"errors"
	"time"

	"engagement-rewards/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EarningsRepo implements ports.EarningsRepository.
type EarningsRepo struct {
	store *Store
	now   func() time.Time
}

// NewEarningsRepo creates an EarningsRepo on s.
func NewEarningsRepo(s *Store) *EarningsRepo {
	return &EarningsRepo{store: s, now: time.Now}
}

func (r *EarningsRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.EarningsAccount, error) {
	var out *domain.EarningsAccount
	r.store.read(func(d *state) {
		if a, ok := d.accounts[userID]; ok {
			out = &a
		}
	})
	return out, nil
}

func (r *EarningsRepo) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*domain.EarningsAccount, error) {
	return r.mutate(tx, userID, true, func(a *domain.EarningsAccount) error {
		return a.Credit(amount)
	})
}

func (r *EarningsRepo) Reserve(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*domain.EarningsAccount, error) {
	return r.mutate(tx, userID, false, func(a *domain.EarningsAccount) error {
		return a.Reserve(amount)
	})
}

func (r *EarningsRepo) Settle(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*domain.EarningsAccount, error) {
	return r.mutate(tx, userID, false, func(a *domain.EarningsAccount) error {
		return a.Settle(amount)
	})
}

func (r *EarningsRepo) Release(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*domain.EarningsAccount, error) {
	return r.mutate(tx, userID, false, func(a *domain.EarningsAccount) error {
		return a.Release(amount)
	})
}

// mutate applies fn to a copy of the account and stores it only on success.
// A guard failure yields nil, nil like the SQL driver's zero-row update.
func (r *EarningsRepo) mutate(tx pgx.Tx, userID uuid.UUID, create bool, fn func(*domain.EarningsAccount) error) (*domain.EarningsAccount, error) {
	var out *domain.EarningsAccount
	err := r.store.write(tx, func(d *state) error {
		now := r.now().UTC()
		a, ok := d.accounts[userID]
		if !ok {
			if !create {
				return nil
			}
			a = *domain.NewEarningsAccount(userID, now)
		}
		if err := fn(&a); err != nil {
			if errors.Is(err, domain.ErrInsufficientFunds) {
				return nil
			}
			return err
		}
		if err := a.CheckInvariant(); err != nil {
			return err
		}
		a.UpdatedAt = now
		d.accounts[userID] = a
		out = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

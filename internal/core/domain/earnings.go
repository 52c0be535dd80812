package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceInvariant  = errors.New("earnings balance invariant violated")
)

// EarningsAccount is the per-user balance aggregate. All amounts are minor units.
//
// TotalEarned always equals AvailableBalance + PendingWithdrawal + WithdrawnAmount.
type EarningsAccount struct {
	UserID            uuid.UUID `json:"user_id"`
	TotalEarned       int64     `json:"total_earned"`
	AvailableBalance  int64     `json:"available_balance"`
	PendingWithdrawal int64     `json:"pending_withdrawal"`
	WithdrawnAmount   int64     `json:"withdrawn_amount"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewEarningsAccount returns a zero-balance account.
func NewEarningsAccount(userID uuid.UUID, now time.Time) *EarningsAccount {
	return &EarningsAccount{UserID: userID, CreatedAt: now, UpdatedAt: now}
}

// Credit adds earned funds to the available balance.
func (a *EarningsAccount) Credit(amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	a.TotalEarned += amount
	a.AvailableBalance += amount
	return nil
}

// Reserve moves funds from available to pending withdrawal.
func (a *EarningsAccount) Reserve(amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	if amount > a.AvailableBalance {
		return ErrInsufficientFunds
	}
	a.AvailableBalance -= amount
	a.PendingWithdrawal += amount
	return nil
}

// Settle moves reserved funds to withdrawn after a payout completes.
func (a *EarningsAccount) Settle(amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	if amount > a.PendingWithdrawal {
		return ErrInsufficientFunds
	}
	a.PendingWithdrawal -= amount
	a.WithdrawnAmount += amount
	return nil
}

// Release returns reserved funds to the available balance.
func (a *EarningsAccount) Release(amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	if amount > a.PendingWithdrawal {
		return ErrInsufficientFunds
	}
	a.PendingWithdrawal -= amount
	a.AvailableBalance += amount
	return nil
}

// CheckInvariant verifies non-negative fields and that the total is fully accounted for.
func (a *EarningsAccount) CheckInvariant() error {
	if a.TotalEarned < 0 || a.AvailableBalance < 0 || a.PendingWithdrawal < 0 || a.WithdrawnAmount < 0 {
		return fmt.Errorf("%w: negative field for user %s", ErrBalanceInvariant, a.UserID)
	}
	if a.TotalEarned != a.AvailableBalance+a.PendingWithdrawal+a.WithdrawnAmount {
		return fmt.Errorf("%w: user %s total=%d available=%d pending=%d withdrawn=%d",
			ErrBalanceInvariant, a.UserID, a.TotalEarned, a.AvailableBalance, a.PendingWithdrawal, a.WithdrawnAmount)
	}
	return nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"engagement-rewards/internal/core/domain"
	"engagement-rewards/internal/core/ports"
	"engagement-rewards/pkg/apperror"
	"engagement-rewards/pkg/money"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EarningsLedgerImpl implements ports.EarningsLedger.
// It never begins or commits; callers own the transaction.
type EarningsLedgerImpl struct {
	earnings    ports.EarningsRepository
	withdrawals ports.WithdrawalRepository
	minimum     int64 // Minor units
	now         func() time.Time
}

// NewEarningsLedger creates a new EarningsLedgerImpl.
func NewEarningsLedger(earnings ports.EarningsRepository, withdrawals ports.WithdrawalRepository, minimumWithdrawal int64) *EarningsLedgerImpl {
	return &EarningsLedgerImpl{
		earnings:    earnings,
		withdrawals: withdrawals,
		minimum:     minimumWithdrawal,
		now:         time.Now,
	}
}

// Credit adds amount to the user's total and available balance, creating the
// account on first credit.
func (l *EarningsLedgerImpl) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*domain.EarningsAccount, error) {
	if amount <= 0 {
		return nil, apperror.Validation("credit amount must be positive")
	}

	acct, err := l.earnings.Credit(ctx, tx, userID, amount)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit earnings: %w", err))
	}
	return checked(acct)
}

// ReserveForWithdrawal moves amount from available to pending and records a
// pending withdrawal carrying the sealed bank details.
func (l *EarningsLedgerImpl) ReserveForWithdrawal(ctx context.Context, tx pgx.Tx, req ports.ReserveRequest) (*domain.WithdrawalTransaction, *domain.EarningsAccount, error) {
	if req.Amount < l.minimum {
		return nil, nil, apperror.ErrBelowMinimum(money.Format(l.minimum))
	}

	acct, err := l.earnings.Reserve(ctx, tx, req.UserID, req.Amount)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("reserve earnings: %w", err))
	}
	if acct == nil {
		return nil, nil, apperror.ErrInsufficientBalance()
	}
	if acct, err = checked(acct); err != nil {
		return nil, nil, err
	}

	w := &domain.WithdrawalTransaction{
		ID:             uuid.New(),
		UserID:         req.UserID,
		Amount:         req.Amount,
		Status:         domain.WithdrawalStatusPending,
		Reference:      domain.NewWithdrawalReference(),
		BankDetailsEnc: req.BankDetailsEnc,
		AccountLast4:   req.AccountLast4,
		BankName:       req.BankName,
		CreatedAt:      l.now().UTC(),
	}
	if err := l.withdrawals.Create(ctx, tx, w); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("create withdrawal: %w", err))
	}
	return w, acct, nil
}

// FinalizeWithdrawal settles or releases a pending withdrawal.
func (l *EarningsLedgerImpl) FinalizeWithdrawal(ctx context.Context, tx pgx.Tx, withdrawalID uuid.UUID, outcome domain.WithdrawalOutcome, reason string) (*domain.WithdrawalTransaction, *domain.EarningsAccount, error) {
	w, err := l.withdrawals.GetByIDForUpdate(ctx, tx, withdrawalID)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("lock withdrawal: %w", err))
	}
	if w == nil || w.IsTerminal() {
		return nil, nil, apperror.ErrNotFound("pending withdrawal")
	}

	var acct *domain.EarningsAccount
	switch outcome {
	case domain.WithdrawalApprove:
		acct, err = l.earnings.Settle(ctx, tx, w.UserID, w.Amount)
		w.Status = domain.WithdrawalStatusCompleted
	case domain.WithdrawalReject:
		acct, err = l.earnings.Release(ctx, tx, w.UserID, w.Amount)
		w.Status = domain.WithdrawalStatusFailed
		if reason != "" {
			w.RejectionReason = &reason
		}
	default:
		return nil, nil, apperror.Validation(fmt.Sprintf("unknown withdrawal outcome %q", outcome))
	}
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("finalize withdrawal %s: %w", w.ID, err))
	}
	if acct == nil {
		// The reservation made at request time is gone.
		return nil, nil, apperror.ErrInvariant(fmt.Errorf("pending balance of user %s does not cover withdrawal %s", w.UserID, w.ID))
	}
	if acct, err = checked(acct); err != nil {
		return nil, nil, err
	}

	now := l.now().UTC()
	w.ProcessedAt = &now
	if err := l.withdrawals.UpdateStatus(ctx, tx, w); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("update withdrawal: %w", err))
	}
	return w, acct, nil
}

func checked(acct *domain.EarningsAccount) (*domain.EarningsAccount, error) {
	if err := acct.CheckInvariant(); err != nil {
		return nil, apperror.ErrInvariant(err)
	}
	return acct, nil
}

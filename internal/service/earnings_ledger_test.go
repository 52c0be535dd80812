package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"engagement-rewards/internal/core/domain"
	"engagement-rewards/internal/core/ports"
	"engagement-rewards/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newMockLedger(t *testing.T) (*EarningsLedgerImpl, *mocks.MockEarningsRepository, *mocks.MockWithdrawalRepository) {
	ctrl := gomock.NewController(t)
	earnings := mocks.NewMockEarningsRepository(ctrl)
	withdrawals := mocks.NewMockWithdrawalRepository(ctrl)
	ledger := NewEarningsLedger(earnings, withdrawals, 50000)
	ledger.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return ledger, earnings, withdrawals
}

func TestEarningsLedger_Credit(t *testing.T) {
	ledger, earnings, _ := newMockLedger(t)
	userID := uuid.New()

	earnings.EXPECT().Credit(gomock.Any(), gomock.Nil(), userID, int64(3000)).
		Return(&domain.EarningsAccount{UserID: userID, TotalEarned: 3000, AvailableBalance: 3000}, nil)

	acct, err := ledger.Credit(context.Background(), nil, userID, 3000)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), acct.AvailableBalance)
}

func TestEarningsLedger_Credit_NonPositive(t *testing.T) {
	ledger, _, _ := newMockLedger(t)

	for _, amount := range []int64{0, -100} {
		_, err := ledger.Credit(context.Background(), nil, uuid.New(), amount)
		requireCode(t, err, "GEN_001")
	}
}

func TestEarningsLedger_Credit_RepoError(t *testing.T) {
	ledger, earnings, _ := newMockLedger(t)
	earnings.EXPECT().Credit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("conn reset"))

	_, err := ledger.Credit(context.Background(), nil, uuid.New(), 100)
	requireCode(t, err, "SYS_001")
}

func TestEarningsLedger_Credit_BrokenInvariant(t *testing.T) {
	ledger, earnings, _ := newMockLedger(t)
	userID := uuid.New()
	earnings.EXPECT().Credit(gomock.Any(), gomock.Any(), userID, int64(100)).
		Return(&domain.EarningsAccount{UserID: userID, TotalEarned: 100, AvailableBalance: 90}, nil)

	_, err := ledger.Credit(context.Background(), nil, userID, 100)
	appErr := requireCode(t, err, "SYS_004")
	assert.ErrorIs(t, appErr, domain.ErrBalanceInvariant)
}

func TestEarningsLedger_Reserve(t *testing.T) {
	ledger, earnings, withdrawals := newMockLedger(t)
	userID := uuid.New()

	earnings.EXPECT().Reserve(gomock.Any(), gomock.Any(), userID, int64(50000)).
		Return(&domain.EarningsAccount{UserID: userID, TotalEarned: 100000, AvailableBalance: 50000, PendingWithdrawal: 50000}, nil)

	var created *domain.WithdrawalTransaction
	withdrawals.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, w *domain.WithdrawalTransaction) error {
			created = w
			return nil
		},
	)

	w, acct, err := ledger.ReserveForWithdrawal(context.Background(), nil, ports.ReserveRequest{
		UserID:         userID,
		Amount:         50000,
		BankDetailsEnc: "sealed",
		AccountLast4:   "6789",
		BankName:       "Test Bank",
	})
	require.NoError(t, err)
	assert.Same(t, created, w)
	assert.Equal(t, domain.WithdrawalStatusPending, w.Status)
	assert.Equal(t, int64(50000), w.Amount)
	assert.Equal(t, "sealed", w.BankDetailsEnc)
	assert.Regexp(t, `^WDR-[0-9A-F]{16}$`, w.Reference)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), w.CreatedAt)
	assert.Equal(t, int64(50000), acct.PendingWithdrawal)
}

func TestEarningsLedger_Reserve_BelowMinimum(t *testing.T) {
	ledger, _, _ := newMockLedger(t)

	_, _, err := ledger.ReserveForWithdrawal(context.Background(), nil, ports.ReserveRequest{UserID: uuid.New(), Amount: 49999})
	appErr := requireCode(t, err, "WDR_002")
	assert.Equal(t, "500.00", appErr.Meta["minimum"])
}

func TestEarningsLedger_Reserve_Insufficient(t *testing.T) {
	ledger, earnings, _ := newMockLedger(t)
	earnings.EXPECT().Reserve(gomock.Any(), gomock.Any(), gomock.Any(), int64(60000)).Return(nil, nil)

	_, _, err := ledger.ReserveForWithdrawal(context.Background(), nil, ports.ReserveRequest{UserID: uuid.New(), Amount: 60000})
	requireCode(t, err, "WDR_001")
}

func TestEarningsLedger_Finalize(t *testing.T) {
	userID := uuid.New()
	pending := func() *domain.WithdrawalTransaction {
		return &domain.WithdrawalTransaction{ID: uuid.New(), UserID: userID, Amount: 50000, Status: domain.WithdrawalStatusPending}
	}

	t.Run("approve settles", func(t *testing.T) {
		ledger, earnings, withdrawals := newMockLedger(t)
		w := pending()
		withdrawals.EXPECT().GetByIDForUpdate(gomock.Any(), gomock.Any(), w.ID).Return(w, nil)
		earnings.EXPECT().Settle(gomock.Any(), gomock.Any(), userID, int64(50000)).
			Return(&domain.EarningsAccount{UserID: userID, TotalEarned: 50000, WithdrawnAmount: 50000}, nil)
		withdrawals.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), w).Return(nil)

		got, acct, err := ledger.FinalizeWithdrawal(context.Background(), nil, w.ID, domain.WithdrawalApprove, "")
		require.NoError(t, err)
		assert.Equal(t, domain.WithdrawalStatusCompleted, got.Status)
		require.NotNil(t, got.ProcessedAt)
		assert.Nil(t, got.RejectionReason)
		assert.Equal(t, int64(50000), acct.WithdrawnAmount)
	})

	t.Run("reject releases", func(t *testing.T) {
		ledger, earnings, withdrawals := newMockLedger(t)
		w := pending()
		withdrawals.EXPECT().GetByIDForUpdate(gomock.Any(), gomock.Any(), w.ID).Return(w, nil)
		earnings.EXPECT().Release(gomock.Any(), gomock.Any(), userID, int64(50000)).
			Return(&domain.EarningsAccount{UserID: userID, TotalEarned: 50000, AvailableBalance: 50000}, nil)
		withdrawals.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), w).Return(nil)

		got, acct, err := ledger.FinalizeWithdrawal(context.Background(), nil, w.ID, domain.WithdrawalReject, "account closed")
		require.NoError(t, err)
		assert.Equal(t, domain.WithdrawalStatusFailed, got.Status)
		require.NotNil(t, got.RejectionReason)
		assert.Equal(t, "account closed", *got.RejectionReason)
		assert.Equal(t, int64(50000), acct.AvailableBalance)
	})

	t.Run("missing", func(t *testing.T) {
		ledger, _, withdrawals := newMockLedger(t)
		withdrawals.EXPECT().GetByIDForUpdate(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

		_, _, err := ledger.FinalizeWithdrawal(context.Background(), nil, uuid.New(), domain.WithdrawalApprove, "")
		requireCode(t, err, "GEN_002")
	})

	t.Run("already final", func(t *testing.T) {
		ledger, _, withdrawals := newMockLedger(t)
		w := pending()
		w.Status = domain.WithdrawalStatusCompleted
		withdrawals.EXPECT().GetByIDForUpdate(gomock.Any(), gomock.Any(), w.ID).Return(w, nil)

		_, _, err := ledger.FinalizeWithdrawal(context.Background(), nil, w.ID, domain.WithdrawalReject, "")
		requireCode(t, err, "GEN_002")
	})

	t.Run("pending balance gone", func(t *testing.T) {
		ledger, earnings, withdrawals := newMockLedger(t)
		w := pending()
		withdrawals.EXPECT().GetByIDForUpdate(gomock.Any(), gomock.Any(), w.ID).Return(w, nil)
		earnings.EXPECT().Settle(gomock.Any(), gomock.Any(), userID, int64(50000)).Return(nil, nil)

		_, _, err := ledger.FinalizeWithdrawal(context.Background(), nil, w.ID, domain.WithdrawalApprove, "")
		requireCode(t, err, "SYS_004")
	})

	t.Run("unknown outcome", func(t *testing.T) {
		ledger, _, withdrawals := newMockLedger(t)
		w := pending()
		withdrawals.EXPECT().GetByIDForUpdate(gomock.Any(), gomock.Any(), w.ID).Return(w, nil)

		_, _, err := ledger.FinalizeWithdrawal(context.Background(), nil, w.ID, domain.WithdrawalOutcome("refund"), "")
		requireCode(t, err, "GEN_001")
	})
}

// Every ledger operation leaves the account balanced.
func TestEarningsLedger_InvariantAcrossLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()

	f.fund(t, userID, 100000)

	var first, second *domain.WithdrawalTransaction
	f.inTx(t, func(tx pgx.Tx) {
		var err error
		first, _, err = f.ledger.ReserveForWithdrawal(ctx, tx, ports.ReserveRequest{UserID: userID, Amount: 50000})
		require.NoError(t, err)
		second, _, err = f.ledger.ReserveForWithdrawal(ctx, tx, ports.ReserveRequest{UserID: userID, Amount: 50000})
		require.NoError(t, err)
		_, _, err = f.ledger.ReserveForWithdrawal(ctx, tx, ports.ReserveRequest{UserID: userID, Amount: 50000})
		requireCode(t, err, "WDR_001")
	})

	acct := f.account(t, userID)
	assert.Equal(t, int64(0), acct.AvailableBalance)
	assert.Equal(t, int64(100000), acct.PendingWithdrawal)

	f.inTx(t, func(tx pgx.Tx) {
		_, _, err := f.ledger.FinalizeWithdrawal(ctx, tx, first.ID, domain.WithdrawalApprove, "")
		require.NoError(t, err)
		_, _, err = f.ledger.FinalizeWithdrawal(ctx, tx, second.ID, domain.WithdrawalReject, "")
		require.NoError(t, err)
	})

	acct = f.account(t, userID)
	assert.Equal(t, int64(100000), acct.TotalEarned)
	assert.Equal(t, int64(50000), acct.AvailableBalance)
	assert.Equal(t, int64(0), acct.PendingWithdrawal)
	assert.Equal(t, int64(50000), acct.WithdrawnAmount)
}

package postgres

import (
	"context"
	"testing"
	"time"

	"engagement-rewards/internal/core/domain"
	"engagement-rewards/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWithdrawal() *domain.WithdrawalTransaction {
	return &domain.WithdrawalTransaction{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		Amount:         50000,
		Status:         domain.WithdrawalStatusPending,
		Reference:      domain.NewWithdrawalReference(),
		BankDetailsEnc: "c2VhbGVk",
		AccountLast4:   "6789",
		BankName:       "First Bank",
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

func withdrawalCols() []string {
	return []string{"id", "user_id", "amount", "status", "reference", "bank_details_enc", "account_last4",
		"bank_name", "rejection_reason", "created_at", "processed_at"}
}

func withdrawalRow(rows *pgxmock.Rows, w *domain.WithdrawalTransaction) *pgxmock.Rows {
	return rows.AddRow(
		w.ID, w.UserID, w.Amount, string(w.Status), w.Reference, w.BankDetailsEnc,
		w.AccountLast4, w.BankName, w.RejectionReason, w.CreatedAt, w.ProcessedAt,
	)
}

func TestWithdrawalRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	w := newTestWithdrawal()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO withdrawals").
		WithArgs(w.ID, w.UserID, w.Amount, w.Status, w.Reference, w.BankDetailsEnc,
			w.AccountLast4, w.BankName, w.RejectionReason, w.CreatedAt, w.ProcessedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	w := newTestWithdrawal()

	mock.ExpectQuery("SELECT .+ FROM withdrawals WHERE id").
		WithArgs(w.ID).
		WillReturnRows(withdrawalRow(pgxmock.NewRows(withdrawalCols()), w))

	result, err := repo.GetByID(context.Background(), w.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.Reference, result.Reference)
	assert.Equal(t, domain.WithdrawalStatusPending, result.Status)
	assert.Nil(t, result.ProcessedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_GetByIDForUpdate_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM withdrawals WHERE id .+ FOR UPDATE").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(withdrawalCols()))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByIDForUpdate(context.Background(), tx, id)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestWithdrawalRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	w := newTestWithdrawal()
	now := time.Now().UTC()
	reason := "account closed"
	w.Status = domain.WithdrawalStatusFailed
	w.RejectionReason = &reason
	w.ProcessedAt = &now

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE withdrawals SET status .+ WHERE id .+ AND status = 'pending'").
		WithArgs(w.Status, w.RejectionReason, w.ProcessedAt, w.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.UpdateStatus(context.Background(), tx, w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_UpdateStatus_AlreadyFinal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	w := newTestWithdrawal()
	w.Status = domain.WithdrawalStatusCompleted

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE withdrawals SET status").
		WithArgs(w.Status, w.RejectionReason, w.ProcessedAt, w.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), tx, w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not pending")
}

func TestWithdrawalRepo_List_NoFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	a, b := newTestWithdrawal(), newTestWithdrawal()

	rows := pgxmock.NewRows(withdrawalCols())
	withdrawalRow(rows, a)
	withdrawalRow(rows, b)

	mock.ExpectQuery("SELECT COUNT.+ FROM withdrawals").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery("SELECT .+ FROM withdrawals ORDER BY created_at DESC LIMIT").
		WithArgs(10, 0).
		WillReturnRows(rows)

	items, total, err := repo.List(context.Background(), ports.WithdrawalListParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

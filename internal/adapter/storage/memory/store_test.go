package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"engagement-rewards/internal/core/domain"
	"engagement-rewards/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.DBTransactor          = (*Store)(nil)
	_ ports.UserLocker            = (*Store)(nil)
	_ ports.HealthChecker         = (*Store)(nil)
	_ ports.SubmissionRepository  = (*SubmissionRepo)(nil)
	_ ports.EarningsRepository    = (*EarningsRepo)(nil)
	_ ports.WithdrawalRepository  = (*WithdrawalRepo)(nil)
	_ ports.IdempotencyRepository = (*IdempotencyRepo)(nil)
	_ ports.AuditRepository       = (*AuditRepo)(nil)
	_ ports.SubmissionGuard       = (*Guard)(nil)
	_ ports.IdempotencyCache      = (*IdempotencyCache)(nil)
)

func strPtr(s string) *string { return &s }

func newSubmission(userID uuid.UUID, platform domain.Platform, at time.Time) *domain.Submission {
	return &domain.Submission{
		ID:            uuid.New(),
		UserID:        userID,
		Platform:      platform,
		ScreenshotRef: "https://cdn.example.com/" + uuid.NewString() + ".png",
		Fingerprint:   strPtr("0123456789abcdef"),
		Status:        domain.SubmissionStatusPending,
		Amount:        3000,
		CreatedAt:     at,
	}
}

func TestStore_CommitKeepsWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	subs := NewSubmissionRepo(store)
	s := newSubmission(uuid.New(), domain.PlatformFacebook, time.Now())

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, subs.Create(ctx, tx, s))
	require.NoError(t, tx.Commit(ctx))

	got, err := subs.GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.ScreenshotRef, got.ScreenshotRef)

	assert.ErrorIs(t, tx.Rollback(ctx), pgx.ErrTxClosed)
}

func TestStore_RollbackUndoesWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	subs := NewSubmissionRepo(store)
	earnings := NewEarningsRepo(store)
	userID := uuid.New()
	s := newSubmission(userID, domain.PlatformFacebook, time.Now())

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, subs.Create(ctx, tx, s))
	_, err = earnings.Credit(ctx, tx, userID, 3000)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	got, _ := subs.GetByID(ctx, s.ID)
	assert.Nil(t, got)
	acct, _ := earnings.Get(ctx, userID)
	assert.Nil(t, acct)
}

func TestStore_ReadsSeeOnlyCommittedState(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	earnings := NewEarningsRepo(store)
	userID := uuid.New()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	_, err = earnings.Credit(ctx, tx, userID, 3000)
	require.NoError(t, err)

	acct, err := earnings.Get(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, acct, "uncommitted credit must not be visible")

	require.NoError(t, tx.Commit(ctx))
	acct, err = earnings.Get(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, int64(3000), acct.AvailableBalance)

	tx, err = store.Begin(ctx)
	require.NoError(t, err)
	_, err = earnings.Credit(ctx, tx, userID, 500)
	require.NoError(t, err)
	acct, _ = earnings.Get(ctx, userID)
	assert.Equal(t, int64(3000), acct.AvailableBalance)
	require.NoError(t, tx.Rollback(ctx))

	acct, _ = earnings.Get(ctx, userID)
	assert.Equal(t, int64(3000), acct.AvailableBalance)
}

func TestStore_ClosedTxRejected(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	subs := NewSubmissionRepo(store)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	err = subs.Create(ctx, tx, newSubmission(uuid.New(), domain.PlatformYouTube, time.Now()))
	assert.ErrorIs(t, err, pgx.ErrTxClosed)
	assert.ErrorIs(t, store.LockUser(ctx, tx, uuid.New()), pgx.ErrTxClosed)
}

func TestStore_ForeignTxRejected(t *testing.T) {
	ctx := context.Background()
	a, b := NewStore(), NewStore()

	tx, err := a.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	assert.Error(t, b.LockUser(ctx, tx, uuid.New()))
	assert.NoError(t, a.LockUser(ctx, tx, uuid.New()))
}

func TestStore_BeginHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStore().Begin(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_TransactionsSerialize(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	earnings := NewEarningsRepo(store)
	userID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := store.Begin(ctx)
			if !assert.NoError(t, err) {
				return
			}
			_, err = earnings.Credit(ctx, tx, userID, 100)
			assert.NoError(t, err)
			assert.NoError(t, tx.Commit(ctx))
		}()
	}
	wg.Wait()

	acct, err := earnings.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), acct.TotalEarned)
	assert.NoError(t, acct.CheckInvariant())
}

func TestAuditRepo_SurvivesRollback(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	audit := NewAuditRepo(store)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, audit.Create(ctx, &domain.AuditLog{ID: uuid.New(), Action: domain.AuditActionSubmissionApprove}))
	require.NoError(t, tx.Rollback(ctx))

	assert.Len(t, audit.Entries(), 1)
}

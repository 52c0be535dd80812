package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"engagement-rewards/internal/adapter/storage/memory"
	"engagement-rewards/internal/core/domain"
	"engagement-rewards/pkg/apperror"
	"engagement-rewards/pkg/imagehash"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const testAESKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type emitted struct {
	UserID  uuid.UUID
	Event   string
	Payload interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []emitted
}

func (n *recordingNotifier) Emit(_ context.Context, userID uuid.UUID, event string, payload interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, emitted{UserID: userID, Event: event, Payload: payload})
	return nil
}

func (n *recordingNotifier) names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Event)
	}
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}

// stubFingerprinter maps screenshot URLs to fixed fingerprints.
type stubFingerprinter map[string]string

func (f stubFingerprinter) Fingerprint(_ context.Context, imageURL string) (string, error) {
	fp, ok := f[imageURL]
	if !ok {
		return "", apperror.ErrImageFetch(fmt.Errorf("no image at %s", imageURL))
	}
	return fp, nil
}

// distinctPrint returns fingerprints that differ pairwise in exactly six bits.
func distinctPrint(i int) string {
	return fmt.Sprintf("%016x", uint64(7)<<(3*uint(i)))
}

func testPolicies() domain.PolicyTable {
	return domain.PolicyTable{
		domain.PlatformFacebook:  {Platform: domain.PlatformFacebook, Enabled: true, Amount: 3000, AutoApprove: true, Dedup: true},
		domain.PlatformYouTube:   {Platform: domain.PlatformYouTube, Enabled: true, Amount: 200, AutoApprove: true, Dedup: true},
		domain.PlatformGoogle:    {Platform: domain.PlatformGoogle, Enabled: true, Amount: 500, Dedup: true},
		domain.PlatformInstagram: {Platform: domain.PlatformInstagram, Enabled: false, Amount: 200, AutoApprove: true, Dedup: true},
		domain.PlatformVideo:     {Platform: domain.PlatformVideo, Enabled: true, MaxAmount: 5000, AutoApprove: true},
	}
}

func testSettings() SubmissionSettings {
	return SubmissionSettings{
		DedupLookback:   20,
		DedupWindow:     30 * 24 * time.Hour,
		ClaimTTL:        30 * time.Second,
		RateLimit:       20,
		RateWindow:      24 * time.Hour,
		CompletionRatio: 0.95,
	}
}

type fixture struct {
	store       *memory.Store
	submissions *memory.SubmissionRepo
	earnings    *memory.EarningsRepo
	withdrawals *memory.WithdrawalRepo
	idempotency *memory.IdempotencyRepo
	audit       *memory.AuditRepo
	auditSvc    *AuditServiceImpl
	guard       *memory.Guard
	cache       *memory.IdempotencyCache
	ledger      *EarningsLedgerImpl
	notifier    *recordingNotifier
	clock       *testClock
	metrics     *Metrics
}

func newFixture() *fixture {
	store := memory.NewStore()
	f := &fixture{
		store:       store,
		submissions: memory.NewSubmissionRepo(store),
		earnings:    memory.NewEarningsRepo(store),
		withdrawals: memory.NewWithdrawalRepo(store),
		idempotency: memory.NewIdempotencyRepo(store),
		audit:       memory.NewAuditRepo(store),
		guard:       memory.NewGuard(),
		cache:       memory.NewIdempotencyCache(),
		notifier:    &recordingNotifier{},
		clock:       newTestClock(),
		metrics:     NewMetrics(prometheus.NewRegistry()),
	}
	f.auditSvc = NewAuditService(f.audit, newTestLogger())
	f.ledger = NewEarningsLedger(f.earnings, f.withdrawals, 50000)
	f.ledger.now = f.clock.Now
	return f
}

func (f *fixture) submissionService(prints stubFingerprinter, opts ...func(*SubmissionDeps)) *SubmissionServiceImpl {
	deps := SubmissionDeps{
		Submissions:   f.submissions,
		Ledger:        f.ledger,
		Transactor:    f.store,
		Locker:        f.store,
		Fingerprinter: prints,
		Matcher:       imagehash.NewMatcher(imagehash.DefaultThreshold),
		Guard:         f.guard,
		Notifier:      f.notifier,
		Audit:         f.auditSvc,
		Metrics:       f.metrics,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	svc := NewSubmissionService(deps, testPolicies(), testSettings(), newTestLogger())
	svc.now = f.clock.Now
	return svc
}

func (f *fixture) withdrawalService(t *testing.T, payout *recordingPayout, opts ...func(*WithdrawalDeps)) *WithdrawalServiceImpl {
	t.Helper()
	enc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)
	deps := WithdrawalDeps{
		Ledger:      f.ledger,
		Withdrawals: f.withdrawals,
		IdempRepo:   f.idempotency,
		IdempCache:  f.cache,
		Encryption:  enc,
		Transactor:  f.store,
		Locker:      f.store,
		Payout:      payout,
		Notifier:    f.notifier,
		Audit:       f.auditSvc,
		Metrics:     f.metrics,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return NewWithdrawalService(deps, newTestLogger())
}

// fund credits amount to userID in its own transaction.
func (f *fixture) fund(t *testing.T, userID uuid.UUID, amount int64) {
	t.Helper()
	f.inTx(t, func(tx pgx.Tx) {
		_, err := f.ledger.Credit(context.Background(), tx, userID, amount)
		require.NoError(t, err)
	})
}

func (f *fixture) inTx(t *testing.T, fn func(tx pgx.Tx)) {
	t.Helper()
	ctx := context.Background()
	tx, err := f.store.Begin(ctx)
	require.NoError(t, err)
	fn(tx)
	require.NoError(t, tx.Commit(ctx))
}

func (f *fixture) account(t *testing.T, userID uuid.UUID) *domain.EarningsAccount {
	t.Helper()
	acct, err := f.earnings.Get(context.Background(), userID)
	require.NoError(t, err)
	if acct != nil {
		require.NoError(t, acct.CheckInvariant())
	}
	return acct
}

func (f *fixture) auditActions() []domain.AuditAction {
	f.auditSvc.Wait()
	var out []domain.AuditAction
	for _, e := range f.audit.Entries() {
		out = append(out, e.Action)
	}
	return out
}

type recordingPayout struct {
	mu    sync.Mutex
	err   error
	calls []domain.BankDetails
}

func (p *recordingPayout) Payout(_ context.Context, _ *domain.WithdrawalTransaction, bank domain.BankDetails) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, bank)
	return p.err
}

func (p *recordingPayout) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func requireCode(t *testing.T, err error, code string) *apperror.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code, appErr.Error())
	return appErr
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"engagement-rewards/internal/core/domain"
	"engagement-rewards/internal/core/ports"
	"engagement-rewards/internal/core/ports/mocks"
	"engagement-rewards/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func screenshot(userID uuid.UUID, platform domain.Platform, url string) ports.CreateSubmissionRequest {
	return ports.CreateSubmissionRequest{UserID: userID, Platform: platform, ScreenshotURL: url}
}

func submissionCount(t *testing.T, f *fixture, userID uuid.UUID) int64 {
	t.Helper()
	_, total, err := f.submissions.List(context.Background(), ports.SubmissionListParams{UserID: &userID, Page: 1, PageSize: 100})
	require.NoError(t, err)
	return total
}

func TestCreateSubmission_FirstRewardCreatesAccount(t *testing.T) {
	f := newFixture()
	svc := f.submissionService(stubFingerprinter{"https://cdn.test/a.png": "0000000000000000"})
	userID := uuid.New()

	require.Nil(t, f.account(t, userID))

	sub, err := svc.CreateSubmission(context.Background(), screenshot(userID, domain.PlatformFacebook, "https://cdn.test/a.png"))
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionStatusApproved, sub.Status)
	assert.Equal(t, int64(3000), sub.Amount)
	require.NotNil(t, sub.Fingerprint)
	assert.Equal(t, "0000000000000000", *sub.Fingerprint)
	assert.Nil(t, sub.ReviewedBy)

	acct := f.account(t, userID)
	require.NotNil(t, acct)
	assert.Equal(t, int64(3000), acct.TotalEarned)
	assert.Equal(t, int64(3000), acct.AvailableBalance)
	assert.Zero(t, acct.PendingWithdrawal)
	assert.Zero(t, acct.WithdrawnAmount)

	assert.Equal(t, []string{domain.EventSubmissionCreated, domain.EventEarningsUpdated}, f.notifier.names())
}

func TestCreateSubmission_NearDuplicates(t *testing.T) {
	tests := []struct {
		name      string
		second    string
		duplicate bool
	}{
		{"identical", "0000000000000000", true},
		{"five bits apart", "000000000000001f", true},
		{"six bits apart", "000000000000003f", false},
		{"unrelated", "ffffffffffffffff", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			svc := f.submissionService(stubFingerprinter{
				"https://cdn.test/first.png":  "0000000000000000",
				"https://cdn.test/second.png": tt.second,
			})
			userID := uuid.New()
			ctx := context.Background()

			first, err := svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformFacebook, "https://cdn.test/first.png"))
			require.NoError(t, err)

			f.clock.Advance(time.Hour)
			_, err = svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformFacebook, "https://cdn.test/second.png"))

			if tt.duplicate {
				appErr := requireCode(t, err, "SUB_001")
				assert.Equal(t, first.CreatedAt.Format(time.RFC3339), appErr.Meta["previous_submitted_at"])
				assert.Equal(t, int64(1), submissionCount(t, f, userID))
				assert.Equal(t, int64(3000), f.account(t, userID).TotalEarned)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(2), submissionCount(t, f, userID))
			assert.Equal(t, int64(6000), f.account(t, userID).TotalEarned)
		})
	}
}

func TestCreateSubmission_DuplicatesAreScopedToUserAndPlatform(t *testing.T) {
	f := newFixture()
	svc := f.submissionService(stubFingerprinter{"https://cdn.test/a.png": "0000000000000000"})
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	_, err := svc.CreateSubmission(ctx, screenshot(alice, domain.PlatformFacebook, "https://cdn.test/a.png"))
	require.NoError(t, err)
	_, err = svc.CreateSubmission(ctx, screenshot(alice, domain.PlatformYouTube, "https://cdn.test/a.png"))
	require.NoError(t, err, "same image on another platform")
	_, err = svc.CreateSubmission(ctx, screenshot(bob, domain.PlatformFacebook, "https://cdn.test/a.png"))
	require.NoError(t, err, "same image from another user")

	assert.Equal(t, int64(3200), f.account(t, alice).TotalEarned)
	assert.Equal(t, int64(3000), f.account(t, bob).TotalEarned)
}

func TestCreateSubmission_RejectedScreenshotStillCountsAsDuplicate(t *testing.T) {
	f := newFixture()
	svc := f.submissionService(stubFingerprinter{"https://cdn.test/a.png": "00000000000000ff"})
	ctx := context.Background()
	userID := uuid.New()

	sub, err := svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformGoogle, "https://cdn.test/a.png"))
	require.NoError(t, err)
	_, err = svc.Reject(ctx, sub.ID, uuid.New(), "cropped")
	require.NoError(t, err)

	_, err = svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformGoogle, "https://cdn.test/a.png"))
	requireCode(t, err, "SUB_001")
}

func TestCreateSubmission_DuplicateOutsideWindowAccepted(t *testing.T) {
	f := newFixture()
	svc := f.submissionService(stubFingerprinter{"https://cdn.test/a.png": "0000000000000000"})
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformFacebook, "https://cdn.test/a.png"))
	require.NoError(t, err)

	f.clock.Advance(testSettings().DedupWindow + time.Hour)
	_, err = svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformFacebook, "https://cdn.test/a.png"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), submissionCount(t, f, userID))
}

func TestCreateSubmission_RateLimit(t *testing.T) {
	f := newFixture()
	prints := stubFingerprinter{}
	for i := 0; i < 21; i++ {
		prints[urlFor(i)] = distinctPrint(i)
	}
	svc := f.submissionService(prints)
	ctx := context.Background()
	userID := uuid.New()
	start := f.clock.Now()

	for i := 0; i < 20; i++ {
		_, err := svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformFacebook, urlFor(i)))
		require.NoError(t, err, "submission %d", i+1)
		f.clock.Advance(time.Minute)
	}

	_, err := svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformFacebook, urlFor(20)))
	appErr := requireCode(t, err, "SUB_002")
	// The oldest counted submission leaves the window 24h after start; now is start+20m.
	assert.Equal(t, int64(24*3600-20*60), appErr.Meta["retry_after_seconds"])
	assert.Equal(t, start.Add(24*time.Hour).Format(time.RFC3339), appErr.Meta["retry_at"])
	assert.Equal(t, int64(20), submissionCount(t, f, userID))

	// Other platforms keep their own window.
	_, err = svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformYouTube, urlFor(20)))
	require.NoError(t, err)

	f.clock.Advance(24*time.Hour - 20*time.Minute + time.Second)
	_, err = svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformFacebook, urlFor(20)))
	require.NoError(t, err, "oldest submission aged out")
}

func TestCreateSubmission_RejectedDoNotCountTowardLimit(t *testing.T) {
	f := newFixture()
	prints := stubFingerprinter{}
	for i := 0; i < 21; i++ {
		prints[urlFor(i)] = distinctPrint(i)
	}
	svc := f.submissionService(prints)
	ctx := context.Background()
	userID := uuid.New()

	var first *domain.Submission
	for i := 0; i < 20; i++ {
		sub, err := svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformGoogle, urlFor(i)))
		require.NoError(t, err)
		if first == nil {
			first = sub
		}
	}
	_, err := svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformGoogle, urlFor(20)))
	requireCode(t, err, "SUB_002")

	_, err = svc.Reject(ctx, first.ID, uuid.New(), "")
	require.NoError(t, err)

	_, err = svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformGoogle, urlFor(20)))
	require.NoError(t, err)
}

func urlFor(i int) string {
	return "https://cdn.test/shot-" + distinctPrint(i) + ".png"
}

func TestCreateSubmission_InFlightClaimIsDuplicate(t *testing.T) {
	f := newFixture()
	svc := f.submissionService(stubFingerprinter{"https://cdn.test/a.png": "0000000000000000"})
	ctx := context.Background()
	userID := uuid.New()

	held, err := f.guard.Claim(ctx, userID.String()+":facebook:0000000000000000", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	_, err = svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformFacebook, "https://cdn.test/a.png"))
	appErr := requireCode(t, err, "SUB_001")
	assert.Nil(t, appErr.Meta)
	assert.Zero(t, submissionCount(t, f, userID))
}

func TestCreateSubmission_ReleasesClaimAfterSuccess(t *testing.T) {
	f := newFixture()
	svc := f.submissionService(stubFingerprinter{"https://cdn.test/a.png": "0000000000000000"})
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformFacebook, "https://cdn.test/a.png"))
	require.NoError(t, err)

	held, err := f.guard.Claim(ctx, userID.String()+":facebook:0000000000000000", time.Minute)
	require.NoError(t, err)
	assert.True(t, held)
}

func TestCreateSubmission_GuardUnavailableFallsBackToStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	guard := mocks.NewMockSubmissionGuard(ctrl)
	guard.EXPECT().Claim(gomock.Any(), gomock.Any(), 30*time.Second).Return(false, errors.New("redis down")).Times(2)

	f := newFixture()
	svc := f.submissionService(stubFingerprinter{"https://cdn.test/a.png": "0000000000000000"},
		func(d *SubmissionDeps) { d.Guard = guard })
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformFacebook, "https://cdn.test/a.png"))
	require.NoError(t, err)

	// The stored fingerprint still catches the repeat.
	_, err = svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformFacebook, "https://cdn.test/a.png"))
	requireCode(t, err, "SUB_001")
}

func TestCreateSubmission_FetchFailureStoresNothing(t *testing.T) {
	f := newFixture()
	svc := f.submissionService(stubFingerprinter{})
	userID := uuid.New()

	_, err := svc.CreateSubmission(context.Background(), screenshot(userID, domain.PlatformFacebook, "https://cdn.test/missing.png"))
	requireCode(t, err, "IMG_001")
	assert.Zero(t, submissionCount(t, f, userID))
	assert.Nil(t, f.account(t, userID))
	assert.Empty(t, f.notifier.names())
}

func TestCreateSubmission_RejectsUnsupportedInput(t *testing.T) {
	f := newFixture()
	svc := f.submissionService(stubFingerprinter{"https://cdn.test/a.png": "0000000000000000"})
	userID := uuid.New()

	tests := []struct {
		name     string
		platform domain.Platform
		url      string
		code     string
	}{
		{"unknown platform", domain.Platform("myspace"), "https://cdn.test/a.png", "SUB_004"},
		{"disabled platform", domain.PlatformInstagram, "https://cdn.test/a.png", "SUB_004"},
		{"video is not a screenshot", domain.PlatformVideo, "https://cdn.test/a.png", "SUB_004"},
		{"missing url", domain.PlatformFacebook, "  ", "GEN_001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSubmission(context.Background(), screenshot(userID, tt.platform, tt.url))
			requireCode(t, err, tt.code)
		})
	}
	assert.Zero(t, submissionCount(t, f, userID))
}

func TestCreateSubmission_CreditFailureRollsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockEarningsLedger(ctrl)
	ledger.EXPECT().Credit(gomock.Any(), gomock.Any(), gomock.Any(), int64(3000)).
		Return(nil, apperror.ErrInvariant(domain.ErrBalanceInvariant))

	f := newFixture()
	svc := f.submissionService(stubFingerprinter{"https://cdn.test/a.png": "0000000000000000"},
		func(d *SubmissionDeps) { d.Ledger = ledger })
	userID := uuid.New()

	_, err := svc.CreateSubmission(context.Background(), screenshot(userID, domain.PlatformFacebook, "https://cdn.test/a.png"))
	requireCode(t, err, "SYS_004")
	assert.Zero(t, submissionCount(t, f, userID))
	assert.Empty(t, f.notifier.names())
}

func TestCreateSubmission_ConcurrentIdenticalScreenshots(t *testing.T) {
	f := newFixture()
	svc := f.submissionService(stubFingerprinter{"https://cdn.test/a.png": "0000000000000000"})
	userID := uuid.New()

	const workers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		dupes    int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateSubmission(context.Background(), screenshot(userID, domain.PlatformFacebook, "https://cdn.test/a.png"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case apperror.Is(err, "SUB_001"):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, workers-1, dupes)
	assert.Equal(t, int64(3000), f.account(t, userID).TotalEarned)
}

func TestReview_ApproveCreditsOnce(t *testing.T) {
	f := newFixture()
	svc := f.submissionService(stubFingerprinter{"https://cdn.test/a.png": "0000000000000000"})
	ctx := context.Background()
	userID, adminID := uuid.New(), uuid.New()

	sub, err := svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformGoogle, "https://cdn.test/a.png"))
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionStatusPending, sub.Status)
	assert.Nil(t, f.account(t, userID), "pending submissions do not touch balances")
	assert.Equal(t, []string{domain.EventSubmissionCreated}, f.notifier.names())
	f.notifier.reset()

	approved, err := svc.Approve(ctx, sub.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionStatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, adminID, *approved.ReviewedBy)
	assert.NotNil(t, approved.ReviewedAt)
	assert.Equal(t, []string{domain.EventSubmissionUpdated, domain.EventEarningsUpdated}, f.notifier.names())

	_, err = svc.Approve(ctx, sub.ID, adminID)
	requireCode(t, err, "SUB_003")
	_, err = svc.Reject(ctx, sub.ID, adminID, "too late")
	requireCode(t, err, "SUB_003")

	acct := f.account(t, userID)
	assert.Equal(t, int64(500), acct.TotalEarned)
	assert.Equal(t, int64(500), acct.AvailableBalance)

	require.Eventually(t, func() bool { return len(f.audit.Entries()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []domain.AuditAction{domain.AuditActionSubmissionApprove}, f.auditActions())
}

func TestReview_RejectLeavesBalance(t *testing.T) {
	f := newFixture()
	svc := f.submissionService(stubFingerprinter{"https://cdn.test/a.png": "0000000000000000"})
	ctx := context.Background()
	userID, adminID := uuid.New(), uuid.New()

	sub, err := svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformGoogle, "https://cdn.test/a.png"))
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, sub.ID, adminID, "  blurry  ")
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "blurry", *rejected.RejectionReason)
	assert.Nil(t, f.account(t, userID))

	stored, err := f.submissions.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionStatusRejected, stored.Status)

	require.Eventually(t, func() bool { return len(f.audit.Entries()) == 1 }, time.Second, 10*time.Millisecond)
	entry := f.audit.Entries()[0]
	assert.Equal(t, domain.AuditActionSubmissionReject, entry.Action)
	assert.JSONEq(t, `{"reason":"blurry"}`, entry.Details)
}

func TestReview_NotFound(t *testing.T) {
	f := newFixture()
	svc := f.submissionService(stubFingerprinter{})

	_, err := svc.Approve(context.Background(), uuid.New(), uuid.New())
	requireCode(t, err, "GEN_002")
	_, err = svc.Reject(context.Background(), uuid.New(), uuid.New(), "")
	requireCode(t, err, "GEN_002")
}

func TestReview_ConcurrentApprovalsCreditOnce(t *testing.T) {
	f := newFixture()
	svc := f.submissionService(stubFingerprinter{"https://cdn.test/a.png": "0000000000000000"})
	ctx := context.Background()
	userID := uuid.New()

	sub, err := svc.CreateSubmission(ctx, screenshot(userID, domain.PlatformGoogle, "https://cdn.test/a.png"))
	require.NoError(t, err)

	const admins = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < admins; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Approve(ctx, sub.ID, uuid.New())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if !apperror.Is(err, "SUB_003") {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(500), f.account(t, userID).TotalEarned)
}

func TestCompleteVideo(t *testing.T) {
	f := newFixture()
	svc := f.submissionService(stubFingerprinter{})
	ctx := context.Background()
	userID := uuid.New()

	req := ports.VideoCompletionRequest{
		UserID:          userID,
		VideoID:         "vid-42",
		WatchedSeconds:  96,
		DurationSeconds: 100,
		Amount:          1500,
	}

	sub, err := svc.CompleteVideo(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformVideo, sub.Platform)
	assert.Equal(t, domain.SubmissionStatusApproved, sub.Status)
	require.NotNil(t, sub.VideoID)
	assert.Equal(t, "vid-42", *sub.VideoID)
	assert.Nil(t, sub.Fingerprint)
	assert.Equal(t, int64(1500), f.account(t, userID).AvailableBalance)

	_, err = svc.CompleteVideo(ctx, req)
	requireCode(t, err, "SUB_003")

	req.VideoID = "vid-43"
	_, err = svc.CompleteVideo(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), f.account(t, userID).TotalEarned)

	require.Eventually(t, func() bool { return len(f.audit.Entries()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []domain.AuditAction{domain.AuditActionVideoComplete, domain.AuditActionVideoComplete}, f.auditActions())
}

func TestCompleteVideo_Validation(t *testing.T) {
	f := newFixture()
	svc := f.submissionService(stubFingerprinter{})
	userID := uuid.New()

	valid := ports.VideoCompletionRequest{UserID: userID, VideoID: "v1", WatchedSeconds: 100, DurationSeconds: 100, Amount: 1000}
	tests := []struct {
		name   string
		mutate func(r *ports.VideoCompletionRequest)
	}{
		{"missing video id", func(r *ports.VideoCompletionRequest) { r.VideoID = " " }},
		{"zero duration", func(r *ports.VideoCompletionRequest) { r.DurationSeconds = 0 }},
		{"not watched to completion", func(r *ports.VideoCompletionRequest) { r.WatchedSeconds = 94 }},
		{"zero amount", func(r *ports.VideoCompletionRequest) { r.Amount = 0 }},
		{"amount above cap", func(r *ports.VideoCompletionRequest) { r.Amount = 5001 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := svc.CompleteVideo(context.Background(), req)
			requireCode(t, err, "GEN_001")
		})
	}
	assert.Nil(t, f.account(t, userID))
}

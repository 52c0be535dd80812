package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"engagement-rewards/internal/core/domain"
	"engagement-rewards/internal/core/ports"
	"engagement-rewards/pkg/apperror"
	"engagement-rewards/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// SubmissionSettings tunes deduplication and rate limiting.
type SubmissionSettings struct {
	DedupLookback   int           // newest N fingerprints compared
	DedupWindow     time.Duration // recency bound on compared submissions
	ClaimTTL        time.Duration
	RateLimit       int // max pending+approved submissions per window
	RateWindow      time.Duration
	CompletionRatio float64 // watched/duration needed for a video reward
}

// SubmissionDeps groups the collaborators of SubmissionServiceImpl.
type SubmissionDeps struct {
	Submissions   ports.SubmissionRepository
	Ledger        ports.EarningsLedger
	Transactor    ports.DBTransactor
	Locker        ports.UserLocker
	Fingerprinter ports.Fingerprinter
	Matcher       ports.SimilarityMatcher
	Guard         ports.SubmissionGuard
	Notifier      ports.Notifier
	Audit         ports.AuditService
	Metrics       *Metrics
}

// SubmissionServiceImpl implements ports.SubmissionService.
type SubmissionServiceImpl struct {
	SubmissionDeps
	policies domain.PolicyTable
	settings SubmissionSettings
	log      zerolog.Logger
	now      func() time.Time
}

// NewSubmissionService creates a new SubmissionServiceImpl.
func NewSubmissionService(deps SubmissionDeps, policies domain.PolicyTable, settings SubmissionSettings, log zerolog.Logger) *SubmissionServiceImpl {
	return &SubmissionServiceImpl{
		SubmissionDeps: deps,
		policies:       policies,
		settings:       settings,
		log:            log,
		now:            time.Now,
	}
}

// CreateSubmission fingerprints the screenshot, rejects duplicates and
// over-limit submissions, then records it and credits auto-approved rewards.
func (s *SubmissionServiceImpl) CreateSubmission(ctx context.Context, req ports.CreateSubmissionRequest) (*domain.Submission, error) {
	policy, ok := s.policies.Lookup(req.Platform)
	if !ok || policy.Variable() {
		return nil, apperror.ErrUnknownPlatform(string(req.Platform))
	}
	if strings.TrimSpace(req.ScreenshotURL) == "" {
		return nil, apperror.Validation("screenshot_url is required")
	}

	var fingerprint *string
	if policy.Dedup {
		fp, err := s.Fingerprinter.Fingerprint(ctx, req.ScreenshotURL)
		if err != nil {
			s.Metrics.submission(req.Platform, OutcomeFailed)
			return nil, err
		}
		fingerprint = &fp

		claimKey := fmt.Sprintf("%s:%s:%s", req.UserID, req.Platform, fp)
		held, err := s.Guard.Claim(ctx, claimKey, s.settings.ClaimTTL)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("key", claimKey).Msg("submission claim failed, continuing without it")
		case !held:
			s.Metrics.submission(req.Platform, OutcomeDuplicate)
			return nil, apperror.ErrDuplicateSubmission(nil)
		default:
			defer s.release(claimKey)
		}
	}

	dbTx, err := s.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.Locker.LockUser(ctx, dbTx, req.UserID); err != nil {
		return nil, apperror.ErrLockTimeout(fmt.Errorf("lock user: %w", err))
	}

	now := s.now().UTC()

	if fingerprint != nil {
		recent, err := s.Submissions.RecentFingerprinted(ctx, dbTx, req.UserID, req.Platform,
			now.Add(-s.settings.DedupWindow), s.settings.DedupLookback)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("load recent fingerprints: %w", err))
		}
		for i := range recent {
			dup, err := s.Matcher.IsDuplicate(fingerprint, recent[i].Fingerprint)
			if err != nil {
				return nil, apperror.ErrInvariant(fmt.Errorf("compare with submission %s: %w", recent[i].ID, err))
			}
			if dup {
				s.Metrics.submission(req.Platform, OutcomeDuplicate)
				return nil, apperror.ErrDuplicateSubmission(&recent[i].CreatedAt)
			}
		}
	}

	window, err := s.Submissions.RateWindow(ctx, dbTx, req.UserID, req.Platform, now.Add(-s.settings.RateWindow))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count rate window: %w", err))
	}
	if window.Count >= s.settings.RateLimit {
		retryAt := now.Add(s.settings.RateWindow)
		if window.Oldest != nil {
			retryAt = window.Oldest.Add(s.settings.RateWindow)
		}
		s.Metrics.submission(req.Platform, OutcomeRateLimited)
		return nil, apperror.ErrSubmissionRateLimit(retryAt.Sub(now), retryAt)
	}

	sub := &domain.Submission{
		ID:            uuid.New(),
		UserID:        req.UserID,
		Platform:      req.Platform,
		ScreenshotRef: req.ScreenshotURL,
		Fingerprint:   fingerprint,
		Status:        domain.SubmissionStatusPending,
		Amount:        policy.Amount,
		CreatedAt:     now,
	}

	acct, err := s.record(ctx, dbTx, sub, policy.AutoApprove)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.Metrics.submission(req.Platform, OutcomeAccepted)
	s.log.Info().
		Str("submission_id", sub.ID.String()).
		Str("user_id", sub.UserID.String()).
		Str("platform", string(sub.Platform)).
		Str("status", string(sub.Status)).
		Func(logger.Amount(sub.Amount)).
		Msg("submission recorded")

	s.notify(ctx, sub.UserID, domain.EventSubmissionCreated, sub)
	if acct != nil {
		s.notify(ctx, sub.UserID, domain.EventEarningsUpdated, acct)
	}
	return sub, nil
}

// CompleteVideo records a reward for a video watched to completion.
// A user earns at most once per video.
func (s *SubmissionServiceImpl) CompleteVideo(ctx context.Context, req ports.VideoCompletionRequest) (*domain.Submission, error) {
	policy, ok := s.policies.Lookup(domain.PlatformVideo)
	if !ok {
		return nil, apperror.ErrUnknownPlatform(string(domain.PlatformVideo))
	}
	videoID := strings.TrimSpace(req.VideoID)
	if videoID == "" {
		return nil, apperror.Validation("video_id is required")
	}
	if req.DurationSeconds <= 0 || req.WatchedSeconds < 0 {
		return nil, apperror.Validation("watched_seconds and duration_seconds must be positive")
	}
	if req.WatchedSeconds < req.DurationSeconds*s.settings.CompletionRatio {
		return nil, apperror.Validation("video was not watched to completion")
	}

	amount := policy.Amount
	if policy.Variable() {
		if req.Amount <= 0 || req.Amount > policy.MaxAmount {
			return nil, apperror.Validation("video reward amount out of range")
		}
		amount = req.Amount
	}

	dbTx, err := s.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.Locker.LockUser(ctx, dbTx, req.UserID); err != nil {
		return nil, apperror.ErrLockTimeout(fmt.Errorf("lock user: %w", err))
	}

	rewarded, err := s.Submissions.VideoRewarded(ctx, dbTx, req.UserID, videoID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check video reward: %w", err))
	}
	if rewarded {
		return nil, apperror.ErrAlreadyProcessed("video reward")
	}

	sub := &domain.Submission{
		ID:        uuid.New(),
		UserID:    req.UserID,
		Platform:  domain.PlatformVideo,
		VideoID:   &videoID,
		Status:    domain.SubmissionStatusPending,
		Amount:    amount,
		CreatedAt: s.now().UTC(),
	}

	acct, err := s.record(ctx, dbTx, sub, policy.AutoApprove)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.Metrics.submission(domain.PlatformVideo, OutcomeAccepted)
	s.log.Info().
		Str("submission_id", sub.ID.String()).
		Str("user_id", sub.UserID.String()).
		Str("video_id", videoID).
		Func(logger.Amount(sub.Amount)).
		Msg("video reward recorded")

	s.Audit.Log(ctx, domain.NewAuditLog(domain.AuditActionVideoComplete,
		req.UserID, domain.AuditResourceSubmission, sub.ID, sub.CreatedAt).
		WithDetail("video_id", videoID))
	s.notify(ctx, sub.UserID, domain.EventSubmissionCreated, sub)
	if acct != nil {
		s.notify(ctx, sub.UserID, domain.EventEarningsUpdated, acct)
	}
	return sub, nil
}

// Approve marks a pending submission approved and credits its reward.
func (s *SubmissionServiceImpl) Approve(ctx context.Context, submissionID, actorID uuid.UUID) (*domain.Submission, error) {
	return s.review(ctx, submissionID, actorID, domain.SubmissionStatusApproved, "")
}

// Reject marks a pending submission rejected. Balances are untouched.
func (s *SubmissionServiceImpl) Reject(ctx context.Context, submissionID, actorID uuid.UUID, reason string) (*domain.Submission, error) {
	return s.review(ctx, submissionID, actorID, domain.SubmissionStatusRejected, strings.TrimSpace(reason))
}

func (s *SubmissionServiceImpl) review(ctx context.Context, submissionID, actorID uuid.UUID, to domain.SubmissionStatus, reason string) (*domain.Submission, error) {
	dbTx, err := s.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	sub, err := s.Submissions.GetByIDForUpdate(ctx, dbTx, submissionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock submission: %w", err))
	}
	if sub == nil {
		return nil, apperror.ErrNotFound("submission")
	}
	if !sub.IsPending() {
		return nil, apperror.ErrAlreadyProcessed("submission")
	}

	now := s.now().UTC()
	action := domain.AuditActionSubmissionApprove
	if to == domain.SubmissionStatusApproved {
		err = sub.Approve(&actorID, now)
	} else {
		action = domain.AuditActionSubmissionReject
		err = sub.Reject(&actorID, reason, now)
	}
	if err != nil {
		return nil, apperror.ErrAlreadyProcessed("submission")
	}

	if err := s.Submissions.UpdateReview(ctx, dbTx, sub); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update submission: %w", err))
	}

	var acct *domain.EarningsAccount
	if to == domain.SubmissionStatusApproved {
		if acct, err = s.Ledger.Credit(ctx, dbTx, sub.UserID, sub.Amount); err != nil {
			return nil, err
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.Metrics.review(to)
	if acct != nil {
		s.Metrics.credit(sub.Platform, sub.Amount)
	}
	s.log.Info().
		Str("submission_id", sub.ID.String()).
		Str("actor_id", actorID.String()).
		Str("status", string(sub.Status)).
		Msg("submission reviewed")

	s.Audit.Log(ctx, domain.NewAuditLog(action, actorID, domain.AuditResourceSubmission, sub.ID, now).
		WithDetail("reason", reason))
	s.notify(ctx, sub.UserID, domain.EventSubmissionUpdated, sub)
	if acct != nil {
		s.notify(ctx, sub.UserID, domain.EventEarningsUpdated, acct)
	}
	return sub, nil
}

// record inserts sub and, when autoApprove is set, approves and credits it
// inside dbTx. It returns the credited account or nil.
func (s *SubmissionServiceImpl) record(ctx context.Context, dbTx pgx.Tx, sub *domain.Submission, autoApprove bool) (*domain.EarningsAccount, error) {
	if autoApprove {
		if err := sub.Approve(nil, sub.CreatedAt); err != nil {
			return nil, apperror.ErrInvariant(err)
		}
	}
	if err := s.Submissions.Create(ctx, dbTx, sub); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create submission: %w", err))
	}
	if !autoApprove {
		return nil, nil
	}
	acct, err := s.Ledger.Credit(ctx, dbTx, sub.UserID, sub.Amount)
	if err != nil {
		return nil, err
	}
	s.Metrics.credit(sub.Platform, sub.Amount)
	return acct, nil
}

func (s *SubmissionServiceImpl) release(key string) {
	if err := s.Guard.Release(context.Background(), key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to release submission claim")
	}
}

func (s *SubmissionServiceImpl) notify(ctx context.Context, userID uuid.UUID, event string, payload interface{}) {
	if err := s.Notifier.Emit(ctx, userID, event, payload); err != nil {
		s.log.Debug().Err(err).Str("user_id", userID.String()).Str("event", event).Msg("realtime notify failed")
	}
}

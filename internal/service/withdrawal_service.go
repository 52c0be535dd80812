package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"engagement-rewards/internal/core/domain"
	"engagement-rewards/internal/core/ports"
	"engagement-rewards/pkg/apperror"
	"engagement-rewards/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	idempotencyTTL   = 24 * time.Hour
	withdrawalScope  = "withdrawal"
	maxReasonLength  = 500
	maxBankFieldSize = 128
)

// WithdrawalDeps groups the collaborators of WithdrawalServiceImpl.
type WithdrawalDeps struct {
	Ledger      ports.EarningsLedger
	Withdrawals ports.WithdrawalRepository
	IdempRepo   ports.IdempotencyRepository
	IdempCache  ports.IdempotencyCache
	Encryption  ports.EncryptionService
	Transactor  ports.DBTransactor
	Locker      ports.UserLocker
	Payout      ports.PayoutGateway
	Notifier    ports.Notifier
	Audit       ports.AuditService
	Metrics     *Metrics
}

// WithdrawalServiceImpl implements ports.WithdrawalService.
type WithdrawalServiceImpl struct {
	WithdrawalDeps
	log zerolog.Logger
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(deps WithdrawalDeps, log zerolog.Logger) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{WithdrawalDeps: deps, log: log}
}

// Request reserves available balance for a payout. With an idempotency key,
// a retried request returns the withdrawal created by the first one.
func (s *WithdrawalServiceImpl) Request(ctx context.Context, req ports.WithdrawalRequest) (*domain.WithdrawalTransaction, error) {
	if req.Amount <= 0 {
		return nil, apperror.Validation("amount must be positive")
	}
	if err := validateBank(req.Bank); err != nil {
		return nil, err
	}

	var idempKey, reqHash string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildIdempotencyKey(req.UserID, withdrawalScope, req.IdempotencyKey)
		reqHash = domain.HashRequest(strconv.FormatInt(req.Amount, 10),
			req.Bank.AccountName, req.Bank.AccountNumber, req.Bank.BankName)

		// Layer 1: Redis idempotency check
		cached, err := s.IdempCache.Get(ctx, idempKey)
		if err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			var entry domain.IdempotencyLog
			if err := json.Unmarshal(cached, &entry); err == nil {
				return replay(&entry, reqHash)
			}
			s.log.Warn().Str("key", idempKey).Msg("unreadable idempotency cache entry, falling through to DB")
		}

		// Layer 2: DB idempotency check
		if w, err := s.storedReplay(ctx, idempKey, reqHash); w != nil || err != nil {
			return w, err
		}
	}

	bankJSON, err := json.Marshal(req.Bank)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal bank details: %w", err))
	}
	sealed, err := s.Encryption.Encrypt(string(bankJSON), req.UserID.String())
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("seal bank details: %w", err))
	}

	dbTx, err := s.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.Locker.LockUser(ctx, dbTx, req.UserID); err != nil {
		return nil, apperror.ErrLockTimeout(fmt.Errorf("lock user: %w", err))
	}

	// A concurrent request with the same key may have committed while we waited.
	if idempKey != "" {
		if w, err := s.storedReplay(ctx, idempKey, reqHash); w != nil || err != nil {
			return w, err
		}
	}

	w, acct, err := s.Ledger.ReserveForWithdrawal(ctx, dbTx, ports.ReserveRequest{
		UserID:         req.UserID,
		Amount:         req.Amount,
		BankDetailsEnc: sealed,
		AccountLast4:   req.Bank.Last4(),
		BankName:       req.Bank.BankName,
	})
	if err != nil {
		return nil, err
	}

	var entryJSON []byte
	if idempKey != "" {
		respJSON, err := json.Marshal(w)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
		}
		entry := &domain.IdempotencyLog{
			Key:          idempKey,
			RequestHash:  reqHash,
			ResourceID:   w.ID,
			ResponseJSON: respJSON,
			CreatedAt:    w.CreatedAt,
		}
		if err := s.IdempRepo.Create(ctx, dbTx, entry); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("save idempotency log: %w", err))
		}
		if entryJSON, err = json.Marshal(entry); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("marshal idempotency log: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if idempKey != "" {
		if err := s.IdempCache.Set(ctx, idempKey, entryJSON, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	s.Metrics.withdrawal(w.Status)
	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("user_id", w.UserID.String()).
		Str("reference", w.Reference).
		Func(logger.Amount(w.Amount)).
		Msg("withdrawal requested")

	s.Audit.Log(ctx, domain.NewAuditLog(domain.AuditActionWithdrawalRequest,
		req.UserID, domain.AuditResourceWithdrawal, w.ID, w.CreatedAt).
		WithDetail("reference", w.Reference))
	s.notify(ctx, w.UserID, domain.EventWithdrawalUpdated, w)
	s.notify(ctx, w.UserID, domain.EventEarningsUpdated, acct)
	return w, nil
}

// Approve settles a pending withdrawal and hands it to the payout gateway.
func (s *WithdrawalServiceImpl) Approve(ctx context.Context, withdrawalID, actorID uuid.UUID) (*domain.WithdrawalTransaction, error) {
	return s.finalize(ctx, withdrawalID, actorID, domain.WithdrawalApprove, "")
}

// Reject returns a pending withdrawal's amount to the available balance.
func (s *WithdrawalServiceImpl) Reject(ctx context.Context, withdrawalID, actorID uuid.UUID, reason string) (*domain.WithdrawalTransaction, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > maxReasonLength {
		return nil, apperror.Validation(fmt.Sprintf("reason must be at most %d characters", maxReasonLength))
	}
	return s.finalize(ctx, withdrawalID, actorID, domain.WithdrawalReject, reason)
}

func (s *WithdrawalServiceImpl) finalize(ctx context.Context, withdrawalID, actorID uuid.UUID, outcome domain.WithdrawalOutcome, reason string) (*domain.WithdrawalTransaction, error) {
	dbTx, err := s.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	w, acct, err := s.Ledger.FinalizeWithdrawal(ctx, dbTx, withdrawalID, outcome, reason)
	if err != nil {
		return nil, err
	}

	// The payout runs before commit so a gateway failure leaves the funds pending.
	if outcome == domain.WithdrawalApprove {
		bank, err := s.openBank(w)
		if err != nil {
			return nil, err
		}
		if err := s.Payout.Payout(ctx, w, bank); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("payout %s: %w", w.Reference, err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	action := domain.AuditActionWithdrawalApprove
	if outcome == domain.WithdrawalReject {
		action = domain.AuditActionWithdrawalReject
	}

	s.Metrics.withdrawal(w.Status)
	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("actor_id", actorID.String()).
		Str("status", string(w.Status)).
		Func(logger.Amount(w.Amount)).
		Msg("withdrawal finalized")

	s.Audit.Log(ctx, domain.NewAuditLog(action, actorID, domain.AuditResourceWithdrawal, w.ID, *w.ProcessedAt).
		WithDetail("reason", reason))
	s.notify(ctx, w.UserID, domain.EventWithdrawalUpdated, w)
	s.notify(ctx, w.UserID, domain.EventEarningsUpdated, acct)
	return w, nil
}

func (s *WithdrawalServiceImpl) openBank(w *domain.WithdrawalTransaction) (domain.BankDetails, error) {
	var bank domain.BankDetails
	plain, err := s.Encryption.Decrypt(w.BankDetailsEnc, w.UserID.String())
	if err != nil {
		return bank, apperror.ErrEncryptionFailure(fmt.Errorf("open bank details of %s: %w", w.ID, err))
	}
	if err := json.Unmarshal([]byte(plain), &bank); err != nil {
		return bank, apperror.InternalError(fmt.Errorf("decode bank details of %s: %w", w.ID, err))
	}
	return bank, nil
}

func (s *WithdrawalServiceImpl) notify(ctx context.Context, userID uuid.UUID, event string, payload interface{}) {
	if err := s.Notifier.Emit(ctx, userID, event, payload); err != nil {
		s.log.Debug().Err(err).Str("user_id", userID.String()).Str("event", event).Msg("realtime notify failed")
	}
}

func validateBank(b domain.BankDetails) error {
	fields := []struct{ name, value string }{
		{"account_name", b.AccountName},
		{"account_number", b.AccountNumber},
		{"bank_name", b.BankName},
	}
	for _, f := range fields {
		name, v := f.name, strings.TrimSpace(f.value)
		if v == "" {
			return apperror.Validation(name + " is required")
		}
		if len(v) > maxBankFieldSize {
			return apperror.Validation(fmt.Sprintf("%s must be at most %d characters", name, maxBankFieldSize))
		}
	}
	return nil
}

// storedReplay answers from the idempotency_logs table. It returns nil, nil
// when the key has not been used.
func (s *WithdrawalServiceImpl) storedReplay(ctx context.Context, key, reqHash string) (*domain.WithdrawalTransaction, error) {
	entry, err := s.IdempRepo.Get(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if entry == nil {
		return nil, nil
	}
	return replay(entry, reqHash)
}

func replay(entry *domain.IdempotencyLog, reqHash string) (*domain.WithdrawalTransaction, error) {
	if !entry.Answers(reqHash) {
		return nil, apperror.ErrIdempotencyKeyReused()
	}
	var w domain.WithdrawalTransaction
	if err := json.Unmarshal(entry.ResponseJSON, &w); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal stored withdrawal: %w", err))
	}
	return &w, nil
}

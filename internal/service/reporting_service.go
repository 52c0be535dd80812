package service

import (
	"context"

	"engagement-rewards/internal/core/domain"
	"engagement-rewards/internal/core/ports"
	"engagement-rewards/pkg/apperror"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	earnings    ports.EarningsRepository
	submissions ports.SubmissionRepository
	withdrawals ports.WithdrawalRepository
}

// NewReportingService serves the read-only views of the ledger.
func NewReportingService(
	earnings ports.EarningsRepository,
	submissions ports.SubmissionRepository,
	withdrawals ports.WithdrawalRepository,
) ports.ReportingService {
	return &reportingService{
		earnings:    earnings,
		submissions: submissions,
		withdrawals: withdrawals,
	}
}

// GetEarnings returns the user's account, or a zero-valued one if they never earned.
func (s *reportingService) GetEarnings(ctx context.Context, userID uuid.UUID) (*domain.EarningsAccount, error) {
	acct, err := s.earnings.Get(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if acct == nil {
		return &domain.EarningsAccount{UserID: userID}, nil
	}
	return acct, nil
}

func (s *reportingService) ListSubmissions(ctx context.Context, params ports.SubmissionListParams) ([]domain.Submission, int64, error) {
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)
	items, total, err := s.submissions.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	if items == nil {
		items = []domain.Submission{}
	}
	return items, total, nil
}

func (s *reportingService) ListWithdrawals(ctx context.Context, params ports.WithdrawalListParams) ([]domain.WithdrawalTransaction, int64, error) {
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)
	items, total, err := s.withdrawals.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	if items == nil {
		items = []domain.WithdrawalTransaction{}
	}
	return items, total, nil
}

// normalizePage clamps to page >= 1 and 1 <= size <= maxPageSize.
func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

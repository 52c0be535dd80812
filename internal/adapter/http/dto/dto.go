package dto

import (
	"time"

	"engagement-rewards/internal/core/domain"
	"engagement-rewards/pkg/money"
)

// CreateSubmissionRequest is the request body for a screenshot submission.
type CreateSubmissionRequest struct {
	Platform      string `json:"platform" binding:"required,oneof=facebook youtube google tiktok instagram"`
	ScreenshotURL string `json:"screenshot_url" binding:"required,max=2048,safe_url" sanitize:"trim"`
}

// VideoCompletionRequest is the request body for a watched video.
// Amount is a decimal string and only honored for variable-reward videos.
type VideoCompletionRequest struct {
	WatchedSeconds  float64 `json:"watched_seconds" binding:"gte=0"`
	DurationSeconds float64 `json:"duration_seconds" binding:"required,gt=0"`
	Amount          string  `json:"amount,omitempty" binding:"omitempty,max=20,money"`
}

// VideoURI binds the video being completed from the path.
type VideoURI struct {
	VideoID string `uri:"video_id" binding:"required,max=64,safe_id"`
}

// IDURI binds a resource UUID from the path.
type IDURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// WithdrawalRequest is the request body for a withdrawal.
type WithdrawalRequest struct {
	Amount        string `json:"amount" binding:"required,max=20,money"`
	AccountName   string `json:"account_name" binding:"required,max=100"`
	AccountNumber string `json:"account_number" binding:"required,min=4,max=34,alphanum" sanitize:"trim"`
	BankName      string `json:"bank_name" binding:"required,max=100"`
}

// ReviewRequest carries an optional admin note for a rejection.
type ReviewRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// SubmissionResponse is the wire shape of a submission.
type SubmissionResponse struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	Platform        string  `json:"platform"`
	ScreenshotURL   string  `json:"screenshot_url,omitempty"`
	VideoID         *string `json:"video_id,omitempty"`
	Status          string  `json:"status"`
	Amount          string  `json:"amount"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	CreatedAt       string  `json:"created_at"`
	ReviewedAt      *string `json:"reviewed_at,omitempty"`
}

// EarningsResponse is the wire shape of an earnings account.
type EarningsResponse struct {
	TotalEarned       string `json:"total_earned"`
	AvailableBalance  string `json:"available_balance"`
	PendingWithdrawal string `json:"pending_withdrawal"`
	WithdrawnAmount   string `json:"withdrawn_amount"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

// WithdrawalResponse is the wire shape of a withdrawal. Bank details are
// never returned beyond the last four digits.
type WithdrawalResponse struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	Reference       string  `json:"reference"`
	Amount          string  `json:"amount"`
	Status          string  `json:"status"`
	AccountLast4    string  `json:"account_last4"`
	BankName        string  `json:"bank_name"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	CreatedAt       string  `json:"created_at"`
	ProcessedAt     *string `json:"processed_at,omitempty"`
}

func ToSubmissionResponse(s *domain.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:              s.ID.String(),
		UserID:          s.UserID.String(),
		Platform:        string(s.Platform),
		ScreenshotURL:   s.ScreenshotRef,
		VideoID:         s.VideoID,
		Status:          string(s.Status),
		Amount:          money.Format(s.Amount),
		RejectionReason: s.RejectionReason,
		CreatedAt:       formatTime(s.CreatedAt),
		ReviewedAt:      formatTimePtr(s.ReviewedAt),
	}
}

func ToSubmissionList(subs []domain.Submission) []SubmissionResponse {
	out := make([]SubmissionResponse, len(subs))
	for i := range subs {
		out[i] = ToSubmissionResponse(&subs[i])
	}
	return out
}

// ToEarningsResponse renders acct; a nil account is an all-zero balance.
func ToEarningsResponse(acct *domain.EarningsAccount) EarningsResponse {
	if acct == nil {
		zero := money.Format(0)
		return EarningsResponse{TotalEarned: zero, AvailableBalance: zero, PendingWithdrawal: zero, WithdrawnAmount: zero}
	}
	resp := EarningsResponse{
		TotalEarned:       money.Format(acct.TotalEarned),
		AvailableBalance:  money.Format(acct.AvailableBalance),
		PendingWithdrawal: money.Format(acct.PendingWithdrawal),
		WithdrawnAmount:   money.Format(acct.WithdrawnAmount),
	}
	if !acct.UpdatedAt.IsZero() {
		resp.UpdatedAt = formatTime(acct.UpdatedAt)
	}
	return resp
}

func ToWithdrawalResponse(w *domain.WithdrawalTransaction) WithdrawalResponse {
	return WithdrawalResponse{
		ID:              w.ID.String(),
		UserID:          w.UserID.String(),
		Reference:       w.Reference,
		Amount:          money.Format(w.Amount),
		Status:          string(w.Status),
		AccountLast4:    w.AccountLast4,
		BankName:        w.BankName,
		RejectionReason: w.RejectionReason,
		CreatedAt:       formatTime(w.CreatedAt),
		ProcessedAt:     formatTimePtr(w.ProcessedAt),
	}
}

func ToWithdrawalList(ws []domain.WithdrawalTransaction) []WithdrawalResponse {
	out := make([]WithdrawalResponse, len(ws))
	for i := range ws {
		out[i] = ToWithdrawalResponse(&ws[i])
	}
	return out
}

// Present converts domain payloads pushed over the realtime channel into
// the same shapes the REST API returns. Unknown values pass through.
func Present(v interface{}) interface{} {
	switch p := v.(type) {
	case *domain.Submission:
		return ToSubmissionResponse(p)
	case *domain.EarningsAccount:
		return ToEarningsResponse(p)
	case *domain.WithdrawalTransaction:
		return ToWithdrawalResponse(p)
	default:
		return v
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// WithdrawalStatus represents the lifecycle state of a withdrawal.
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
	WithdrawalStatusFailed    WithdrawalStatus = "failed"
)

// WithdrawalOutcome is the admin decision applied to a pending withdrawal.
type WithdrawalOutcome string

const (
	WithdrawalApprove WithdrawalOutcome = "approve"
	WithdrawalReject  WithdrawalOutcome = "reject"
)

// BankDetails is the payout destination captured at request time.
type BankDetails struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
}

// Last4 returns the trailing digits of the account number for display.
func (b BankDetails) Last4() string {
	n := strings.TrimSpace(b.AccountNumber)
	if len(n) <= 4 {
		return n
	}
	return n[len(n)-4:]
}

// WithdrawalTransaction represents a request to pay out available earnings.
type WithdrawalTransaction struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"user_id"`
	Amount          int64            `json:"amount"` // Minor units
	Status          WithdrawalStatus `json:"status"`
	Reference       string           `json:"reference"`
	BankDetailsEnc  string           `json:"-"` // AES-256-GCM sealed snapshot, never expose
	AccountLast4    string           `json:"account_last4"`
	BankName        string           `json:"bank_name"`
	RejectionReason *string          `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	ProcessedAt     *time.Time       `json:"processed_at,omitempty"`
}

// IsTerminal returns true once the withdrawal has been finalized.
func (w *WithdrawalTransaction) IsTerminal() bool {
	return w.Status == WithdrawalStatusCompleted || w.Status == WithdrawalStatusFailed
}

// NewWithdrawalReference generates a human-readable unique reference.
func NewWithdrawalReference() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "WDR-" + strings.ToUpper(id[:16])
}

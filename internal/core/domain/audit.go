package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditActionSubmissionApprove AuditAction = "SUBMISSION_APPROVE"
	AuditActionSubmissionReject  AuditAction = "SUBMISSION_REJECT"
	AuditActionVideoComplete     AuditAction = "VIDEO_COMPLETE"
	AuditActionWithdrawalRequest AuditAction = "WITHDRAWAL_REQUEST"
	AuditActionWithdrawalApprove AuditAction = "WITHDRAWAL_APPROVE"
	AuditActionWithdrawalReject  AuditAction = "WITHDRAWAL_REJECT"
)

// Audited resource kinds.
const (
	AuditResourceSubmission = "submission"
	AuditResourceWithdrawal = "withdrawal"
)

// AuditLog is one money-affecting or review action, kept apart from the
// ledger rows it describes. ActorID is nil for system actions.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON object
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}

// NewAuditLog records actor performing action on the given resource at at.
func NewAuditLog(action AuditAction, actor uuid.UUID, resourceType string, resourceID uuid.UUID, at time.Time) *AuditLog {
	return &AuditLog{
		ID:           uuid.New(),
		ActorID:      &actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID.String(),
		CreatedAt:    at,
	}
}

// WithDetail adds key to the Details object. Empty values are skipped.
func (l *AuditLog) WithDetail(key, value string) *AuditLog {
	if value == "" {
		return l
	}
	fields := map[string]string{}
	if l.Details != "" {
		_ = json.Unmarshal([]byte(l.Details), &fields)
	}
	fields[key] = value
	raw, _ := json.Marshal(fields)
	l.Details = string(raw)
	return l
}

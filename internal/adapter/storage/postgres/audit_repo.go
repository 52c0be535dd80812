package postgres

import (
	"context"
	"fmt"

	"engagement-rewards/internal/core/domain"
	"engagement-rewards/internal/core/ports"
)

// Empty details and IPs are stored as NULL.
const insertAuditLog = `INSERT INTO audit_logs
	(id, actor_id, action, resource_type, resource_id, details, ip_address, created_at)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)`

type auditRepo struct {
	pool Pool
}

// NewAuditRepository returns an append-only audit store. Writes use the pool
// directly so an entry survives the rollback of the action it describes.
func NewAuditRepository(pool Pool) ports.AuditRepository {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	if _, err := r.pool.Exec(ctx, insertAuditLog,
		entry.ID, entry.ActorID, string(entry.Action), entry.ResourceType,
		entry.ResourceID, entry.Details, entry.IPAddress, entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert audit log %s: %w", entry.Action, err)
	}
	return nil
}

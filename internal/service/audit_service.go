package service

import (
	"context"
	"sync"

	"engagement-rewards/internal/core/domain"
	"engagement-rewards/internal/core/ports"

	"github.com/rs/zerolog"
)

// AuditServiceImpl writes audit entries off the request path. Every entry
// is logged; it is also persisted when a repository is configured.
type AuditServiceImpl struct {
	repo     ports.AuditRepository
	log      zerolog.Logger
	inflight sync.WaitGroup
}

// NewAuditService creates an audit writer. repo may be nil.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) *AuditServiceImpl {
	return &AuditServiceImpl{repo: repo, log: log}
}

// Log returns immediately. The entry inherits the client IP from ctx when
// it has none, and persistence is not cancelled when ctx is.
func (s *AuditServiceImpl) Log(ctx context.Context, entry *domain.AuditLog) {
	if entry.IPAddress == "" {
		entry.IPAddress = ports.ClientIP(ctx)
	}
	ctx = context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.write(ctx, entry)
	}()
}

// Wait blocks until every entry passed to Log has been written.
func (s *AuditServiceImpl) Wait() {
	s.inflight.Wait()
}

func (s *AuditServiceImpl) write(ctx context.Context, entry *domain.AuditLog) {
	ev := s.log.Info().
		Str("action", string(entry.Action)).
		Str("resource_type", entry.ResourceType).
		Str("resource_id", entry.ResourceID).
		Str("ip", entry.IPAddress)
	if entry.ActorID != nil {
		ev = ev.Stringer("actor_id", entry.ActorID)
	}
	if entry.Details != "" {
		ev = ev.RawJSON("details", []byte(entry.Details))
	}
	ev.Msg("audit")

	if s.repo == nil {
		return
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("failed to persist audit log")
	}
}

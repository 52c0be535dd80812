package postgres

import (
	"context"
	"fmt"
)

// schema is applied in order on startup; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS submissions (
		id               UUID PRIMARY KEY,
		user_id          UUID NOT NULL,
		platform         TEXT NOT NULL,
		screenshot_ref   TEXT NOT NULL DEFAULT '',
		fingerprint      CHAR(16),
		video_id         TEXT,
		status           TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
		amount           BIGINT NOT NULL CHECK (amount >= 0),
		rejection_reason TEXT,
		reviewed_by      UUID,
		created_at       TIMESTAMPTZ NOT NULL,
		reviewed_at      TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_user_platform_created
		ON submissions (user_id, platform, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_status_created
		ON submissions (status, created_at DESC)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_submissions_user_video
		ON submissions (user_id, video_id) WHERE video_id IS NOT NULL AND status <> 'rejected'`,
	`CREATE TABLE IF NOT EXISTS earnings_accounts (
		user_id            UUID PRIMARY KEY,
		total_earned       BIGINT NOT NULL DEFAULT 0 CHECK (total_earned >= 0),
		available_balance  BIGINT NOT NULL DEFAULT 0 CHECK (available_balance >= 0),
		pending_withdrawal BIGINT NOT NULL DEFAULT 0 CHECK (pending_withdrawal >= 0),
		withdrawn_amount   BIGINT NOT NULL DEFAULT 0 CHECK (withdrawn_amount >= 0),
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT earnings_total_balanced
			CHECK (total_earned = available_balance + pending_withdrawal + withdrawn_amount)
	)`,
	`CREATE TABLE IF NOT EXISTS withdrawals (
		id               UUID PRIMARY KEY,
		user_id          UUID NOT NULL,
		amount           BIGINT NOT NULL CHECK (amount > 0),
		status           TEXT NOT NULL CHECK (status IN ('pending', 'completed', 'failed')),
		reference        TEXT NOT NULL UNIQUE,
		bank_details_enc TEXT NOT NULL,
		account_last4    TEXT NOT NULL DEFAULT '',
		bank_name        TEXT NOT NULL DEFAULT '',
		rejection_reason TEXT,
		created_at       TIMESTAMPTZ NOT NULL,
		processed_at     TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_withdrawals_user_created
		ON withdrawals (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS idempotency_logs (
		key           TEXT PRIMARY KEY,
		request_hash  CHAR(64) NOT NULL,
		resource_id   UUID NOT NULL,
		response_json JSONB NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id            UUID PRIMARY KEY,
		actor_id      UUID,
		action        TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id   TEXT,
		details       TEXT,
		ip_address    TEXT,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the tables and indexes the repositories rely on.
func Migrate(ctx context.Context, pool Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// SubmissionGuard implements ports.SubmissionGuard using Redis SET NX.
// A claim marks one user+platform as having a submission in flight so
// a concurrent duplicate on another instance is turned away early.
type SubmissionGuard struct {
	client goredis.Cmdable
	prefix string
}

// NewSubmissionGuard creates a new Redis-backed submission guard.
func NewSubmissionGuard(client goredis.Cmdable) *SubmissionGuard {
	return &SubmissionGuard{
		client: client,
		prefix: "claim:",
	}
}

// Claim atomically takes key for ttl.
// Returns true if the key was free, false if another request holds it.
func (g *SubmissionGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := g.client.SetArgs(ctx, g.prefix+key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis claim: %w", err)
	}
	return result == "OK", nil
}

// Release drops the claim on key.
func (g *SubmissionGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, g.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis release claim: %w", err)
	}
	return nil
}

package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog is the stored outcome of a request made with an
// Idempotency-Key. A retry with the same key and body replays ResponseJSON.
type IdempotencyLog struct {
	Key          string    `json:"key"` // user_id:scope:client_key
	RequestHash  string    `json:"request_hash"`
	ResourceID   uuid.UUID `json:"resource_id"`
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// Answers reports whether the log was written for a request with this hash.
func (l *IdempotencyLog) Answers(requestHash string) bool {
	return l.RequestHash == requestHash
}

// BuildIdempotencyKey scopes a client-supplied key to its user and operation.
func BuildIdempotencyKey(userID uuid.UUID, scope, clientKey string) string {
	return userID.String() + ":" + scope + ":" + clientKey
}

// HashRequest digests the fields that identify a request body. Fields are
// joined with a unit separator so ("ab","c") and ("a","bc") differ.
func HashRequest(fields ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}

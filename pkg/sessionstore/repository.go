// Package sessionstore persists one record per issued session token and
// answers liveness and lineage queries about them.
package sessionstore

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrDuplicateJTI is returned when a record with the same jti already exists.
// The store is an append-only log; a jti is never overwritten.
var ErrDuplicateJTI = errors.New("session jti already exists")

// Repository defines the interface for session record access
type Repository interface {
	// Persist inserts a new session record. Never overwrites an existing jti.
	Persist(ctx context.Context, params CreateSessionParams) (*SessionRecord, error)

	// IsActive reports whether a record exists for jti and is not revoked.
	// An unknown jti is inactive, not an error.
	IsActive(ctx context.Context, jti string) (bool, error)

	// Revoke marks the matching record revoked. Idempotent: revoking an
	// absent or already-revoked record is a no-op, not an error.
	Revoke(ctx context.Context, userID uuid.UUID, jti string) error

	// LatestForUser returns the most-recently-created record for the user
	// regardless of revocation state, or nil when the user has none.
	LatestForUser(ctx context.Context, userID uuid.UUID) (*SessionRecord, error)

	// ListActiveForUser returns non-revoked, unexpired records for the user,
	// newest first.
	ListActiveForUser(ctx context.Context, userID uuid.UUID) ([]SessionRecord, error)
}

package sessionstore

import (
	"time"

	"github.com/google/uuid"
)

// SessionRecord is the server-side record of one issued token, keyed by JTI.
// Records are append-only: the only mutation is setting RevokedAt on logout.
type SessionRecord struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	ImpersonatorID *uuid.UUID `json:"impersonator_id,omitempty"`
	JTI            string     `json:"jti"`
	ExpiresAt      time.Time  `json:"expires_at"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// IsImpersonated reports whether this session was created via impersonation
func (s *SessionRecord) IsImpersonated() bool {
	return s.ImpersonatorID != nil
}

// CreateSessionParams represents the request to persist a new session record
type CreateSessionParams struct {
	UserID         uuid.UUID
	ImpersonatorID *uuid.UUID
	JTI            string
	ExpiresAt      time.Time
}

// Package authn verifies inbound credentials and resolves them to a user
// identity. Failures are indistinguishable to callers so that neither
// unknown emails nor wrong passwords can be probed.
package authn

import (
	"context"

	"github.com/google/uuid"
)

// Credentials carries a login attempt
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Authenticator resolves credentials to a user identity
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (uuid.UUID, error)
}

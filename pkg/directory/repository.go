// Package directory looks up users and organizations. It is the session
// service's read-side view of the user store; account CRUD lives elsewhere.
package directory

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for directory lookups.
// Lookup misses return (nil, nil), not an error.
type Repository interface {
	FindUser(ctx context.Context, id uuid.UUID) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindOrganization(ctx context.Context, id uuid.UUID) (*Organization, error)
}

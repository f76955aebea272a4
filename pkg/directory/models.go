package directory

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus represents the lifecycle state of a user account
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// User represents a user in the directory
type User struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	IsInternal     bool       `json:"is_internal"`
	ProfileImage   string     `json:"profile_image,omitempty"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	Status         UserStatus `json:"status"`
	PasswordHash   string     `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Organization represents an organization a user may belong to
type Organization struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// UserView is the non-sensitive projection of a user returned by the
// current-user endpoint. OrganizationName is resolved at read time.
type UserView struct {
	ID               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	OrganizationName *string    `json:"organization_name"`
	IsInternal       bool       `json:"is_internal"`
	ProfileImage     string     `json:"profile_image,omitempty"`
	Status           UserStatus `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

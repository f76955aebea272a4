package authn

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-session/pkg/directory"
	"github.com/tendant/simple-session/pkg/errors"
)

// PasswordAuthenticator verifies email/password credentials against the
// bcrypt hash stored in the user directory
type PasswordAuthenticator struct {
	directory directory.Repository
}

// NewPasswordAuthenticator creates a new password authenticator
func NewPasswordAuthenticator(dir directory.Repository) *PasswordAuthenticator {
	return &PasswordAuthenticator{
		directory: dir,
	}
}

// HashPassword hashes the plain-text password using bcrypt
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "password cannot be empty")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// Authenticate resolves credentials to a user id. Every failure surfaces as
// the same generic AUTH_FAILED; the cause is only logged.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, creds Credentials) (uuid.UUID, error) {
	if creds.Email == "" || creds.Password == "" {
		return uuid.Nil, errors.New(errors.ErrCodeAuthFailed, "authentication failed")
	}

	user, err := a.directory.FindUserByEmail(ctx, creds.Email)
	if err != nil {
		slog.Error("Failed looking up user for login", "err", err)
		return uuid.Nil, errors.Wrap(err, errors.ErrCodeAuthFailed, "authentication failed")
	}
	if user == nil || user.Status != directory.UserStatusActive || user.PasswordHash == "" {
		slog.Debug("Login rejected", "email", creds.Email)
		return uuid.Nil, errors.New(errors.ErrCodeAuthFailed, "authentication failed")
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password))
	if err != nil {
		slog.Debug("Password mismatch", "user_id", user.ID)
		return uuid.Nil, errors.New(errors.ErrCodeAuthFailed, "authentication failed")
	}

	return user.ID, nil
}

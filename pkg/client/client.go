package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"

	"github.com/tendant/simple-session/pkg/sessionstore"
)

// AuthUser identifies the authenticated session placed on the request
// context by AuthMiddleware.
type AuthUser struct {
	UserID    uuid.UUID `json:"user_id"`
	JTI       string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (u AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", u.UserID.String()),
		slog.String("jti", u.JTI),
	)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation. This technique
// for defining context keys was copied from Go 1.7's new use of context in net/http.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "session context value " + k.name
}

const (
	ACCESS_TOKEN_NAME = "access_token"
)

var (
	AuthUserKey = &contextKey{"AuthUser"}
)

// TokenValidator checks a raw token string and returns the session it
// identifies. Implemented by session.Service.
type TokenValidator interface {
	Validate(ctx context.Context, tokenStr string) (*sessionstore.SessionRecord, error)
}

// TokenFromCookie extracts the session token from the access_token cookie
func TokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(ACCESS_TOKEN_NAME)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// extractTokenFromRequest attempts to extract a token from the request using existing extractors
func extractTokenFromRequest(r *http.Request) (string, error) {
	extractors := []func(*http.Request) string{
		jwtauth.TokenFromHeader,
		TokenFromCookie,
	}

	for _, extractor := range extractors {
		if tokenString := extractor(r); tokenString != "" {
			return tokenString, nil
		}
	}

	return "", fmt.Errorf("no token found")
}

// AuthMiddleware extracts the session token from the Authorization header
// or the access_token cookie, validates it against the session store, and
// puts an AuthUser on the request context. Requests without a valid live
// session get 401.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := extractTokenFromRequest(r)
			if err != nil {
				http.Error(w, "missing session token", http.StatusUnauthorized)
				return
			}

			record, err := validator.Validate(r.Context(), tokenString)
			if err != nil {
				slog.Debug("Session validation failed", "err", err)
				http.Error(w, "invalid or expired session", http.StatusUnauthorized)
				return
			}

			authUser := &AuthUser{
				UserID:    record.UserID,
				JTI:       record.JTI,
				ExpiresAt: record.ExpiresAt,
			}

			ctx := context.WithValue(r.Context(), AuthUserKey, authUser)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthUserFromContext returns the AuthUser set by AuthMiddleware
func AuthUserFromContext(ctx context.Context) (*AuthUser, bool) {
	authUser, ok := ctx.Value(AuthUserKey).(*AuthUser)
	return authUser, ok
}

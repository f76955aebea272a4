// Package session issues, validates and revokes session tokens, including
// impersonated sessions acting on behalf of another user.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-session/pkg/authn"
	"github.com/tendant/simple-session/pkg/directory"
	"github.com/tendant/simple-session/pkg/errors"
	"github.com/tendant/simple-session/pkg/sessionstore"
	"github.com/tendant/simple-session/pkg/tokencodec"
)

const (
	// DefaultSessionTTL is the lifetime of a standard session token
	DefaultSessionTTL = 168 * time.Hour

	// DefaultImpersonationTTL is the shorter lifetime of impersonated sessions
	DefaultImpersonationTTL = 24 * time.Hour
)

// IssuedToken is the result of minting and persisting a session
type IssuedToken struct {
	Token     string
	JTI       string
	UserID    uuid.UUID
	ExpiresAt time.Time
	TTL       time.Duration
}

// SessionInfo describes the current session for display purposes
type SessionInfo struct {
	UserID           uuid.UUID
	ImpersonatorID   *uuid.UUID
	ImpersonatorName *string
}

// Service coordinates the token codec, the session store and the user
// directory to manage the session lifecycle
type Service struct {
	codec            tokencodec.Codec
	store            sessionstore.Repository
	directory        *directory.Service
	authenticator    authn.Authenticator
	sessionTTL       time.Duration
	impersonationTTL time.Duration
}

// Option customizes a Service
type Option func(*Service)

// WithSessionTTL overrides the standard session lifetime
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.sessionTTL = ttl
	}
}

// WithImpersonationTTL overrides the impersonated session lifetime
func WithImpersonationTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.impersonationTTL = ttl
	}
}

// NewService creates a new session service
func NewService(codec tokencodec.Codec, store sessionstore.Repository, dir *directory.Service, authenticator authn.Authenticator, opts ...Option) *Service {
	s := &Service{
		codec:            codec,
		store:            store,
		directory:        dir,
		authenticator:    authenticator,
		sessionTTL:       DefaultSessionTTL,
		impersonationTTL: DefaultImpersonationTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// issue mints a token for userID and persists the matching session record.
// The record carries impersonatorID when the session acts on behalf of
// another user.
func (s *Service) issue(ctx context.Context, userID uuid.UUID, impersonatorID *uuid.UUID, ttl time.Duration) (*IssuedToken, error) {
	minted, err := s.codec.Mint(userID.String(), ttl)
	if err != nil {
		slog.Error("Failed to mint session token", "userID", userID, "err", err)
		return nil, err
	}

	_, err = s.store.Persist(ctx, sessionstore.CreateSessionParams{
		UserID:         userID,
		ImpersonatorID: impersonatorID,
		JTI:            minted.JTI,
		ExpiresAt:      minted.ExpiresAt,
	})
	if err != nil {
		slog.Error("Failed to persist session record", "userID", userID, "jti", minted.JTI, "err", err)
		return nil, errors.InternalWrap(err, "failed to persist session")
	}

	return &IssuedToken{
		Token:     minted.Token,
		JTI:       minted.JTI,
		UserID:    userID,
		ExpiresAt: minted.ExpiresAt,
		TTL:       ttl,
	}, nil
}

// Login verifies the credentials and issues a standard session for the
// matching user. Every failure mode yields the same generic error.
func (s *Service) Login(ctx context.Context, creds authn.Credentials) (*IssuedToken, error) {
	userID, err := s.authenticator.Authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}

	return s.issue(ctx, userID, nil, s.sessionTTL)
}

// IssueFor mints a session for an already-authenticated user. Used by
// callers that perform their own authentication.
func (s *Service) IssueFor(ctx context.Context, userID uuid.UUID) (*IssuedToken, error) {
	user, err := s.directory.FindUser(ctx, userID)
	if err != nil {
		return nil, errors.InternalWrap(err, "failed to look up user")
	}
	if user == nil {
		return nil, errors.NotFound("user", userID.String())
	}
	return s.issue(ctx, userID, nil, s.sessionTTL)
}

// Validate checks the token signature and expiry, then confirms the
// session record is still active. The returned record identifies the
// session owner and the token's jti.
func (s *Service) Validate(ctx context.Context, tokenStr string) (*sessionstore.SessionRecord, error) {
	claims, err := s.codec.Verify(tokenStr)
	if err != nil {
		return nil, errors.Unauthenticated("invalid session token")
	}

	active, err := s.store.IsActive(ctx, claims.JTI)
	if err != nil {
		slog.Error("Failed to check session liveness", "jti", claims.JTI, "err", err)
		return nil, errors.InternalWrap(err, "failed to check session")
	}
	if !active {
		return nil, errors.Unauthenticated("session is no longer active")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.Unauthenticated("invalid session token")
	}

	return &sessionstore.SessionRecord{
		UserID:    userID,
		JTI:       claims.JTI,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// Logout revokes the session identified by userID and jti. Revoking a
// session that is absent or already revoked succeeds.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID, jti string) error {
	if err := s.store.Revoke(ctx, userID, jti); err != nil {
		slog.Error("Failed to revoke session", "userID", userID, "jti", jti, "err", err)
		return errors.InternalWrap(err, "failed to revoke session")
	}
	return nil
}

// Impersonate issues a short-lived session for targetUserID recording
// impersonatorID as the acting user. Both users must exist in the
// directory.
func (s *Service) Impersonate(ctx context.Context, impersonatorID, targetUserID uuid.UUID) (*IssuedToken, error) {
	impersonator, err := s.directory.FindUser(ctx, impersonatorID)
	if err != nil {
		return nil, errors.InternalWrap(err, "failed to look up impersonator")
	}
	if impersonator == nil {
		return nil, errors.NotFound("user", impersonatorID.String())
	}

	target, err := s.directory.FindUser(ctx, targetUserID)
	if err != nil {
		return nil, errors.InternalWrap(err, "failed to look up target user")
	}
	if target == nil {
		return nil, errors.NotFound("user", targetUserID.String())
	}

	slog.Info("Starting impersonation", "impersonatorID", impersonatorID, "targetUserID", targetUserID)
	return s.issue(ctx, targetUserID, &impersonatorID, s.impersonationTTL)
}

// StopImpersonation ends an active impersonation for currentUserID by
// issuing a fresh standard session for the recorded impersonator. The
// impersonated session itself is left to expire.
func (s *Service) StopImpersonation(ctx context.Context, currentUserID uuid.UUID) (*IssuedToken, error) {
	record, err := s.store.LatestForUser(ctx, currentUserID)
	if err != nil {
		slog.Error("Failed to load latest session", "userID", currentUserID, "err", err)
		return nil, errors.InternalWrap(err, "failed to load session")
	}
	if record == nil || record.ImpersonatorID == nil {
		return nil, errors.New(errors.ErrCodeNoActiveImpersonation, "no active impersonation")
	}

	slog.Info("Stopping impersonation", "impersonatorID", *record.ImpersonatorID, "targetUserID", currentUserID)
	return s.issue(ctx, *record.ImpersonatorID, nil, s.sessionTTL)
}

// CurrentImpersonator returns the impersonator recorded on the latest
// session for userID, or nil when the session is not impersonated.
func (s *Service) CurrentImpersonator(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	record, err := s.store.LatestForUser(ctx, userID)
	if err != nil {
		return nil, errors.InternalWrap(err, "failed to load session")
	}
	if record == nil {
		return nil, nil
	}
	return record.ImpersonatorID, nil
}

// SessionSummary is the listing projection of one active session
type SessionSummary struct {
	ID           uuid.UUID `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Impersonated bool      `json:"impersonated"`
	Current      bool      `json:"current"`
}

// ListActiveSessions returns summaries of the user's live sessions, newest
// first. currentJTI marks which entry belongs to the calling request.
func (s *Service) ListActiveSessions(ctx context.Context, userID uuid.UUID, currentJTI string) ([]SessionSummary, error) {
	records, err := s.store.ListActiveForUser(ctx, userID)
	if err != nil {
		slog.Error("Failed to list sessions", "userID", userID, "err", err)
		return nil, errors.InternalWrap(err, "failed to list sessions")
	}

	summaries := make([]SessionSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, SessionSummary{
			ID:           record.ID,
			CreatedAt:    record.CreatedAt,
			ExpiresAt:    record.ExpiresAt,
			Impersonated: record.IsImpersonated(),
			Current:      record.JTI == currentJTI,
		})
	}
	return summaries, nil
}

// SessionInfo describes the latest session for userID, resolving the
// impersonator's display name when one is recorded.
func (s *Service) SessionInfo(ctx context.Context, userID uuid.UUID) (*SessionInfo, error) {
	info := &SessionInfo{UserID: userID}

	record, err := s.store.LatestForUser(ctx, userID)
	if err != nil {
		return nil, errors.InternalWrap(err, "failed to load session")
	}
	if record == nil || record.ImpersonatorID == nil {
		return info, nil
	}

	info.ImpersonatorID = record.ImpersonatorID
	impersonator, err := s.directory.FindUser(ctx, *record.ImpersonatorID)
	if err != nil {
		return nil, errors.InternalWrap(err, "failed to look up impersonator")
	}
	if impersonator != nil {
		info.ImpersonatorName = &impersonator.Name
	} else {
		slog.Warn("Impersonator no longer in directory", "impersonatorID", *record.ImpersonatorID)
	}
	return info, nil
}

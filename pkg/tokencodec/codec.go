// Package tokencodec creates and verifies signed, time-bound session
// tokens. The codec is stateless: verification is purely cryptographic
// and structural, session liveness is the session store's concern.
package tokencodec

import (
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tendant/simple-session/pkg/errors"
)

// MintedToken is the result of minting a new session token
type MintedToken struct {
	JTI       string
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenClaims holds the verified claims of a session token
type TokenClaims struct {
	Subject   string
	JTI       string
	ExpiresAt time.Time
}

// Codec interface defines methods for token operations
type Codec interface {
	// Mint creates a signed token for subject with a fresh jti, expiring after ttl
	Mint(subject string, ttl time.Duration) (MintedToken, error)

	// Verify validates signature, structure and expiry of a token string
	Verify(tokenStr string) (TokenClaims, error)
}

// JwtCodec implements the Codec interface using HS256-signed JWTs
type JwtCodec struct {
	Secret   string
	Issuer   string
	Audience string
}

// NewJwtCodec creates a new JwtCodec
func NewJwtCodec(secret, issuer, audience string) *JwtCodec {
	return &JwtCodec{
		Secret:   secret,
		Issuer:   issuer,
		Audience: audience,
	}
}

// Mint creates a new signed token with the given subject and ttl
func (c *JwtCodec) Mint(subject string, ttl time.Duration) (MintedToken, error) {
	if subject == "" {
		return MintedToken{}, errors.New(errors.ErrCodeTokenCreationFailed, "token subject is empty")
	}
	if c.Secret == "" {
		return MintedToken{}, errors.New(errors.ErrCodeTokenCreationFailed, "signing secret is not configured")
	}

	now := time.Now().UTC()
	jti := uuid.New().String()
	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)),
		Issuer:    c.Issuer,
		Subject:   subject,
		ID:        jti,
		Audience:  jwt.ClaimStrings{c.Audience},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(c.Secret))
	if err != nil {
		slog.Error("Failed sign JWT claim string!", "err", err)
		return MintedToken{}, errors.Wrap(err, errors.ErrCodeTokenCreationFailed, "failed to sign token")
	}

	return MintedToken{
		JTI:       jti,
		Token:     ss,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify parses and validates a token string. It does not consult the
// session store, so a revoked session still verifies until its expiry.
func (c *JwtCodec) Verify(tokenStr string) (TokenClaims, error) {
	parsed := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, parsed, func(token *jwt.Token) (interface{}, error) {
		return []byte(c.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithIssuer(c.Issuer),
		jwt.WithAudience(c.Audience),
	)
	if err != nil {
		slog.Debug("Failed parse JWT string", "err", err)
		return TokenClaims{}, errors.Wrap(err, errors.ErrCodeTokenInvalid, "invalid token")
	}
	if !token.Valid {
		return TokenClaims{}, errors.New(errors.ErrCodeTokenInvalid, "invalid token")
	}
	if parsed.Subject == "" || parsed.ID == "" {
		return TokenClaims{}, errors.New(errors.ErrCodeTokenInvalid, "token missing subject or jti")
	}

	return TokenClaims{
		Subject:   parsed.Subject,
		JTI:       parsed.ID,
		ExpiresAt: parsed.ExpiresAt.Time,
	}, nil
}

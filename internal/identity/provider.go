// Package identity implements the identity provider the service authenticates
// against: account creation, password verification, per-account custom
// claims, refresh-token revocation, and the custom-token → id/refresh token
// exchange.
//
// LocalProvider keeps accounts in the same GORM store as the application
// data (tables "identities" and "refresh_tokens") and signs tokens with
// HS256 via golang-jwt. Three kinds of credentials exist:
//
//   - custom token: short-lived JWT minted server-side for a uid
//     (audience "<issuer>/custom"); only useful for ExchangeCustomToken.
//   - id token: JWT presented as a bearer credential. Custom claims are
//     flattened into its top-level claims; "sub" is the uid.
//   - refresh token: opaque random string, stored as a SHA-256 digest.
//
// RevokeRefreshTokens moves the account's revocation boundary to now, which
// invalidates every id token issued earlier and deletes stored refresh tokens.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailExists is returned when registering an email that is taken.
	ErrEmailExists = errors.New("email already exists")
	// ErrInvalidEmail is returned for an empty or malformed email address.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrWeakPassword is returned when a password is shorter than MinPasswordLen.
	ErrWeakPassword = errors.New("password too weak")
	// ErrUserNotFound is returned when no account exists for a uid.
	ErrUserNotFound = errors.New("identity not found")
	// ErrUserDisabled is returned for operations on a disabled account.
	ErrUserDisabled = errors.New("identity disabled")
	// ErrInvalidToken is returned for malformed, expired or foreign tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked is returned for id tokens issued before revocation.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrInvalidAPIKey is returned when the exchange is called with a wrong key.
	ErrInvalidAPIKey = errors.New("invalid api key")
)

// MinPasswordLen is the shortest password CreateUser accepts.
const MinPasswordLen = 6

// UserRecord is the public view of an account.
type UserRecord struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Disabled  bool      `json:"disabled"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionTokens is the result of exchanging a custom token.
type SessionTokens struct {
	Kind         string `json:"kind"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
}

// Token is a verified id token.
type Token struct {
	UID      string
	Email    string
	IssuedAt time.Time
	Claims   map[string]any
}

// Role returns the "role" custom claim, or "" when absent.
func (t *Token) Role() string {
	if t == nil {
		return ""
	}
	s, _ := t.Claims["role"].(string)
	return s
}

// Verifier checks bearer id tokens.
type Verifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Token, error)
}

// Provider is the full identity provider surface used by the service.
type Provider interface {
	Verifier

	CreateUser(ctx context.Context, email, password string) (*UserRecord, error)
	VerifyPassword(ctx context.Context, email, password string) (*UserRecord, error)
	SetCustomUserClaims(ctx context.Context, uid string, claims map[string]any) error
	RevokeRefreshTokens(ctx context.Context, uid string) error
	CustomToken(ctx context.Context, uid string) (string, error)
	ExchangeCustomToken(ctx context.Context, apiKey, customToken string) (*SessionTokens, error)
}

// Package services – AuthService
//
// AuthService implements registration and the login sequence:
//
//  1. verify_password:   check email/password with the identity provider
//  2. resolve_role:      read the user's role, provisioning "user" on first login
//  3. set_claims:        store {role} as the identity's custom claims
//  4. revoke_sessions:   revoke every refresh token issued before now
//  5. mint_custom_token: mint a one-time custom token for the subject
//  6. exchange_token:    exchange it for an id/refresh token pair
//
// Any failing step aborts the sequence. The caller only sees
// ErrAuthenticationFailed; the failing step and its cause are logged at warn
// level with the request-scoped logger.
package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tbourn/go-movie-backend/internal/domain"
	"github.com/tbourn/go-movie-backend/internal/identity"
)

// RoleResolver returns (and on first use provisions) a subject's role.
type RoleResolver interface {
	ResolveRole(ctx context.Context, uid string) (domain.Role, error)
}

// AuthService orchestrates the identity provider and the user store.
type AuthService struct {
	Identity identity.Provider
	Roles    RoleResolver
	// APIKey authorizes the custom-token exchange.
	APIKey string
}

// NewAuthService constructs an AuthService.
func NewAuthService(idp identity.Provider, roles RoleResolver, apiKey string) *AuthService {
	return &AuthService{Identity: idp, Roles: roles, APIKey: apiKey}
}

// Register creates an identity and returns its record. No user record is
// written; the role is provisioned on first login.
func (s *AuthService) Register(ctx context.Context, email, password string) (*identity.UserRecord, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "Register")
	defer span.End()

	rec, err := s.Identity.CreateUser(ctx, email, password)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}
	return rec, nil
}

// Login runs the login sequence and returns the issued session tokens.
func (s *AuthService) Login(ctx context.Context, email, password string) (*identity.SessionTokens, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "Login")
	defer span.End()

	step := "verify_password"
	fail := func(err error) (*identity.SessionTokens, error) {
		span.SetAttributes(attribute.String("auth.failed_step", step))
		span.SetStatus(codes.Error, step)
		loggerFrom(ctx).Warn().Err(err).Str("step", step).Msg("login failed")
		return nil, ErrAuthenticationFailed
	}

	rec, err := s.Identity.VerifyPassword(ctx, email, password)
	if err != nil {
		return fail(err)
	}
	uid := rec.UID
	span.SetAttributes(attribute.String("user.id", uid))

	step = "resolve_role"
	role, err := s.Roles.ResolveRole(ctx, uid)
	if err != nil {
		return fail(err)
	}

	step = "set_claims"
	if err := s.Identity.SetCustomUserClaims(ctx, uid, map[string]any{"role": string(role)}); err != nil {
		return fail(err)
	}

	step = "revoke_sessions"
	if err := s.Identity.RevokeRefreshTokens(ctx, uid); err != nil {
		return fail(err)
	}

	step = "mint_custom_token"
	custom, err := s.Identity.CustomToken(ctx, uid)
	if err != nil {
		return fail(err)
	}

	step = "exchange_token"
	tokens, err := s.Identity.ExchangeCustomToken(ctx, s.APIKey, custom)
	if err != nil {
		return fail(err)
	}
	return tokens, nil
}

// loggerFrom returns the logger attached to ctx, or the global logger.
func loggerFrom(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

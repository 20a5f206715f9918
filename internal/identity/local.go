package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-movie-backend/internal/config"
	"github.com/tbourn/go-movie-backend/internal/domain"
)

// reservedClaims cannot be overridden by custom claims.
var reservedClaims = map[string]struct{}{
	"iss": {}, "sub": {}, "aud": {}, "exp": {}, "iat": {}, "nbf": {}, "jti": {},
	"email": {}, "auth_time": {},
}

// LocalProvider is a Provider backed by the application's GORM store.
type LocalProvider struct {
	DB         *gorm.DB
	APIKey     string
	SigningKey []byte
	Issuer     string

	IDTokenTTL      time.Duration
	RefreshTokenTTL time.Duration
	CustomTokenTTL  time.Duration

	// BcryptCost defaults to bcrypt.DefaultCost when zero.
	BcryptCost int

	now      func() time.Time
	validate *validator.Validate
}

// NewLocalProvider builds a LocalProvider from configuration.
func NewLocalProvider(db *gorm.DB, cfg config.IdentityConfig) *LocalProvider {
	return &LocalProvider{
		DB:              db,
		APIKey:          cfg.APIKey,
		SigningKey:      []byte(cfg.SigningKey),
		Issuer:          cfg.Issuer,
		IDTokenTTL:      cfg.IDTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		CustomTokenTTL:  cfg.CustomTokenTTL,
		now:             time.Now,
		validate:        validator.New(),
	}
}

func (p *LocalProvider) clock() time.Time {
	if p.now != nil {
		return p.now().UTC()
	}
	return time.Now().UTC()
}

func (p *LocalProvider) customAudience() string { return p.Issuer + "/custom" }

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// CreateUser registers a new account with a bcrypt-hashed password.
func (p *LocalProvider) CreateUser(ctx context.Context, email, password string) (*UserRecord, error) {
	email = normalizeEmail(email)
	v := p.validate
	if v == nil {
		v = validator.New()
	}
	if err := v.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < MinPasswordLen {
		return nil, ErrWeakPassword
	}

	cost := p.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := p.clock()
	id := &domain.Identity{
		UID:              strings.ReplaceAll(uuid.NewString(), "-", ""),
		Email:            email,
		PasswordHash:     hash,
		CustomClaims:     "{}",
		TokensValidAfter: now.Truncate(time.Second),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.Identity{}).Where("email = ?", email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrEmailExists
		}
		if err := tx.Create(id).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrEmailExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toRecord(id), nil
}

// VerifyPassword returns the account for email when password matches.
func (p *LocalProvider) VerifyPassword(ctx context.Context, email, password string) (*UserRecord, error) {
	var id domain.Identity
	err := p.DB.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Burn comparable time so unknown emails are not distinguishable.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword(id.PasswordHash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if id.Disabled {
		return nil, ErrUserDisabled
	}
	return toRecord(&id), nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.MinCost)

// GetUser returns the account with uid.
func (p *LocalProvider) GetUser(ctx context.Context, uid string) (*UserRecord, error) {
	id, err := p.load(ctx, p.DB, uid)
	if err != nil {
		return nil, err
	}
	return toRecord(id), nil
}

// SetCustomUserClaims replaces the account's custom claims. Reserved JWT
// claim names are rejected.
func (p *LocalProvider) SetCustomUserClaims(ctx context.Context, uid string, claims map[string]any) error {
	for k := range claims {
		if _, ok := reservedClaims[k]; ok {
			return fmt.Errorf("claim %q is reserved", k)
		}
	}
	if claims == nil {
		claims = map[string]any{}
	}
	raw, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("encode claims: %w", err)
	}
	res := p.DB.WithContext(ctx).Model(&domain.Identity{}).
		Where("uid = ?", uid).
		Updates(map[string]any{"custom_claims": string(raw), "updated_at": p.clock()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// RevokeRefreshTokens invalidates all sessions of uid issued before now.
func (p *LocalProvider) RevokeRefreshTokens(ctx context.Context, uid string) error {
	now := p.clock()
	return p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Identity{}).
			Where("uid = ?", uid).
			Updates(map[string]any{"tokens_valid_after": now.Truncate(time.Second), "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return tx.Where("uid = ?", uid).Delete(&domain.RefreshToken{}).Error
	})
}

// CustomToken mints a short-lived token that can be exchanged for a session.
func (p *LocalProvider) CustomToken(ctx context.Context, uid string) (string, error) {
	if _, err := p.load(ctx, p.DB, uid); err != nil {
		return "", err
	}
	now := p.clock()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    p.Issuer,
		Subject:   uid,
		Audience:  jwt.ClaimStrings{p.customAudience()},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.CustomTokenTTL)),
		ID:        uuid.NewString(),
	})
	return tok.SignedString(p.SigningKey)
}

// ExchangeCustomToken verifies a custom token and issues an id token plus a
// refresh token for its subject.
func (p *LocalProvider) ExchangeCustomToken(ctx context.Context, apiKey, customToken string) (*SessionTokens, error) {
	if subtle.ConstantTimeCompare([]byte(apiKey), []byte(p.APIKey)) != 1 {
		return nil, ErrInvalidAPIKey
	}

	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(customToken, &rc, p.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.Issuer),
		jwt.WithAudience(p.customAudience()),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.clock),
	)
	if err != nil || rc.Subject == "" {
		return nil, ErrInvalidToken
	}

	var out *SessionTokens
	err = p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := p.load(ctx, tx, rc.Subject)
		if err != nil {
			return err
		}
		if id.Disabled {
			return ErrUserDisabled
		}
		idToken, err := p.signIDToken(id)
		if err != nil {
			return err
		}
		refresh, err := p.storeRefreshToken(tx, id.UID)
		if err != nil {
			return err
		}
		out = &SessionTokens{
			Kind:         "identitytoolkit#VerifyCustomTokenResponse",
			IDToken:      idToken,
			RefreshToken: refresh,
			ExpiresIn:    strconv.Itoa(int(p.IDTokenTTL.Seconds())),
			LocalID:      id.UID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyIDToken checks signature, issuer, audience, expiry and revocation.
func (p *LocalProvider) VerifyIDToken(ctx context.Context, idToken string) (*Token, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(idToken, claims, p.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.Issuer),
		jwt.WithAudience(p.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(p.clock),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrInvalidToken
	}
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, ErrInvalidToken
	}

	id, err := p.load(ctx, p.DB, sub)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if id.Disabled {
		return nil, ErrUserDisabled
	}
	if iat.Time.Before(id.TokensValidAfter.Truncate(time.Second)) {
		return nil, ErrTokenRevoked
	}

	email, _ := claims["email"].(string)
	return &Token{
		UID:      sub,
		Email:    email,
		IssuedAt: iat.Time,
		Claims:   claims,
	}, nil
}

func (p *LocalProvider) keyFunc(t *jwt.Token) (any, error) {
	return p.SigningKey, nil
}

func (p *LocalProvider) signIDToken(id *domain.Identity) (string, error) {
	custom := map[string]any{}
	if id.CustomClaims != "" {
		if err := json.Unmarshal([]byte(id.CustomClaims), &custom); err != nil {
			return "", fmt.Errorf("decode custom claims: %w", err)
		}
	}

	now := p.clock()
	claims := jwt.MapClaims{}
	for k, v := range custom {
		claims[k] = v
	}
	claims["iss"] = p.Issuer
	claims["aud"] = p.Issuer
	claims["sub"] = id.UID
	claims["email"] = id.Email
	claims["iat"] = now.Unix()
	claims["auth_time"] = now.Unix()
	claims["exp"] = now.Add(p.IDTokenTTL).Unix()

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.SigningKey)
}

func (p *LocalProvider) storeRefreshToken(tx *gorm.DB, uid string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)
	now := p.clock()
	rec := &domain.RefreshToken{
		TokenHash: hashToken(token),
		UID:       uid,
		ExpiresAt: now.Add(p.RefreshTokenTTL),
		CreatedAt: now,
	}
	if err := tx.Create(rec).Error; err != nil {
		return "", err
	}
	return token, nil
}

func (p *LocalProvider) load(ctx context.Context, db *gorm.DB, uid string) (*domain.Identity, error) {
	var id domain.Identity
	err := db.WithContext(ctx).Where("uid = ?", uid).First(&id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func toRecord(id *domain.Identity) *UserRecord {
	return &UserRecord{
		UID:       id.UID,
		Email:     id.Email,
		Disabled:  id.Disabled,
		CreatedAt: id.CreatedAt,
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") || strings.Contains(low, "duplicate key")
}

var _ Provider = (*LocalProvider)(nil)

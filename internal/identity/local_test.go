package identity

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-movie-backend/internal/config"
	"github.com/tbourn/go-movie-backend/internal/domain"
)

const (
	testAPIKey     = "test-api-key"
	testSigningKey = "0123456789abcdef0123456789abcdef"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newProvider(t *testing.T) (*LocalProvider, *fakeClock) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Identity{}, &domain.RefreshToken{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	p := NewLocalProvider(db, config.IdentityConfig{
		APIKey:          testAPIKey,
		SigningKey:      testSigningKey,
		Issuer:          "go-movie-backend",
		IDTokenTTL:      time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		CustomTokenTTL:  5 * time.Minute,
	})
	p.BcryptCost = bcrypt.MinCost
	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	p.now = clk.now
	return p, clk
}

func login(t *testing.T, p *LocalProvider, uid string) *SessionTokens {
	t.Helper()
	ct, err := p.CustomToken(context.Background(), uid)
	require.NoError(t, err)
	st, err := p.ExchangeCustomToken(context.Background(), testAPIKey, ct)
	require.NoError(t, err)
	return st
}

func TestCreateUser_AndDuplicateEmail(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()

	rec, err := p.CreateUser(ctx, "  Luke@Rebels.org ", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.UID)
	assert.Equal(t, "luke@rebels.org", rec.Email)
	assert.False(t, rec.Disabled)

	_, err = p.CreateUser(ctx, "luke@rebels.org", "another1")
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestCreateUser_Validation(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()

	_, err := p.CreateUser(ctx, "not-an-email", "secret1")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = p.CreateUser(ctx, "leia@rebels.org", "123")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestVerifyPassword(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()

	rec, err := p.CreateUser(ctx, "han@falcon.io", "kessel12")
	require.NoError(t, err)

	got, err := p.VerifyPassword(ctx, "HAN@falcon.io", "kessel12")
	require.NoError(t, err)
	assert.Equal(t, rec.UID, got.UID)

	_, err = p.VerifyPassword(ctx, "han@falcon.io", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = p.VerifyPassword(ctx, "nobody@falcon.io", "kessel12")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestExchange_IDTokenCarriesCustomClaims(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()

	rec, err := p.CreateUser(ctx, "admin@empire.gov", "vader123")
	require.NoError(t, err)
	require.NoError(t, p.SetCustomUserClaims(ctx, rec.UID, map[string]any{"role": "admin"}))

	st := login(t, p, rec.UID)
	assert.Equal(t, rec.UID, st.LocalID)
	assert.Equal(t, "3600", st.ExpiresIn)
	assert.NotEmpty(t, st.RefreshToken)

	tok, err := p.VerifyIDToken(ctx, st.IDToken)
	require.NoError(t, err)
	assert.Equal(t, rec.UID, tok.UID)
	assert.Equal(t, "admin@empire.gov", tok.Email)
	assert.Equal(t, "admin", tok.Role())

	var stored int64
	require.NoError(t, p.DB.Model(&domain.RefreshToken{}).Where("uid = ?", rec.UID).Count(&stored).Error)
	assert.Equal(t, int64(1), stored)
	var row domain.RefreshToken
	require.NoError(t, p.DB.Where("uid = ?", rec.UID).First(&row).Error)
	assert.Equal(t, hashToken(st.RefreshToken), row.TokenHash)
}

func TestSetCustomUserClaims_Errors(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()

	assert.ErrorIs(t, p.SetCustomUserClaims(ctx, "missing", map[string]any{"role": "user"}), ErrUserNotFound)

	rec, err := p.CreateUser(ctx, "r2@astromech.io", "beepboop")
	require.NoError(t, err)
	assert.Error(t, p.SetCustomUserClaims(ctx, rec.UID, map[string]any{"sub": "spoof"}))
}

func TestExchange_RejectsBadAPIKeyAndToken(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()

	rec, err := p.CreateUser(ctx, "c3po@protocol.io", "goldenrod")
	require.NoError(t, err)
	ct, err := p.CustomToken(ctx, rec.UID)
	require.NoError(t, err)

	_, err = p.ExchangeCustomToken(ctx, "wrong-key", ct)
	assert.ErrorIs(t, err, ErrInvalidAPIKey)

	_, err = p.ExchangeCustomToken(ctx, testAPIKey, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// An id token is not a custom token (wrong audience).
	st := login(t, p, rec.UID)
	_, err = p.ExchangeCustomToken(ctx, testAPIKey, st.IDToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExchange_ExpiredCustomToken(t *testing.T) {
	p, clk := newProvider(t)
	ctx := context.Background()

	rec, err := p.CreateUser(ctx, "obi@jedi.org", "highground")
	require.NoError(t, err)
	ct, err := p.CustomToken(ctx, rec.UID)
	require.NoError(t, err)

	clk.advance(10 * time.Minute)
	_, err = p.ExchangeCustomToken(ctx, testAPIKey, ct)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCustomToken_UnknownUID(t *testing.T) {
	p, _ := newProvider(t)
	_, err := p.CustomToken(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRevokeRefreshTokens_InvalidatesEarlierSessions(t *testing.T) {
	p, clk := newProvider(t)
	ctx := context.Background()

	rec, err := p.CreateUser(ctx, "yoda@dagobah.org", "dothereisnotry")
	require.NoError(t, err)

	old := login(t, p, rec.UID)
	_, err = p.VerifyIDToken(ctx, old.IDToken)
	require.NoError(t, err)

	clk.advance(2 * time.Second)
	require.NoError(t, p.RevokeRefreshTokens(ctx, rec.UID))

	_, err = p.VerifyIDToken(ctx, old.IDToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	var stored int64
	require.NoError(t, p.DB.Model(&domain.RefreshToken{}).Where("uid = ?", rec.UID).Count(&stored).Error)
	assert.Zero(t, stored)

	// A session minted after revocation in the same second is valid.
	fresh := login(t, p, rec.UID)
	_, err = p.VerifyIDToken(ctx, fresh.IDToken)
	assert.NoError(t, err)

	assert.ErrorIs(t, p.RevokeRefreshTokens(ctx, "ghost"), ErrUserNotFound)
}

func TestVerifyIDToken_Rejections(t *testing.T) {
	p, clk := newProvider(t)
	ctx := context.Background()

	rec, err := p.CreateUser(ctx, "lando@cloudcity.io", "baronadmin")
	require.NoError(t, err)
	st := login(t, p, rec.UID)

	t.Run("garbage", func(t *testing.T) {
		_, err := p.VerifyIDToken(ctx, "not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("foreign signature", func(t *testing.T) {
		forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"iss": p.Issuer, "aud": p.Issuer, "sub": rec.UID, "role": "admin",
			"iat": clk.t.Unix(), "exp": clk.t.Add(time.Hour).Unix(),
		})
		s, err := forged.SignedString([]byte("another-key-another-key-another-k"))
		require.NoError(t, err)
		_, err = p.VerifyIDToken(ctx, s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("custom token is not an id token", func(t *testing.T) {
		ct, err := p.CustomToken(ctx, rec.UID)
		require.NoError(t, err)
		_, err = p.VerifyIDToken(ctx, ct)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		clk.advance(2 * time.Hour)
		_, err := p.VerifyIDToken(ctx, st.IDToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

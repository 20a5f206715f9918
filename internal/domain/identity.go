package domain

import "time"

// Identity is the identity provider's account record. It is owned by the
// identity package and never exposed through the document-store routes.
//
// CustomClaims holds a JSON object merged into issued id tokens.
// TokensValidAfter marks the revocation boundary: id tokens issued before it
// are rejected and refresh tokens minted before it have been deleted.
type Identity struct {
	UID              string    `gorm:"type:varchar(128);primaryKey"`
	Email            string    `gorm:"type:varchar(320);not null;uniqueIndex"`
	PasswordHash     []byte    `gorm:"not null"`
	CustomClaims     string    `gorm:"type:text;not null;default:'{}'"`
	TokensValidAfter time.Time `gorm:"not null"`
	Disabled         bool      `gorm:"not null;default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName returns the database table name for Identity.
func (Identity) TableName() string { return "identities" }

// RefreshToken is a long-lived session credential. Only the SHA-256 digest of
// the opaque token is stored.
type RefreshToken struct {
	TokenHash string    `gorm:"type:char(64);primaryKey"`
	UID       string    `gorm:"type:varchar(128);not null;index"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time
}

// TableName returns the database table name for RefreshToken.
func (RefreshToken) TableName() string { return "refresh_tokens" }

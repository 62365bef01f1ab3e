package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OAuthToken stores a user's provider credentials. Both token columns hold
// ciphertext produced by crypto.TokenEncryptor; plaintext never reaches the table.
type OAuthToken struct {
	Base
	UserID                uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_oauth_tokens_user_provider"`
	Provider              Provider       `gorm:"not null;uniqueIndex:idx_oauth_tokens_user_provider"`
	EncryptedAccessToken  string         `gorm:"type:text;not null"`
	EncryptedRefreshToken string         `gorm:"type:text"`
	Scopes                []string       `gorm:"type:jsonb;serializer:json"`
	TokenExpiresAt        *time.Time     `gorm:"column:token_expires_at"`
	Metadata              datatypes.JSON `gorm:"type:jsonb"`
}

// TableName overrides GORM's default of o_auth_tokens
func (OAuthToken) TableName() string {
	return "oauth_tokens"
}

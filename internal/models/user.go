package models

import (
	"time"
)

// User represents an application user who connects data sources and owns documents
type User struct {
	Base
	Email       string `gorm:"uniqueIndex;not null"`
	Name        string `gorm:"not null;default:''"`
	LastLoginAt *time.Time

	// Associations
	OAuthTokens []OAuthToken `gorm:"constraint:OnDelete:CASCADE;"`
}

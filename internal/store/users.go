package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/apperr"
	"github.com/hikitugu/handover/internal/models"
	"gorm.io/gorm"
)

// UpsertUser finds a user by email, creating it on first login, and records the login.
func (s *Store) UpsertUser(ctx context.Context, email, name string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		err := tx.Where("email = ?", email).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			user = models.User{Email: email, Name: name, LastLoginAt: &now}
			return tx.Create(&user).Error
		}
		if err != nil {
			return err
		}

		updates := map[string]interface{}{"last_login_at": now}
		if name != "" {
			updates["name"] = name
		}
		return tx.Model(&user).Updates(updates).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return &user, nil
}

// GetUser loads a user
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return &user, nil
}

// GetToken loads the token a user holds for a provider
func (s *Store) GetToken(ctx context.Context, userID uuid.UUID, provider models.Provider) (*models.OAuthToken, error) {
	var tok models.OAuthToken
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&tok).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("no %s token for user %s", provider, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	return &tok, nil
}

// UpsertToken stores tok, replacing the user's existing token for the same provider.
func (s *Store) UpsertToken(ctx context.Context, tok *models.OAuthToken) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.OAuthToken
		err := tx.Where("user_id = ? AND provider = ?", tok.UserID, tok.Provider).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(tok).Error
		}
		if err != nil {
			return fmt.Errorf("failed to load token: %w", err)
		}

		tok.ID = existing.ID
		tok.CreatedAt = existing.CreatedAt
		return tx.Model(&existing).
			Select("encrypted_access_token", "encrypted_refresh_token", "scopes", "token_expires_at", "metadata", "updated_at").
			Updates(tok).Error
	})
}

// ConnectedProviders lists the providers a user holds tokens for
func (s *Store) ConnectedProviders(ctx context.Context, userID uuid.UUID) ([]models.Provider, error) {
	providers := []models.Provider{}
	err := s.db.WithContext(ctx).
		Model(&models.OAuthToken{}).
		Where("user_id = ?", userID).
		Order("provider ASC").
		Pluck("provider", &providers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list connected providers: %w", err)
	}
	return providers, nil
}

// Package store is the typed record store over GORM.
package store

import (
	"errors"

	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/apperr"
	"gorm.io/gorm"
)

// ErrJobAlreadyClaimed is returned when a job is no longer pending at claim time
var ErrJobAlreadyClaimed = apperr.Conflict("job already claimed")

// Store provides typed access to every persisted entity
type Store struct {
	db *gorm.DB
}

// New creates a store over db
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for migrations and seeding.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// notFound converts gorm.ErrRecordNotFound into a NotFound error.
func notFound(err error, entity string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s %s not found", entity, id)
	}
	return err
}

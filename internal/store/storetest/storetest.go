// Package storetest opens an in-memory store for tests.
package storetest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hikitugu/handover/internal/models"
	"github.com/hikitugu/handover/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a store backed by a private in-memory SQLite database with
// every model migrated. The database is dropped when the test ends.
func New(t testing.TB) *store.Store {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&models.User{},
		&models.OAuthToken{},
		&models.Template{},
		&models.Document{},
		&models.DocumentSection{},
		&models.GenerationJob{},
		&models.Proposal{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return store.New(db)
}

package database

import (
	"context"
	"log/slog"

	"github.com/hikitugu/handover/internal/models"
	"gorm.io/gorm"
)

// DevUserEmail is the account created by SeedDevData
const DevUserEmail = "dev@handover.local"

// SeedDevData populates the database with development data.
// Idempotent: skips if the dev user already exists.
func SeedDevData(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	var existing models.User
	result := db.WithContext(ctx).Where("email = ?", DevUserEmail).Limit(1).Find(&existing)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		logger.Info("Seed data already exists, skipping")
		return nil
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := models.User{Email: DevUserEmail, Name: "Dev User"}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		templates := []models.Template{
			{
				Name:        "Standard handover",
				Description: "Overview, duties, projects and contacts",
				FileType:    "docx",
				Status:      models.TemplateStatusReady,
				ParsedStructure: models.ParsedStructure{Sections: []models.TemplateSection{
					{Order: 1, Title: "Overview", Level: 1},
					{Order: 2, Title: "Responsibilities", Level: 1},
					{Order: 3, Title: "Recurring meetings", Level: 2},
					{Order: 4, Title: "Ongoing projects", Level: 1},
					{Order: 5, Title: "Key contacts", Level: 1},
				}},
			},
			{
				Name:     "Uploaded, still parsing",
				FileType: "pdf",
				Status:   models.TemplateStatusProcessing,
			},
		}
		if err := tx.Create(&templates).Error; err != nil {
			return err
		}

		logger.Info("Seeded dev data", "users", 1, "templates", len(templates), "ready_template_id", templates[0].ID)
		return nil
	})
}

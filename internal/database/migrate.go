package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/models"
)

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Organization{},
		&models.Membership{},
		&models.Form{},
		&models.FormVersion{},
		&models.RubricVersion{},
		&models.Submission{},
		&models.SubmissionAggregate{},
		&models.Review{},
		&models.ReviewRevision{},
		&models.DomainEvent{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	return nil
}

package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
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
	))
	return db
}

type fixture struct {
	org        models.Organization
	form       models.Form
	version    models.FormVersion
	rubric     models.RubricVersion
	submission models.Submission
}

func seedFixture(t *testing.T, db *gorm.DB, slug string) fixture {
	t.Helper()
	now := time.Now().UTC()

	org := models.Organization{Name: "Acme " + slug, Slug: slug}
	require.NoError(t, db.Create(&org).Error)

	form := models.Form{OrgID: org.ID, Name: "Grants", Slug: "grants", Status: models.FormStatusOpen, MinReviewsRequired: 2, VisibilityMode: models.VisibilityRevealAfterMeSubmit}
	require.NoError(t, db.Create(&form).Error)

	version := models.FormVersion{FormID: form.ID, Version: 1, PublishedAt: &now}
	require.NoError(t, db.Create(&version).Error)

	rubric := models.RubricVersion{FormID: form.ID, Version: 1, ScaleMin: 1, ScaleMax: 5, ScaleStep: 1, PublishedAt: &now,
		Questions: []models.RubricQuestion{{ID: "q1", Weight: 0.5, Required: true}, {ID: "q2", Weight: 0.5}}}
	require.NoError(t, db.Create(&rubric).Error)

	repo := NewSubmissionRepository(db)
	submission := models.Submission{OrgID: org.ID, FormID: form.ID, FormVersionID: version.ID, RubricVersionID: rubric.ID, SubmitterEmail: "applicant@example.com", SubmittedAt: now}
	require.NoError(t, repo.CreateWithAggregate(context.Background(), &submission))

	return fixture{org: org, form: form, version: version, rubric: rubric, submission: submission}
}

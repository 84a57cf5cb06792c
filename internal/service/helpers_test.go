package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/models"
	"github.com/noah-isme/inform-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
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

type recordedEvent struct {
	orgID     uint
	eventType string
	payload   map[string]interface{}
}

type fakeEvents struct {
	events []recordedEvent
}

func (f *fakeEvents) Record(_ context.Context, orgID uint, eventType string, payload map[string]interface{}) error {
	f.events = append(f.events, recordedEvent{orgID: orgID, eventType: eventType, payload: payload})
	return nil
}

func (f *fakeEvents) types() []string {
	out := make([]string, 0, len(f.events))
	for _, event := range f.events {
		out = append(out, event.eventType)
	}
	return out
}

type harness struct {
	db          *gorm.DB
	forms       repository.FormRepository
	submissions repository.SubmissionRepository
	reviews     repository.ReviewRepository
	memberships repository.MembershipRepository
	aggregates  repository.AggregateRepository
	events      *fakeEvents
	aggregation AggregationService
	reviewSvc   ReviewService
	querySvc    ReviewQueryService

	org        models.Organization
	form       models.Form
	rubric     models.RubricVersion
	submission models.Submission
}

// newHarness seeds an organization with an open form whose rubric matches
// the weighted example {q1: 0.4, q2: 0.3, q3: 0.3} on a 1..5 scale.
func newHarness(t *testing.T, mode models.VisibilityMode, minReviews int) *harness {
	t.Helper()
	db := setupServiceDB(t)
	h := &harness{
		db:          db,
		forms:       repository.NewFormRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		reviews:     repository.NewReviewRepository(db),
		memberships: repository.NewMembershipRepository(db),
		aggregates:  repository.NewAggregateRepository(db),
		events:      &fakeEvents{},
	}
	h.aggregation = NewAggregationService(h.aggregates, nil, 0, testLogger())
	h.reviewSvc = NewReviewService(h.submissions, h.reviews, h.memberships, h.aggregation, h.events, testValidator(), testLogger())
	h.querySvc = NewReviewQueryService(h.submissions, h.reviews, h.memberships, h.aggregation, testLogger())

	ctx := context.Background()
	now := time.Now().UTC()

	h.org = models.Organization{Name: "Acme", Slug: "acme"}
	require.NoError(t, db.Create(&h.org).Error)

	h.form = models.Form{OrgID: h.org.ID, Name: "Grants", Slug: "grants", Status: models.FormStatusOpen, MinReviewsRequired: minReviews, VisibilityMode: mode}
	version := models.FormVersion{}
	h.rubric = models.RubricVersion{ScaleMin: 1, ScaleMax: 5, ScaleStep: 1, Questions: []models.RubricQuestion{
		{ID: "q1", Label: "Clarity", Weight: 0.4, Required: true},
		{ID: "q2", Label: "Impact", Weight: 0.3},
		{ID: "q3", Label: "Feasibility", Weight: 0.3},
	}}
	require.NoError(t, h.forms.Create(ctx, &h.form, &version, &h.rubric))
	_, err := h.forms.Publish(ctx, h.form.ID, &version, &h.rubric, now)
	require.NoError(t, err)

	h.submission = models.Submission{OrgID: h.org.ID, FormID: h.form.ID, FormVersionID: version.ID, RubricVersionID: h.rubric.ID, SubmitterEmail: "applicant@example.com", SubmittedAt: now}
	require.NoError(t, h.submissions.CreateWithAggregate(ctx, &h.submission))

	return h
}

func (h *harness) member(t *testing.T, userID string, role models.Role) Viewer {
	t.Helper()
	require.NoError(t, h.memberships.Upsert(context.Background(), &models.Membership{UserID: userID, OrgID: h.org.ID, Role: role}))
	return Viewer{UserID: userID}
}

func (h *harness) countReviews(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.db.Model(&models.Review{}).Where("submission_id = ?", h.submission.ID).Count(&count).Error)
	return count
}

func (h *harness) countRevisions(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.db.Model(&models.ReviewRevision{}).Count(&count).Error)
	return count
}

func strPtr(value string) *string {
	return &value
}

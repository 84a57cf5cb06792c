package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/inform-api/internal/dto"
	"github.com/noah-isme/inform-api/internal/models"
)

type stubLimiter struct {
	allow bool
	keys  []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, nil
}

type stubCaptcha struct {
	ok  bool
	err error
}

func (s stubCaptcha) Verify(context.Context, string, string) (bool, error) {
	return s.ok, s.err
}

// withSchema republishes the harness form with a required text field.
func withSchema(t *testing.T, h *harness) {
	t.Helper()
	version := models.FormVersion{Schema: datatypes.NewJSONType(models.FormSchema{Fields: []models.FormField{
		{ID: "name", Label: "Name", Type: "text", Required: true},
		{ID: "links", Label: "Links", Type: "text"},
	}})}
	rubric := models.RubricVersion{ScaleMin: 1, ScaleMax: 5, ScaleStep: 1, Questions: []models.RubricQuestion{{ID: "q1", Weight: 1, Required: true}}}
	_, err := h.forms.Publish(context.Background(), h.form.ID, &version, &rubric, time.Now().UTC())
	require.NoError(t, err)
}

func TestPublicSubmissionPinsLatestPublishedVersions(t *testing.T) {
	h := newHarness(t, models.VisibilityRevealAfterMeSubmit, 1)
	withSchema(t, h)
	ctx := context.Background()
	limiter := &stubLimiter{allow: true}
	svc := NewPublicSubmissionService(h.forms, h.submissions, limiter, stubCaptcha{ok: true}, h.events, testValidator(), testLogger())

	form, err := svc.GetForm(ctx, "acme", "grants")
	require.NoError(t, err)
	require.Equal(t, 2, form.FormVersion.Version)
	require.Len(t, form.FormVersion.Fields, 2)

	created, err := svc.Submit(ctx, "acme", "grants", dto.PublicSubmissionRequest{
		SubmitterEmail: "Applicant@Example.com",
		Data: map[string]interface{}{
			"name":    "<b>Jane</b>",
			"links":   []interface{}{"<script>x</script>https://example.com"},
			"unknown": "dropped",
		},
	}, "203.0.113.7")
	require.NoError(t, err)
	require.Equal(t, string(models.SubmissionStatusUngraded), created.Status)
	require.Equal(t, []string{"applicant@example.com"}, limiter.keys)

	stored, err := h.submissions.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.RubricVersion.Version)
	require.Equal(t, 2, stored.FormVersion.Version)
	require.Equal(t, "applicant@example.com", stored.SubmitterEmail)
	require.Equal(t, "Jane", stored.Data["name"])
	require.NotContains(t, stored.Data, "unknown")
	require.NotNil(t, stored.Aggregate)
	require.Zero(t, stored.Aggregate.ReviewsCount)

	require.Equal(t, []string{models.EventSubmissionCreated}, h.events.types())
}

func TestPublicSubmissionRejections(t *testing.T) {
	h := newHarness(t, models.VisibilityRevealAfterMeSubmit, 1)
	withSchema(t, h)
	ctx := context.Background()
	valid := dto.PublicSubmissionRequest{SubmitterEmail: "a@example.com", Data: map[string]interface{}{"name": "Jane"}}

	open := NewPublicSubmissionService(h.forms, h.submissions, &stubLimiter{allow: true}, stubCaptcha{ok: true}, nil, testValidator(), testLogger())

	honeypot := valid
	honeypot.Website = "http://spam.example"
	_, err := open.Submit(ctx, "acme", "grants", honeypot, "")
	require.ErrorIs(t, err, ErrValidation)

	missing := valid
	missing.Data = map[string]interface{}{"name": "   "}
	_, err = open.Submit(ctx, "acme", "grants", missing, "")
	require.ErrorIs(t, err, ErrValidation)

	badEmail := valid
	badEmail.SubmitterEmail = "not-an-email"
	_, err = open.Submit(ctx, "acme", "grants", badEmail, "")
	require.ErrorIs(t, err, ErrValidation)

	_, err = open.Submit(ctx, "acme", "missing", valid, "")
	require.ErrorIs(t, err, ErrFormNotFound)

	limited := NewPublicSubmissionService(h.forms, h.submissions, &stubLimiter{allow: false}, stubCaptcha{ok: true}, nil, testValidator(), testLogger())
	_, err = limited.Submit(ctx, "acme", "grants", valid, "")
	require.ErrorIs(t, err, ErrRateLimited)

	for _, captcha := range []stubCaptcha{{ok: false}, {err: errors.New("timeout")}} {
		guarded := NewPublicSubmissionService(h.forms, h.submissions, nil, captcha, nil, testValidator(), testLogger())
		_, err = guarded.Submit(ctx, "acme", "grants", valid, "")
		require.ErrorIs(t, err, ErrCaptchaFailed)
	}

	past := time.Now().Add(-time.Minute)
	require.NoError(t, h.db.Model(&models.Form{}).Where("id = ?", h.form.ID).Update("close_at", past).Error)
	_, err = open.Submit(ctx, "acme", "grants", valid, "")
	require.ErrorIs(t, err, ErrFormClosed)
	_, err = open.GetForm(ctx, "acme", "grants")
	require.ErrorIs(t, err, ErrFormClosed)

	var count int64
	require.NoError(t, h.db.Model(&models.Submission{}).Count(&count).Error)
	require.Equal(t, int64(1), count, "only the seeded submission exists")
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/inform-api/internal/dto"
	"github.com/noah-isme/inform-api/internal/models"
)

func newFormService(h *harness) FormService {
	return NewFormService(h.forms, h.memberships, h.events, testValidator(), testLogger())
}

func sampleFormRequest(slug string) dto.FormCreateRequest {
	minReviews := 2
	return dto.FormCreateRequest{
		Name:               "Scholarship",
		Slug:               slug,
		MinReviewsRequired: &minReviews,
		VisibilityMode:     string(models.VisibilityRevealAfterMinReviews),
		Fields: []dto.FormFieldPayload{
			{ID: "motivation", Label: "Motivation", Type: "textarea", Required: true},
		},
		Rubric: dto.RubricPayload{
			ScaleMin:  1,
			ScaleMax:  10,
			ScaleStep: 1,
			Questions: []dto.RubricQuestionPayload{
				{ID: "merit", Label: "Merit", Weight: 0.6, Required: true},
				{ID: "need", Label: "Need", Weight: 0.4},
			},
		},
	}
}

func TestFormServiceCreateAndPublish(t *testing.T) {
	h := newHarness(t, models.VisibilityRevealAfterMeSubmit, 1)
	ctx := context.Background()
	svc := newFormService(h)
	admin := h.member(t, "ada", models.RoleOrgAdmin)

	created, err := svc.Create(ctx, admin, h.org.ID, sampleFormRequest("scholarship"))
	require.NoError(t, err)
	require.Equal(t, string(models.FormStatusDraft), created.Form.Status)
	require.Equal(t, string(models.VisibilityRevealAfterMinReviews), created.Form.VisibilityMode)
	require.Equal(t, 1, created.Rubric.Version)
	require.Nil(t, created.Rubric.PublishedAt)

	published, err := svc.Publish(ctx, admin, created.Form.ID, dto.FormPublishRequest{Notes: "first round"})
	require.NoError(t, err)
	require.Equal(t, string(models.FormStatusOpen), published.Form.Status)
	require.Equal(t, 1, published.Rubric.Version, "the unpublished draft version is published in place")
	require.NotNil(t, published.Rubric.PublishedAt)
	require.Len(t, published.FormVersion.Fields, 1)

	republished, err := svc.Publish(ctx, admin, created.Form.ID, dto.FormPublishRequest{Rubric: &dto.RubricPayload{
		ScaleMin: 0, ScaleMax: 4, ScaleStep: 2,
		Questions: []dto.RubricQuestionPayload{{ID: "merit", Label: "Merit", Weight: 1, Required: true}},
	}})
	require.NoError(t, err)
	require.Equal(t, 2, republished.Rubric.Version)
	require.Equal(t, 2, republished.FormVersion.Version)
	require.Len(t, republished.FormVersion.Fields, 1, "omitted fields reuse the latest schema")

	first, err := h.forms.GetRubricVersion(ctx, published.Rubric.ID)
	require.NoError(t, err)
	require.Len(t, first.Questions, 2, "published versions stay immutable")

	require.Equal(t, []string{models.EventFormPublished, models.EventFormPublished}, h.events.types())
}

func TestFormServiceValidation(t *testing.T) {
	h := newHarness(t, models.VisibilityRevealAfterMeSubmit, 1)
	ctx := context.Background()
	svc := newFormService(h)
	admin := h.member(t, "ada", models.RoleOrgAdmin)

	badSlug := sampleFormRequest("Not A Slug")
	_, err := svc.Create(ctx, admin, h.org.ID, badSlug)
	require.ErrorIs(t, err, ErrValidation)

	heavy := sampleFormRequest("heavy")
	heavy.Rubric.Questions[0].Weight = 1.5
	_, err = svc.Create(ctx, admin, h.org.ID, heavy)
	require.ErrorIs(t, err, ErrValidation)

	duplicate := sampleFormRequest("dupe")
	duplicate.Rubric.Questions[1].ID = "merit"
	_, err = svc.Create(ctx, admin, h.org.ID, duplicate)
	require.ErrorIs(t, err, ErrValidation)

	window := sampleFormRequest("window")
	openAt := time.Now().UTC()
	closeAt := openAt.Add(-time.Hour)
	window.OpenAt = &openAt
	window.CloseAt = &closeAt
	_, err = svc.Create(ctx, admin, h.org.ID, window)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, admin, h.org.ID, sampleFormRequest("grants"))
	require.ErrorIs(t, err, ErrSlugTaken)
}

func TestFormServiceRequiresAdmin(t *testing.T) {
	h := newHarness(t, models.VisibilityRevealAfterMeSubmit, 1)
	ctx := context.Background()
	svc := newFormService(h)
	reviewer := h.member(t, "rita", models.RoleReviewer)

	_, err := svc.Create(ctx, reviewer, h.org.ID, sampleFormRequest("nope"))
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Publish(ctx, reviewer, h.form.ID, dto.FormPublishRequest{})
	require.ErrorIs(t, err, ErrForbidden)

	require.ErrorIs(t, svc.Delete(ctx, reviewer, h.form.ID), ErrForbidden)

	forms, err := svc.List(ctx, reviewer, h.org.ID)
	require.NoError(t, err)
	require.Len(t, forms, 1)

	_, err = svc.List(ctx, Viewer{UserID: "stranger"}, h.org.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(ctx, reviewer, 9999)
	require.ErrorIs(t, err, ErrFormNotFound)
}

func TestFormServiceUpdateAndDelete(t *testing.T) {
	h := newHarness(t, models.VisibilityRevealAfterMeSubmit, 1)
	ctx := context.Background()
	svc := newFormService(h)
	admin := h.member(t, "ada", models.RoleOrgAdmin)

	closed := string(models.FormStatusClosed)
	mode := "never"
	updated, err := svc.Update(ctx, admin, h.form.ID, dto.FormUpdateRequest{Status: &closed, VisibilityMode: &mode})
	require.ErrorIs(t, err, ErrValidation, "lowercase modes are rejected by the payload validator")

	mode = string(models.VisibilityNever)
	updated, err = svc.Update(ctx, admin, h.form.ID, dto.FormUpdateRequest{Status: &closed, VisibilityMode: &mode})
	require.NoError(t, err)
	require.Equal(t, closed, updated.Status)
	require.Equal(t, string(models.VisibilityNever), updated.VisibilityMode)

	detail, err := svc.Get(ctx, admin, h.form.ID)
	require.NoError(t, err)
	require.Equal(t, closed, detail.Form.Status)
	require.NotNil(t, detail.Rubric)

	other := sampleFormRequest("spare")
	created, err := svc.Create(ctx, admin, h.org.ID, other)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, admin, created.Form.ID))
	require.ErrorIs(t, svc.Delete(ctx, admin, created.Form.ID), ErrFormNotFound)
}

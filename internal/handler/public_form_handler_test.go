package handler_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/inform-api/internal/dto"
	"github.com/noah-isme/inform-api/internal/handler"
	"github.com/noah-isme/inform-api/internal/service"
)

type mockPublicSubmissionService struct {
	lastOrgSlug  string
	lastFormSlug string
	lastPayload  dto.PublicSubmissionRequest
	form         dto.PublicFormResponse
	result       dto.PublicSubmissionResponse
	err          error
}

func (m *mockPublicSubmissionService) GetForm(_ context.Context, orgSlug, formSlug string) (dto.PublicFormResponse, error) {
	m.lastOrgSlug, m.lastFormSlug = orgSlug, formSlug
	return m.form, m.err
}

func (m *mockPublicSubmissionService) Submit(_ context.Context, orgSlug, formSlug string, payload dto.PublicSubmissionRequest, _ string) (dto.PublicSubmissionResponse, error) {
	m.lastOrgSlug, m.lastFormSlug = orgSlug, formSlug
	m.lastPayload = payload
	return m.result, m.err
}

func newPublicApp(svc service.PublicSubmissionService, limiter fiber.Handler) *fiber.App {
	app := fiber.New()
	handler.NewPublicFormHandler(svc, limiter, zerolog.New(io.Discard)).Register(app.Group("/api/public"))
	return app
}

func postPublic(t *testing.T, app *fiber.App, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/public/forms/acme/grants", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestPublicFormHandler_GetForm(t *testing.T) {
	svc := &mockPublicSubmissionService{form: dto.PublicFormResponse{OrgSlug: "acme", Slug: "grants", Name: "Grants"}}
	app := newPublicApp(svc, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/public/forms/acme/grants", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "acme", svc.lastOrgSlug)
	require.Equal(t, "grants", svc.lastFormSlug)

	var body struct {
		Data dto.PublicFormResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, "Grants", body.Data.Name)
}

func TestPublicFormHandler_SubmitCreated(t *testing.T) {
	svc := &mockPublicSubmissionService{result: dto.PublicSubmissionResponse{ID: 12, Status: "ungraded", SubmittedAt: time.Now().UTC()}}
	app := newPublicApp(svc, nil)

	resp := postPublic(t, app, `{"submitter_email":"applicant@example.com","data":{"project":"Solar"},"turnstile_token":"tok"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "applicant@example.com", svc.lastPayload.SubmitterEmail)
	require.Equal(t, "Solar", svc.lastPayload.Data["project"])
	require.Equal(t, "tok", svc.lastPayload.TurnstileToken)
}

func TestPublicFormHandler_LimiterShortCircuits(t *testing.T) {
	svc := &mockPublicSubmissionService{}
	limiter := func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusTooManyRequests)
	}
	app := newPublicApp(svc, limiter)

	resp := postPublic(t, app, `{"submitter_email":"applicant@example.com","data":{}}`)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	require.Empty(t, svc.lastOrgSlug)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/public/forms/acme/grants", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestPublicFormHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &service.ValidationError{QuestionID: "", Reason: "submitter_email is invalid"}, fiber.StatusBadRequest},
		{"rate limited", service.ErrRateLimited, fiber.StatusTooManyRequests},
		{"captcha", service.ErrCaptchaFailed, fiber.StatusBadRequest},
		{"closed", service.ErrFormClosed, fiber.StatusConflict},
		{"missing", service.ErrFormNotFound, fiber.StatusNotFound},
		{"unexpected", errors.New("boom"), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newPublicApp(&mockPublicSubmissionService{err: tc.err}, nil)
			resp := postPublic(t, app, `{"submitter_email":"applicant@example.com","data":{}}`)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

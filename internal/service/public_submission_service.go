package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/dto"
	"github.com/noah-isme/inform-api/internal/models"
	"github.com/noah-isme/inform-api/internal/observability"
	"github.com/noah-isme/inform-api/internal/repository"
)

// PublicSubmissionService serves open forms and accepts anonymous submissions.
type PublicSubmissionService interface {
	GetForm(ctx context.Context, orgSlug, formSlug string) (dto.PublicFormResponse, error)
	Submit(ctx context.Context, orgSlug, formSlug string, payload dto.PublicSubmissionRequest, remoteIP string) (dto.PublicSubmissionResponse, error)
}

type publicSubmissionService struct {
	forms       repository.FormRepository
	submissions repository.SubmissionRepository
	limiter     RateLimiter
	captcha     CaptchaVerifier
	events      EventRecorder
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewPublicSubmissionService constructs the public intake service. events
// may be nil.
func NewPublicSubmissionService(forms repository.FormRepository, submissions repository.SubmissionRepository, limiter RateLimiter, captcha CaptchaVerifier, events EventRecorder, validate *validator.Validate, logger zerolog.Logger) PublicSubmissionService {
	return &publicSubmissionService{
		forms:       forms,
		submissions: submissions,
		limiter:     limiter,
		captcha:     captcha,
		events:      events,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "public_submission_service").Logger(),
		now:         time.Now,
	}
}

func (s *publicSubmissionService) GetForm(ctx context.Context, orgSlug, formSlug string) (dto.PublicFormResponse, error) {
	form, version, _, err := s.openForm(ctx, orgSlug, formSlug)
	if err != nil {
		return dto.PublicFormResponse{}, err
	}

	return dto.PublicFormResponse{
		OrgSlug:     orgSlug,
		Slug:        form.Slug,
		Name:        form.Name,
		CloseAt:     form.CloseAt,
		FormVersion: dto.NewFormVersionResponse(version),
	}, nil
}

func (s *publicSubmissionService) Submit(ctx context.Context, orgSlug, formSlug string, payload dto.PublicSubmissionRequest, remoteIP string) (dto.PublicSubmissionResponse, error) {
	if strings.TrimSpace(payload.Website) != "" {
		observability.PublicRejections().WithLabelValues("honeypot").Inc()
		s.logger.Info().Str("remote_ip", remoteIP).Msg("honeypot submission discarded")
		return dto.PublicSubmissionResponse{}, invalidPayload("submission rejected")
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.PublicSubmissionResponse{}, invalidPayload("%s", err.Error())
	}

	email := strings.ToLower(strings.TrimSpace(payload.SubmitterEmail))
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, email)
		if err != nil {
			return dto.PublicSubmissionResponse{}, err
		}
		if !allowed {
			observability.PublicRejections().WithLabelValues("rate_limited").Inc()
			return dto.PublicSubmissionResponse{}, ErrRateLimited
		}
	}

	if s.captcha != nil {
		ok, err := s.captcha.Verify(ctx, payload.TurnstileToken, remoteIP)
		if err != nil {
			s.logger.Warn().Err(err).Msg("captcha verification errored")
			observability.PublicRejections().WithLabelValues("captcha").Inc()
			return dto.PublicSubmissionResponse{}, ErrCaptchaFailed
		}
		if !ok {
			observability.PublicRejections().WithLabelValues("captcha").Inc()
			return dto.PublicSubmissionResponse{}, ErrCaptchaFailed
		}
	}

	form, version, rubric, err := s.openForm(ctx, orgSlug, formSlug)
	if err != nil {
		return dto.PublicSubmissionResponse{}, err
	}

	data, err := s.cleanData(version.Schema.Data(), payload.Data)
	if err != nil {
		return dto.PublicSubmissionResponse{}, err
	}

	submission := models.Submission{
		OrgID:           form.OrgID,
		FormID:          form.ID,
		FormVersionID:   version.ID,
		RubricVersionID: rubric.ID,
		SubmitterEmail:  email,
		Data:            data,
		Status:          models.SubmissionStatusUngraded,
		SubmittedAt:     s.now().UTC(),
	}

	if err := s.submissions.CreateWithAggregate(ctx, &submission); err != nil {
		return dto.PublicSubmissionResponse{}, err
	}

	observability.SubmissionsCreated().Inc()

	if s.events != nil {
		if err := s.events.Record(ctx, form.OrgID, models.EventSubmissionCreated, map[string]interface{}{
			"submission_id":     submission.ID,
			"form_id":           form.ID,
			"rubric_version_id": rubric.ID,
		}); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to record submission event")
		}
	}

	return dto.PublicSubmissionResponse{
		ID:          submission.ID,
		Status:      string(submission.Status),
		SubmittedAt: submission.SubmittedAt,
	}, nil
}

// openForm resolves a form that currently accepts submissions together with
// its latest published schema and rubric.
func (s *publicSubmissionService) openForm(ctx context.Context, orgSlug, formSlug string) (models.Form, models.FormVersion, models.RubricVersion, error) {
	form, err := s.forms.GetByOrgSlug(ctx, orgSlug, formSlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Form{}, models.FormVersion{}, models.RubricVersion{}, ErrFormNotFound
		}
		return models.Form{}, models.FormVersion{}, models.RubricVersion{}, err
	}

	if !form.AcceptsSubmissions(s.now()) {
		return models.Form{}, models.FormVersion{}, models.RubricVersion{}, ErrFormClosed
	}

	version, err := s.forms.LatestFormVersion(ctx, form.ID, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Form{}, models.FormVersion{}, models.RubricVersion{}, ErrFormClosed
		}
		return models.Form{}, models.FormVersion{}, models.RubricVersion{}, err
	}

	rubric, err := s.forms.LatestRubricVersion(ctx, form.ID, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Form{}, models.FormVersion{}, models.RubricVersion{}, ErrRubricVersionNotFound
		}
		return models.Form{}, models.FormVersion{}, models.RubricVersion{}, err
	}

	return form, version, rubric, nil
}

// cleanData keeps only the fields declared by the schema, sanitises string
// values and enforces required fields.
func (s *publicSubmissionService) cleanData(schema models.FormSchema, raw map[string]interface{}) (datatypes.JSONMap, error) {
	data := datatypes.JSONMap{}
	if len(schema.Fields) == 0 {
		for key, value := range raw {
			data[key] = s.cleanValue(value)
		}
		return data, nil
	}

	for _, field := range schema.Fields {
		value, ok := raw[field.ID]
		if ok {
			value = s.cleanValue(value)
		}
		if field.Required && (!ok || isBlank(value)) {
			return nil, invalidPayload("field %s is required", field.ID)
		}
		if ok {
			data[field.ID] = value
		}
	}
	return data, nil
}

func (s *publicSubmissionService) cleanValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(s.sanitizer.Sanitize(typed))
	case []interface{}:
		cleaned := make([]interface{}, 0, len(typed))
		for _, item := range typed {
			cleaned = append(cleaned, s.cleanValue(item))
		}
		return cleaned
	default:
		return typed
	}
}

func isBlank(value interface{}) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	case []interface{}:
		return len(typed) == 0
	default:
		return strings.TrimSpace(fmt.Sprint(typed)) == ""
	}
}

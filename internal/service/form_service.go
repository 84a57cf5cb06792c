package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/dto"
	"github.com/noah-isme/inform-api/internal/models"
	"github.com/noah-isme/inform-api/internal/repository"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// FormService manages forms and their versioned schema and rubric.
type FormService interface {
	Create(ctx context.Context, viewer Viewer, orgID uint, payload dto.FormCreateRequest) (dto.FormDetailResponse, error)
	Get(ctx context.Context, viewer Viewer, formID uint) (dto.FormDetailResponse, error)
	List(ctx context.Context, viewer Viewer, orgID uint) ([]dto.FormResponse, error)
	Update(ctx context.Context, viewer Viewer, formID uint, payload dto.FormUpdateRequest) (dto.FormResponse, error)
	Publish(ctx context.Context, viewer Viewer, formID uint, payload dto.FormPublishRequest) (dto.FormDetailResponse, error)
	Delete(ctx context.Context, viewer Viewer, formID uint) error
}

type formService struct {
	repo      repository.FormRepository
	access    accessResolver
	events    EventRecorder
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewFormService constructs the form service.
func NewFormService(repo repository.FormRepository, memberships repository.MembershipRepository, events EventRecorder, validate *validator.Validate, logger zerolog.Logger) FormService {
	return &formService{
		repo:      repo,
		access:    newAccessResolver(memberships),
		events:    events,
		validator: validate,
		logger:    logger.With().Str("component", "form_service").Logger(),
		now:       time.Now,
	}
}

func (s *formService) Create(ctx context.Context, viewer Viewer, orgID uint, payload dto.FormCreateRequest) (dto.FormDetailResponse, error) {
	if _, err := s.access.requireAdmin(ctx, viewer, orgID); err != nil {
		return dto.FormDetailResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.FormDetailResponse{}, invalidPayload("%s", err.Error())
	}

	slug := strings.ToLower(strings.TrimSpace(payload.Slug))
	if !slugPattern.MatchString(slug) {
		return dto.FormDetailResponse{}, invalidPayload("slug must contain lowercase letters, digits and dashes")
	}

	mode := models.VisibilityRevealAfterMeSubmit
	if payload.VisibilityMode != "" {
		parsed, ok := models.ParseVisibilityMode(payload.VisibilityMode)
		if !ok {
			return dto.FormDetailResponse{}, invalidPayload("unknown visibility mode %q", payload.VisibilityMode)
		}
		mode = parsed
	}

	minReviews := 1
	if payload.MinReviewsRequired != nil {
		minReviews = *payload.MinReviewsRequired
	}

	if err := validateWindow(payload.OpenAt, payload.CloseAt); err != nil {
		return dto.FormDetailResponse{}, err
	}

	form := models.Form{
		OrgID:               orgID,
		Name:                strings.TrimSpace(payload.Name),
		Slug:                slug,
		Status:              models.FormStatusDraft,
		OpenAt:              payload.OpenAt,
		CloseAt:             payload.CloseAt,
		MinReviewsRequired:  minReviews,
		VisibilityMode:      mode,
		VisibilityThreshold: payload.VisibilityThreshold,
	}
	version := models.FormVersion{Schema: datatypes.NewJSONType(schemaFromPayload(payload.Fields))}
	rubric := rubricFromPayload(payload.Rubric)

	if err := rubric.Validate(); err != nil {
		return dto.FormDetailResponse{}, invalidPayload("%s", err.Error())
	}

	if err := s.repo.Create(ctx, &form, &version, &rubric); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return dto.FormDetailResponse{}, ErrSlugTaken
		}
		return dto.FormDetailResponse{}, err
	}

	s.logger.Info().Uint("form_id", form.ID).Uint("org_id", orgID).Msg("form created")
	return detailResponse(form, &version, &rubric), nil
}

func (s *formService) Get(ctx context.Context, viewer Viewer, formID uint) (dto.FormDetailResponse, error) {
	form, err := s.loadForm(ctx, formID)
	if err != nil {
		return dto.FormDetailResponse{}, err
	}
	if _, err := s.access.requireRead(ctx, viewer, form.OrgID); err != nil {
		return dto.FormDetailResponse{}, err
	}

	var versionPtr *models.FormVersion
	version, err := s.repo.LatestFormVersion(ctx, formID, false)
	switch {
	case err == nil:
		versionPtr = &version
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return dto.FormDetailResponse{}, err
	}

	var rubricPtr *models.RubricVersion
	rubric, err := s.repo.LatestRubricVersion(ctx, formID, false)
	switch {
	case err == nil:
		rubricPtr = &rubric
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return dto.FormDetailResponse{}, err
	}

	return detailResponse(form, versionPtr, rubricPtr), nil
}

func (s *formService) List(ctx context.Context, viewer Viewer, orgID uint) ([]dto.FormResponse, error) {
	if _, err := s.access.requireRead(ctx, viewer, orgID); err != nil {
		return nil, err
	}

	forms, err := s.repo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return dto.NewFormResponseSlice(forms), nil
}

func (s *formService) Update(ctx context.Context, viewer Viewer, formID uint, payload dto.FormUpdateRequest) (dto.FormResponse, error) {
	form, err := s.loadForm(ctx, formID)
	if err != nil {
		return dto.FormResponse{}, err
	}
	if _, err := s.access.requireAdmin(ctx, viewer, form.OrgID); err != nil {
		return dto.FormResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.FormResponse{}, invalidPayload("%s", err.Error())
	}

	if payload.Name != nil {
		form.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.Slug != nil {
		slug := strings.ToLower(strings.TrimSpace(*payload.Slug))
		if !slugPattern.MatchString(slug) {
			return dto.FormResponse{}, invalidPayload("slug must contain lowercase letters, digits and dashes")
		}
		form.Slug = slug
	}
	if payload.Status != nil {
		status := models.FormStatus(*payload.Status)
		if !status.Valid() {
			return dto.FormResponse{}, invalidPayload("unknown status %q", *payload.Status)
		}
		form.Status = status
	}
	if payload.OpenAt != nil {
		form.OpenAt = payload.OpenAt
	}
	if payload.CloseAt != nil {
		form.CloseAt = payload.CloseAt
	}
	if payload.MinReviewsRequired != nil {
		form.MinReviewsRequired = *payload.MinReviewsRequired
	}
	if payload.VisibilityMode != nil {
		mode, ok := models.ParseVisibilityMode(*payload.VisibilityMode)
		if !ok {
			return dto.FormResponse{}, invalidPayload("unknown visibility mode %q", *payload.VisibilityMode)
		}
		form.VisibilityMode = mode
	}
	if payload.VisibilityThreshold != nil {
		form.VisibilityThreshold = payload.VisibilityThreshold
	}

	if err := validateWindow(form.OpenAt, form.CloseAt); err != nil {
		return dto.FormResponse{}, err
	}

	if err := s.repo.Update(ctx, &form); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return dto.FormResponse{}, ErrSlugTaken
		}
		return dto.FormResponse{}, err
	}

	return dto.NewFormResponse(form), nil
}

// Publish freezes the supplied (or latest draft) schema and rubric as new
// immutable versions and opens a draft form.
func (s *formService) Publish(ctx context.Context, viewer Viewer, formID uint, payload dto.FormPublishRequest) (dto.FormDetailResponse, error) {
	form, err := s.loadForm(ctx, formID)
	if err != nil {
		return dto.FormDetailResponse{}, err
	}
	if _, err := s.access.requireAdmin(ctx, viewer, form.OrgID); err != nil {
		return dto.FormDetailResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.FormDetailResponse{}, invalidPayload("%s", err.Error())
	}

	version := models.FormVersion{Notes: strings.TrimSpace(payload.Notes)}
	if payload.Fields != nil {
		version.Schema = datatypes.NewJSONType(schemaFromPayload(payload.Fields))
	} else {
		latest, err := s.repo.LatestFormVersion(ctx, formID, false)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.FormDetailResponse{}, err
		}
		version.Schema = datatypes.NewJSONType(latest.Schema.Data())
	}

	var rubric models.RubricVersion
	if payload.Rubric != nil {
		rubric = rubricFromPayload(*payload.Rubric)
	} else {
		latest, err := s.repo.LatestRubricVersion(ctx, formID, false)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.FormDetailResponse{}, ErrRubricVersionNotFound
			}
			return dto.FormDetailResponse{}, err
		}
		rubric = models.RubricVersion{
			Questions: append(datatypes.JSONSlice[models.RubricQuestion]{}, latest.Questions...),
			ScaleMin:  latest.ScaleMin,
			ScaleMax:  latest.ScaleMax,
			ScaleStep: latest.ScaleStep,
		}
	}

	if err := rubric.Validate(); err != nil {
		return dto.FormDetailResponse{}, invalidPayload("%s", err.Error())
	}

	publishedAt := s.now().UTC()
	updated, err := s.repo.Publish(ctx, formID, &version, &rubric, publishedAt)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.FormDetailResponse{}, ErrFormNotFound
		}
		return dto.FormDetailResponse{}, err
	}

	if s.events != nil {
		if err := s.events.Record(ctx, updated.OrgID, models.EventFormPublished, map[string]interface{}{
			"form_id":           updated.ID,
			"form_version":      version.Version,
			"rubric_version":    rubric.Version,
			"rubric_version_id": rubric.ID,
		}); err != nil {
			s.logger.Warn().Err(err).Uint("form_id", formID).Msg("failed to record publish event")
		}
	}

	s.logger.Info().Uint("form_id", formID).Int("rubric_version", rubric.Version).Msg("form published")
	return detailResponse(updated, &version, &rubric), nil
}

func (s *formService) Delete(ctx context.Context, viewer Viewer, formID uint) error {
	form, err := s.loadForm(ctx, formID)
	if err != nil {
		return err
	}
	if _, err := s.access.requireAdmin(ctx, viewer, form.OrgID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, formID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFormNotFound
		}
		return err
	}
	return nil
}

func (s *formService) loadForm(ctx context.Context, formID uint) (models.Form, error) {
	form, err := s.repo.GetByID(ctx, formID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Form{}, ErrFormNotFound
		}
		return models.Form{}, err
	}
	return form, nil
}

func validateWindow(openAt, closeAt *time.Time) error {
	if openAt != nil && closeAt != nil && closeAt.Before(*openAt) {
		return invalidPayload("close_at must not be before open_at")
	}
	return nil
}

func schemaFromPayload(fields []dto.FormFieldPayload) models.FormSchema {
	schema := models.FormSchema{Fields: make([]models.FormField, 0, len(fields))}
	for _, field := range fields {
		schema.Fields = append(schema.Fields, models.FormField{
			ID:       strings.TrimSpace(field.ID),
			Label:    strings.TrimSpace(field.Label),
			Type:     field.Type,
			Required: field.Required,
			Options:  field.Options,
		})
	}
	return schema
}

func rubricFromPayload(payload dto.RubricPayload) models.RubricVersion {
	questions := make(datatypes.JSONSlice[models.RubricQuestion], 0, len(payload.Questions))
	for _, question := range payload.Questions {
		questions = append(questions, models.RubricQuestion{
			ID:          strings.TrimSpace(question.ID),
			Label:       strings.TrimSpace(question.Label),
			Description: strings.TrimSpace(question.Description),
			Weight:      question.Weight,
			Required:    question.Required,
		})
	}
	return models.RubricVersion{
		Questions: questions,
		ScaleMin:  payload.ScaleMin,
		ScaleMax:  payload.ScaleMax,
		ScaleStep: payload.ScaleStep,
	}
}

func detailResponse(form models.Form, version *models.FormVersion, rubric *models.RubricVersion) dto.FormDetailResponse {
	response := dto.FormDetailResponse{Form: dto.NewFormResponse(form)}
	if version != nil {
		v := dto.NewFormVersionResponse(*version)
		response.FormVersion = &v
	}
	if rubric != nil {
		r := dto.NewRubricVersionResponse(*rubric)
		response.Rubric = &r
	}
	return response
}

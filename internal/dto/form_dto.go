package dto

import (
	"time"

	"github.com/noah-isme/inform-api/internal/models"
)

// FormFieldPayload describes one input of the public form.
type FormFieldPayload struct {
	ID       string   `json:"id" validate:"required,max=64"`
	Label    string   `json:"label" validate:"required,max=255"`
	Type     string   `json:"type" validate:"required,oneof=text textarea email number url select checkbox date"`
	Required bool     `json:"required"`
	Options  []string `json:"options" validate:"omitempty,dive,max=255"`
}

// RubricQuestionPayload describes one weighted rubric question.
type RubricQuestionPayload struct {
	ID          string  `json:"id" validate:"required,max=64"`
	Label       string  `json:"label" validate:"required,max=255"`
	Description string  `json:"description" validate:"omitempty,max=2000"`
	Weight      float64 `json:"weight" validate:"gte=0,lte=1"`
	Required    bool    `json:"required"`
}

// RubricPayload describes a rubric and its shared scale.
type RubricPayload struct {
	Questions []RubricQuestionPayload `json:"questions" validate:"required,min=1,dive"`
	ScaleMin  int                     `json:"scale_min"`
	ScaleMax  int                     `json:"scale_max" validate:"gtefield=ScaleMin"`
	ScaleStep int                     `json:"scale_step" validate:"gt=0"`
}

// FormCreateRequest creates a draft form with its first schema and rubric.
type FormCreateRequest struct {
	Name                string             `json:"name" validate:"required,max=255"`
	Slug                string             `json:"slug" validate:"required,max=128"`
	OpenAt              *time.Time         `json:"open_at"`
	CloseAt             *time.Time         `json:"close_at"`
	MinReviewsRequired  *int               `json:"min_reviews_required" validate:"omitempty,gte=1,lte=100"`
	VisibilityMode      string             `json:"visibility_mode" validate:"omitempty,oneof=REVEAL_AFTER_ME_SUBMIT REVEAL_AFTER_MIN_REVIEWS NEVER AVERAGES_ONLY_UNTIL_LOCK"`
	VisibilityThreshold *int               `json:"visibility_threshold" validate:"omitempty,gte=0"`
	Fields              []FormFieldPayload `json:"fields" validate:"omitempty,dive"`
	Rubric              RubricPayload      `json:"rubric"`
}

// FormUpdateRequest carries partial form settings updates.
type FormUpdateRequest struct {
	Name                *string    `json:"name" validate:"omitempty,min=1,max=255"`
	Slug                *string    `json:"slug" validate:"omitempty,min=1,max=128"`
	Status              *string    `json:"status" validate:"omitempty,oneof=draft open closed archived"`
	OpenAt              *time.Time `json:"open_at"`
	CloseAt             *time.Time `json:"close_at"`
	MinReviewsRequired  *int       `json:"min_reviews_required" validate:"omitempty,gte=1,lte=100"`
	VisibilityMode      *string    `json:"visibility_mode" validate:"omitempty,oneof=REVEAL_AFTER_ME_SUBMIT REVEAL_AFTER_MIN_REVIEWS NEVER AVERAGES_ONLY_UNTIL_LOCK"`
	VisibilityThreshold *int       `json:"visibility_threshold" validate:"omitempty,gte=0"`
}

// FormPublishRequest publishes the form. Omitted parts reuse the latest version.
type FormPublishRequest struct {
	Fields []FormFieldPayload `json:"fields" validate:"omitempty,dive"`
	Rubric *RubricPayload     `json:"rubric" validate:"omitempty"`
	Notes  string             `json:"notes" validate:"omitempty,max=2000"`
}

// FormResponse exposes form settings.
type FormResponse struct {
	ID                  uint       `json:"id"`
	OrgID               uint       `json:"org_id"`
	Name                string     `json:"name"`
	Slug                string     `json:"slug"`
	Status              string     `json:"status"`
	OpenAt              *time.Time `json:"open_at"`
	CloseAt             *time.Time `json:"close_at"`
	MinReviewsRequired  int        `json:"min_reviews_required"`
	VisibilityMode      string     `json:"visibility_mode"`
	VisibilityThreshold *int       `json:"visibility_threshold"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// NewFormResponse converts a form model.
func NewFormResponse(model models.Form) FormResponse {
	return FormResponse{
		ID:                  model.ID,
		OrgID:               model.OrgID,
		Name:                model.Name,
		Slug:                model.Slug,
		Status:              string(model.Status),
		OpenAt:              model.OpenAt,
		CloseAt:             model.CloseAt,
		MinReviewsRequired:  model.MinReviewsRequired,
		VisibilityMode:      string(model.VisibilityMode),
		VisibilityThreshold: model.VisibilityThreshold,
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
	}
}

// NewFormResponseSlice converts a list of forms.
func NewFormResponseSlice(items []models.Form) []FormResponse {
	responses := make([]FormResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewFormResponse(item))
	}
	return responses
}

// FormVersionResponse exposes a schema version.
type FormVersionResponse struct {
	ID          uint               `json:"id"`
	Version     int                `json:"version"`
	Fields      []models.FormField `json:"fields"`
	Notes       string             `json:"notes,omitempty"`
	PublishedAt *time.Time         `json:"published_at"`
}

// NewFormVersionResponse converts a form version model.
func NewFormVersionResponse(model models.FormVersion) FormVersionResponse {
	fields := model.Schema.Data().Fields
	if fields == nil {
		fields = []models.FormField{}
	}
	return FormVersionResponse{
		ID:          model.ID,
		Version:     model.Version,
		Fields:      fields,
		Notes:       model.Notes,
		PublishedAt: model.PublishedAt,
	}
}

// RubricVersionResponse exposes a rubric version.
type RubricVersionResponse struct {
	ID          uint                    `json:"id"`
	Version     int                     `json:"version"`
	Questions   []models.RubricQuestion `json:"questions"`
	ScaleMin    int                     `json:"scale_min"`
	ScaleMax    int                     `json:"scale_max"`
	ScaleStep   int                     `json:"scale_step"`
	PublishedAt *time.Time              `json:"published_at"`
}

// NewRubricVersionResponse converts a rubric version model.
func NewRubricVersionResponse(model models.RubricVersion) RubricVersionResponse {
	questions := []models.RubricQuestion(model.Questions)
	if questions == nil {
		questions = []models.RubricQuestion{}
	}
	return RubricVersionResponse{
		ID:          model.ID,
		Version:     model.Version,
		Questions:   questions,
		ScaleMin:    model.ScaleMin,
		ScaleMax:    model.ScaleMax,
		ScaleStep:   model.ScaleStep,
		PublishedAt: model.PublishedAt,
	}
}

// FormDetailResponse bundles a form with its latest versions.
type FormDetailResponse struct {
	Form        FormResponse           `json:"form"`
	FormVersion *FormVersionResponse   `json:"form_version"`
	Rubric      *RubricVersionResponse `json:"rubric"`
}

// PublicFormResponse is what anonymous submitters see.
type PublicFormResponse struct {
	OrgSlug     string              `json:"org_slug"`
	Slug        string              `json:"slug"`
	Name        string              `json:"name"`
	CloseAt     *time.Time          `json:"close_at"`
	FormVersion FormVersionResponse `json:"form_version"`
}

package dto

import (
	"time"

	"github.com/noah-isme/inform-api/internal/models"
)

// PublicSubmissionRequest is posted by anonymous submitters. Website is a
// honeypot field that humans never fill in.
type PublicSubmissionRequest struct {
	SubmitterEmail string                 `json:"submitter_email" validate:"required,email,max=255"`
	Data           map[string]interface{} `json:"data" validate:"required"`
	Website        string                 `json:"website"`
	TurnstileToken string                 `json:"turnstile_token"`
}

// PublicSubmissionResponse acknowledges a public submission.
type PublicSubmissionResponse struct {
	ID          uint      `json:"id"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SubmissionListRequest holds query filters for listing submissions.
type SubmissionListRequest struct {
	Status         string   `query:"status" validate:"omitempty,oneof=ungraded partially_graded fully_graded"`
	SubmitterEmail string   `query:"email" validate:"omitempty,max=255"`
	MinScore       *float64 `query:"min_score"`
	MaxScore       *float64 `query:"max_score"`
	Cursor         uint     `query:"cursor"`
	Limit          int      `query:"limit" validate:"omitempty,gte=1,lte=100"`
}

// SubmissionResponse exposes a submission. Aggregate is only set when the
// caller may see aggregates.
type SubmissionResponse struct {
	ID              uint                   `json:"id"`
	OrgID           uint                   `json:"org_id"`
	FormID          uint                   `json:"form_id"`
	FormVersionID   uint                   `json:"form_version_id"`
	RubricVersionID uint                   `json:"rubric_version_id"`
	SubmitterEmail  string                 `json:"submitter_email"`
	Data            map[string]interface{} `json:"data"`
	Status          string                 `json:"status"`
	SubmittedAt     time.Time              `json:"submitted_at"`
	Aggregate       *AggregateResponse     `json:"aggregate,omitempty"`
}

// NewSubmissionResponse converts a submission model without its aggregate.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	data := map[string]interface{}(model.Data)
	if data == nil {
		data = map[string]interface{}{}
	}
	return SubmissionResponse{
		ID:              model.ID,
		OrgID:           model.OrgID,
		FormID:          model.FormID,
		FormVersionID:   model.FormVersionID,
		RubricVersionID: model.RubricVersionID,
		SubmitterEmail:  model.SubmitterEmail,
		Data:            data,
		Status:          string(model.Status),
		SubmittedAt:     model.SubmittedAt,
	}
}

// SubmissionListResponse is one cursor page of submissions.
type SubmissionListResponse struct {
	Items      []SubmissionResponse `json:"items"`
	NextCursor *uint                `json:"next_cursor"`
}

// SubmissionDetailResponse bundles a submission with its pinned versions and
// the reviews the caller may see.
type SubmissionDetailResponse struct {
	Submission  SubmissionResponse     `json:"submission"`
	FormVersion FormVersionResponse    `json:"form_version"`
	Rubric      RubricVersionResponse  `json:"rubric"`
	Reviews     VisibleReviewsResponse `json:"reviews"`
}

// ReviewQueueRequest pages through the review queue.
type ReviewQueueRequest struct {
	Cursor int `query:"cursor" validate:"omitempty,gte=0"`
	Limit  int `query:"limit" validate:"omitempty,gte=1,lte=100"`
}

// ReviewQueueItem is one submission awaiting the caller's review.
type ReviewQueueItem struct {
	SubmissionID uint      `json:"submission_id"`
	FormID       uint      `json:"form_id"`
	FormName     string    `json:"form_name"`
	Status       string    `json:"status"`
	ReviewsCount int       `json:"reviews_count"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// ReviewQueueResponse is one page of the review queue.
type ReviewQueueResponse struct {
	Items      []ReviewQueueItem `json:"items"`
	NextCursor *int              `json:"next_cursor"`
}

// DomainEventResponse exposes a recorded domain event.
type DomainEventResponse struct {
	EventID   string                 `json:"event_id"`
	OrgID     uint                   `json:"org_id"`
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewDomainEventResponse converts a domain event model.
func NewDomainEventResponse(model models.DomainEvent) DomainEventResponse {
	return DomainEventResponse{
		EventID:   model.EventID,
		OrgID:     model.OrgID,
		Type:      model.Type,
		Payload:   map[string]interface{}(model.Payload),
		CreatedAt: model.CreatedAt,
	}
}

// DomainEventListResponse is a page of domain events.
type DomainEventListResponse struct {
	Items      []DomainEventResponse `json:"items"`
	Pagination PaginationMeta        `json:"pagination"`
}

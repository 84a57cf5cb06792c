package dto

import (
	"time"

	"github.com/noah-isme/inform-api/internal/models"
)

// ReviewSaveRequest is the combined draft/submit payload for a review.
type ReviewSaveRequest struct {
	Scores  map[string]int `json:"scores" validate:"required"`
	Comment *string        `json:"comment" validate:"omitempty,max=10000"`
	Submit  bool           `json:"submit"`
}

// RevisionResponse exposes a single review revision.
type RevisionResponse struct {
	ID        uint           `json:"id"`
	Scores    map[string]int `json:"scores"`
	Comment   *string        `json:"comment"`
	CreatedAt time.Time      `json:"created_at"`
}

// ReviewResponse exposes a review with its authoritative revision only.
type ReviewResponse struct {
	ID             uint              `json:"id"`
	SubmissionID   uint              `json:"submission_id"`
	ReviewerUserID string            `json:"reviewer_user_id"`
	State          string            `json:"state"`
	SubmittedAt    *time.Time        `json:"submitted_at"`
	LatestRevision *RevisionResponse `json:"latest_revision"`
}

// NewReviewResponse converts a review model into its DTO.
func NewReviewResponse(model models.Review) ReviewResponse {
	response := ReviewResponse{
		ID:             model.ID,
		SubmissionID:   model.SubmissionID,
		ReviewerUserID: model.ReviewerUserID,
		State:          string(model.State()),
		SubmittedAt:    model.SubmittedAt,
	}

	if revision, ok := model.LatestRevision(); ok {
		response.LatestRevision = &RevisionResponse{
			ID:        revision.ID,
			Scores:    revision.ScoreSet(),
			Comment:   revision.CommentText,
			CreatedAt: revision.CreatedAt,
		}
	}

	return response
}

// NewReviewResponseSlice converts a list of reviews.
func NewReviewResponseSlice(items []models.Review) []ReviewResponse {
	responses := make([]ReviewResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewReviewResponse(item))
	}
	return responses
}

// AggregateResponse exposes the derived grading figures of a submission.
type AggregateResponse struct {
	SubmissionID   uint       `json:"submission_id"`
	ReviewsCount   int        `json:"reviews_count"`
	CompositeScore *float64   `json:"composite_score"`
	LastReviewAt   *time.Time `json:"last_review_at"`
}

// NewAggregateResponse converts an aggregate model into its DTO.
func NewAggregateResponse(model models.SubmissionAggregate) AggregateResponse {
	return AggregateResponse{
		SubmissionID:   model.SubmissionID,
		ReviewsCount:   model.ReviewsCount,
		CompositeScore: model.CompositeScore,
		LastReviewAt:   model.LastReviewAt,
	}
}

// ReviewSaveResponse is returned after a draft or submit. Warnings carry
// non-fatal problems such as a failed aggregate refresh.
type ReviewSaveResponse struct {
	Review    ReviewResponse     `json:"review"`
	Aggregate *AggregateResponse `json:"aggregate"`
	Status    string             `json:"submission_status,omitempty"`
	Warnings  []string           `json:"warnings"`
}

// VisibleReviewsResponse is the visibility-filtered view of a submission's reviews.
type VisibleReviewsResponse struct {
	MyReview         *ReviewResponse    `json:"my_review"`
	Others           []ReviewResponse   `json:"others"`
	CanSeeOthers     bool               `json:"can_see_others"`
	CanSeeAggregates bool               `json:"can_see_aggregates"`
	Aggregate        *AggregateResponse `json:"aggregate"`
}

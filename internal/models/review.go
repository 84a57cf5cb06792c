package models

import (
	"time"

	"gorm.io/datatypes"
)

// ScoreSet maps rubric question ids to integer scores.
type ScoreSet map[string]int

// Equal reports whether both score sets hold the same scores.
func (s ScoreSet) Equal(other ScoreSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id, score := range s {
		if value, ok := other[id]; !ok || value != score {
			return false
		}
	}
	return true
}

// ReviewState is the two-state lifecycle of a review.
type ReviewState string

const (
	ReviewStateDraft     ReviewState = "draft"
	ReviewStateSubmitted ReviewState = "submitted"
)

// Review is the single evaluation record of one reviewer for one submission.
type Review struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	SubmissionID   uint             `gorm:"not null;uniqueIndex:idx_review_submission_reviewer" json:"submission_id"`
	ReviewerUserID string           `gorm:"size:128;not null;uniqueIndex:idx_review_submission_reviewer" json:"reviewer_user_id"`
	SubmittedAt    *time.Time       `json:"submitted_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	Submission     Submission       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Revisions      []ReviewRevision `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// State returns the lifecycle state of the review.
func (r Review) State() ReviewState {
	if r.SubmittedAt != nil {
		return ReviewStateSubmitted
	}
	return ReviewStateDraft
}

// IsSubmitted reports whether the review reached its terminal state.
func (r Review) IsSubmitted() bool {
	return r.State() == ReviewStateSubmitted
}

// LatestRevision returns the authoritative revision among the loaded ones.
// Ties on CreatedAt go to the row inserted last.
func (r Review) LatestRevision() (ReviewRevision, bool) {
	if len(r.Revisions) == 0 {
		return ReviewRevision{}, false
	}

	latest := r.Revisions[0]
	for _, revision := range r.Revisions[1:] {
		if revision.CreatedAt.After(latest.CreatedAt) ||
			(revision.CreatedAt.Equal(latest.CreatedAt) && revision.ID > latest.ID) {
			latest = revision
		}
	}
	return latest, true
}

// ReviewRevision is an append-only snapshot of a review's scores and comment.
type ReviewRevision struct {
	ID          uint                         `gorm:"primaryKey" json:"id"`
	ReviewID    uint                         `gorm:"not null;index" json:"review_id"`
	Scores      datatypes.JSONType[ScoreSet] `gorm:"type:json" json:"scores"`
	CommentText *string                      `gorm:"type:text" json:"comment_text"`
	CreatedAt   time.Time                    `gorm:"index" json:"created_at"`
}

// ScoreSet returns the decoded scores of the revision.
func (r ReviewRevision) ScoreSet() ScoreSet {
	scores := r.Scores.Data()
	if scores == nil {
		return ScoreSet{}
	}
	return scores
}

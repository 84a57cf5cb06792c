package models

import (
	"time"

	"gorm.io/datatypes"
)

// SubmissionStatus reports how far grading has progressed.
type SubmissionStatus string

const (
	SubmissionStatusUngraded        SubmissionStatus = "ungraded"
	SubmissionStatusPartiallyGraded SubmissionStatus = "partially_graded"
	SubmissionStatusFullyGraded     SubmissionStatus = "fully_graded"
)

// Valid reports whether the status is known.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionStatusUngraded, SubmissionStatusPartiallyGraded, SubmissionStatusFullyGraded:
		return true
	default:
		return false
	}
}

// DeriveSubmissionStatus computes the grading status from the number of
// submitted reviews. It never relies on the previous status.
func DeriveSubmissionStatus(reviewsCount, minReviewsRequired int) SubmissionStatus {
	if minReviewsRequired < 1 {
		minReviewsRequired = 1
	}
	switch {
	case reviewsCount >= minReviewsRequired:
		return SubmissionStatusFullyGraded
	case reviewsCount > 0:
		return SubmissionStatusPartiallyGraded
	default:
		return SubmissionStatusUngraded
	}
}

// Submission is a public response to a form, pinned to the form and rubric
// versions that were live when it arrived.
type Submission struct {
	ID              uint                 `gorm:"primaryKey" json:"id"`
	OrgID           uint                 `gorm:"not null;index" json:"org_id"`
	FormID          uint                 `gorm:"not null;index" json:"form_id"`
	FormVersionID   uint                 `gorm:"not null" json:"form_version_id"`
	RubricVersionID uint                 `gorm:"not null" json:"rubric_version_id"`
	SubmitterEmail  string               `gorm:"size:255;index" json:"submitter_email"`
	Data            datatypes.JSONMap    `gorm:"type:json" json:"data"`
	Status          SubmissionStatus     `gorm:"size:32;not null;default:ungraded;index" json:"status"`
	SubmittedAt     time.Time            `gorm:"not null" json:"submitted_at"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	Form            Form                 `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	FormVersion     FormVersion          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	RubricVersion   RubricVersion        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Aggregate       *SubmissionAggregate `gorm:"foreignKey:SubmissionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// SubmissionAggregate caches the derived grading figures of a submission.
// It is always recomputed wholesale from submitted reviews.
type SubmissionAggregate struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	SubmissionID   uint       `gorm:"not null;uniqueIndex" json:"submission_id"`
	ReviewsCount   int        `gorm:"not null;default:0" json:"reviews_count"`
	CompositeScore *float64   `json:"composite_score"`
	LastReviewAt   *time.Time `json:"last_review_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	EventSubmissionCreated = "submission.created"
	EventFormPublished     = "form.published"
	EventReviewSubmitted   = "review.submitted"
)

// DomainEvent records a notable state change for auditing and fan-out.
type DomainEvent struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	EventID   string            `gorm:"size:36;uniqueIndex;not null" json:"event_id"`
	OrgID     uint              `gorm:"not null;index" json:"org_id"`
	Type      string            `gorm:"size:64;not null;index" json:"type"`
	Payload   datatypes.JSONMap `gorm:"type:json" json:"payload"`
	CreatedAt time.Time         `json:"created_at"`
}

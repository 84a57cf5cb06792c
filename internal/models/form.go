package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// FormStatus describes the lifecycle of a form.
type FormStatus string

const (
	FormStatusDraft    FormStatus = "draft"
	FormStatusOpen     FormStatus = "open"
	FormStatusClosed   FormStatus = "closed"
	FormStatusArchived FormStatus = "archived"
)

// Valid reports whether the status is known.
func (s FormStatus) Valid() bool {
	switch s {
	case FormStatusDraft, FormStatusOpen, FormStatusClosed, FormStatusArchived:
		return true
	default:
		return false
	}
}

// VisibilityMode controls when reviewers may see each other's reviews.
type VisibilityMode string

const (
	VisibilityRevealAfterMeSubmit   VisibilityMode = "REVEAL_AFTER_ME_SUBMIT"
	VisibilityRevealAfterMinReviews VisibilityMode = "REVEAL_AFTER_MIN_REVIEWS"
	VisibilityNever                 VisibilityMode = "NEVER"
	VisibilityAveragesOnlyUntilLock VisibilityMode = "AVERAGES_ONLY_UNTIL_LOCK"
)

// Valid reports whether the mode is one of the supported visibility modes.
func (m VisibilityMode) Valid() bool {
	switch m {
	case VisibilityRevealAfterMeSubmit, VisibilityRevealAfterMinReviews, VisibilityNever, VisibilityAveragesOnlyUntilLock:
		return true
	default:
		return false
	}
}

// ParseVisibilityMode normalises user input into a VisibilityMode.
func ParseVisibilityMode(raw string) (VisibilityMode, bool) {
	mode := VisibilityMode(strings.ToUpper(strings.TrimSpace(raw)))
	return mode, mode.Valid()
}

// VisibilityPolicy is the effective review visibility configuration of a form.
type VisibilityPolicy struct {
	Mode      VisibilityMode
	Threshold *int
}

// FormField describes a single input collected by the public form.
type FormField struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

// FormSchema is the ordered list of fields a submitter fills in.
type FormSchema struct {
	Fields []FormField `json:"fields"`
}

// Form is an organization-owned questionnaire that collects submissions.
type Form struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	OrgID               uint           `gorm:"not null;uniqueIndex:idx_form_org_slug" json:"org_id"`
	Name                string         `gorm:"size:255;not null" json:"name"`
	Slug                string         `gorm:"size:128;not null;uniqueIndex:idx_form_org_slug" json:"slug"`
	Status              FormStatus     `gorm:"size:16;not null;default:draft" json:"status"`
	OpenAt              *time.Time     `json:"open_at"`
	CloseAt             *time.Time     `json:"close_at"`
	MinReviewsRequired  int            `gorm:"not null;default:1" json:"min_reviews_required"`
	VisibilityMode      VisibilityMode `gorm:"size:32;not null;default:REVEAL_AFTER_ME_SUBMIT" json:"visibility_mode"`
	VisibilityThreshold *int           `json:"visibility_threshold"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	Organization        Organization   `gorm:"foreignKey:OrgID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// Policy returns the visibility policy currently configured on the form.
func (f Form) Policy() VisibilityPolicy {
	return VisibilityPolicy{Mode: f.VisibilityMode, Threshold: f.VisibilityThreshold}
}

// AcceptsSubmissions reports whether the form is open at the given instant.
func (f Form) AcceptsSubmissions(now time.Time) bool {
	if f.Status != FormStatusOpen {
		return false
	}
	if f.OpenAt != nil && now.Before(*f.OpenAt) {
		return false
	}
	if f.CloseAt != nil && now.After(*f.CloseAt) {
		return false
	}
	return true
}

// FormVersion snapshots the form schema each time the form is published.
type FormVersion struct {
	ID          uint                           `gorm:"primaryKey" json:"id"`
	FormID      uint                           `gorm:"not null;uniqueIndex:idx_form_version" json:"form_id"`
	Version     int                            `gorm:"not null;uniqueIndex:idx_form_version" json:"version"`
	Schema      datatypes.JSONType[FormSchema] `gorm:"type:json" json:"schema"`
	Notes       string                         `gorm:"type:text" json:"notes"`
	PublishedAt *time.Time                     `json:"published_at"`
	CreatedAt   time.Time                      `json:"created_at"`
	Form        Form                           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

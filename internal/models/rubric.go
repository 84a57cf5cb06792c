package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// RubricQuestion is a single weighted scoring criterion.
type RubricQuestion struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Description string  `json:"description,omitempty"`
	Weight      float64 `json:"weight"`
	Required    bool    `json:"required"`
}

// RubricVersion is an immutable, published scoring rubric. Submissions keep a
// reference to the version that was active when they were received.
type RubricVersion struct {
	ID          uint                                `gorm:"primaryKey" json:"id"`
	FormID      uint                                `gorm:"not null;uniqueIndex:idx_rubric_version" json:"form_id"`
	Version     int                                 `gorm:"not null;uniqueIndex:idx_rubric_version" json:"version"`
	Questions   datatypes.JSONSlice[RubricQuestion] `gorm:"type:json" json:"questions"`
	ScaleMin    int                                 `gorm:"not null;default:1" json:"scale_min"`
	ScaleMax    int                                 `gorm:"not null;default:5" json:"scale_max"`
	ScaleStep   int                                 `gorm:"not null;default:1" json:"scale_step"`
	PublishedAt *time.Time                          `json:"published_at"`
	CreatedAt   time.Time                           `json:"created_at"`
	Form        Form                                `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// ErrInvalidRubric is wrapped by every rubric structure violation.
var ErrInvalidRubric = errors.New("invalid rubric")

// Validate checks the structural rules every published rubric must satisfy.
// Weights are not required to sum to one.
func (r RubricVersion) Validate() error {
	if r.ScaleStep <= 0 {
		return fmt.Errorf("%w: scale step must be positive", ErrInvalidRubric)
	}
	if r.ScaleMin > r.ScaleMax {
		return fmt.Errorf("%w: scale min %d exceeds scale max %d", ErrInvalidRubric, r.ScaleMin, r.ScaleMax)
	}
	if len(r.Questions) == 0 {
		return fmt.Errorf("%w: at least one question is required", ErrInvalidRubric)
	}

	seen := make(map[string]struct{}, len(r.Questions))
	for _, question := range r.Questions {
		id := strings.TrimSpace(question.ID)
		if id == "" {
			return fmt.Errorf("%w: question id must not be empty", ErrInvalidRubric)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: duplicate question id %q", ErrInvalidRubric, id)
		}
		seen[id] = struct{}{}
		if question.Weight < 0 || question.Weight > 1 {
			return fmt.Errorf("%w: question %q weight must be within [0,1]", ErrInvalidRubric, id)
		}
	}

	return nil
}

// Question looks up a question by id.
func (r RubricVersion) Question(id string) (RubricQuestion, bool) {
	for _, question := range r.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return RubricQuestion{}, false
}

// InScale reports whether score lies within the scale bounds.
func (r RubricVersion) InScale(score int) bool {
	return score >= r.ScaleMin && score <= r.ScaleMax
}

// OnStep reports whether score is aligned to the scale step from ScaleMin.
func (r RubricVersion) OnStep(score int) bool {
	if r.ScaleStep <= 0 {
		return false
	}
	return (score-r.ScaleMin)%r.ScaleStep == 0
}

package service

import (
	"fmt"

	"github.com/noah-isme/inform-api/internal/models"
)

// VisibilityState is everything the policy engine needs to decide what a
// non-admin member may see for one submission.
type VisibilityState struct {
	Policy             models.VisibilityPolicy
	MinReviewsRequired int
	ReviewsCount       int
	ViewerSubmitted    bool
}

// CanSeeOthersReviews decides whether peer reviews are revealed. Privileged
// overrides are applied by the caller before this is consulted.
func CanSeeOthersReviews(state VisibilityState) (bool, error) {
	switch state.Policy.Mode {
	case models.VisibilityRevealAfterMeSubmit:
		return state.ViewerSubmitted, nil
	case models.VisibilityRevealAfterMinReviews, models.VisibilityAveragesOnlyUntilLock:
		return state.ReviewsCount >= minReviews(state.MinReviewsRequired), nil
	case models.VisibilityNever:
		return false, nil
	default:
		return false, fmt.Errorf("unknown visibility mode %q", state.Policy.Mode)
	}
}

// CanSeeAggregates decides whether aggregate statistics are revealed.
// AVERAGES_ONLY_UNTIL_LOCK always reveals them; every other mode follows the
// individual review rule.
func CanSeeAggregates(state VisibilityState) (bool, error) {
	switch state.Policy.Mode {
	case models.VisibilityAveragesOnlyUntilLock:
		return true, nil
	case models.VisibilityRevealAfterMeSubmit, models.VisibilityRevealAfterMinReviews, models.VisibilityNever:
		return CanSeeOthersReviews(state)
	default:
		return false, fmt.Errorf("unknown visibility mode %q", state.Policy.Mode)
	}
}

func minReviews(value int) int {
	if value < 1 {
		return 1
	}
	return value
}

// Visibility is the full decision for one viewer and submission.
type Visibility struct {
	CanSeeOthers     bool
	CanSeeAggregates bool
}

// decideVisibility applies the membership and admin overrides before the
// policy engine.
func decideVisibility(access Access, state VisibilityState) (Visibility, error) {
	if access.IsAdmin() {
		return Visibility{CanSeeOthers: true, CanSeeAggregates: true}, nil
	}
	if !access.IsMember {
		return Visibility{}, nil
	}

	others, err := CanSeeOthersReviews(state)
	if err != nil {
		return Visibility{}, err
	}
	aggregates, err := CanSeeAggregates(state)
	if err != nil {
		return Visibility{}, err
	}
	return Visibility{CanSeeOthers: others, CanSeeAggregates: aggregates}, nil
}

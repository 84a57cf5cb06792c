package service

import (
	"time"

	"github.com/noah-isme/inform-api/internal/models"
	"github.com/noah-isme/inform-api/internal/repository"
)

// ComputeComposite pools every reviewer's scores per question and returns the
// weighted mean. Questions a reviewer left unscored are skipped rather than
// counted as zero. A nil result means no weight was contributed.
func ComputeComposite(questions []models.RubricQuestion, scoreSets []models.ScoreSet) *float64 {
	var totalWeightedScore, totalWeight float64

	for _, scores := range scoreSets {
		for _, question := range questions {
			score, ok := scores[question.ID]
			if !ok {
				continue
			}
			totalWeightedScore += float64(score) * question.Weight
			totalWeight += question.Weight
		}
	}

	if totalWeight <= 0 {
		return nil
	}

	composite := totalWeightedScore / totalWeight
	return &composite
}

// buildAggregate derives the aggregate and status from durable state. It is a
// pure function of the snapshot apart from the supplied timestamp.
func buildAggregate(snapshot repository.AggregateSnapshot, now time.Time) (models.SubmissionAggregate, models.SubmissionStatus) {
	scoreSets := make([]models.ScoreSet, 0, len(snapshot.Reviews))
	count := 0
	for _, review := range snapshot.Reviews {
		if !review.IsSubmitted() {
			continue
		}
		count++
		if revision, ok := review.LatestRevision(); ok {
			scoreSets = append(scoreSets, revision.ScoreSet())
		}
	}

	lastReviewAt := now
	aggregate := models.SubmissionAggregate{
		SubmissionID:   snapshot.Submission.ID,
		ReviewsCount:   count,
		CompositeScore: ComputeComposite(snapshot.Submission.RubricVersion.Questions, scoreSets),
		LastReviewAt:   &lastReviewAt,
	}

	return aggregate, models.DeriveSubmissionStatus(count, snapshot.Submission.Form.MinReviewsRequired)
}

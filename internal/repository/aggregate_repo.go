package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/inform-api/internal/models"
)

// AggregateSnapshot is the durable state an aggregate is derived from.
type AggregateSnapshot struct {
	Submission models.Submission
	Reviews    []models.Review
}

// AggregateComputer derives the aggregate and status from a snapshot.
type AggregateComputer func(snapshot AggregateSnapshot) (models.SubmissionAggregate, models.SubmissionStatus, error)

// AggregateRepository reads and rewrites submission aggregates.
type AggregateRepository interface {
	Get(ctx context.Context, submissionID uint) (models.SubmissionAggregate, error)
	Recompute(ctx context.Context, submissionID uint, compute AggregateComputer) (models.SubmissionAggregate, models.SubmissionStatus, error)
	SubmissionIDsByForm(ctx context.Context, formID uint) ([]uint, error)
}

type aggregateRepository struct {
	db *gorm.DB
}

// NewAggregateRepository constructs the aggregate repository.
func NewAggregateRepository(db *gorm.DB) AggregateRepository {
	return &aggregateRepository{db: db}
}

func (r *aggregateRepository) Get(ctx context.Context, submissionID uint) (models.SubmissionAggregate, error) {
	var aggregate models.SubmissionAggregate
	if err := r.db.WithContext(ctx).Where("submission_id = ?", submissionID).First(&aggregate).Error; err != nil {
		return models.SubmissionAggregate{}, err
	}
	return aggregate, nil
}

// Recompute reads the submitted reviews and overwrites the aggregate and the
// submission status inside one transaction holding the submission row lock,
// so a slower recompute can never overwrite a newer one.
func (r *aggregateRepository) Recompute(ctx context.Context, submissionID uint, compute AggregateComputer) (models.SubmissionAggregate, models.SubmissionStatus, error) {
	var (
		aggregate models.SubmissionAggregate
		status    models.SubmissionStatus
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var submission models.Submission
		if err := forUpdate(tx).First(&submission, submissionID).Error; err != nil {
			return err
		}
		if err := tx.First(&submission.Form, submission.FormID).Error; err != nil {
			return err
		}
		if err := tx.First(&submission.RubricVersion, submission.RubricVersionID).Error; err != nil {
			return err
		}

		reviews, err := listSubmittedReviews(tx, submissionID)
		if err != nil {
			return err
		}

		aggregate, status, err = compute(AggregateSnapshot{Submission: submission, Reviews: reviews})
		if err != nil {
			return err
		}
		aggregate.ID = 0
		aggregate.SubmissionID = submissionID

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"reviews_count", "composite_score", "last_review_at", "updated_at"}),
		}).Create(&aggregate).Error; err != nil {
			return err
		}

		if err := tx.Where("submission_id = ?", submissionID).First(&aggregate).Error; err != nil {
			return err
		}

		if submission.Status != status {
			return tx.Model(&models.Submission{}).Where("id = ?", submissionID).Update("status", status).Error
		}
		return nil
	})
	if err != nil {
		return models.SubmissionAggregate{}, "", err
	}

	return aggregate, status, nil
}

func (r *aggregateRepository) SubmissionIDsByForm(ctx context.Context, formID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Submission{}).Where("form_id = ?", formID).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

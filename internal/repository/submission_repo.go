package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/models"
)

// SubmissionFilter allows narrowing submission queries.
type SubmissionFilter struct {
	FormID         uint
	Status         models.SubmissionStatus
	SubmitterEmail string
	MinScore       *float64
	MaxScore       *float64
	Cursor         uint
	Limit          int
}

// ReviewQueueFilter selects the submissions still waiting for a reviewer.
type ReviewQueueFilter struct {
	OrgID          uint
	ReviewerUserID string
	Offset         int
	Limit          int
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	CreateWithAggregate(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, uint, error)
	ListByForm(ctx context.Context, formID uint) ([]models.Submission, error)
	ReviewQueue(ctx context.Context, filter ReviewQueueFilter) ([]models.Submission, bool, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

// CreateWithAggregate stores the submission and its empty aggregate atomically.
func (r *submissionRepository) CreateWithAggregate(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if submission.Status == "" {
			submission.Status = models.SubmissionStatusUngraded
		}
		if err := tx.Omit("Form", "FormVersion", "RubricVersion", "Aggregate").Create(submission).Error; err != nil {
			return err
		}

		aggregate := models.SubmissionAggregate{SubmissionID: submission.ID}
		if err := tx.Create(&aggregate).Error; err != nil {
			return translateConflict(err)
		}
		submission.Aggregate = &aggregate
		return nil
	})
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Preload("Form").
		Preload("FormVersion").
		Preload("RubricVersion").
		Preload("Aggregate").
		First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

// List returns one page of submissions, newest first, and the cursor of the
// next page (zero when exhausted).
func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, uint, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Select("submissions.*").
		Preload("Aggregate").
		Where("submissions.form_id = ?", filter.FormID)

	if filter.Status != "" {
		query = query.Where("submissions.status = ?", filter.Status)
	}
	if filter.SubmitterEmail != "" {
		query = query.Where("LOWER(submissions.submitter_email) = LOWER(?)", filter.SubmitterEmail)
	}
	if filter.MinScore != nil || filter.MaxScore != nil {
		query = query.Joins("JOIN submission_aggregates ON submission_aggregates.submission_id = submissions.id")
		if filter.MinScore != nil {
			query = query.Where("submission_aggregates.composite_score >= ?", *filter.MinScore)
		}
		if filter.MaxScore != nil {
			query = query.Where("submission_aggregates.composite_score <= ?", *filter.MaxScore)
		}
	}
	if filter.Cursor > 0 {
		query = query.Where("submissions.id < ?", filter.Cursor)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var submissions []models.Submission
	if err := query.Order("submissions.id DESC").Limit(limit + 1).Find(&submissions).Error; err != nil {
		return nil, 0, err
	}

	var next uint
	if len(submissions) > limit {
		submissions = submissions[:limit]
		next = submissions[len(submissions)-1].ID
	}
	return submissions, next, nil
}

func (r *submissionRepository) ListByForm(ctx context.Context, formID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Preload("Aggregate").
		Where("form_id = ?", formID).
		Order("id ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

// ReviewQueue lists submissions of open forms the reviewer has not submitted
// a review for, least reviewed first. The bool reports whether more remain.
func (r *submissionRepository) ReviewQueue(ctx context.Context, filter ReviewQueueFilter) ([]models.Submission, bool, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Select("submissions.*").
		Preload("Aggregate").
		Preload("Form").
		Joins("JOIN forms ON forms.id = submissions.form_id").
		Joins("LEFT JOIN submission_aggregates ON submission_aggregates.submission_id = submissions.id").
		Where("submissions.org_id = ? AND forms.status = ?", filter.OrgID, models.FormStatusOpen).
		Where("NOT EXISTS (SELECT 1 FROM reviews WHERE reviews.submission_id = submissions.id AND reviews.reviewer_user_id = ? AND reviews.submitted_at IS NOT NULL)", filter.ReviewerUserID).
		Order("COALESCE(submission_aggregates.reviews_count, 0) ASC").
		Order("submissions.submitted_at DESC").
		Order("submissions.id DESC").
		Offset(offset).
		Limit(limit + 1).
		Find(&submissions).Error
	if err != nil {
		return nil, false, err
	}

	more := len(submissions) > limit
	if more {
		submissions = submissions[:limit]
	}
	return submissions, more, nil
}

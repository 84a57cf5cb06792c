package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/models"
)

// RevisionGuard inspects the locked review before a revision is appended.
// Returning false skips the write without failing.
type RevisionGuard func(current models.Review) (bool, error)

// ReviewRepository stores reviews and their append-only revisions.
type ReviewRepository interface {
	FindBySubmissionAndReviewer(ctx context.Context, submissionID uint, reviewerUserID string) (models.Review, error)
	Create(ctx context.Context, review *models.Review) error
	SaveRevision(ctx context.Context, reviewID uint, revision *models.ReviewRevision, submitAt *time.Time, guard RevisionGuard) (models.Review, bool, error)
	ListSubmitted(ctx context.Context, submissionIDs ...uint) ([]models.Review, error)
	CountRevisions(ctx context.Context, reviewID uint) (int64, error)
}

type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository constructs a review repository.
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

// FindBySubmissionAndReviewer loads the reviewer's review with its latest revision.
func (r *reviewRepository) FindBySubmissionAndReviewer(ctx context.Context, submissionID uint, reviewerUserID string) (models.Review, error) {
	var review models.Review
	err := r.db.WithContext(ctx).
		Where("submission_id = ? AND reviewer_user_id = ?", submissionID, reviewerUserID).
		First(&review).Error
	if err != nil {
		return models.Review{}, err
	}

	reviews := []models.Review{review}
	if err := attachLatestRevisions(r.db.WithContext(ctx), reviews); err != nil {
		return models.Review{}, err
	}
	return reviews[0], nil
}

// Create inserts a new review and reports ErrConflict when the reviewer
// already owns one for the submission.
func (r *reviewRepository) Create(ctx context.Context, review *models.Review) error {
	return translateConflict(r.db.WithContext(ctx).Omit("Submission", "Revisions").Create(review).Error)
}

// SaveRevision locks the review, lets guard veto the write, appends the
// revision and stamps submitted_at at most once. The returned bool reports
// whether a revision was written.
func (r *reviewRepository) SaveRevision(ctx context.Context, reviewID uint, revision *models.ReviewRevision, submitAt *time.Time, guard RevisionGuard) (models.Review, bool, error) {
	var (
		review  models.Review
		written bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&review, reviewID).Error; err != nil {
			return err
		}

		current := []models.Review{review}
		if err := attachLatestRevisions(tx, current); err != nil {
			return err
		}
		review = current[0]

		if guard != nil {
			proceed, err := guard(review)
			if err != nil {
				return err
			}
			if !proceed {
				return nil
			}
		}

		revision.ID = 0
		revision.ReviewID = review.ID
		if err := tx.Create(revision).Error; err != nil {
			return err
		}
		written = true
		review.Revisions = []models.ReviewRevision{*revision}

		if submitAt != nil && review.SubmittedAt == nil {
			result := tx.Model(&models.Review{}).
				Where("id = ? AND submitted_at IS NULL", review.ID).
				Updates(map[string]interface{}{"submitted_at": *submitAt, "updated_at": *submitAt})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 1 {
				stamped := *submitAt
				review.SubmittedAt = &stamped
			}
		}
		return nil
	})
	if err != nil {
		return models.Review{}, false, err
	}

	return review, written, nil
}

// ListSubmitted returns the submitted reviews of the given submissions, each
// carrying only its latest revision.
func (r *reviewRepository) ListSubmitted(ctx context.Context, submissionIDs ...uint) ([]models.Review, error) {
	return listSubmittedReviews(r.db.WithContext(ctx), submissionIDs...)
}

func (r *reviewRepository) CountRevisions(ctx context.Context, reviewID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ReviewRevision{}).Where("review_id = ?", reviewID).Count(&count).Error
	return count, err
}

func listSubmittedReviews(db *gorm.DB, submissionIDs ...uint) ([]models.Review, error) {
	if len(submissionIDs) == 0 {
		return nil, nil
	}

	var reviews []models.Review
	if err := db.
		Where("submission_id IN ? AND submitted_at IS NOT NULL", submissionIDs).
		Order("submitted_at ASC").
		Order("id ASC").
		Find(&reviews).Error; err != nil {
		return nil, err
	}

	if err := attachLatestRevisions(db, reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// attachLatestRevisions sets Revisions of every review to its single
// authoritative revision: latest created_at, ties to the highest id.
func attachLatestRevisions(db *gorm.DB, reviews []models.Review) error {
	if len(reviews) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(reviews))
	for _, review := range reviews {
		ids = append(ids, review.ID)
	}

	var revisions []models.ReviewRevision
	if err := db.
		Where("review_id IN ?", ids).
		Order("review_id ASC").
		Order("created_at DESC").
		Order("id DESC").
		Find(&revisions).Error; err != nil {
		return err
	}

	latest := make(map[uint]models.ReviewRevision, len(reviews))
	for _, revision := range revisions {
		if _, ok := latest[revision.ReviewID]; !ok {
			latest[revision.ReviewID] = revision
		}
	}

	for i := range reviews {
		reviews[i].Revisions = nil
		if revision, ok := latest[reviews[i].ID]; ok {
			reviews[i].Revisions = []models.ReviewRevision{revision}
		}
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/inform-api/internal/models"
)

func newRevision(at time.Time, scores models.ScoreSet) *models.ReviewRevision {
	return &models.ReviewRevision{Scores: datatypes.NewJSONType(scores), CreatedAt: at}
}

func TestReviewRepositoryCreateRejectsDuplicatePair(t *testing.T) {
	db := setupTestDB(t)
	fx := seedFixture(t, db, "dup")
	repo := NewReviewRepository(db)
	ctx := context.Background()

	first := models.Review{SubmissionID: fx.submission.ID, ReviewerUserID: "rev-1"}
	require.NoError(t, repo.Create(ctx, &first))

	second := models.Review{SubmissionID: fx.submission.ID, ReviewerUserID: "rev-1"}
	err := repo.Create(ctx, &second)
	require.True(t, errors.Is(err, ErrConflict), "got %v", err)

	var count int64
	require.NoError(t, db.Model(&models.Review{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestReviewRepositorySaveRevisionStampsSubmittedOnce(t *testing.T) {
	db := setupTestDB(t)
	fx := seedFixture(t, db, "stamp")
	repo := NewReviewRepository(db)
	ctx := context.Background()

	review := models.Review{SubmissionID: fx.submission.ID, ReviewerUserID: "rev-1"}
	require.NoError(t, repo.Create(ctx, &review))

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	saved, written, err := repo.SaveRevision(ctx, review.ID, newRevision(base, models.ScoreSet{"q1": 2}), nil, nil)
	require.NoError(t, err)
	require.True(t, written)
	require.Nil(t, saved.SubmittedAt)

	submitAt := base.Add(time.Hour)
	saved, written, err = repo.SaveRevision(ctx, review.ID, newRevision(submitAt, models.ScoreSet{"q1": 4}), &submitAt, nil)
	require.NoError(t, err)
	require.True(t, written)
	require.NotNil(t, saved.SubmittedAt)
	require.True(t, saved.SubmittedAt.Equal(submitAt))

	later := submitAt.Add(time.Hour)
	saved, _, err = repo.SaveRevision(ctx, review.ID, newRevision(later, models.ScoreSet{"q1": 5}), &later, nil)
	require.NoError(t, err)
	require.True(t, saved.SubmittedAt.Equal(submitAt), "submitted_at must never move")

	count, err := repo.CountRevisions(ctx, review.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
}

func TestReviewRepositoryGuardCanSkipOrFail(t *testing.T) {
	db := setupTestDB(t)
	fx := seedFixture(t, db, "guard")
	repo := NewReviewRepository(db)
	ctx := context.Background()

	review := models.Review{SubmissionID: fx.submission.ID, ReviewerUserID: "rev-1"}
	require.NoError(t, repo.Create(ctx, &review))

	skip := func(models.Review) (bool, error) { return false, nil }
	_, written, err := repo.SaveRevision(ctx, review.ID, newRevision(time.Now(), models.ScoreSet{"q1": 1}), nil, skip)
	require.NoError(t, err)
	require.False(t, written)

	boom := errors.New("boom")
	fail := func(models.Review) (bool, error) { return false, boom }
	_, _, err = repo.SaveRevision(ctx, review.ID, newRevision(time.Now(), models.ScoreSet{"q1": 1}), nil, fail)
	require.ErrorIs(t, err, boom)

	count, err := repo.CountRevisions(ctx, review.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestReviewRepositoryLatestRevisionTieGoesToLastInsert(t *testing.T) {
	db := setupTestDB(t)
	fx := seedFixture(t, db, "tie")
	repo := NewReviewRepository(db)
	ctx := context.Background()

	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	review := models.Review{SubmissionID: fx.submission.ID, ReviewerUserID: "rev-1", SubmittedAt: &at}
	require.NoError(t, repo.Create(ctx, &review))

	require.NoError(t, db.Create(&models.ReviewRevision{ReviewID: review.ID, Scores: datatypes.NewJSONType(models.ScoreSet{"q1": 1}), CreatedAt: at}).Error)
	require.NoError(t, db.Create(&models.ReviewRevision{ReviewID: review.ID, Scores: datatypes.NewJSONType(models.ScoreSet{"q1": 3}), CreatedAt: at}).Error)
	require.NoError(t, db.Create(&models.ReviewRevision{ReviewID: review.ID, Scores: datatypes.NewJSONType(models.ScoreSet{"q1": 5}), CreatedAt: at.Add(-time.Minute)}).Error)

	found, err := repo.FindBySubmissionAndReviewer(ctx, fx.submission.ID, "rev-1")
	require.NoError(t, err)
	latest, ok := found.LatestRevision()
	require.True(t, ok)
	require.Equal(t, 3, latest.ScoreSet()["q1"])

	submitted, err := repo.ListSubmitted(ctx, fx.submission.ID)
	require.NoError(t, err)
	require.Len(t, submitted, 1)
	require.Len(t, submitted[0].Revisions, 1)
	require.Equal(t, 3, submitted[0].Revisions[0].ScoreSet()["q1"])
}

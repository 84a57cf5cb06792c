package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/inform-api/internal/dto"
	"github.com/noah-isme/inform-api/internal/models"
	"github.com/noah-isme/inform-api/internal/repository"
)

func TestAggregationServiceCachesAndInvalidates(t *testing.T) {
	h := newHarness(t, models.VisibilityAveragesOnlyUntilLock, 1)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewAggregationService(h.aggregates, client, time.Minute, testLogger())
	key := aggregateCacheKey(h.submission.ID, 0)

	first, err := svc.GetAggregate(ctx, h.submission.ID)
	require.NoError(t, err)
	require.Zero(t, first.ReviewsCount)
	require.True(t, mr.Exists(key))

	alice := h.member(t, "alice", models.RoleReviewer)
	reviews := NewReviewService(h.submissions, h.reviews, h.memberships, svc, nil, testValidator(), testLogger())
	_, err = reviews.Submit(ctx, alice, h.submission.ID, models.ScoreSet{"q1": 4, "q2": 4, "q3": 4}, nil)
	require.NoError(t, err)
	generation, err := mr.Get(aggregateGenerationKey(h.submission.ID))
	require.NoError(t, err)
	require.Equal(t, "1", generation, "recompute moves the aggregate to a new cache generation")

	second, err := svc.GetAggregate(ctx, h.submission.ID)
	require.NoError(t, err)
	require.Equal(t, 1, second.ReviewsCount)
	require.InDelta(t, 4.0, *second.CompositeScore, 1e-9)
	require.True(t, mr.Exists(aggregateCacheKey(h.submission.ID, 1)))
}

// pausingAggregateRepository holds Get after the database read until release
// is closed.
type pausingAggregateRepository struct {
	repository.AggregateRepository
	loaded  chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *pausingAggregateRepository) Get(ctx context.Context, submissionID uint) (models.SubmissionAggregate, error) {
	aggregate, err := r.AggregateRepository.Get(ctx, submissionID)
	r.once.Do(func() {
		close(r.loaded)
		<-r.release
	})
	return aggregate, err
}

func TestAggregationServiceCacheFillRacingRecompute(t *testing.T) {
	h := newHarness(t, models.VisibilityAveragesOnlyUntilLock, 1)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &pausingAggregateRepository{
		AggregateRepository: h.aggregates,
		loaded:              make(chan struct{}),
		release:             make(chan struct{}),
	}
	svc := NewAggregationService(repo, client, time.Minute, testLogger())
	reviews := NewReviewService(h.submissions, h.reviews, h.memberships, svc, nil, testValidator(), testLogger())
	alice := h.member(t, "alice", models.RoleReviewer)

	type result struct {
		aggregate *dto.AggregateResponse
		err       error
	}
	done := make(chan result, 1)
	go func() {
		aggregate, err := svc.GetAggregate(ctx, h.submission.ID)
		done <- result{aggregate, err}
	}()

	<-repo.loaded
	_, err := reviews.Submit(ctx, alice, h.submission.ID, models.ScoreSet{"q1": 4, "q2": 4, "q3": 4}, nil)
	require.NoError(t, err)
	close(repo.release)

	stale := <-done
	require.NoError(t, stale.err)
	require.Zero(t, stale.aggregate.ReviewsCount)

	fresh, err := svc.GetAggregate(ctx, h.submission.ID)
	require.NoError(t, err)
	require.Equal(t, 1, fresh.ReviewsCount)
	require.InDelta(t, 4.0, *fresh.CompositeScore, 1e-9)

	cached, err := svc.GetAggregate(ctx, h.submission.ID)
	require.NoError(t, err)
	require.Equal(t, 1, cached.ReviewsCount)
}

func TestAggregationServiceRecomputeForm(t *testing.T) {
	h := newHarness(t, models.VisibilityRevealAfterMeSubmit, 1)
	ctx := context.Background()

	extra := models.Submission{OrgID: h.org.ID, FormID: h.form.ID, FormVersionID: h.submission.FormVersionID, RubricVersionID: h.rubric.ID, SubmitterEmail: "second@example.com", SubmittedAt: time.Now().UTC()}
	require.NoError(t, h.submissions.CreateWithAggregate(ctx, &extra))

	alice := h.member(t, "alice", models.RoleReviewer)
	_, err := h.reviewSvc.Submit(ctx, alice, extra.ID, models.ScoreSet{"q1": 2}, nil)
	require.NoError(t, err)

	require.NoError(t, h.db.Model(&models.SubmissionAggregate{}).Where("submission_id = ?", extra.ID).Updates(map[string]interface{}{"reviews_count": 0, "composite_score": nil}).Error)

	refreshed, err := h.aggregation.RecomputeForm(ctx, h.form.ID)
	require.NoError(t, err)
	require.Equal(t, 2, refreshed)

	aggregate, err := h.aggregation.GetAggregate(ctx, extra.ID)
	require.NoError(t, err)
	require.Equal(t, 1, aggregate.ReviewsCount)
	require.InDelta(t, 2.0, *aggregate.CompositeScore, 1e-9)
}

func TestAggregationServiceUnknownSubmission(t *testing.T) {
	h := newHarness(t, models.VisibilityRevealAfterMeSubmit, 1)

	_, _, err := h.aggregation.Recompute(context.Background(), 777)
	var aggErr *AggregationError
	require.ErrorAs(t, err, &aggErr)
	require.ErrorIs(t, err, ErrSubmissionNotFound)

	missing, err := h.aggregation.GetAggregate(context.Background(), 777)
	require.NoError(t, err)
	require.Nil(t, missing)
}

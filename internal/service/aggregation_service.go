package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/dto"
	"github.com/noah-isme/inform-api/internal/models"
	"github.com/noah-isme/inform-api/internal/observability"
	"github.com/noah-isme/inform-api/internal/repository"
)

// AggregationService recomputes and serves submission aggregates.
type AggregationService interface {
	Recompute(ctx context.Context, submissionID uint) (dto.AggregateResponse, models.SubmissionStatus, error)
	RecomputeForm(ctx context.Context, formID uint) (int, error)
	GetAggregate(ctx context.Context, submissionID uint) (*dto.AggregateResponse, error)
}

type aggregationService struct {
	repo     repository.AggregateRepository
	cache    *redis.Client
	cacheTTL time.Duration
	locks    *keyedMutex
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewAggregationService constructs the aggregation engine. cache may be nil.
func NewAggregationService(repo repository.AggregateRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) AggregationService {
	return &aggregationService{
		repo:     repo,
		cache:    cache,
		cacheTTL: ttl,
		locks:    newKeyedMutex(),
		logger:   logger.With().Str("component", "aggregation_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/inform-api/internal/service/aggregation"),
		now:      time.Now,
	}
}

func aggregateGenerationKey(submissionID uint) string {
	return fmt.Sprintf("aggregate:gen:%d", submissionID)
}

// aggregateCacheKey embeds the recompute generation, so an entry filled from a
// read that raced a recompute is never visible under the current key.
func aggregateCacheKey(submissionID uint, generation int64) string {
	return fmt.Sprintf("aggregate:submission:%d:g%d", submissionID, generation)
}

// Recompute rebuilds the aggregate from every submitted review. Failures are
// wrapped in AggregationError; the call is safe to retry.
func (s *aggregationService) Recompute(ctx context.Context, submissionID uint) (dto.AggregateResponse, models.SubmissionStatus, error) {
	ctx, span := s.tracer.Start(ctx, "aggregation.recompute", trace.WithAttributes(
		attribute.Int64("aggregation.submission_id", int64(submissionID)),
	))
	defer span.End()

	unlock := s.locks.Lock(fmt.Sprintf("aggregate:%d", submissionID))
	defer unlock()

	start := time.Now()
	aggregate, status, err := s.repo.Recompute(ctx, submissionID, func(snapshot repository.AggregateSnapshot) (models.SubmissionAggregate, models.SubmissionStatus, error) {
		aggregate, status := buildAggregate(snapshot, s.now().UTC())
		return aggregate, status, nil
	})
	observability.AggregationDuration().Observe(time.Since(start).Seconds())

	if err != nil {
		observability.AggregationRuns().WithLabelValues("failure").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregation_failed")
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrSubmissionNotFound
		}
		return dto.AggregateResponse{}, "", &AggregationError{SubmissionID: submissionID, Err: err}
	}

	observability.AggregationRuns().WithLabelValues("success").Inc()
	s.invalidate(ctx, submissionID)

	span.SetAttributes(
		attribute.Int("aggregation.reviews_count", aggregate.ReviewsCount),
		attribute.String("aggregation.status", string(status)),
	)

	return dto.NewAggregateResponse(aggregate), status, nil
}

// RecomputeForm reruns the engine for every submission of a form and reports
// how many were refreshed. It stops at the first failure.
func (s *aggregationService) RecomputeForm(ctx context.Context, formID uint) (int, error) {
	ids, err := s.repo.SubmissionIDsByForm(ctx, formID)
	if err != nil {
		return 0, err
	}

	for i, id := range ids {
		if _, _, err := s.Recompute(ctx, id); err != nil {
			return i, err
		}
	}
	return len(ids), nil
}

// GetAggregate returns the stored aggregate or nil when none exists.
func (s *aggregationService) GetAggregate(ctx context.Context, submissionID uint) (*dto.AggregateResponse, error) {
	key, cacheable := s.cacheKey(ctx, submissionID)

	if cacheable {
		if cached, err := s.cache.Get(ctx, key).Result(); err == nil {
			var response dto.AggregateResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("submission_id", submissionID).Msg("aggregate cache hit")
				return &response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read aggregate cache")
		}
	}

	aggregate, err := s.repo.Get(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	response := dto.NewAggregateResponse(aggregate)
	if cacheable && s.cacheTTL > 0 {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store aggregate cache")
			}
		}
	}

	return &response, nil
}

// cacheKey resolves the cache key for the current generation. It must run
// before the database read the entry will be filled from.
func (s *aggregationService) cacheKey(ctx context.Context, submissionID uint) (string, bool) {
	if s.cache == nil {
		return "", false
	}

	generation, err := s.cache.Get(ctx, aggregateGenerationKey(submissionID)).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		generation = 0
	case err != nil:
		s.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("failed to read aggregate cache generation")
		return "", false
	}

	return aggregateCacheKey(submissionID, generation), true
}

// invalidate moves the submission to a new cache generation. Entries stored
// under older generations expire with their TTL.
func (s *aggregationService) invalidate(ctx context.Context, submissionID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Incr(ctx, aggregateGenerationKey(submissionID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("failed to invalidate aggregate cache")
	}
}

package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/dto"
	"github.com/noah-isme/inform-api/internal/models"
	"github.com/noah-isme/inform-api/internal/repository"
)

// ReviewQueryService assembles the visibility-filtered view of reviews.
type ReviewQueryService interface {
	GetVisibleReviews(ctx context.Context, viewer Viewer, submissionID uint) (dto.VisibleReviewsResponse, error)
	GetAggregate(ctx context.Context, viewer Viewer, submissionID uint) (*dto.AggregateResponse, error)
}

type reviewQueryService struct {
	submissions repository.SubmissionRepository
	reviews     repository.ReviewRepository
	access      accessResolver
	aggregation AggregationService
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewReviewQueryService constructs the query facade.
func NewReviewQueryService(submissions repository.SubmissionRepository, reviews repository.ReviewRepository, memberships repository.MembershipRepository, aggregation AggregationService, logger zerolog.Logger) ReviewQueryService {
	return &reviewQueryService{
		submissions: submissions,
		reviews:     reviews,
		access:      newAccessResolver(memberships),
		aggregation: aggregation,
		logger:      logger.With().Str("component", "review_query_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/inform-api/internal/service/review_query"),
	}
}

func (s *reviewQueryService) GetVisibleReviews(ctx context.Context, viewer Viewer, submissionID uint) (dto.VisibleReviewsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "review.visible", trace.WithAttributes(
		attribute.Int64("review.submission_id", int64(submissionID)),
		attribute.String("review.viewer_id", viewer.UserID),
	))
	defer span.End()

	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.VisibleReviewsResponse{}, err
	}

	response, err := s.visibleFor(ctx, viewer, submission)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "visibility_failed")
		return dto.VisibleReviewsResponse{}, err
	}

	span.SetAttributes(
		attribute.Bool("review.can_see_others", response.CanSeeOthers),
		attribute.Int("review.others", len(response.Others)),
	)
	return response, nil
}

// GetAggregate returns the aggregate when the viewer may see aggregates.
func (s *reviewQueryService) GetAggregate(ctx context.Context, viewer Viewer, submissionID uint) (*dto.AggregateResponse, error) {
	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	view, err := s.visibleFor(ctx, viewer, submission)
	if err != nil {
		return nil, err
	}
	if !view.CanSeeAggregates {
		return nil, ErrForbidden
	}
	return view.Aggregate, nil
}

func (s *reviewQueryService) loadSubmission(ctx context.Context, submissionID uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}
	return submission, nil
}

// visibleFor evaluates privileges first, then the form's current policy.
// Drafts of other reviewers are never returned.
func (s *reviewQueryService) visibleFor(ctx context.Context, viewer Viewer, submission models.Submission) (dto.VisibleReviewsResponse, error) {
	access, err := s.access.requireRead(ctx, viewer, submission.OrgID)
	if err != nil {
		return dto.VisibleReviewsResponse{}, err
	}

	response := dto.VisibleReviewsResponse{Others: []dto.ReviewResponse{}}

	mine, err := s.reviews.FindBySubmissionAndReviewer(ctx, submission.ID, viewer.UserID)
	switch {
	case err == nil:
		own := dto.NewReviewResponse(mine)
		response.MyReview = &own
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return dto.VisibleReviewsResponse{}, err
	}

	reviewsCount := 0
	if submission.Aggregate != nil {
		reviewsCount = submission.Aggregate.ReviewsCount
	}

	visibility, err := decideVisibility(access, VisibilityState{
		Policy:             submission.Form.Policy(),
		MinReviewsRequired: submission.Form.MinReviewsRequired,
		ReviewsCount:       reviewsCount,
		ViewerSubmitted:    mine.IsSubmitted(),
	})
	if err != nil {
		return dto.VisibleReviewsResponse{}, err
	}
	response.CanSeeOthers = visibility.CanSeeOthers
	response.CanSeeAggregates = visibility.CanSeeAggregates

	if visibility.CanSeeOthers {
		submitted, err := s.reviews.ListSubmitted(ctx, submission.ID)
		if err != nil {
			return dto.VisibleReviewsResponse{}, err
		}
		for _, review := range submitted {
			if review.ReviewerUserID == viewer.UserID {
				continue
			}
			response.Others = append(response.Others, dto.NewReviewResponse(review))
		}
	}

	if visibility.CanSeeAggregates {
		aggregate, err := s.aggregation.GetAggregate(ctx, submission.ID)
		if err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to load aggregate")
		} else {
			response.Aggregate = aggregate
		}
	}

	return response, nil
}

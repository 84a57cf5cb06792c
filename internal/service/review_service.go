package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/dto"
	"github.com/noah-isme/inform-api/internal/models"
	"github.com/noah-isme/inform-api/internal/observability"
	"github.com/noah-isme/inform-api/internal/repository"
)

// ReviewService stores reviewer scores and triggers aggregation on submit.
type ReviewService interface {
	SubmitReview(ctx context.Context, viewer Viewer, submissionID uint, payload dto.ReviewSaveRequest) (dto.ReviewSaveResponse, error)
	UpsertDraft(ctx context.Context, viewer Viewer, submissionID uint, scores models.ScoreSet, comment *string) (dto.ReviewSaveResponse, error)
	Submit(ctx context.Context, viewer Viewer, submissionID uint, scores models.ScoreSet, comment *string) (dto.ReviewSaveResponse, error)
}

type reviewService struct {
	submissions repository.SubmissionRepository
	reviews     repository.ReviewRepository
	access      accessResolver
	aggregation AggregationService
	events      EventRecorder
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	locks       *keyedMutex
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewReviewService constructs the review service. events may be nil.
func NewReviewService(submissions repository.SubmissionRepository, reviews repository.ReviewRepository, memberships repository.MembershipRepository, aggregation AggregationService, events EventRecorder, validate *validator.Validate, logger zerolog.Logger) ReviewService {
	return &reviewService{
		submissions: submissions,
		reviews:     reviews,
		access:      newAccessResolver(memberships),
		aggregation: aggregation,
		events:      events,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		locks:       newKeyedMutex(),
		logger:      logger.With().Str("component", "review_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/inform-api/internal/service/review"),
		now:         time.Now,
	}
}

func (s *reviewService) SubmitReview(ctx context.Context, viewer Viewer, submissionID uint, payload dto.ReviewSaveRequest) (dto.ReviewSaveResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ReviewSaveResponse{}, invalidPayload("%s", err.Error())
	}
	return s.save(ctx, viewer, submissionID, models.ScoreSet(payload.Scores), payload.Comment, payload.Submit)
}

func (s *reviewService) UpsertDraft(ctx context.Context, viewer Viewer, submissionID uint, scores models.ScoreSet, comment *string) (dto.ReviewSaveResponse, error) {
	return s.save(ctx, viewer, submissionID, scores, comment, false)
}

func (s *reviewService) Submit(ctx context.Context, viewer Viewer, submissionID uint, scores models.ScoreSet, comment *string) (dto.ReviewSaveResponse, error) {
	return s.save(ctx, viewer, submissionID, scores, comment, true)
}

func (s *reviewService) save(ctx context.Context, viewer Viewer, submissionID uint, scores models.ScoreSet, comment *string, submit bool) (dto.ReviewSaveResponse, error) {
	kind := "draft"
	if submit {
		kind = "submit"
	}

	ctx, span := s.tracer.Start(ctx, "review.save", trace.WithAttributes(
		attribute.Int64("review.submission_id", int64(submissionID)),
		attribute.String("review.reviewer_id", viewer.UserID),
		attribute.String("review.kind", kind),
	))
	defer span.End()

	fail := func(err error, status string) (dto.ReviewSaveResponse, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		return dto.ReviewSaveResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(ErrSubmissionNotFound, "submission_not_found")
		}
		return fail(err, "submission_lookup_failed")
	}

	if _, err := s.access.requireReviewer(ctx, viewer, submission.OrgID); err != nil {
		return fail(err, "forbidden")
	}

	if submission.RubricVersion.ID == 0 {
		return fail(ErrRubricVersionNotFound, "rubric_missing")
	}
	if err := validateScores(submission.RubricVersion, scores); err != nil {
		return fail(err, "validation_failed")
	}

	comment = s.cleanComment(comment)

	unlock := s.locks.Lock(fmt.Sprintf("review:%d:%s", submissionID, viewer.UserID))
	defer unlock()

	review, err := s.findOrCreate(ctx, submissionID, viewer.UserID)
	if err != nil {
		return fail(err, "review_lookup_failed")
	}

	now := s.now().UTC()
	revision := models.ReviewRevision{
		Scores:      datatypes.NewJSONType(scores),
		CommentText: comment,
		CreatedAt:   now,
	}
	var submitAt *time.Time
	if submit {
		submitAt = &now
	}

	saved, written, err := s.reviews.SaveRevision(ctx, review.ID, &revision, submitAt, func(current models.Review) (bool, error) {
		if !current.IsSubmitted() {
			return true, nil
		}
		if submit && sameRevision(current, scores, comment) {
			return false, nil
		}
		return false, ErrAlreadySubmitted
	})
	if err != nil {
		if errors.Is(err, ErrAlreadySubmitted) {
			return fail(err, "already_submitted")
		}
		return fail(err, "revision_save_failed")
	}

	if written {
		observability.ReviewsSaved().WithLabelValues(kind).Inc()
	}
	span.SetAttributes(attribute.Bool("review.idempotent", !written))

	response := dto.ReviewSaveResponse{
		Review:   dto.NewReviewResponse(saved),
		Warnings: []string{},
	}

	if !submit {
		return response, nil
	}

	aggregate, status, err := s.aggregation.Recompute(ctx, submissionID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("aggregate recompute failed after review submit")
		span.RecordError(err)
		response.Warnings = append(response.Warnings, "aggregate refresh failed; it will be recomputed later")
	} else {
		response.Aggregate = &aggregate
		response.Status = string(status)
	}

	if written && s.events != nil {
		if err := s.events.Record(ctx, submission.OrgID, models.EventReviewSubmitted, map[string]interface{}{
			"submission_id": submissionID,
			"review_id":     saved.ID,
			"reviewer_id":   viewer.UserID,
		}); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("failed to record review event")
		}
	}

	return response, nil
}

// findOrCreate returns the reviewer's review, creating it on first save. A
// lost insert race is resolved by reading the winner's row.
func (s *reviewService) findOrCreate(ctx context.Context, submissionID uint, reviewerID string) (models.Review, error) {
	review, err := s.reviews.FindBySubmissionAndReviewer(ctx, submissionID, reviewerID)
	if err == nil {
		return review, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Review{}, err
	}

	review = models.Review{SubmissionID: submissionID, ReviewerUserID: reviewerID}
	err = s.reviews.Create(ctx, &review)
	if err == nil {
		return review, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return models.Review{}, err
	}

	s.logger.Debug().Uint("submission_id", submissionID).Str("reviewer_id", reviewerID).Msg("review create raced; reading existing row")
	return s.reviews.FindBySubmissionAndReviewer(ctx, submissionID, reviewerID)
}

func (s *reviewService) cleanComment(comment *string) *string {
	if comment == nil {
		return nil
	}
	cleaned := strings.TrimSpace(s.sanitizer.Sanitize(*comment))
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func sameRevision(review models.Review, scores models.ScoreSet, comment *string) bool {
	latest, ok := review.LatestRevision()
	if !ok {
		return false
	}
	if !latest.ScoreSet().Equal(scores) {
		return false
	}
	switch {
	case latest.CommentText == nil && comment == nil:
		return true
	case latest.CommentText == nil || comment == nil:
		return false
	default:
		return *latest.CommentText == *comment
	}
}

// validateScores checks a score payload against the rubric pinned to the
// submission. Values are never clamped.
func validateScores(rubric models.RubricVersion, scores models.ScoreSet) error {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		score := scores[id]
		if _, ok := rubric.Question(id); !ok {
			return invalidQuestion(id, "unknown question")
		}
		if !rubric.InScale(score) {
			return invalidQuestion(id, "score %d outside scale [%d, %d]", score, rubric.ScaleMin, rubric.ScaleMax)
		}
		if !rubric.OnStep(score) {
			return invalidQuestion(id, "score %d is not a multiple of step %d from %d", score, rubric.ScaleStep, rubric.ScaleMin)
		}
	}

	for _, question := range rubric.Questions {
		if !question.Required {
			continue
		}
		if _, ok := scores[question.ID]; !ok {
			return invalidQuestion(question.ID, "required question missing")
		}
	}

	return nil
}

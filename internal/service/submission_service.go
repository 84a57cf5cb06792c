package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/dto"
	"github.com/noah-isme/inform-api/internal/models"
	"github.com/noah-isme/inform-api/internal/repository"
)

const maxPageSize = 100

// SubmissionService lets organization members browse submissions.
type SubmissionService interface {
	List(ctx context.Context, viewer Viewer, formID uint, req dto.SubmissionListRequest) (dto.SubmissionListResponse, error)
	Get(ctx context.Context, viewer Viewer, submissionID uint) (dto.SubmissionDetailResponse, error)
	ReviewQueue(ctx context.Context, viewer Viewer, orgID uint, req dto.ReviewQueueRequest) (dto.ReviewQueueResponse, error)
}

type submissionService struct {
	forms       repository.FormRepository
	submissions repository.SubmissionRepository
	access      accessResolver
	reviews     ReviewQueryService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewSubmissionService constructs the submission browsing service.
func NewSubmissionService(forms repository.FormRepository, submissions repository.SubmissionRepository, memberships repository.MembershipRepository, reviews ReviewQueryService, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		forms:       forms,
		submissions: submissions,
		access:      newAccessResolver(memberships),
		reviews:     reviews,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
	}
}

// List pages through a form's submissions. Aggregates are attached per row
// only when the form's policy lets the viewer see them.
func (s *submissionService) List(ctx context.Context, viewer Viewer, formID uint, req dto.SubmissionListRequest) (dto.SubmissionListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SubmissionListResponse{}, invalidPayload("%s", err.Error())
	}

	form, err := s.forms.GetByID(ctx, formID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionListResponse{}, ErrFormNotFound
		}
		return dto.SubmissionListResponse{}, err
	}

	access, err := s.access.requireRead(ctx, viewer, form.OrgID)
	if err != nil {
		return dto.SubmissionListResponse{}, err
	}

	if (req.MinScore != nil || req.MaxScore != nil) && !access.IsAdmin() {
		if ok, _ := CanSeeAggregates(VisibilityState{Policy: form.Policy()}); !ok {
			return dto.SubmissionListResponse{}, ErrForbidden
		}
	}

	limit := req.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = 20
	}

	items, next, err := s.submissions.List(ctx, repository.SubmissionFilter{
		FormID:         formID,
		Status:         models.SubmissionStatus(req.Status),
		SubmitterEmail: req.SubmitterEmail,
		MinScore:       req.MinScore,
		MaxScore:       req.MaxScore,
		Cursor:         req.Cursor,
		Limit:          limit,
	})
	if err != nil {
		return dto.SubmissionListResponse{}, err
	}

	response := dto.SubmissionListResponse{Items: make([]dto.SubmissionResponse, 0, len(items))}
	for _, item := range items {
		row := dto.NewSubmissionResponse(item)
		if item.Aggregate != nil && aggregateVisibleInList(access, form, *item.Aggregate) {
			aggregate := dto.NewAggregateResponse(*item.Aggregate)
			row.Aggregate = &aggregate
		}
		response.Items = append(response.Items, row)
	}
	if next != 0 {
		response.NextCursor = &next
	}

	return response, nil
}

// aggregateVisibleInList evaluates the count-based rules. The per-viewer
// REVEAL_AFTER_ME_SUBMIT rule is only applied on the detail view.
func aggregateVisibleInList(access Access, form models.Form, aggregate models.SubmissionAggregate) bool {
	if access.IsAdmin() {
		return true
	}
	if form.VisibilityMode == models.VisibilityRevealAfterMeSubmit {
		return false
	}
	ok, err := CanSeeAggregates(VisibilityState{
		Policy:             form.Policy(),
		MinReviewsRequired: form.MinReviewsRequired,
		ReviewsCount:       aggregate.ReviewsCount,
	})
	return err == nil && ok
}

func (s *submissionService) Get(ctx context.Context, viewer Viewer, submissionID uint) (dto.SubmissionDetailResponse, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionDetailResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionDetailResponse{}, err
	}

	reviews, err := s.reviews.GetVisibleReviews(ctx, viewer, submissionID)
	if err != nil {
		return dto.SubmissionDetailResponse{}, err
	}

	detail := dto.SubmissionDetailResponse{
		Submission:  dto.NewSubmissionResponse(submission),
		FormVersion: dto.NewFormVersionResponse(submission.FormVersion),
		Rubric:      dto.NewRubricVersionResponse(submission.RubricVersion),
		Reviews:     reviews,
	}
	if reviews.CanSeeAggregates {
		detail.Submission.Aggregate = reviews.Aggregate
	}
	return detail, nil
}

func (s *submissionService) ReviewQueue(ctx context.Context, viewer Viewer, orgID uint, req dto.ReviewQueueRequest) (dto.ReviewQueueResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ReviewQueueResponse{}, invalidPayload("%s", err.Error())
	}
	if _, err := s.access.requireReviewer(ctx, viewer, orgID); err != nil {
		return dto.ReviewQueueResponse{}, err
	}

	limit := req.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = 20
	}

	items, more, err := s.submissions.ReviewQueue(ctx, repository.ReviewQueueFilter{
		OrgID:          orgID,
		ReviewerUserID: viewer.UserID,
		Offset:         req.Cursor,
		Limit:          limit,
	})
	if err != nil {
		return dto.ReviewQueueResponse{}, err
	}

	response := dto.ReviewQueueResponse{Items: make([]dto.ReviewQueueItem, 0, len(items))}
	for _, item := range items {
		count := 0
		if item.Aggregate != nil {
			count = item.Aggregate.ReviewsCount
		}
		response.Items = append(response.Items, dto.ReviewQueueItem{
			SubmissionID: item.ID,
			FormID:       item.FormID,
			FormName:     item.Form.Name,
			Status:       string(item.Status),
			ReviewsCount: count,
			SubmittedAt:  item.SubmittedAt,
		})
	}
	if more {
		next := req.Cursor + len(items)
		response.NextCursor = &next
	}

	return response, nil
}

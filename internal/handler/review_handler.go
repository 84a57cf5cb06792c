package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/inform-api/internal/dto"
	"github.com/noah-isme/inform-api/internal/service"
	"github.com/noah-isme/inform-api/internal/utils"
)

// ReviewHandler exposes review saving and the visibility-filtered views.
type ReviewHandler struct {
	reviews service.ReviewService
	queries service.ReviewQueryService
	logger  zerolog.Logger
}

// NewReviewHandler builds a review handler instance.
func NewReviewHandler(reviews service.ReviewService, queries service.ReviewQueryService, logger zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviews: reviews,
		queries: queries,
		logger:  logger.With().Str("component", "review_handler").Logger(),
	}
}

// Register attaches the routes to the submissions router group.
func (h *ReviewHandler) Register(router fiber.Router) {
	router.Post("/:id/reviews", h.save)
	router.Get("/:id/reviews", h.visible)
	router.Get("/:id/aggregate", h.aggregate)
}

func (h *ReviewHandler) save(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ReviewSaveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.reviews.SubmitReview(withRequestContext(c), viewerFromContext(c), submissionID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	message := "review draft saved"
	if payload.Submit {
		message = "review submitted"
	}
	if len(result.Warnings) > 0 {
		requestLogger(h.logger, c).Warn().Uint("submission_id", submissionID).Strs("warnings", result.Warnings).Msg("review saved with warnings")
	}

	return utils.SendSuccess(c, message, result)
}

func (h *ReviewHandler) visible(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	view, err := h.queries.GetVisibleReviews(withRequestContext(c), viewerFromContext(c), submissionID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "reviews retrieved", view)
}

func (h *ReviewHandler) aggregate(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	aggregate, err := h.queries.GetAggregate(withRequestContext(c), viewerFromContext(c), submissionID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "aggregate retrieved", aggregate)
}

func (h *ReviewHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return sendValidationError(c, err)
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "you do not have access to this submission")
	case errors.Is(err, service.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadySubmitted):
		return utils.SendError(c, fiber.StatusConflict, "review already submitted")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("review request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/inform-api/internal/dto"
	"github.com/noah-isme/inform-api/internal/service"
	"github.com/noah-isme/inform-api/internal/utils"
)

// PublicFormHandler serves anonymous form rendering and intake.
type PublicFormHandler struct {
	service service.PublicSubmissionService
	limiter fiber.Handler
	logger  zerolog.Logger
}

// NewPublicFormHandler builds the public form handler. limiter guards the
// submit route and may be nil.
func NewPublicFormHandler(service service.PublicSubmissionService, limiter fiber.Handler, logger zerolog.Logger) *PublicFormHandler {
	if limiter == nil {
		limiter = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &PublicFormHandler{
		service: service,
		limiter: limiter,
		logger:  logger.With().Str("component", "public_form_handler").Logger(),
	}
}

// Register attaches the routes to the /api/public router group.
func (h *PublicFormHandler) Register(router fiber.Router) {
	router.Get("/forms/:orgSlug/:formSlug", h.get)
	router.Post("/forms/:orgSlug/:formSlug", h.limiter, h.submit)
}

func (h *PublicFormHandler) get(c *fiber.Ctx) error {
	form, err := h.service.GetForm(withRequestContext(c), c.Params("orgSlug"), c.Params("formSlug"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "form retrieved", form)
}

func (h *PublicFormHandler) submit(c *fiber.Ctx) error {
	var payload dto.PublicSubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Submit(withRequestContext(c), c.Params("orgSlug"), c.Params("formSlug"), payload, c.IP())
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission received", result)
}

func (h *PublicFormHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return sendValidationError(c, err)
	case errors.Is(err, service.ErrRateLimited):
		return utils.SendError(c, fiber.StatusTooManyRequests, "too many submissions, try again later")
	case errors.Is(err, service.ErrCaptchaFailed):
		return utils.SendError(c, fiber.StatusBadRequest, "captcha verification failed")
	case errors.Is(err, service.ErrFormClosed):
		return utils.SendError(c, fiber.StatusConflict, "form is not accepting submissions")
	case errors.Is(err, service.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "form not found")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("public form request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

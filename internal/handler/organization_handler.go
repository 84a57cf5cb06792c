package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/inform-api/internal/dto"
	"github.com/noah-isme/inform-api/internal/service"
	"github.com/noah-isme/inform-api/internal/utils"
)

// OrganizationHandler manages organizations, members and the event log.
type OrganizationHandler struct {
	orgs   service.OrganizationService
	events service.EventService
	logger zerolog.Logger
}

// NewOrganizationHandler builds an organization handler instance.
func NewOrganizationHandler(orgs service.OrganizationService, events service.EventService, logger zerolog.Logger) *OrganizationHandler {
	return &OrganizationHandler{
		orgs:   orgs,
		events: events,
		logger: logger.With().Str("component", "organization_handler").Logger(),
	}
}

// Register attaches the routes to the /api/v1 router group.
func (h *OrganizationHandler) Register(router fiber.Router) {
	router.Post("/orgs", h.create)
	router.Get("/orgs/:orgId", h.get)
	router.Put("/orgs/:orgId/members/:userId", h.setMember)
	router.Get("/orgs/:orgId/events", h.listEvents)
}

func (h *OrganizationHandler) create(c *fiber.Ctx) error {
	var payload dto.OrganizationCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	org, err := h.orgs.Create(withRequestContext(c), viewerFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "organization created", org)
}

func (h *OrganizationHandler) get(c *fiber.Ctx) error {
	orgID, err := parseUintParam(c, "orgId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	org, err := h.orgs.Get(withRequestContext(c), viewerFromContext(c), orgID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "organization retrieved", org)
}

func (h *OrganizationHandler) setMember(c *fiber.Ctx) error {
	orgID, err := parseUintParam(c, "orgId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.MembershipRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	member, err := h.orgs.SetMember(withRequestContext(c), viewerFromContext(c), orgID, c.Params("userId"), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "membership saved", member)
}

func (h *OrganizationHandler) listEvents(c *fiber.Ctx) error {
	orgID, err := parseUintParam(c, "orgId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	events, err := h.events.List(withRequestContext(c), viewerFromContext(c), orgID, c.Query("type"), page, pageSize)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.OK(c, events.Items, "events retrieved", events.Pagination)
}

func (h *OrganizationHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return sendValidationError(c, err)
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrOrganizationSlugTaken):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("organization request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

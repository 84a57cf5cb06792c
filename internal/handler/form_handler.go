package handler

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/inform-api/internal/dto"
	"github.com/noah-isme/inform-api/internal/service"
	"github.com/noah-isme/inform-api/internal/utils"
)

// FormHandler manages forms, publishing and CSV export.
type FormHandler struct {
	forms  service.FormService
	export service.ExportService
	logger zerolog.Logger
}

// NewFormHandler builds a form handler instance.
func NewFormHandler(forms service.FormService, export service.ExportService, logger zerolog.Logger) *FormHandler {
	return &FormHandler{
		forms:  forms,
		export: export,
		logger: logger.With().Str("component", "form_handler").Logger(),
	}
}

// Register attaches the routes to the /api/v1 router group.
func (h *FormHandler) Register(router fiber.Router) {
	router.Get("/orgs/:orgId/forms", h.list)
	router.Post("/orgs/:orgId/forms", h.create)
	router.Get("/forms/:formId", h.get)
	router.Patch("/forms/:formId", h.update)
	router.Delete("/forms/:formId", h.delete)
	router.Post("/forms/:formId/publish", h.publish)
	router.Get("/forms/:formId/export", h.exportCSV)
}

func (h *FormHandler) list(c *fiber.Ctx) error {
	orgID, err := parseUintParam(c, "orgId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	forms, err := h.forms.List(withRequestContext(c), viewerFromContext(c), orgID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "forms retrieved", forms)
}

func (h *FormHandler) create(c *fiber.Ctx) error {
	orgID, err := parseUintParam(c, "orgId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.FormCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	form, err := h.forms.Create(withRequestContext(c), viewerFromContext(c), orgID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "form created", form)
}

func (h *FormHandler) get(c *fiber.Ctx) error {
	formID, err := parseUintParam(c, "formId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	form, err := h.forms.Get(withRequestContext(c), viewerFromContext(c), formID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "form retrieved", form)
}

func (h *FormHandler) update(c *fiber.Ctx) error {
	formID, err := parseUintParam(c, "formId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.FormUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	form, err := h.forms.Update(withRequestContext(c), viewerFromContext(c), formID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "form updated", form)
}

func (h *FormHandler) delete(c *fiber.Ctx) error {
	formID, err := parseUintParam(c, "formId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.forms.Delete(withRequestContext(c), viewerFromContext(c), formID); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "form deleted", nil)
}

func (h *FormHandler) publish(c *fiber.Ctx) error {
	formID, err := parseUintParam(c, "formId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.FormPublishRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	form, err := h.forms.Publish(withRequestContext(c), viewerFromContext(c), formID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "form published", form)
}

func (h *FormHandler) exportCSV(c *fiber.Ctx) error {
	formID, err := parseUintParam(c, "formId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var buf bytes.Buffer
	filename, err := h.export.ExportCSV(withRequestContext(c), viewerFromContext(c), formID, &buf)
	if err != nil {
		return h.handleError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Status(fiber.StatusOK).Send(buf.Bytes())
}

func (h *FormHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return sendValidationError(c, err)
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSlugTaken):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("form request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

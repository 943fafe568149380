package handlers

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"medical-record-exchange/internal/domain/dtos"
	"medical-record-exchange/internal/services"
)

const requestTimeout = 30 * time.Second

// RecordHandler serves the local record list: listing, explicit create, edit
// and delete.
type RecordHandler struct {
	recordService services.RecordServiceContract
	validator     *validator.Validate
	logger        zerolog.Logger
}

func NewRecordHandler(rs services.RecordServiceContract, v *validator.Validate, logger zerolog.Logger) *RecordHandler {
	return &RecordHandler{
		recordService: rs,
		validator:     v,
		logger:        logger.With().Str("component", "record_handler").Logger(),
	}
}

func (h *RecordHandler) List(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	records, err := h.recordService.List(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("list records")
		return errorResponse(c, statusFor(err), err)
	}
	return c.JSON(records)
}

func (h *RecordHandler) Get(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	record, err := h.recordService.Get(ctx, c.Params("id"))
	if err != nil {
		return errorResponse(c, statusFor(err), err)
	}
	return c.JSON(record)
}

func (h *RecordHandler) Create(c *fiber.Ctx) error {
	var req dtos.CreateRecordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse request body: " + err.Error()})
	}
	if err := h.validator.Struct(req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}

	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	record, err := h.recordService.Create(ctx, req)
	if err != nil {
		h.logger.Warn().Err(err).Msg("create record")
		return errorResponse(c, statusFor(err), err)
	}
	return c.Status(fiber.StatusCreated).JSON(record)
}

func (h *RecordHandler) Update(c *fiber.Ctx) error {
	var req dtos.UpdateRecordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse request body: " + err.Error()})
	}
	if err := h.validator.Struct(req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}

	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	record, err := h.recordService.Edit(ctx, c.Params("id"), req)
	if err != nil {
		h.logger.Warn().Err(err).Str("record_id", c.Params("id")).Msg("edit record")
		return errorResponse(c, statusFor(err), err)
	}
	return c.JSON(record)
}

func (h *RecordHandler) Delete(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	if err := h.recordService.Remove(ctx, c.Params("id")); err != nil {
		return errorResponse(c, statusFor(err), err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

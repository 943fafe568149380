package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"medical-record-exchange/internal/domain/dtos"
	"medical-record-exchange/internal/fhir/mappers"
	"medical-record-exchange/internal/reader"
	"medical-record-exchange/internal/services"
)

const (
	minQRSize = 64
	maxQRSize = 1024

	heartbeatInterval = 15 * time.Second
)

// ExchangeHandler serves the proximity exchange: exporting a record to show
// to the peer device and driving the scan that receives one.
type ExchangeHandler struct {
	exchangeService services.ExchangeServiceContract
	validator       *validator.Validate
	logger          zerolog.Logger
}

func NewExchangeHandler(es services.ExchangeServiceContract, v *validator.Validate, logger zerolog.Logger) *ExchangeHandler {
	return &ExchangeHandler{
		exchangeService: es,
		validator:       v,
		logger:          logger.With().Str("component", "exchange_handler").Logger(),
	}
}

func (h *ExchangeHandler) ExportPayload(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	text, err := h.exchangeService.ExportPayload(ctx, c.Params("id"))
	if err != nil {
		return errorResponse(c, statusFor(err), err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.SendString(text)
}

func (h *ExchangeHandler) ExportQR(c *fiber.Ctx) error {
	size := c.QueryInt("size", reader.DefaultQRSize)
	if size < minQRSize || size > maxQRSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("size must be between %d and %d", minQRSize, maxQRSize),
		})
	}

	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	img, err := h.exchangeService.ExportQR(ctx, c.Params("id"), size)
	if err != nil {
		h.logger.Warn().Err(err).Str("record_id", c.Params("id")).Msg("export qr")
		return errorResponse(c, statusFor(err), err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(img)
}

func (h *ExchangeHandler) ExportFHIR(c *fiber.Ctx) error {
	version := c.Query("version")
	if version != "" && version != mappers.VersionSTU3 && version != mappers.VersionDSTU2 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "version must be STU3 or DSTU2"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	raw, err := h.exchangeService.ExportFHIR(ctx, c.Params("id"), version)
	if err != nil {
		return errorResponse(c, statusFor(err), err)
	}
	c.Set(fiber.HeaderContentType, "application/fhir+json")
	return c.Send(raw)
}

// StartScan returns 202: the outcome arrives later on /scan/status and
// /scan/events.
func (h *ExchangeHandler) StartScan(c *fiber.Ctx) error {
	if err := h.exchangeService.StartScan(c.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("start scan")
		return errorResponse(c, statusFor(err), err)
	}
	return c.Status(fiber.StatusAccepted).JSON(h.exchangeService.ScanStatus(c.Context()))
}

func (h *ExchangeHandler) CancelScan(c *fiber.Ctx) error {
	h.exchangeService.CancelScan(c.Context())
	return c.JSON(h.exchangeService.ScanStatus(c.Context()))
}

func (h *ExchangeHandler) ScanStatus(c *fiber.Ctx) error {
	return c.JSON(h.exchangeService.ScanStatus(c.Context()))
}

func (h *ExchangeHandler) SubmitPayload(c *fiber.Ctx) error {
	var req dtos.SubmitPayloadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse request body: " + err.Error()})
	}
	if err := h.validator.Struct(req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err)
	}

	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	outcome, err := h.exchangeService.SubmitPayload(ctx, req.Payload)
	if err != nil {
		return errorResponse(c, statusFor(err), err)
	}
	return c.JSON(outcome)
}

// StreamScanEvents pushes scan events as server-sent events until the client
// goes away or the service stops.
func (h *ExchangeHandler) StreamScanEvents(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	events, unsubscribe := h.exchangeService.Subscribe()
	log := h.logger

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()
		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		fmt.Fprint(w, "event: connected\ndata: {}\n\n")
		if err := w.Flush(); err != nil {
			return
		}
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					log.Error().Err(err).Msg("marshal scan event")
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			case <-heartbeat.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				log.Debug().Err(err).Msg("event stream client gone")
				return
			}
		}
	}))
	return nil
}

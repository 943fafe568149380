package routes

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"medical-record-exchange/internal/api/handlers"
)

type Config struct {
	App             *fiber.App
	RecordHandler   *handlers.RecordHandler
	ExchangeHandler *handlers.ExchangeHandler
	AccessLog       io.Writer // nil disables access logging
}

// NewApp returns a fiber app with the error handler every route relies on.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               "medx",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
}

func (c *Config) Setup() {
	c.App.Use(recover.New())
	if c.AccessLog != nil {
		c.App.Use(logger.New(logger.Config{
			TimeFormat: "2006-01-02 15:04:05",
			Output:     c.AccessLog,
		}))
	}
	c.GuestRoute()
	c.Records()
	c.Scan()
}

func (c *Config) GuestRoute() {
	c.App.Get("/api/v1/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "pong"})
	})
}

func (c *Config) Records() {
	records := c.App.Group("/api/v1/records")
	records.Get("", c.RecordHandler.List)
	records.Post("", c.RecordHandler.Create)
	records.Get("/:id", c.RecordHandler.Get)
	records.Put("/:id", c.RecordHandler.Update)
	records.Delete("/:id", c.RecordHandler.Delete)

	// exports for the peer device
	records.Get("/:id/payload", c.ExchangeHandler.ExportPayload)
	records.Get("/:id/qr", c.ExchangeHandler.ExportQR)
	records.Get("/:id/fhir", c.ExchangeHandler.ExportFHIR)
}

func (c *Config) Scan() {
	scan := c.App.Group("/api/v1/scan")
	scan.Post("/start", c.ExchangeHandler.StartScan)
	scan.Post("/cancel", c.ExchangeHandler.CancelScan)
	scan.Get("/status", c.ExchangeHandler.ScanStatus)
	scan.Post("/payload", c.ExchangeHandler.SubmitPayload)
	scan.Get("/events", c.ExchangeHandler.StreamScanEvents)
}

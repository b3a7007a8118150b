package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"invoice2pdf/internal/config"
	"invoice2pdf/internal/http/handlers"
	"invoice2pdf/internal/http/middleware"
	"invoice2pdf/internal/infra/errtrack"
	u "invoice2pdf/internal/infra/logging"
	"invoice2pdf/internal/invoice"
)

// RenderPath triggers a conversion.
const RenderPath = "/api/render"

// Deps are the collaborators of the HTTP surface. Cache, Journal, Reporter
// and RateStore are optional.
type Deps struct {
	Config    config.Config
	Converter handlers.Converter
	Renderer  *invoice.Renderer
	Cache     handlers.PDFCache
	Journal   handlers.Journal
	Reporter  errtrack.Reporter
	RateStore fiber.Storage
}

// New creates and configures the Fiber app.
func New(d Deps) *fiber.App {
	cfg := d.Config
	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             cfg.Limits.MaxPayloadBytes,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}

			u.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

			return c.Status(code).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    code,
					"message": msg,
				},
			})
		},
	})

	middleware.Register(app, cfg)
	registerRoutes(app, d)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

func registerRoutes(app *fiber.App, d Deps) {
	cfg := d.Config

	svc := handlers.NewInvoiceService(cfg, d.Converter, d.Cache, d.Journal, d.Reporter)
	limit := middleware.UserRateLimit(middleware.RateLimitConfig{
		UserLimit: cfg.RateLimiter.UserLimit,
		Interval:  cfg.RateLimiter.Interval,
	}, d.RateStore)
	app.All(RenderPath, limit, svc.HandleRender)

	page := handlers.NewPageService(cfg, d.Renderer)
	app.Get(cfg.Render.TargetPath, page.HandlePage)
	app.Post(cfg.Render.TargetPath, page.HandlePage)

	app.Get("/ops/monitor", monitor.New())
}

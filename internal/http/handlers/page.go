package handlers

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"

	"invoice2pdf/internal/config"
	"invoice2pdf/internal/domain"
	u "invoice2pdf/internal/infra/logging"
	"invoice2pdf/internal/invoice"
)

// PageService serves the HTML invoice the browser prints.
type PageService struct {
	Config   config.Config
	Renderer *invoice.Renderer
	Now      func() time.Time
}

func NewPageService(cfg config.Config, renderer *invoice.Renderer) *PageService {
	return &PageService{Config: cfg, Renderer: renderer, Now: time.Now}
}

// HandlePage renders the posted order. A GET renders the bundled sample
// order, except on serverless deployments.
func (p *PageService) HandlePage(c *fiber.Ctx) error {
	var order domain.Order
	switch c.Method() {
	case fiber.MethodPost:
		u.Info("Invoice posted to the render page", "request_id", requestIDOf(c), "bytes", len(c.Body()))
		if err := json.Unmarshal(c.Body(), &order); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Request body must be a JSON order")
		}
	case fiber.MethodGet:
		if p.Config.Runtime.Serverless {
			return fiber.NewError(fiber.StatusNotFound, "Cannot render this page.")
		}
		sample, err := invoice.SampleOrder()
		if err != nil {
			return err
		}
		order = sample
	default:
		c.Set(fiber.HeaderAllow, "GET, POST")
		return fiber.ErrMethodNotAllowed
	}

	var buf bytes.Buffer
	if err := p.Renderer.Render(&buf, order, p.Now()); err != nil {
		u.Error("Invoice page render failed", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Cannot render this page.")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(buf.Bytes())
}

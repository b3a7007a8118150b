package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"invoice2pdf/internal/config"
	"invoice2pdf/internal/domain"
	"invoice2pdf/internal/infra/cache"
	"invoice2pdf/internal/infra/errtrack"
	u "invoice2pdf/internal/infra/logging"
)

const (
	failureMessage  = "Failed to generate invoice - recorded the exception in error tracking."
	emptyPDFMessage = "Error: could not generate PDF"
)

// Converter produces a PDF by loading targetURL with payload as POST body.
type Converter interface {
	Convert(ctx context.Context, targetURL string, payload []byte) ([]byte, error)
}

// PDFCache is the optional short-lived store of generated invoices.
type PDFCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
}

// Journal records the outcome of every conversion.
type Journal interface {
	Record(ctx context.Context, c domain.Conversion) error
}

// InvoiceService serves the conversion trigger.
type InvoiceService struct {
	Config    config.Config
	Converter Converter
	Cache     PDFCache
	Journal   Journal
	Reporter  errtrack.Reporter
}

// NewInvoiceService wires the conversion trigger. cache and journal may be nil.
func NewInvoiceService(cfg config.Config, conv Converter, pdfCache PDFCache, journal Journal, reporter errtrack.Reporter) *InvoiceService {
	if reporter == nil {
		reporter = errtrack.Nop{}
	}
	return &InvoiceService{
		Config:    cfg,
		Converter: conv,
		Cache:     pdfCache,
		Journal:   journal,
		Reporter:  reporter,
	}
}

// HandleRender converts the posted order into a PDF invoice by loading this
// service's own render page in a headless browser.
func (svc *InvoiceService) HandleRender(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		c.Set(fiber.HeaderAllow, fiber.MethodPost)
		return c.Status(fiber.StatusMethodNotAllowed).Send(nil)
	}

	start := time.Now()
	requestID := requestIDOf(c)
	// Fiber reuses the request buffer once the handler returns.
	body := append([]byte(nil), c.Body()...)

	// The payload is opaque here; the render page owns the order schema.
	orderNumber, err := peekOrderNumber(body)
	if err != nil {
		u.Warn("Rejected invoice payload", "request_id", requestID, "error", err)
		return fiber.NewError(fiber.StatusBadRequest, "Request body must be a JSON object")
	}

	rec := domain.Conversion{RequestID: requestID, OrderNumber: orderNumber}
	target := svc.targetURL(c)
	u.Info("Invoice conversion requested", "request_id", requestID, "order_number", orderNumber, "target", target, "payload_bytes", len(body))

	cacheKey := cache.Key(body)
	if svc.Cache != nil {
		cached, ok, err := svc.Cache.Get(c.UserContext(), cacheKey)
		if err != nil {
			u.Warn("Redis read failed", "error", err)
		}
		if ok && len(cached) > 0 {
			u.Info("PDF cache hit", "key", cacheKey, "request_id", requestID)
			rec.Outcome, rec.Status, rec.PDFBytes = domain.OutcomeCacheHit, fiber.StatusOK, len(cached)
			svc.record(c, rec, start)
			c.Set(fiber.HeaderContentType, "application/pdf")
			return c.Send(cached)
		}
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), svc.Config.Render.RequestTimeout)
	defer cancel()

	pdfBuf, err := svc.Converter.Convert(ctx, target, body)
	if err != nil {
		rec.Error = err.Error()
		if errors.Is(err, domain.ErrInvalidTarget) {
			u.Warn("Render target unreachable", "request_id", requestID, "target", target, "error", err)
			rec.Outcome, rec.Status = domain.OutcomeInvalidTarget, fiber.StatusNotFound
			svc.record(c, rec, start)
			return c.Status(fiber.StatusNotFound).Send(nil)
		}

		u.Error("Invoice conversion failed", "request_id", requestID, "error", err, "timeout", errors.Is(err, context.DeadlineExceeded))
		svc.Reporter.Capture(err, requestID, body)
		rec.Outcome, rec.Status = domain.OutcomeFailed, fiber.StatusInternalServerError
		svc.record(c, rec, start)
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(fiber.StatusInternalServerError).SendString(failureMessage)
	}

	if len(pdfBuf) == 0 {
		rec.Outcome, rec.Status = domain.OutcomeEmptyPDF, fiber.StatusBadRequest
		svc.record(c, rec, start)
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(fiber.StatusBadRequest).SendString(emptyPDFMessage)
	}

	if limit := svc.Config.Limits.MaxPDFBytes; limit > 0 && len(pdfBuf) > limit {
		err := fmt.Errorf("pdf of %d bytes exceeds the %d byte limit", len(pdfBuf), limit)
		u.Error("Invoice conversion failed", "request_id", requestID, "error", err)
		svc.Reporter.Capture(err, requestID, body)
		rec.Outcome, rec.Status, rec.PDFBytes = domain.OutcomeFailed, fiber.StatusInternalServerError, len(pdfBuf)
		rec.Error = err.Error()
		svc.record(c, rec, start)
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(fiber.StatusInternalServerError).SendString(failureMessage)
	}

	if svc.Cache != nil {
		if err := svc.Cache.Set(c.UserContext(), cacheKey, pdfBuf); err != nil {
			u.Warn("Redis write failed", "error", err)
		}
	}

	rec.Outcome, rec.Status, rec.PDFBytes = domain.OutcomeSuccess, fiber.StatusOK, len(pdfBuf)
	svc.record(c, rec, start)
	u.Info("PDF generated", "request_id", requestID, "order_number", orderNumber, "bytes", len(pdfBuf), "duration_ms", time.Since(start).Milliseconds())

	c.Set(fiber.HeaderContentType, "application/pdf")
	return c.Send(pdfBuf)
}

// peekOrderNumber checks that body is a JSON object and extracts its order
// number for logs and the journal. Non-string order numbers are kept as
// their raw JSON text.
func peekOrderNumber(body []byte) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", err
	}
	if fields == nil {
		return "", errors.New("body is null")
	}
	raw, ok := fields["OrderNumber"]
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	if string(raw) == "null" {
		return "", nil
	}
	return string(raw), nil
}

// targetURL points the browser back at this host's render page.
func (svc *InvoiceService) targetURL(c *fiber.Ctx) string {
	scheme := "http"
	if svc.Config.Runtime.Serverless {
		scheme = "https"
	}
	return scheme + "://" + c.Hostname() + svc.Config.Render.TargetPath
}

func (svc *InvoiceService) record(c *fiber.Ctx, rec domain.Conversion, start time.Time) {
	if svc.Journal == nil {
		return
	}
	rec.Duration = time.Since(start)
	if err := svc.Journal.Record(c.UserContext(), rec); err != nil {
		u.Warn("Conversion journal write failed", "request_id", rec.RequestID, "error", err)
	}
}

func requestIDOf(c *fiber.Ctx) string {
	if id := c.Get(fiber.HeaderXRequestID); id != "" {
		return id
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}

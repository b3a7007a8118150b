package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice2pdf/internal/config"
	"invoice2pdf/internal/domain"
	"invoice2pdf/internal/infra/cache"
)

const testPayload = `{"OrderNumber":"ORD-1","PaymentDetails":{"TotalAfterTaxAmount":100}}`

var fakePDF = []byte("%PDF-1.7\nfake invoice\n%%EOF")

type fakeConverter struct {
	mu       sync.Mutex
	calls    int
	targets  []string
	payloads []string
	convert  func(ctx context.Context) ([]byte, error)
}

func (f *fakeConverter) Convert(ctx context.Context, targetURL string, payload []byte) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.targets = append(f.targets, targetURL)
	f.payloads = append(f.payloads, string(payload))
	fn := f.convert
	f.mu.Unlock()
	if fn == nil {
		return fakePDF, nil
	}
	return fn(ctx)
}

func (f *fakeConverter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeJournal struct {
	mu      sync.Mutex
	entries []domain.Conversion
}

func (j *fakeJournal) Record(_ context.Context, c domain.Conversion) error {
	j.mu.Lock()
	j.entries = append(j.entries, c)
	j.mu.Unlock()
	return nil
}

func (j *fakeJournal) Last(t *testing.T) domain.Conversion {
	t.Helper()
	j.mu.Lock()
	defer j.mu.Unlock()
	require.NotEmpty(t, j.entries)
	return j.entries[len(j.entries)-1]
}

type fakeReporter struct {
	mu     sync.Mutex
	errs   []error
	bodies []string
	ids    []string
}

func (r *fakeReporter) Capture(err error, requestID string, body []byte) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.bodies = append(r.bodies, string(body))
	r.ids = append(r.ids, requestID)
	r.mu.Unlock()
}

func (r *fakeReporter) Flush(time.Duration) {}

func testCfg() config.Config {
	cfg := config.Default()
	cfg.Render.RequestTimeout = 2 * time.Second
	return cfg
}

type harness struct {
	app      *fiber.App
	conv     *fakeConverter
	journal  *fakeJournal
	reporter *fakeReporter
}

func newHarness(cfg config.Config, pdfCache PDFCache) *harness {
	h := &harness{conv: &fakeConverter{}, journal: &fakeJournal{}, reporter: &fakeReporter{}}
	svc := NewInvoiceService(cfg, h.conv, pdfCache, h.journal, h.reporter)
	h.app = fiber.New()
	h.app.All("/api/render", svc.HandleRender)
	return h
}

func (h *harness) do(t *testing.T, method, body string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(method, "/api/render", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-test")
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestHandleRender_RejectsNonPost(t *testing.T) {
	h := newHarness(testCfg(), nil)
	for _, m := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		resp, body := h.do(t, m, "")
		if resp.StatusCode != fiber.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", m, resp.StatusCode)
		}
		assert.Empty(t, body)
	}
	assert.Equal(t, 0, h.conv.Calls(), "no browser may be launched for non-POST requests")
}

func TestHandleRender_RejectsMalformedJSON(t *testing.T) {
	h := newHarness(testCfg(), nil)
	for _, body := range []string{"", "{not json", "[1,2]", "null", "42", `"order"`} {
		resp, _ := h.do(t, http.MethodPost, body)
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", body, resp.StatusCode)
		}
	}
	assert.Equal(t, 0, h.conv.Calls())
}

func TestHandleRender_ForwardsLooselyTypedOrders(t *testing.T) {
	bodies := []struct {
		body        string
		orderNumber string
	}{
		{`{"OrderNumber":12345,"PaymentDetails":{"TotalAfterTaxAmount":100}}`, "12345"},
		{`{"OrderNumber":"ORD-9","DeliverySummary":[{"OrderItems":[{"SKU_Number":123}]}]}`, "ORD-9"},
		{`{"PaymentDetails":{"TotalAfterTaxAmount":"100.00"}}`, ""},
		{`{"OrderNumber":null}`, ""},
	}
	h := newHarness(testCfg(), nil)
	for i, tc := range bodies {
		resp, _ := h.do(t, http.MethodPost, tc.body)
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tc.body, resp.StatusCode)
		}
		assert.Equal(t, i+1, h.conv.Calls())
		assert.Equal(t, tc.body, h.conv.payloads[i], "payload must reach the browser verbatim")
		assert.Equal(t, tc.orderNumber, h.journal.Last(t).OrderNumber)
	}
}

func TestPeekOrderNumber(t *testing.T) {
	n, err := peekOrderNumber([]byte(`{"OrderNumber":"A-1"}`))
	require.NoError(t, err)
	assert.Equal(t, "A-1", n)

	n, err = peekOrderNumber([]byte(`{"OrderNumber":7.5}`))
	require.NoError(t, err)
	assert.Equal(t, "7.5", n)

	n, err = peekOrderNumber([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, n)

	for _, bad := range []string{"", "null", "[]", "1", "{"} {
		_, err := peekOrderNumber([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestHandleRender_Success(t *testing.T) {
	h := newHarness(testCfg(), nil)
	resp, body := h.do(t, http.MethodPost, testPayload)

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body, "%PDF-"))

	require.Equal(t, 1, h.conv.Calls())
	assert.Equal(t, "http://example.com/", h.conv.targets[0])
	assert.Equal(t, testPayload, h.conv.payloads[0])

	rec := h.journal.Last(t)
	assert.Equal(t, domain.OutcomeSuccess, rec.Outcome)
	assert.Equal(t, "ORD-1", rec.OrderNumber)
	assert.Equal(t, "req-test", rec.RequestID)
	assert.Equal(t, len(fakePDF), rec.PDFBytes)
	assert.Empty(t, h.reporter.errs)
}

func TestHandleRender_ServerlessUsesHTTPS(t *testing.T) {
	cfg := testCfg()
	cfg.Runtime.Serverless = true
	cfg.Render.TargetPath = "/invoice"
	h := newHarness(cfg, nil)

	resp, _ := h.do(t, http.MethodPost, testPayload)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://example.com/invoice", h.conv.targets[0])
}

func TestHandleRender_InvalidTargetIsEmpty404(t *testing.T) {
	h := newHarness(testCfg(), nil)
	h.conv.convert = func(context.Context) ([]byte, error) {
		return nil, fmt.Errorf("navigate: %w", domain.ErrInvalidTarget)
	}

	resp, body := h.do(t, http.MethodPost, testPayload)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Empty(t, body)
	assert.Equal(t, domain.OutcomeInvalidTarget, h.journal.Last(t).Outcome)
	assert.Empty(t, h.reporter.errs)
}

func TestHandleRender_FailureIsReportedPlain500(t *testing.T) {
	h := newHarness(testCfg(), nil)
	h.conv.convert = func(context.Context) ([]byte, error) {
		return nil, fmt.Errorf("render: %w", domain.ErrBadRenderResponse)
	}

	resp, body := h.do(t, http.MethodPost, testPayload)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
	assert.Equal(t, failureMessage, body)

	require.Len(t, h.reporter.errs, 1)
	assert.ErrorIs(t, h.reporter.errs[0], domain.ErrBadRenderResponse)
	assert.Equal(t, testPayload, h.reporter.bodies[0])
	assert.Equal(t, "req-test", h.reporter.ids[0])

	rec := h.journal.Last(t)
	assert.Equal(t, domain.OutcomeFailed, rec.Outcome)
	assert.NotEmpty(t, rec.Error)
}

func TestHandleRender_TimeoutIsGenericFailure(t *testing.T) {
	cfg := testCfg()
	cfg.Render.RequestTimeout = 50 * time.Millisecond
	h := newHarness(cfg, nil)
	h.conv.convert = func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	resp, body := h.do(t, http.MethodPost, testPayload)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, failureMessage, body)
	require.Len(t, h.reporter.errs, 1)
	assert.True(t, errors.Is(h.reporter.errs[0], context.DeadlineExceeded))
}

func TestHandleRender_EmptyPDF(t *testing.T) {
	h := newHarness(testCfg(), nil)
	h.conv.convert = func(context.Context) ([]byte, error) { return nil, nil }

	resp, body := h.do(t, http.MethodPost, testPayload)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, emptyPDFMessage, body)
	assert.Equal(t, domain.OutcomeEmptyPDF, h.journal.Last(t).Outcome)
}

func TestHandleRender_PDFTooLarge(t *testing.T) {
	cfg := testCfg()
	cfg.Limits.MaxPDFBytes = 4
	h := newHarness(cfg, nil)

	resp, body := h.do(t, http.MethodPost, testPayload)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
	assert.Equal(t, failureMessage, body)
	require.Len(t, h.reporter.errs, 1)
	assert.Contains(t, h.reporter.errs[0].Error(), "exceeds")
	assert.Equal(t, domain.OutcomeFailed, h.journal.Last(t).Outcome)
}

func TestHandleRender_CacheHitSkipsBrowser(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := newHarness(testCfg(), cache.New(rdb, time.Minute))

	resp, _ := h.do(t, http.MethodPost, testPayload)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, mr.Exists(cache.Key([]byte(testPayload))))

	resp, body := h.do(t, http.MethodPost, testPayload)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, string(fakePDF), body)
	assert.Equal(t, 1, h.conv.Calls())
	assert.Equal(t, domain.OutcomeCacheHit, h.journal.Last(t).Outcome)

	// A different order misses.
	resp, _ = h.do(t, http.MethodPost, `{"OrderNumber":"ORD-2"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, h.conv.Calls())
}

func TestHandleRender_CacheErrorsAreIgnored(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	h := newHarness(testCfg(), cache.New(rdb, time.Minute))
	resp, _ := h.do(t, http.MethodPost, testPayload)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, h.conv.Calls())
}

package chrome

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"invoice2pdf/internal/config"
	"invoice2pdf/internal/domain"
	u "invoice2pdf/internal/infra/logging"
)

// cssPixelsPerInch converts CSS pixel margins into PrintToPDF inches.
const cssPixelsPerInch = 96.0

// PDFParams is the fixed page geometry of an exported invoice.
type PDFParams struct {
	PaperWidth  float64 // inches
	PaperHeight float64 // inches
	MarginPx    float64
	Scale       float64
}

// Converter turns a render target plus an order payload into a PDF. Every
// call owns one browser process from launch to teardown.
type Converter struct {
	resolver          *Resolver
	pdf               PDFParams
	navigationTimeout time.Duration
	scrollStep        int
	scrollInterval    time.Duration
	userDataBase      string
}

// NewConverter wires a Converter from the service configuration.
func NewConverter(cfg config.Config, resolver *Resolver) *Converter {
	paper := cfg.Paper()
	return &Converter{
		resolver: resolver,
		pdf: PDFParams{
			PaperWidth:  paper.Width,
			PaperHeight: paper.Height,
			MarginPx:    cfg.PDF.MarginPx,
			Scale:       cfg.PDF.Scale,
		},
		navigationTimeout: cfg.Render.NavigationTimeout,
		scrollStep:        cfg.Render.ScrollStep,
		scrollInterval:    cfg.Render.ScrollInterval,
		userDataBase:      cfg.Browser.UserDataDir,
	}
}

// Convert loads targetURL in a fresh browser with the payload injected as the
// POST body of the navigation and returns the exported PDF.
//
// Navigation failures wrap domain.ErrInvalidTarget, error-range responses
// wrap domain.ErrBadRenderResponse. The browser is shut down on every path.
func (c *Converter) Convert(ctx context.Context, targetURL string, payload []byte) ([]byte, error) {
	if err := ValidateTarget(targetURL); err != nil {
		return nil, err
	}

	lc, err := c.resolver.Resolve()
	if err != nil {
		return nil, err
	}

	profileDir, err := os.MkdirTemp(c.userDataBase, "chromedata-*")
	if err != nil {
		return nil, fmt.Errorf("cannot create temp profile dir: %w", err)
	}
	defer os.RemoveAll(profileDir)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, lc.allocatorOptions(profileDir)...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(u.Printf))
	defer browserCancel()

	// Launches the browser and opens the page.
	if err := chromedp.Run(browserCtx); err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	interceptor := newOneShotInterceptor(payload)
	interceptor.listen(browserCtx)
	watcher := newNavWatcher()
	watcher.listen(browserCtx)

	var pdfBuf []byte
	err = chromedp.Run(browserCtx,
		network.Enable(),
		page.SetLifecycleEventsEnabled(true),
		fetch.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return c.navigate(ctx, targetURL, watcher, interceptor)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return c.scrollToBottom(ctx)
		}),
		emulation.SetEmulatedMedia().WithMedia("screen"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfBuf, _, err = c.printParams().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuf, nil
}

// navigate issues the navigation, waits for network idle within the
// navigation timeout and validates the document status.
func (c *Converter) navigate(ctx context.Context, targetURL string, watcher *navWatcher, interceptor *oneShotInterceptor) error {
	navCtx, cancel := context.WithTimeout(ctx, c.navigationTimeout)
	defer cancel()

	var res page.NavigateReturns
	if err := cdp.Execute(navCtx, page.CommandNavigate, page.Navigate(targetURL), &res); err != nil {
		if ctxErr := navCtx.Err(); ctxErr != nil {
			return fmt.Errorf("navigate: %w", ctxErr)
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidTarget, err)
	}
	if err := navigationError(res.ErrorText); err != nil {
		return err
	}

	status, err := watcher.wait(navCtx, res.LoaderID)
	if err != nil {
		if ierr := interceptor.Err(); ierr != nil {
			return fmt.Errorf("inject payload: %w", ierr)
		}
		return fmt.Errorf("wait for network idle: %w", err)
	}

	u.Info("Render target responded", "status", status, "url", targetURL)
	if status > 300 {
		return fmt.Errorf("%w: status %d", domain.ErrBadRenderResponse, status)
	}
	return nil
}

// httpStatusFailure is Chrome's error text for an error-range response that
// carries no body to display.
const httpStatusFailure = "net::ERR_HTTP_RESPONSE_CODE_FAILURE"

// navigationError classifies the errorText of Page.navigate. An error-range
// status is a bad render response; any other failure means the target could
// not be reached.
func navigationError(errorText string) error {
	switch errorText {
	case "":
		return nil
	case httpStatusFailure:
		return fmt.Errorf("%w: %s", domain.ErrBadRenderResponse, errorText)
	default:
		return fmt.Errorf("%w: %s", domain.ErrInvalidTarget, errorText)
	}
}

// scrollToBottom scrolls in fixed steps until the cumulative distance covers
// the page height so lazy images start loading. It does not wait for them.
func (c *Converter) scrollToBottom(ctx context.Context) error {
	var done bool
	return chromedp.Evaluate(scrollScript(c.scrollStep, c.scrollInterval), &done,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		},
	).Do(ctx)
}

func scrollScript(step int, interval time.Duration) string {
	ms := interval.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf(`new Promise((resolve) => {
	let totalHeight = 0;
	const timer = setInterval(() => {
		const scrollHeight = document.body.scrollHeight;
		window.scrollBy(0, %[1]d);
		totalHeight += %[1]d;
		if (totalHeight >= scrollHeight) {
			clearInterval(timer);
			resolve(true);
		}
	}, %[2]d);
})`, step, ms)
}

func (c *Converter) printParams() *page.PrintToPDFParams {
	margin := c.pdf.MarginPx / cssPixelsPerInch
	return page.PrintToPDF().
		WithPaperWidth(c.pdf.PaperWidth).
		WithPaperHeight(c.pdf.PaperHeight).
		WithDisplayHeaderFooter(false).
		WithPrintBackground(true).
		WithMarginTop(margin).
		WithMarginRight(margin).
		WithMarginBottom(margin).
		WithMarginLeft(margin).
		WithScale(c.pdf.Scale)
}

// ValidateTarget rejects URLs the browser could never navigate to.
func ValidateTarget(raw string) error {
	parsed, err := neturl.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidTarget, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidTarget, parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return fmt.Errorf("%w: missing host", domain.ErrInvalidTarget)
	}
	return nil
}

// IsSessionInterrupted reports whether err came from a cancelled or expired
// browser session rather than from the page itself.
func IsSessionInterrupted(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

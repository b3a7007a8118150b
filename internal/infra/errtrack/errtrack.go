package errtrack

import (
	"time"

	"github.com/getsentry/sentry-go"

	"invoice2pdf/internal/config"
	u "invoice2pdf/internal/infra/logging"
)

// maxBodyContext caps the request body attached to a report.
const maxBodyContext = 64 * 1024

// Reporter sends unclassified conversion failures out of band.
type Reporter interface {
	Capture(err error, requestID string, body []byte)
	Flush(timeout time.Duration)
}

// Nop discards every report. It is used when no DSN is configured.
type Nop struct{}

func (Nop) Capture(error, string, []byte) {}
func (Nop) Flush(time.Duration)           {}

// Sentry reports to a Sentry project through its own hub.
type Sentry struct {
	hub *sentry.Hub
}

// New returns a Sentry reporter, or Nop when cfg has no DSN.
func New(cfg config.Config) (Reporter, error) {
	if cfg.Sentry.DSN == "" {
		return Nop{}, nil
	}
	s, err := NewWithOptions(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		SampleRate:  cfg.Sentry.SampleRate,
	})
	if err != nil {
		return nil, err
	}
	u.Info("Error tracking enabled", "environment", cfg.Sentry.Environment)
	return s, nil
}

// NewWithOptions builds a reporter from raw client options.
func NewWithOptions(opts sentry.ClientOptions) (*Sentry, error) {
	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &Sentry{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Capture reports err with the request id as a tag and the raw body as
// context.
func (s *Sentry) Capture(err error, requestID string, body []byte) {
	if err == nil {
		return
	}
	hub := s.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		if requestID != "" {
			scope.SetTag("request_id", requestID)
		}
		raw := body
		truncated := false
		if len(raw) > maxBodyContext {
			raw = raw[:maxBodyContext]
			truncated = true
		}
		scope.SetContext("body", sentry.Context{
			"raw":       string(raw),
			"bytes":     len(body),
			"truncated": truncated,
		})
		if id := hub.CaptureException(err); id != nil {
			u.Debug("Reported conversion failure", "event_id", string(*id), "request_id", requestID)
		}
	})
}

// Flush waits for queued events to be delivered.
func (s *Sentry) Flush(timeout time.Duration) {
	s.hub.Flush(timeout)
}

package domain

import "time"

// Outcome labels the result of one conversion request.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeCacheHit      Outcome = "cache_hit"
	OutcomeInvalidTarget Outcome = "invalid_target"
	OutcomeEmptyPDF      Outcome = "empty_pdf"
	OutcomeFailed        Outcome = "failed"
)

// Conversion is the metadata of one conversion request. It never carries
// the order payload or the generated document.
type Conversion struct {
	RequestID   string
	OrderNumber string
	Outcome     Outcome
	Status      int
	Duration    time.Duration
	PDFBytes    int
	Error       string
}

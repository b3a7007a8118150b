package invoice

import (
	"embed"
	"encoding/json"
	"fmt"

	"invoice2pdf/internal/domain"
)

//go:embed templates/*.html
var templates embed.FS

//go:embed sample/order.json
var sampleOrder []byte

// SamplePayload returns a copy of the embedded sample order JSON.
func SamplePayload() []byte {
	return append([]byte(nil), sampleOrder...)
}

// SampleOrder decodes the embedded sample order.
func SampleOrder() (domain.Order, error) {
	var o domain.Order
	if err := json.Unmarshal(sampleOrder, &o); err != nil {
		return domain.Order{}, fmt.Errorf("decode sample order: %w", err)
	}
	return o, nil
}

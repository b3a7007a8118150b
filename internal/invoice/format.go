package invoice

import (
	"strconv"
	"strings"
	"time"
)

const defaultCurrencySymbol = "R"

// amount renders v with two decimals, grouped thousands and the currency
// symbol in front, e.g. "R 1,234.50".
func amount(symbol string, v float64) string {
	if symbol == "" {
		symbol = defaultCurrencySymbol
	}
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := symbol + " " + b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// longDate formats an upstream timestamp as "12 March 2024". Unparsable
// values are returned unchanged.
func longDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2 January 2006")
		}
	}
	return raw
}

// quantity drops the fraction of whole quantities.
func quantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

package invoice

import (
	"fmt"
	"slices"

	"invoice2pdf/internal/domain"
)

// bashFormatCodes are brand formats whose logos live under the Bash prefix.
var bashFormatCodes = []string{
	"100", "101", "102", "105", "106", "107", "109", "110", "112", "113",
	"117", "118", "119", "122", "126", "128", "129", "130", "131", "132",
	"133", "138", "144", "146", "148", "150",
}

// LogoURL returns the brand logo for formatCode under base.
func LogoURL(base, formatCode string) string {
	if slices.Contains(bashFormatCodes, formatCode) {
		return fmt.Sprintf("%s/Bash/%s/%s_logo.png", base, formatCode, formatCode)
	}
	return fmt.Sprintf("%s/%s/%s_logo.png", base, formatCode, formatCode)
}

// BrandGroup is the set of line items sold by one brand under one POS
// transaction.
type BrandGroup struct {
	Brand                string
	POSTransactionNumber string
	FormatCode           string
	Items                []domain.OrderItem
	IsFirst              bool
}

// GroupItems groups items by brand and POS transaction number. Groups keep
// the order in which their first item appears, items keep their input order.
func GroupItems(items []domain.OrderItem) []BrandGroup {
	index := make(map[string]int)
	var groups []BrandGroup
	for _, it := range items {
		key := it.ProductBrand + "|" + it.POSTransactionNumber
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, BrandGroup{
				Brand:                it.ProductBrand,
				POSTransactionNumber: it.POSTransactionNumber,
				FormatCode:           it.ProductBrandFormatCode,
				IsFirst:              i == 0,
			})
		}
		groups[i].Items = append(groups[i].Items, it)
	}
	return groups
}

package invoice

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"time"

	"invoice2pdf/internal/domain"
)

// Renderer turns an order into a self-contained HTML invoice.
type Renderer struct {
	tpl         *template.Template
	logoBaseURL string
}

// NewRenderer parses the embedded invoice template.
func NewRenderer(logoBaseURL string) (*Renderer, error) {
	tpl, err := template.New("invoice.html").ParseFS(templates, "templates/invoice.html")
	if err != nil {
		return nil, fmt.Errorf("parse invoice template: %w", err)
	}
	return &Renderer{tpl: tpl, logoBaseURL: logoBaseURL}, nil
}

// Render writes the invoice for o. now stamps the issue date.
func (r *Renderer) Render(w io.Writer, o domain.Order, now time.Time) error {
	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, r.view(o, now)); err != nil {
		return fmt.Errorf("render invoice: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}

type headerRow struct {
	Label string
	Value string
}

type lineView struct {
	SKU         string
	Description string
	Serials     []string
	Quantity    string
	Price       string
	Discount    string
	Total       string
}

type groupView struct {
	Brand                string
	POSTransactionNumber string
	LogoURL              string
	Lines                []lineView
	IsFirst              bool
}

type labelled struct {
	Label  string
	Amount string
}

type invoiceView struct {
	InvoiceTitle    string
	InvoiceNumber   string
	IssuedOn        string
	Header          []headerRow
	DeliveryHeading string
	DeliverToMe     bool
	DeliveryLines   []string
	Groups          []groupView
	Subtotal        string
	SubtotalRows    []labelled
	TotalExclTax    string
	Tax             string
	TotalInclTax    string
	Payments        []labelled
	Charity         bool
}

func (r *Renderer) view(o domain.Order, now time.Time) invoiceView {
	sym := o.CurrencySymbol
	pd := o.PaymentDetails

	v := invoiceView{
		InvoiceNumber: o.InvoiceNumber,
		IssuedOn:      now.Format("02 January 2006"),
		TotalExclTax:  amount(sym, pd.TotalBeforeTaxAmount),
		Tax:           amount(sym, pd.TaxAmount),
		TotalInclTax:  amount(sym, pd.TotalAfterTaxAmount),
		Charity:       pd.CharityAmount > 0,
	}

	items := o.Items()
	if len(items) > 0 {
		v.InvoiceTitle = items[0].POSTransactionNumber
	}

	if o.OrderNumber != "" {
		v.Header = append(v.Header, headerRow{"Order Number:", o.OrderNumber})
	}
	if o.LFSOrderNumber != "" {
		v.Header = append(v.Header, headerRow{"Furniture Order Number:", o.LFSOrderNumber})
	}
	if o.ProviderInvoiceNumber != "" {
		v.Header = append(v.Header, headerRow{"Provider Invoice Number:", longDate(o.ProviderInvoiceNumber)})
	}
	v.Header = append(v.Header, headerRow{"Placed:", longDate(o.OrderPlacedDate)})
	// Furniture orders are not dispatched by the store.
	if o.LFSOrderNumber == "" {
		v.Header = append(v.Header, headerRow{"Dispatched:", longDate(o.OrderDespatchedDate)})
	}

	v.DeliveryHeading = "Delivery details:"
	if d, ok := o.PrimaryDelivery(); ok {
		addr := d.DeliveryDetails.Address
		switch addr.AddressTypeID {
		case domain.AddressTypeStore:
			v.DeliveryHeading = "Pargo Pick-up Point:"
		case domain.AddressTypeCollection:
			v.DeliveryHeading = "Deliver 2 Me:"
			v.DeliverToMe = true
		}
		if !v.DeliverToMe {
			for _, s := range []string{addr.AddressLine1, addr.AddressLine2, addr.Suburb, addr.PostCode, addr.Country, d.DeliveryDetails.ContactCellphone} {
				if s != "" {
					v.DeliveryLines = append(v.DeliveryLines, s)
				}
			}
		}
	}

	for _, g := range GroupItems(items) {
		gv := groupView{
			Brand:                g.Brand,
			POSTransactionNumber: g.POSTransactionNumber,
			LogoURL:              LogoURL(r.logoBaseURL, g.FormatCode),
			IsFirst:              g.IsFirst,
		}
		for _, it := range g.Items {
			discount := amount(sym, it.DiscountsApplied)
			if o.IsBeGC {
				discount = amount(sym, pd.VoucherDiscountAmount)
			}
			gv.Lines = append(gv.Lines, lineView{
				SKU:         it.SKUNumber,
				Description: it.ProductDescription,
				Serials:     serials(it.SerialNumbers),
				Quantity:    quantity(it.QuantityOrdered),
				Price:       amount(sym, it.ProductASP),
				Discount:    discount,
				Total:       amount(sym, it.LineSubtotal),
			})
		}
		v.Groups = append(v.Groups, gv)
	}

	subtotal := pd.SubtotalAllLineItems
	if pd.CharityAmount > 0 {
		subtotal -= pd.CharityAmount
	}
	v.Subtotal = amount(sym, subtotal)
	if pd.TotalShippingAmount > 0 {
		v.SubtotalRows = append(v.SubtotalRows, labelled{"Delivery:", amount(sym, pd.TotalShippingAmount)})
	}
	if pd.TotalShippingDiscountAmount > 0 {
		v.SubtotalRows = append(v.SubtotalRows, labelled{"Delivery Discount:", amount(sym, pd.TotalShippingDiscountAmount)})
	}
	if pd.VoucherDiscountAmount > 0 {
		label := "Vouchers:"
		if o.IsBeGC {
			label = "Discount:"
		}
		v.SubtotalRows = append(v.SubtotalRows, labelled{label, amount(sym, pd.VoucherDiscountAmount)})
	}
	if pd.CharityAmount > 0 {
		v.SubtotalRows = append(v.SubtotalRows, labelled{"Charity Donation:", amount(sym, pd.CharityAmount)})
	}

	for _, p := range pd.PaymentInformation {
		v.Payments = append(v.Payments, labelled{p.PaymentType, amount(sym, p.PaymentValue)})
	}
	return v
}

func serials(in []domain.SerialNumber) []string {
	var out []string
	for _, s := range in {
		switch {
		case s.SerialNumberDescription != "" && s.SerialNumber != "":
			out = append(out, s.SerialNumberDescription+": "+s.SerialNumber+".")
		case s.SerialNumber != "":
			out = append(out, s.SerialNumber+".")
		case s.SerialNumberDescription != "":
			out = append(out, s.SerialNumberDescription+":")
		}
	}
	return out
}

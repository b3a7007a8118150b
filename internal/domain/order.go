package domain

// Order is one e-commerce order as posted by the upstream order system.
// Field names follow the upstream JSON contract.
type Order struct {
	OrderNumber           string            `json:"OrderNumber"`
	LFSOrderNumber        string            `json:"LFSOrderNumber"`
	ProviderInvoiceNumber string            `json:"ProviderInvoiceNumber"`
	OrderDespatchedDate   string            `json:"OrderDespatchedDate"`
	OrderPlacedDate       string            `json:"OrderPlacedDate"`
	InvoiceNumber         string            `json:"InvoiceNumber"`
	CurrencySymbol        string            `json:"CurrencySymbol"`
	IsBeGC                bool              `json:"IsBeGC"`
	Source                string            `json:"Source"`
	DeliverySummary       []DeliverySummary `json:"DeliverySummary"`
	PaymentDetails        PaymentDetails    `json:"PaymentDetails"`
}

type DeliverySummary struct {
	OrderItems      []OrderItem     `json:"OrderItems"`
	DeliveryDetails DeliveryDetails `json:"DeliveryDetails"`
}

type DeliveryDetails struct {
	Address          Address `json:"Address"`
	ContactCellphone string  `json:"ContactCellphone"`
}

// Address type ids with special presentation.
const (
	AddressTypeStore      = 4
	AddressTypeCollection = 5
)

type Address struct {
	AddressTypeID int    `json:"AddressTypeId"`
	AddressLine1  string `json:"AddressLine1"`
	AddressLine2  string `json:"AddressLine2"`
	Suburb        string `json:"Suburb"`
	PostCode      string `json:"PostCode"`
	Country       string `json:"Country"`
}

type OrderItem struct {
	POSTransactionNumber   string         `json:"POS_TransactionNumber"`
	OrderItemDate          string         `json:"OrderItemDate"`
	ProductBrandFormatCode string         `json:"ProductBrandFormatCode"`
	ProductBrand           string         `json:"ProductBrand"`
	ProductDescription     string         `json:"ProductDescription"`
	SerialNumbers          []SerialNumber `json:"SerialNumbers"`
	QuantityOrdered        float64        `json:"QuantityOrdered"`
	ProductASP             float64        `json:"ProductASP"`
	DiscountsApplied       float64        `json:"DiscountsApplied"`
	LineSubtotal           float64        `json:"LineSubtotal"`
	SKUNumber              string         `json:"SKU_Number"`
	SKUBarcode             string         `json:"SKU_Barcode"`
}

// SerialNumber identifies one serialised unit of a line item, e.g. a SIM.
type SerialNumber struct {
	SerialNumberDescription string `json:"SerialNumberDescription"`
	SerialNumber            string `json:"SerialNumber"`
}

type PaymentDetails struct {
	VoucherDiscountAmount       float64              `json:"VoucherDiscountAmount"`
	CharityAmount               float64              `json:"CharityAmount"`
	TotalShippingAmount         float64              `json:"TotalShippingAmount"`
	TotalShippingDiscountAmount float64              `json:"TotalShippingDiscountAmount"`
	SubtotalAllLineItems        float64              `json:"Subtotal_AllLineItems"`
	TotalBeforeTaxAmount        float64              `json:"TotalBeforeTaxAmount"`
	TaxAmount                   float64              `json:"TaxAmount"`
	TotalAfterTaxAmount         float64              `json:"TotalAfterTaxAmount"`
	PaymentInformation          []PaymentInformation `json:"PaymentInformation"`
}

type PaymentInformation struct {
	PaymentType  string  `json:"PaymentType"`
	PaymentValue float64 `json:"PaymentValue"`
}

// Items flattens the line items of every delivery, keeping delivery order.
func (o Order) Items() []OrderItem {
	var out []OrderItem
	for _, d := range o.DeliverySummary {
		out = append(out, d.OrderItems...)
	}
	return out
}

// PrimaryDelivery returns the first delivery summary, if any.
func (o Order) PrimaryDelivery() (DeliverySummary, bool) {
	if len(o.DeliverySummary) == 0 {
		return DeliverySummary{}, false
	}
	return o.DeliverySummary[0], true
}

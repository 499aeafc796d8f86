package models

import "time"

// TimestampLayout is the ISO-8601 form used for createdAt/updatedAt.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp formats t the way stored documents carry it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// InvoiceDocument is the persisted root record: file metadata plus the
// extracted vendor and invoice data.
type InvoiceDocument struct {
	ID        int64   `json:"_id,omitempty"`
	FileID    string  `json:"fileId"`
	FileName  string  `json:"fileName"`
	Vendor    Vendor  `json:"vendor"`
	Invoice   Invoice `json:"invoice"`
	CreatedAt string  `json:"createdAt,omitempty"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
}

type Vendor struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	TaxID   string `json:"taxId,omitempty"`
}

type Invoice struct {
	Number     string     `json:"number"`
	Date       string     `json:"date"`
	Currency   string     `json:"currency,omitempty"`
	Subtotal   *float64   `json:"subtotal,omitempty"`
	TaxPercent *float64   `json:"taxPercent,omitempty"`
	Total      *float64   `json:"total,omitempty"`
	PONumber   string     `json:"poNumber,omitempty"`
	PODate     string     `json:"poDate,omitempty"`
	LineItems  []LineItem `json:"lineItems"`
}

// LineItem is one billed row. Total is expected to equal UnitPrice * Quantity.
type LineItem struct {
	Description string  `json:"description"`
	UnitPrice   float64 `json:"unitPrice"`
	Quantity    float64 `json:"quantity"`
	Total       float64 `json:"total"`
}

// Recalculate restores Total = UnitPrice * Quantity.
func (li *LineItem) Recalculate() {
	li.Total = li.UnitPrice * li.Quantity
}

// Clone returns a deep copy of the document.
func (d *InvoiceDocument) Clone() *InvoiceDocument {
	if d == nil {
		return nil
	}
	out := *d
	out.Invoice.Subtotal = cloneFloat(d.Invoice.Subtotal)
	out.Invoice.TaxPercent = cloneFloat(d.Invoice.TaxPercent)
	out.Invoice.Total = cloneFloat(d.Invoice.Total)
	if d.Invoice.LineItems != nil {
		out.Invoice.LineItems = make([]LineItem, len(d.Invoice.LineItems))
		copy(out.Invoice.LineItems, d.Invoice.LineItems)
	}
	return &out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float returns a pointer to v, for the optional numeric invoice fields.
func Float(v float64) *float64 {
	return &v
}

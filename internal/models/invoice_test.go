package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLineItemRecalculate(t *testing.T) {
	li := LineItem{UnitPrice: 10, Quantity: 3, Total: 1}
	li.Recalculate()
	assert.Equal(t, 30.0, li.Total)
}

func TestCloneIsDeep(t *testing.T) {
	doc := &InvoiceDocument{
		FileID:  "f-1",
		Invoice: Invoice{Number: "INV-1", Total: Float(5), LineItems: []LineItem{{UnitPrice: 5, Quantity: 1, Total: 5}}},
	}
	cp := doc.Clone()
	cp.Invoice.LineItems[0].Quantity = 9
	*cp.Invoice.Total = 45

	assert.Equal(t, 1.0, doc.Invoice.LineItems[0].Quantity)
	assert.Equal(t, 5.0, *doc.Invoice.Total)
}

func TestTimestampFormat(t *testing.T) {
	ts := time.Date(2024, 1, 15, 9, 30, 0, 123_000_000, time.FixedZone("X", 3600))
	assert.Equal(t, "2024-01-15T08:30:00.123Z", Timestamp(ts))
}

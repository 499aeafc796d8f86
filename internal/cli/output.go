package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"invoicedash/internal/models"
)

// printer writes command results as indented JSON or plain text.
type printer struct {
	format string
	w      io.Writer
}

func (p printer) writeJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// result prints v as JSON, or calls text for the human-readable form.
func (p printer) result(v any, text func(w io.Writer)) error {
	if p.format == "json" {
		return p.writeJSON(v)
	}
	text(p.w)
	return nil
}

func (p printer) invoice(doc *models.InvoiceDocument) error {
	return p.result(doc, func(w io.Writer) { writeInvoice(w, doc) })
}

func (p printer) invoices(docs []*models.InvoiceDocument) error {
	return p.result(docs, func(w io.Writer) {
		if len(docs) == 0 {
			fmt.Fprintln(w, "No invoices found.")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNUMBER\tVENDOR\tDATE\tTOTAL\tCREATED")
		for _, doc := range docs {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
				doc.ID, doc.Invoice.Number, doc.Vendor.Name, doc.Invoice.Date,
				amount(doc.Invoice.Total, doc.Invoice.Currency), doc.CreatedAt)
		}
		tw.Flush()
	})
}

func writeInvoice(w io.Writer, doc *models.InvoiceDocument) {
	if doc.ID > 0 {
		fmt.Fprintf(w, "ID:        %d\n", doc.ID)
	}
	fmt.Fprintf(w, "File:      %s (%s)\n", doc.FileName, doc.FileID)
	fmt.Fprintf(w, "Vendor:    %s\n", doc.Vendor.Name)
	if doc.Vendor.Address != "" {
		fmt.Fprintf(w, "Address:   %s\n", doc.Vendor.Address)
	}
	if doc.Vendor.TaxID != "" {
		fmt.Fprintf(w, "Tax ID:    %s\n", doc.Vendor.TaxID)
	}
	fmt.Fprintf(w, "Invoice:   %s dated %s\n", doc.Invoice.Number, doc.Invoice.Date)
	if doc.Invoice.PONumber != "" {
		fmt.Fprintf(w, "PO:        %s %s\n", doc.Invoice.PONumber, doc.Invoice.PODate)
	}
	if len(doc.Invoice.LineItems) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  DESCRIPTION\tUNIT PRICE\tQTY\tTOTAL")
		for _, li := range doc.Invoice.LineItems {
			fmt.Fprintf(tw, "  %s\t%.2f\t%g\t%.2f\n", li.Description, li.UnitPrice, li.Quantity, li.Total)
		}
		tw.Flush()
	}
	fmt.Fprintf(w, "Subtotal:  %s\n", amount(doc.Invoice.Subtotal, doc.Invoice.Currency))
	if doc.Invoice.TaxPercent != nil {
		fmt.Fprintf(w, "Tax:       %g%%\n", *doc.Invoice.TaxPercent)
	}
	fmt.Fprintf(w, "Total:     %s\n", amount(doc.Invoice.Total, doc.Invoice.Currency))
}

func amount(v *float64, currency string) string {
	if v == nil {
		return "-"
	}
	return strings.TrimSpace(fmt.Sprintf("%.2f %s", *v, currency))
}

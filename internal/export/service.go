package export

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"invoicedash/internal/models"
)

const (
	invoiceSheet  = "Invoices"
	lineItemSheet = "Line Items"
)

// Lister is the part of the record store the export needs.
type Lister interface {
	List(ctx context.Context, query string) ([]*models.InvoiceDocument, error)
}

// Service renders stored invoices as an XLSX workbook.
type Service struct {
	invoices Lister
	log      *zap.Logger
}

func NewService(invoices Lister, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{invoices: invoices, log: log}
}

// InvoicesXLSX exports the invoices matching query, using the same search and
// limit as the listing endpoint.
func (s *Service) InvoicesXLSX(ctx context.Context, query string) ([]byte, error) {
	start := time.Now()
	docs, err := s.invoices.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	out, err := Workbook(docs)
	if err != nil {
		return nil, err
	}
	s.log.Info("invoice export written",
		zap.String("query", query),
		zap.Int("rows", len(docs)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return out, nil
}

// Workbook builds a workbook with one row per invoice on the first sheet and
// one row per line item on the second.
func Workbook(docs []*models.InvoiceDocument) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// the default sheet becomes the invoice sheet
	if err := f.SetSheetName(f.GetSheetName(0), invoiceSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(lineItemSheet); err != nil {
		return nil, err
	}

	if err := writeRow(f, invoiceSheet, 1, []any{
		"ID", "File", "Vendor", "Vendor Address", "Tax ID", "Invoice Number", "Date",
		"Currency", "Subtotal", "Tax %", "Total", "PO Number", "PO Date", "Created At", "Updated At",
	}); err != nil {
		return nil, err
	}
	if err := writeRow(f, lineItemSheet, 1, []any{
		"Invoice ID", "Invoice Number", "Description", "Unit Price", "Quantity", "Total",
	}); err != nil {
		return nil, err
	}

	itemRow := 2
	for i, doc := range docs {
		inv := doc.Invoice
		if err := writeRow(f, invoiceSheet, i+2, []any{
			doc.ID, doc.FileName, doc.Vendor.Name, doc.Vendor.Address, doc.Vendor.TaxID,
			inv.Number, inv.Date, inv.Currency, optional(inv.Subtotal), optional(inv.TaxPercent),
			optional(inv.Total), inv.PONumber, inv.PODate, doc.CreatedAt, doc.UpdatedAt,
		}); err != nil {
			return nil, err
		}
		for _, item := range inv.LineItems {
			if err := writeRow(f, lineItemSheet, itemRow, []any{
				doc.ID, inv.Number, item.Description, item.UnitPrice, item.Quantity, item.Total,
			}); err != nil {
				return nil, err
			}
			itemRow++
		}
	}

	widths := []struct {
		sheet, from, to string
		width           float64
	}{
		{invoiceSheet, "B", "B", 24},
		{invoiceSheet, "C", "D", 32},
		{invoiceSheet, "F", "F", 18},
		{invoiceSheet, "N", "O", 26},
		{lineItemSheet, "C", "C", 40},
	}
	for _, w := range widths {
		if err := f.SetColWidth(w.sheet, w.from, w.to, w.width); err != nil {
			return nil, fmt.Errorf("set %s column width: %w", w.sheet, err)
		}
	}
	if err := f.SetPanes(invoiceSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// optional leaves the cell blank for missing amounts.
func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

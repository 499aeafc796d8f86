package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"invoicedash/internal/models"
)

// View is the screen the workbench is on.
type View string

const (
	ViewUpload View = "upload"
	ViewEdit   View = "view"
	ViewList   View = "list"
)

var (
	ErrBusy          = errors.New("a request of this kind is already in flight")
	ErrNoFile        = errors.New("no PDF file selected")
	ErrNotPDF        = errors.New("only PDF files can be uploaded")
	ErrNotUploaded   = errors.New("upload the selected file before extracting")
	ErrNoDocument    = errors.New("no invoice is open")
	ErrNotSaved      = errors.New("invoice has not been saved yet")
	ErrLineItemIndex = errors.New("line item index out of range")
)

// API is the part of Client the workbench drives.
type API interface {
	Upload(ctx context.Context, fileName string, r io.Reader) (*UploadResult, error)
	Extract(ctx context.Context, fileID, model string) (*models.InvoiceDocument, error)
	ListInvoices(ctx context.Context, query string) ([]*models.InvoiceDocument, error)
	GetInvoice(ctx context.Context, id int64) (*models.InvoiceDocument, error)
	CreateInvoice(ctx context.Context, doc *models.InvoiceDocument) (*models.InvoiceDocument, error)
	UpdateInvoice(ctx context.Context, id int64, doc *models.InvoiceDocument) (*models.InvoiceDocument, error)
	DeleteInvoice(ctx context.Context, id int64) error
}

// Workbench holds the local state of one user session: the selected file,
// the invoice being edited and the fetched list. All edits stay in memory
// until Save or SaveChanges.
type Workbench struct {
	api API

	mu         sync.Mutex
	view       View
	fileName   string
	fileData   []byte
	fileID     string
	form       *models.InvoiceDocument
	invoices   []*models.InvoiceDocument
	search     string
	uploading  bool
	extracting bool
}

func NewWorkbench(api API) *Workbench {
	return &Workbench{api: api, view: ViewUpload}
}

func (w *Workbench) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.view
}

// SetView switches tabs without touching the form or the list.
func (w *Workbench) SetView(v View) {
	w.mu.Lock()
	w.view = v
	w.mu.Unlock()
}

// FileID is the id of the last successful upload, "" before that.
func (w *Workbench) FileID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fileID
}

func (w *Workbench) Busy() (uploading, extracting bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.uploading, w.extracting
}

// Form returns a copy of the invoice being edited, or nil.
func (w *Workbench) Form() *models.InvoiceDocument {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form.Clone()
}

// SelectFile picks the PDF to upload. Selecting a new file forgets the
// previous upload.
func (w *Workbench) SelectFile(name string, data []byte) error {
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return ErrNotPDF
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fileName = filepath.Base(name)
	w.fileData = data
	w.fileID = ""
	return nil
}

func (w *Workbench) Upload(ctx context.Context) (*UploadResult, error) {
	w.mu.Lock()
	if w.uploading {
		w.mu.Unlock()
		return nil, ErrBusy
	}
	if w.fileData == nil {
		w.mu.Unlock()
		return nil, ErrNoFile
	}
	w.uploading = true
	name, data := w.fileName, w.fileData
	w.mu.Unlock()

	res, err := w.api.Upload(ctx, name, bytes.NewReader(data))

	w.mu.Lock()
	defer w.mu.Unlock()
	w.uploading = false
	if err != nil {
		return nil, err
	}
	w.fileID = res.FileID
	return res, nil
}

// Extract runs the model on the uploaded file and opens the result in the
// editor.
func (w *Workbench) Extract(ctx context.Context, model string) (*models.InvoiceDocument, error) {
	w.mu.Lock()
	if w.extracting {
		w.mu.Unlock()
		return nil, ErrBusy
	}
	if w.fileID == "" {
		w.mu.Unlock()
		return nil, ErrNotUploaded
	}
	w.extracting = true
	fileID := w.fileID
	w.mu.Unlock()

	doc, err := w.api.Extract(ctx, fileID, model)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.extracting = false
	if err != nil {
		return nil, err
	}
	if doc.Invoice.LineItems == nil {
		doc.Invoice.LineItems = []models.LineItem{}
	}
	w.form = doc.Clone()
	w.view = ViewEdit
	return doc, nil
}

func (w *Workbench) edit(fn func(doc *models.InvoiceDocument) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.form == nil {
		return ErrNoDocument
	}
	return fn(w.form)
}

func (w *Workbench) SetVendorName(v string) error {
	return w.edit(func(d *models.InvoiceDocument) error { d.Vendor.Name = v; return nil })
}

func (w *Workbench) SetVendorAddress(v string) error {
	return w.edit(func(d *models.InvoiceDocument) error { d.Vendor.Address = v; return nil })
}

func (w *Workbench) SetVendorTaxID(v string) error {
	return w.edit(func(d *models.InvoiceDocument) error { d.Vendor.TaxID = v; return nil })
}

func (w *Workbench) SetInvoiceNumber(v string) error {
	return w.edit(func(d *models.InvoiceDocument) error { d.Invoice.Number = v; return nil })
}

func (w *Workbench) SetInvoiceDate(v string) error {
	return w.edit(func(d *models.InvoiceDocument) error { d.Invoice.Date = v; return nil })
}

func (w *Workbench) SetCurrency(v string) error {
	return w.edit(func(d *models.InvoiceDocument) error { d.Invoice.Currency = v; return nil })
}

func (w *Workbench) SetSubtotal(v float64) error {
	return w.edit(func(d *models.InvoiceDocument) error { d.Invoice.Subtotal = models.Float(v); return nil })
}

func (w *Workbench) SetTaxPercent(v float64) error {
	return w.edit(func(d *models.InvoiceDocument) error { d.Invoice.TaxPercent = models.Float(v); return nil })
}

func (w *Workbench) SetTotal(v float64) error {
	return w.edit(func(d *models.InvoiceDocument) error { d.Invoice.Total = models.Float(v); return nil })
}

func (w *Workbench) SetPONumber(v string) error {
	return w.edit(func(d *models.InvoiceDocument) error { d.Invoice.PONumber = v; return nil })
}

func (w *Workbench) SetPODate(v string) error {
	return w.edit(func(d *models.InvoiceDocument) error { d.Invoice.PODate = v; return nil })
}

// AddLineItem appends an empty line with quantity 1 and returns its index.
func (w *Workbench) AddLineItem() (int, error) {
	idx := -1
	err := w.edit(func(d *models.InvoiceDocument) error {
		d.Invoice.LineItems = append(d.Invoice.LineItems, models.LineItem{Quantity: 1})
		idx = len(d.Invoice.LineItems) - 1
		return nil
	})
	return idx, err
}

func (w *Workbench) RemoveLineItem(i int) error {
	return w.editLine(i, func(d *models.InvoiceDocument, _ *models.LineItem) {
		items := d.Invoice.LineItems
		d.Invoice.LineItems = append(items[:i:i], items[i+1:]...)
	})
}

func (w *Workbench) SetLineItemDescription(i int, v string) error {
	return w.editLine(i, func(_ *models.InvoiceDocument, li *models.LineItem) { li.Description = v })
}

// SetLineItemUnitPrice also recomputes the line total.
func (w *Workbench) SetLineItemUnitPrice(i int, v float64) error {
	return w.editLine(i, func(_ *models.InvoiceDocument, li *models.LineItem) {
		li.UnitPrice = v
		li.Recalculate()
	})
}

// SetLineItemQuantity also recomputes the line total.
func (w *Workbench) SetLineItemQuantity(i int, v float64) error {
	return w.editLine(i, func(_ *models.InvoiceDocument, li *models.LineItem) {
		li.Quantity = v
		li.Recalculate()
	})
}

func (w *Workbench) editLine(i int, fn func(d *models.InvoiceDocument, li *models.LineItem)) error {
	return w.edit(func(d *models.InvoiceDocument) error {
		if i < 0 || i >= len(d.Invoice.LineItems) {
			return ErrLineItemIndex
		}
		fn(d, &d.Invoice.LineItems[i])
		return nil
	})
}

// Save creates the edited invoice on the server, then switches to the list
// and refreshes it.
func (w *Workbench) Save(ctx context.Context) (*models.InvoiceDocument, error) {
	form := w.Form()
	if form == nil {
		return nil, ErrNoDocument
	}
	created, err := w.api.CreateInvoice(ctx, form)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.form = created.Clone()
	w.view = ViewList
	w.mu.Unlock()
	if err := w.Refresh(ctx); err != nil {
		return created, err
	}
	return created, nil
}

// SaveChanges updates the stored invoice that is open in the editor.
func (w *Workbench) SaveChanges(ctx context.Context) (*models.InvoiceDocument, error) {
	form := w.Form()
	if form == nil {
		return nil, ErrNoDocument
	}
	if form.ID == 0 {
		return nil, ErrNotSaved
	}
	updated, err := w.api.UpdateInvoice(ctx, form.ID, form)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form = updated.Clone()
	for i, doc := range w.invoices {
		if doc.ID == updated.ID {
			w.invoices[i] = updated.Clone()
		}
	}
	return updated, nil
}

// Refresh reloads the newest invoices from the server.
func (w *Workbench) Refresh(ctx context.Context) error {
	docs, err := w.api.ListInvoices(ctx, "")
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.invoices = docs
	w.mu.Unlock()
	return nil
}

// Filter sets the search term and returns the matching loaded invoices.
// Matching is local and case-insensitive on vendor name and invoice number.
func (w *Workbench) Filter(term string) []*models.InvoiceDocument {
	w.mu.Lock()
	w.search = term
	w.mu.Unlock()
	return w.Invoices()
}

// Invoices returns the loaded invoices that match the current search term.
func (w *Workbench) Invoices() []*models.InvoiceDocument {
	w.mu.Lock()
	defer w.mu.Unlock()
	term := strings.ToLower(w.search)
	out := make([]*models.InvoiceDocument, 0, len(w.invoices))
	for _, doc := range w.invoices {
		if term == "" ||
			strings.Contains(strings.ToLower(doc.Vendor.Name), term) ||
			strings.Contains(strings.ToLower(doc.Invoice.Number), term) {
			out = append(out, doc.Clone())
		}
	}
	return out
}

// Open loads a stored invoice into the editor.
func (w *Workbench) Open(ctx context.Context, id int64) error {
	doc, err := w.api.GetInvoice(ctx, id)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form = doc.Clone()
	w.view = ViewEdit
	return nil
}

// Delete removes an invoice on the server and from the loaded list.
func (w *Workbench) Delete(ctx context.Context, id int64) error {
	if err := w.api.DeleteInvoice(ctx, id); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	kept := w.invoices[:0]
	for _, doc := range w.invoices {
		if doc.ID != id {
			kept = append(kept, doc)
		}
	}
	w.invoices = kept
	if w.form != nil && w.form.ID == id {
		w.form = nil
	}
	return nil
}

package invoice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"invoicedash/internal/apperr"
	"invoicedash/internal/models"
	"invoicedash/internal/schema"
)

// ListLimit caps every listing.
const ListLimit = 50

const mysqlDuplicateEntry = 1062

// patchable lists the top-level document fields an update may replace.
var patchable = []string{"fileId", "fileName", "vendor", "invoice"}

// Service persists invoice documents.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

// NewService builds a new invoice record store.
func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// documentBody is the JSON stored in the document column.
type documentBody struct {
	Vendor  models.Vendor  `json:"vendor"`
	Invoice models.Invoice `json:"invoice"`
}

type rowScanner interface {
	Scan(dest ...any) error
}

const selectColumns = `SELECT id, file_id, file_name, document, created_at, updated_at FROM invoices`

// Create validates and inserts a new document. Server-side timestamps replace
// whatever the caller supplied.
func (s *Service) Create(ctx context.Context, doc *models.InvoiceDocument) (*models.InvoiceDocument, error) {
	if doc == nil {
		return nil, apperr.New(apperr.InvalidArgument, "invoice document is required")
	}
	out := doc.Clone()
	out.ID = 0
	out.CreatedAt = models.Timestamp(s.now())
	out.UpdatedAt = ""
	if out.Invoice.LineItems == nil {
		out.Invoice.LineItems = []models.LineItem{}
	}
	if err := validate(out); err != nil {
		return nil, err
	}
	if err := s.ensureFileIDFree(ctx, out.FileID, 0); err != nil {
		return nil, err
	}
	if err := s.insert(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// insert stores out and sets its id. A fileId taken by a concurrent writer
// after ensureFileIDFree surfaces here through the unique index.
func (s *Service) insert(ctx context.Context, out *models.InvoiceDocument) error {
	body, err := json.Marshal(documentBody{Vendor: out.Vendor, Invoice: out.Invoice})
	if err != nil {
		return fmt.Errorf("encode invoice: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO invoices (file_id, file_name, vendor_name, invoice_number, document, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		out.FileID, out.FileName, out.Vendor.Name, out.Invoice.Number, string(body), out.CreatedAt, "",
	)
	if err != nil {
		return writeError("create invoice", out.FileID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("invoice id: %w", err)
	}
	out.ID = id
	return nil
}

// List returns the newest documents first, at most ListLimit of them. A
// non-empty query keeps documents where any whitespace-separated term occurs,
// case-insensitively, in the vendor name or the invoice number.
func (s *Service) List(ctx context.Context, query string) ([]*models.InvoiceDocument, error) {
	var (
		where []string
		args  []any
	)
	for _, term := range strings.Fields(strings.ToLower(query)) {
		pattern := "%" + escapeLike(term) + "%"
		where = append(where, `LOWER(vendor_name) LIKE ? ESCAPE '!' OR LOWER(invoice_number) LIKE ? ESCAPE '!'`)
		args = append(args, pattern, pattern)
	}
	stmt := selectColumns
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " OR ")
	}
	stmt += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, ListLimit)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	docs := make([]*models.InvoiceDocument, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Get returns one document by id.
func (s *Service) Get(ctx context.Context, id int64) (*models.InvoiceDocument, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Wrap(apperr.NotFound, "Invoice not found", err)
		}
		return nil, err
	}
	return doc, nil
}

// Update merges the top-level fields present in patch into the stored
// document, validates the result and stamps updatedAt. _id, createdAt and
// updatedAt in the patch are ignored.
func (s *Service) Update(ctx context.Context, id int64, patch []byte) (*models.InvoiceDocument, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(patch, &fields); err != nil {
		return nil, apperr.Wrap(apperr.ValidationError, "update body must be a JSON object", err)
	}

	currentRaw, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("encode invoice: %w", err)
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(currentRaw, &merged); err != nil {
		return nil, fmt.Errorf("decode invoice: %w", err)
	}
	for _, key := range patchable {
		if v, ok := fields[key]; ok {
			merged[key] = v
		}
	}
	mergedRaw, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode merged invoice: %w", err)
	}
	if err := schema.Validate(mergedRaw); err != nil {
		return nil, apperr.Wrap(apperr.ValidationError, "Invoice validation failed", err)
	}
	var next models.InvoiceDocument
	if err := json.Unmarshal(mergedRaw, &next); err != nil {
		return nil, apperr.Wrap(apperr.ValidationError, "Invoice validation failed", err)
	}
	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = models.Timestamp(s.now())
	if next.Invoice.LineItems == nil {
		next.Invoice.LineItems = []models.LineItem{}
	}
	if next.FileID != current.FileID {
		if err := s.ensureFileIDFree(ctx, next.FileID, id); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(documentBody{Vendor: next.Vendor, Invoice: next.Invoice})
	if err != nil {
		return nil, fmt.Errorf("encode invoice: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE invoices SET file_id = ?, file_name = ?, vendor_name = ?, invoice_number = ?, document = ?, updated_at = ?
		 WHERE id = ?`,
		next.FileID, next.FileName, next.Vendor.Name, next.Invoice.Number, string(body), next.UpdatedAt, id,
	); err != nil {
		return nil, writeError("update invoice", next.FileID, err)
	}
	return &next, nil
}

// Delete removes a document permanently.
func (s *Service) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return apperr.Wrap(apperr.NotFound, "Invoice not found", sql.ErrNoRows)
	}
	return nil
}

func (s *Service) ensureFileIDFree(ctx context.Context, fileID string, selfID int64) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM invoices WHERE file_id = ? AND id <> ?)`,
		fileID, selfID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("verify file id: %w", err)
	}
	if exists {
		return apperr.New(apperr.ValidationError, fileIDTaken(fileID))
	}
	return nil
}

func fileIDTaken(fileID string) string {
	return fmt.Sprintf("an invoice for fileId %s already exists", fileID)
}

func writeError(op, fileID string, err error) error {
	if isUniqueViolation(err) {
		return apperr.Wrap(apperr.ValidationError, fileIDTaken(fileID), err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isUniqueViolation reports a duplicate key from sqlite or mysql.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}

func validate(doc *models.InvoiceDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode invoice: %w", err)
	}
	if err := schema.Validate(raw); err != nil {
		return apperr.Wrap(apperr.ValidationError, "Invoice validation failed", err)
	}
	return nil
}

func scanDocument(row rowScanner) (*models.InvoiceDocument, error) {
	var (
		doc  models.InvoiceDocument
		body string
	)
	if err := row.Scan(&doc.ID, &doc.FileID, &doc.FileName, &body, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	var decoded documentBody
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return nil, fmt.Errorf("decode invoice %d: %w", doc.ID, err)
	}
	doc.Vendor = decoded.Vendor
	doc.Invoice = decoded.Invoice
	if doc.Invoice.LineItems == nil {
		doc.Invoice.LineItems = []models.LineItem{}
	}
	return &doc, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}

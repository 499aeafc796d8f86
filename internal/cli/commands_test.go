package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicedash/internal/api"
	"invoicedash/internal/apperr"
	"invoicedash/internal/client"
	"invoicedash/internal/export"
	"invoicedash/internal/models"
	"invoicedash/internal/service/invoice"
	"invoicedash/internal/storage"
	"invoicedash/internal/upload"
)

type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, fileID, variant string) (*models.InvoiceDocument, error) {
	if variant != "gemini" {
		return nil, apperr.New(apperr.ConfigurationError, "GROQ_API_KEY not configured")
	}
	return &models.InvoiceDocument{
		FileID:   fileID,
		FileName: "acme.pdf",
		Vendor:   models.Vendor{Name: "Acme Corporation"},
		Invoice: models.Invoice{
			Number:    "INV-2024-001",
			Date:      "2024-01-15",
			Currency:  "USD",
			Total:     models.Float(5400),
			LineItems: []models.LineItem{{Description: "Web Development Services", UnitPrice: 5000, Quantity: 1, Total: 5000}},
		},
	}, nil
}

func newTestServer(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := storage.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db, "sqlite3"))
	t.Cleanup(func() { db.Close() })

	invoices := invoice.NewService(db)
	uploads := upload.NewService(upload.NewMemoryRegistry(), time.Hour, nil)
	router := gin.New()
	api.NewHandler(invoices, stubExtractor{}, uploads, export.NewService(invoices, nil), nil, nil).RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL
}

func execute(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(append([]string{"--server", server}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SilenceErrors = true
	err := cmd.Execute()
	return out.String(), err
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "acme-invoice.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n%%EOF\n"), 0o600))
	return path
}

func TestUploadAndExtractCommands(t *testing.T) {
	server := newTestServer(t)
	pdf := writePDF(t)

	out, err := execute(t, server, "--format", "json", "upload", pdf)
	require.NoError(t, err)
	var uploaded client.UploadResult
	require.NoError(t, json.Unmarshal([]byte(out), &uploaded))
	assert.NotEmpty(t, uploaded.FileID)
	assert.Equal(t, "acme-invoice.pdf", uploaded.FileName)

	out, err = execute(t, server, "extract", uploaded.FileID)
	require.NoError(t, err)
	assert.Contains(t, out, "Vendor:    Acme Corporation")
	assert.Contains(t, out, "INV-2024-001 dated 2024-01-15")
	assert.Contains(t, out, "5400.00 USD")

	_, err = execute(t, server, "extract", "--model", "groq", uploaded.FileID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GROQ_API_KEY not configured")
}

func TestUploadMissingFile(t *testing.T) {
	server := newTestServer(t)
	_, err := execute(t, server, "upload", filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestProcessRequiresPDFExtension(t *testing.T) {
	server := newTestServer(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	_, err := execute(t, server, "process", path)
	assert.ErrorIs(t, err, client.ErrNotPDF)
}

func TestProcessSaveListGetExportDelete(t *testing.T) {
	server := newTestServer(t)
	pdf := writePDF(t)

	out, err := execute(t, server, "--format", "json", "process", "--save", pdf)
	require.NoError(t, err)
	var saved models.InvoiceDocument
	require.NoError(t, json.Unmarshal([]byte(out), &saved))
	require.Positive(t, saved.ID)
	assert.Equal(t, "Acme Corporation", saved.Vendor.Name)
	id := strconv.FormatInt(saved.ID, 10)

	out, err = execute(t, server, "list", "-q", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, "INV-2024-001")
	assert.Contains(t, out, "Acme Corporation")

	out, err = execute(t, server, "list", "-q", "nomatch")
	require.NoError(t, err)
	assert.Contains(t, out, "No invoices found.")

	out, err = execute(t, server, "--format", "json", "get", id)
	require.NoError(t, err)
	var got models.InvoiceDocument
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, saved.ID, got.ID)

	dest := filepath.Join(t.TempDir(), "out.xlsx")
	out, err = execute(t, server, "export", "-o", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+dest)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")), "xlsx is a zip archive")

	out, err = execute(t, server, "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted invoice "+id)

	_, err = execute(t, server, "get", id)
	require.Error(t, err)
	assert.True(t, client.IsNotFound(err), "got %v", err)
}

func TestProcessWithoutSaveStoresNothing(t *testing.T) {
	server := newTestServer(t)

	out, err := execute(t, server, "process", writePDF(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Acme Corporation")
	assert.NotContains(t, out, "ID:")

	out, err = execute(t, server, "--format", "json", "list")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"invoicedash/internal/apperr"
	"invoicedash/internal/metrics"
	"invoicedash/internal/models"
	"invoicedash/internal/upload"
)

const (
	// multipart framing on top of the largest accepted file
	maxUploadBytes = upload.MaxFileSize + 1<<20
	maxJSONBytes   = 8 << 20
	xlsxMimeType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// InvoiceStore is the record store behind /api/invoices.
type InvoiceStore interface {
	Create(ctx context.Context, doc *models.InvoiceDocument) (*models.InvoiceDocument, error)
	List(ctx context.Context, query string) ([]*models.InvoiceDocument, error)
	Get(ctx context.Context, id int64) (*models.InvoiceDocument, error)
	Update(ctx context.Context, id int64, patch []byte) (*models.InvoiceDocument, error)
	Delete(ctx context.Context, id int64) error
}

type Extractor interface {
	Extract(ctx context.Context, fileID, variant string) (*models.InvoiceDocument, error)
}

type Uploader interface {
	Upload(ctx context.Context, r io.Reader, size int64, declaredMime, fileName string) (*models.UploadedFile, error)
}

type Exporter interface {
	InvoicesXLSX(ctx context.Context, query string) ([]byte, error)
}

// Handler wires HTTP routes to the upload, extraction and invoice services.
type Handler struct {
	invoices  InvoiceStore
	extractor Extractor
	uploads   Uploader
	exporter  Exporter
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
}

// NewHandler constructs a Handler instance. metrics may be nil.
func NewHandler(invoices InvoiceStore, extractor Extractor, uploads Uploader, exporter Exporter, m *metrics.Metrics, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		invoices:  invoices,
		extractor: extractor,
		uploads:   uploads,
		exporter:  exporter,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// RegisterRoutes installs the middleware chain and attaches all HTTP routes
// to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(), h.metrics.GinMiddleware(), recoveryMiddleware(h.log), errorMiddleware(h.log))
	router.NoRoute(notFoundRoute)

	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	api := router.Group("/api")
	api.GET("/health", h.health)
	api.POST("/upload", h.uploadPDF)
	api.POST("/extract", h.extract)

	invoices := api.Group("/invoices")
	invoices.GET("", h.listInvoices)
	invoices.POST("", h.createInvoice)
	invoices.GET("/export", h.exportInvoices)
	invoices.GET("/:id", h.getInvoice)
	invoices.PUT("/:id", h.updateInvoice)
	invoices.DELETE("/:id", h.deleteInvoice)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": models.Timestamp(h.now()),
	})
}

func (h *Handler) uploadPDF(c *gin.Context) {
	if c.Request.ContentLength > maxUploadBytes {
		abortWithError(c, apperr.New(apperr.PayloadTooLarge, "File exceeds the 25 MiB limit"))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	fh, err := c.FormFile("pdf")
	if err != nil {
		abortWithError(c, formFileError(err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		abortWithError(c, apperr.Wrap(apperr.Unexpected, "open upload failed", err))
		return
	}
	defer f.Close()

	file, err := h.uploads.Upload(c.Request.Context(), f, fh.Size, fh.Header.Get("Content-Type"), fh.Filename)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.metrics.ObserveUpload(file.Size)
	respond(c, http.StatusOK, gin.H{
		"fileId":   file.FileID,
		"fileName": file.FileName,
	}, "PDF uploaded successfully")
}

func formFileError(err error) error {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr), strings.Contains(err.Error(), "request body too large"):
		return apperr.Wrap(apperr.PayloadTooLarge, "File exceeds the 25 MiB limit", err)
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return apperr.Wrap(apperr.InvalidArgument, "No PDF file uploaded", err)
	default:
		return apperr.Wrap(apperr.InvalidArgument, "invalid multipart form", err)
	}
}

type extractRequest struct {
	FileID string `json:"fileId"`
	Model  string `json:"model"`
}

func (h *Handler) extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.Wrap(apperr.InvalidArgument, "invalid request body", err))
		return
	}
	start := time.Now()
	doc, err := h.extractor.Extract(c.Request.Context(), req.FileID, req.Model)
	h.metrics.ObserveExtraction(providerLabel(req.Model), time.Since(start), err)
	if err != nil {
		abortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, doc, "Data extracted successfully")
}

func providerLabel(model string) string {
	switch model {
	case "gemini", "groq":
		return model
	default:
		return "unknown"
	}
}

func (h *Handler) listInvoices(c *gin.Context) {
	docs, err := h.invoices.List(c.Request.Context(), c.Query("q"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, docs, "Invoices retrieved successfully")
}

func (h *Handler) createInvoice(c *gin.Context) {
	var doc models.InvoiceDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		abortWithError(c, apperr.Wrap(apperr.ValidationError, "invalid invoice document", err))
		return
	}
	created, err := h.invoices.Create(c.Request.Context(), &doc)
	if err != nil {
		abortWithError(c, err)
		return
	}
	respond(c, http.StatusCreated, created, "Invoice created successfully")
}

func (h *Handler) getInvoice(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}
	doc, err := h.invoices.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, doc, "Invoice retrieved successfully")
}

func (h *Handler) updateInvoice(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}
	patch, err := io.ReadAll(io.LimitReader(c.Request.Body, maxJSONBytes))
	if err != nil {
		abortWithError(c, apperr.Wrap(apperr.InvalidArgument, "invalid request body", err))
		return
	}
	doc, err := h.invoices.Update(c.Request.Context(), id, patch)
	if err != nil {
		abortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, doc, "Invoice updated successfully")
}

func (h *Handler) deleteInvoice(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}
	if err := h.invoices.Delete(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "Invoice deleted successfully")
}

func (h *Handler) exportInvoices(c *gin.Context) {
	out, err := h.exporter.InvoicesXLSX(c.Request.Context(), c.Query("q"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	name := fmt.Sprintf("invoices-%s.xlsx", h.now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, xlsxMimeType, out)
}

func invoiceID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, apperr.Newf(apperr.InvalidArgument, "invalid invoice id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

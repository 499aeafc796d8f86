package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"invoicedash/internal/apperr"
	"invoicedash/internal/config"
	"invoicedash/internal/models"
	invoiceschema "invoicedash/internal/schema"
)

const fallbackFileName = "invoice.pdf"

// Extractor turns one uploaded file into an invoice document.
type Extractor interface {
	Extract(ctx context.Context, fileID string) (*models.InvoiceDocument, error)
}

// FileLookup resolves upload metadata for a file id.
type FileLookup interface {
	Lookup(ctx context.Context, fileID string) (*models.UploadedFile, error)
}

// Adapter dispatches to the extractor registered for a variant.
type Adapter struct {
	extractors map[Variant]Extractor
}

func NewAdapter(extractors map[Variant]Extractor) *Adapter {
	return &Adapter{extractors: extractors}
}

// Extract validates the request and runs the selected backend.
func (a *Adapter) Extract(ctx context.Context, fileID, variant string) (*models.InvoiceDocument, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" || strings.TrimSpace(variant) == "" {
		return nil, apperr.New(apperr.InvalidArgument, "fileId and model are required")
	}
	v, err := ParseVariant(variant)
	if err != nil {
		return nil, err
	}
	ex, ok := a.extractors[v]
	if !ok || ex == nil {
		return nil, apperr.Newf(apperr.ConfigurationError, "%s extraction is not available", v.Title())
	}
	return ex.Extract(ctx, fileID)
}

// ChatExtractor prompts a chat model with invoice text and parses its JSON
// reply into a validated document.
type ChatExtractor struct {
	variant  Variant
	cfg      config.ProviderConfig
	newModel ModelFactory
	source   TextSource
	files    FileLookup
	log      *zap.Logger
	now      func() time.Time
}

type Option func(*ChatExtractor)

func WithModelFactory(f ModelFactory) Option {
	return func(e *ChatExtractor) { e.newModel = f }
}

func WithTextSource(s TextSource) Option {
	return func(e *ChatExtractor) { e.source = s }
}

func WithFileLookup(l FileLookup) Option {
	return func(e *ChatExtractor) { e.files = l }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *ChatExtractor) { e.log = l }
}

func NewChatExtractor(v Variant, cfg config.ProviderConfig, opts ...Option) *ChatExtractor {
	e := &ChatExtractor{
		variant:  v,
		cfg:      cfg,
		newModel: defaultFactory(v),
		source:   MockSource{},
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *ChatExtractor) Extract(ctx context.Context, fileID string) (*models.InvoiceDocument, error) {
	if strings.TrimSpace(e.cfg.APIKey) == "" {
		return nil, apperr.Newf(apperr.ConfigurationError, "%s not configured", e.variant.keyEnv())
	}
	if e.newModel == nil {
		return nil, apperr.Newf(apperr.ConfigurationError, "no chat model for %s", e.variant)
	}
	chatModel, err := e.newModel(ctx, e.cfg)
	if err != nil {
		return nil, apperr.Wrap(apperr.ConfigurationError, fmt.Sprintf("init %s model failed", e.variant), err)
	}
	text, err := e.source.Text(ctx, e.variant)
	if err != nil {
		return nil, fmt.Errorf("invoice text: %w", err)
	}
	fileName := e.uploadedName(ctx, fileID)

	start := time.Now()
	reply, err := chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(buildPrompt(fileID, fileName, models.Timestamp(e.now()), text)),
	})
	if err != nil {
		e.log.Error("extraction request failed",
			zap.String("provider", e.variant.String()),
			zap.String("file_id", fileID),
			zap.Error(err),
		)
		return nil, e.failure(err)
	}
	if reply == nil {
		return nil, e.failure(fmt.Errorf("empty reply"))
	}

	doc, err := e.parse(reply.Content, fileID, fileName)
	if err != nil {
		e.log.Warn("extraction reply rejected",
			zap.String("provider", e.variant.String()),
			zap.String("file_id", fileID),
			zap.Error(err),
		)
		return nil, e.failure(err)
	}
	e.log.Info("invoice extracted",
		zap.String("provider", e.variant.String()),
		zap.String("file_id", fileID),
		zap.String("invoice_number", doc.Invoice.Number),
		zap.Duration("elapsed", time.Since(start)),
	)
	return doc, nil
}

func (e *ChatExtractor) failure(err error) error {
	return apperr.Wrap(apperr.ExternalServiceError, fmt.Sprintf("Failed to extract data with %s", e.variant.Title()), err)
}

// uploadedName returns the registered file name, or "" when unknown.
func (e *ChatExtractor) uploadedName(ctx context.Context, fileID string) string {
	if e.files == nil {
		return ""
	}
	file, err := e.files.Lookup(ctx, fileID)
	if err != nil {
		if !apperr.Is(err, apperr.NotFound) {
			e.log.Warn("upload lookup failed", zap.String("file_id", fileID), zap.Error(err))
		}
		return ""
	}
	return file.FileName
}

func (e *ChatExtractor) parse(content, fileID, fileName string) (*models.InvoiceDocument, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &m); err != nil {
		return nil, fmt.Errorf("reply is not a JSON object: %w", err)
	}
	if dropped := normalizeDocument(m); len(dropped) > 0 {
		e.log.Debug("extraction fields dropped", zap.Strings("fields", dropped))
	}

	m["fileId"] = fileID
	switch {
	case fileName != "":
		m["fileName"] = fileName
	default:
		if s, ok := m["fileName"].(string); !ok || strings.TrimSpace(s) == "" {
			m["fileName"] = fallbackFileName
		}
	}
	delete(m, "_id")
	delete(m, "updatedAt")
	if _, ok := m["createdAt"].(string); !ok {
		delete(m, "createdAt")
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode reply: %w", err)
	}
	if err := invoiceschema.Validate(raw); err != nil {
		return nil, fmt.Errorf("reply does not match the invoice schema: %w", err)
	}
	var doc models.InvoiceDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if doc.Invoice.LineItems == nil {
		doc.Invoice.LineItems = []models.LineItem{}
	}
	return &doc, nil
}

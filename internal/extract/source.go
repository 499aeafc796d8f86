package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
)

// TextSource supplies the invoice text sent to the model.
type TextSource interface {
	Text(ctx context.Context, v Variant) (string, error)
}

// MockSource returns a canned invoice per backend. Uploaded PDFs are not
// parsed, so this is the default source.
type MockSource struct{}

func (MockSource) Text(_ context.Context, v Variant) (string, error) {
	switch v {
	case Groq:
		return groqSample, nil
	default:
		return geminiSample, nil
	}
}

// FileSource reads the sample text from a local document through the eino
// file loader. Plain text files go through the fallback text parser.
type FileSource struct {
	path   string
	loader *file.FileLoader
}

func NewFileSource(ctx context.Context, path string) (*FileSource, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sample text path is empty")
	}
	p, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      p,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}
	return &FileSource{path: path, loader: loader}, nil
}

func (s *FileSource) Text(ctx context.Context, _ Variant) (string, error) {
	docs, err := s.loader.Load(ctx, document.Source{URI: s.path})
	if err != nil {
		return "", fmt.Errorf("load %s: %w", s.path, err)
	}
	var b strings.Builder
	for _, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n\n")
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%s has no readable text", s.path)
	}
	return text, nil
}

const geminiSample = `INVOICE
Invoice Number: INV-2024-001
Date: 2024-01-15
Vendor: Acme Corporation
Address: 123 Business St, City, State 12345
Tax ID: 12-3456789

Line Items:
1. Web Development Services - $5,000.00 x 1 = $5,000.00
2. Design Services - $2,500.00 x 1 = $2,500.00

Subtotal: $7,500.00
Tax (8%): $600.00
Total: $8,100.00

PO Number: PO-2024-001
PO Date: 2024-01-10`

const groqSample = `INVOICE
Invoice Number: INV-2024-002
Date: 2024-01-20
Vendor: Tech Solutions Inc
Address: 456 Innovation Ave, Tech City, TC 67890
Tax ID: 98-7654321

Line Items:
1. Software Development - $8,000.00 x 1 = $8,000.00
2. Consulting Services - $3,000.00 x 2 = $6,000.00

Subtotal: $14,000.00
Tax (10%): $1,400.00
Total: $15,400.00

PO Number: PO-2024-002
PO Date: 2024-01-18`

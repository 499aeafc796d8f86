// Package schema holds the JSON Schema every stored or extracted invoice
// document must satisfy.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// InvoiceDocument returns the document schema as a generic map.
func InvoiceDocument() map[string]any {
	str := map[string]any{"type": "string"}
	num := map[string]any{"type": "number"}
	nonEmpty := map[string]any{"type": "string", "minLength": 1}

	lineItem := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description": str,
			"unitPrice":   num,
			"quantity":    num,
			"total":       num,
		},
		"required": []string{"description", "unitPrice", "quantity", "total"},
	}
	vendor := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":    nonEmpty,
			"address": str,
			"taxId":   str,
		},
		"required": []string{"name"},
	}
	invoice := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"number":     nonEmpty,
			"date":       nonEmpty,
			"currency":   str,
			"subtotal":   num,
			"taxPercent": num,
			"total":      num,
			"poNumber":   str,
			"poDate":     str,
			"lineItems":  map[string]any{"type": "array", "items": lineItem},
		},
		"required": []string{"number", "date"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"_id":       map[string]any{"type": "integer"},
			"fileId":    nonEmpty,
			"fileName":  nonEmpty,
			"vendor":    vendor,
			"invoice":   invoice,
			"createdAt": str,
			"updatedAt": str,
		},
		"required": []string{"fileId", "fileName", "vendor", "invoice"},
	}
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func documentSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(InvoiceDocument())
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("invoice_document.json", bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile("invoice_document.json")
	})
	return compiled, compileErr
}

// Validate checks raw JSON against the document schema.
func Validate(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	return ValidateValue(v)
}

// ValidateValue checks an already decoded JSON value (maps, slices, float64).
func ValidateValue(v any) error {
	s, err := documentSchema()
	if err != nil {
		return err
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("document does not match schema: %w", err)
	}
	return nil
}

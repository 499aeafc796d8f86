package extract

import (
	"strconv"
	"strings"
)

var (
	optionalMoney   = []string{"subtotal", "taxPercent", "total"}
	lineItemNumbers = []string{"unitPrice", "quantity", "total"}
	optionalStrings = map[string][]string{
		"vendor":  {"address", "taxId"},
		"invoice": {"currency", "poNumber", "poDate"},
	}
)

// stripCodeFence removes a surrounding Markdown code fence and any prose
// around the outermost JSON object.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}

// normalizeDocument loosens what models tend to get wrong so the document
// can still validate: money written as "$7,500.00", nulls for optionals and
// numbers where strings belong. Required fields are left for the validator.
// It returns the paths it dropped.
func normalizeDocument(m map[string]any) []string {
	var dropped []string

	for parent, keys := range optionalStrings {
		obj, ok := m[parent].(map[string]any)
		if !ok {
			continue
		}
		for _, k := range keys {
			v, ok := obj[k]
			if !ok {
				continue
			}
			switch t := v.(type) {
			case string:
				if s := strings.TrimSpace(t); s == "" {
					delete(obj, k)
					dropped = append(dropped, parent+"."+k)
				} else {
					obj[k] = s
				}
			case float64:
				obj[k] = strconv.FormatFloat(t, 'f', -1, 64)
			default:
				delete(obj, k)
				dropped = append(dropped, parent+"."+k)
			}
		}
	}

	inv, ok := m["invoice"].(map[string]any)
	if !ok {
		return dropped
	}
	if c, ok := inv["currency"].(string); ok {
		inv["currency"] = strings.ToUpper(c)
	}
	for _, k := range optionalMoney {
		v, ok := inv[k]
		if !ok {
			continue
		}
		if f, ok := toNumber(v); ok {
			inv[k] = f
		} else {
			delete(inv, k)
			dropped = append(dropped, "invoice."+k)
		}
	}

	switch items := inv["lineItems"].(type) {
	case nil:
		inv["lineItems"] = []any{}
	case []any:
		for _, it := range items {
			item, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if d, ok := item["description"]; !ok || d == nil {
				item["description"] = ""
			}
			for _, k := range lineItemNumbers {
				if f, ok := toNumber(item[k]); ok {
					item[k] = f
				}
			}
		}
	}
	return dropped
}

// toNumber accepts JSON numbers and numeric strings with currency symbols,
// thousands separators or a trailing percent sign.
func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		cleaned := strings.Map(func(r rune) rune {
			switch {
			case r >= '0' && r <= '9', r == '.', r == '-':
				return r
			default:
				return -1
			}
		}, t)
		if cleaned == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

package extract

import (
	"strings"

	"invoicedash/internal/apperr"
)

// Variant names a supported extraction backend.
type Variant string

const (
	Gemini Variant = "gemini"
	Groq   Variant = "groq"
)

// ParseVariant accepts exactly the wire names "gemini" and "groq".
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(s); v {
	case Gemini, Groq:
		return v, nil
	case "":
		return "", apperr.New(apperr.InvalidArgument, "fileId and model are required")
	default:
		return "", apperr.New(apperr.InvalidArgument, `Model must be either "gemini" or "groq"`)
	}
}

func (v Variant) String() string { return string(v) }

// Title is the display name used in messages.
func (v Variant) Title() string {
	switch v {
	case Gemini:
		return "Gemini"
	case Groq:
		return "Groq"
	default:
		return string(v)
	}
}

// keyEnv is the environment variable that carries the provider's API key.
func (v Variant) keyEnv() string {
	return strings.ToUpper(string(v)) + "_API_KEY"
}

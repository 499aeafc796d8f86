package extract

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"invoicedash/internal/config"
)

// ModelFactory builds the chat model for one provider configuration.
type ModelFactory func(ctx context.Context, cfg config.ProviderConfig) (model.BaseChatModel, error)

// NewGeminiModel talks to Google's generative language API.
func NewGeminiModel(ctx context.Context, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = config.DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client: client,
		Model:  modelName,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini chat model: %w", err)
	}
	return chatModel, nil
}

// NewGroqModel uses Groq's OpenAI-compatible endpoint with deterministic sampling.
func NewGroqModel(ctx context.Context, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultGroqBaseURL
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = config.DefaultGroqModel
	}
	var temperature float32
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:     baseURL,
		Model:       modelName,
		APIKey:      cfg.APIKey,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("groq chat model: %w", err)
	}
	return chatModel, nil
}

func defaultFactory(v Variant) ModelFactory {
	switch v {
	case Gemini:
		return NewGeminiModel
	case Groq:
		return NewGroqModel
	default:
		return nil
	}
}

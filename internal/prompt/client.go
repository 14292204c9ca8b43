package prompt

import (
	"context"
	"net/http"
	"time"

	"voice-agent-platform/internal/config"

	"github.com/sashabaranov/go-openai"
)

// ChatClient is the subset of the OpenAI client used by the translator.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

const requestTimeout = 60 * time.Second

// NewClient builds an OpenAI client, or returns nil when no API key is configured.
func NewClient(cfg config.OpenAIConfig) *openai.Client {
	if cfg.APIKey == "" {
		return nil
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: requestTimeout}
	return openai.NewClientWithConfig(oc)
}

// FromConfig builds a translator for cfg. Without an API key the translator
// reports ErrNotConfigured.
func FromConfig(cfg config.OpenAIConfig) *Translator {
	client := NewClient(cfg)
	if client == nil {
		return NewTranslator(nil, cfg.Model)
	}
	return NewTranslator(client, cfg.Model)
}

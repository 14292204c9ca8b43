package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

var (
	ErrNotConfigured = errors.New("prompt: openai api key not configured")
	ErrEmptyPrompt   = errors.New("prompt: prompt is required")
	ErrNoChoices     = errors.New("prompt: model returned no choices")
)

const (
	DefaultModel = "gpt-4o"
	temperature  = 0.7
)

const systemPrompt = `You are an AI configuration expert. Parse user descriptions into structured voice AI configs.

Return JSON with:
{
  "agent_name": "string",
  "agent_type": "receptionist" | "support" | "sales" | "general",
  "industry": "string",
  "description": "brief description",
  "personality": { "tone": "professional" | "friendly" | "casual", "traits": ["array"] },
  "tasks": ["array of tasks"],
  "integrations": { "phone": true, "email": true/false, "whatsapp": true/false, "calendar": true/false },
  "data_collection": [{ "field": "name", "type": "string", "required": true, "question": "How to ask" }],
  "greeting": "Hello greeting message",
  "goodbye": "Goodbye message"
}`

// Translator turns a free-text description into an agent configuration document.
type Translator struct {
	client ChatClient
	model  string
	clock  func() time.Time
}

// NewTranslator returns a translator. A nil client yields ErrNotConfigured on every call.
func NewTranslator(client ChatClient, model string) *Translator {
	if model == "" {
		model = DefaultModel
	}
	return &Translator{client: client, model: model, clock: time.Now}
}

// Configured reports whether a language-model client is available.
func (t *Translator) Configured() bool { return t != nil && t.client != nil }

// Translate asks the model for a JSON configuration, normalizes it and
// attaches the _meta block with the original prompt.
func (t *Translator) Translate(ctx context.Context, prompt string) (map[string]any, error) {
	if !t.Configured() {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: temperature,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		content = "{}"
	}
	var decoded any
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	// Non-object output (null, arrays, scalars) yields a config holding only _meta.
	cfg, ok := decoded.(map[string]any)
	if !ok {
		cfg = map[string]any{}
	}

	Normalize(cfg)
	cfg["_meta"] = map[string]any{
		"original_prompt": prompt,
		"generated_at":    t.clock().UTC().Format(time.RFC3339Nano),
	}
	return cfg, nil
}

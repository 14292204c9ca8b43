package prompt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
)

type fakeChat struct {
	content string
	err     error
	got     openai.ChatCompletionRequest
	noReply bool
}

func (f *fakeChat) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.got = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	if f.noReply {
		return openai.ChatCompletionResponse{}, nil
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.content}}},
	}, nil
}

func TestTranslate_NotConfigured(t *testing.T) {
	tr := NewTranslator(nil, "")
	if _, err := tr.Translate(context.Background(), "a receptionist"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestTranslate_EmptyPrompt(t *testing.T) {
	tr := NewTranslator(&fakeChat{content: "{}"}, "")
	if _, err := tr.Translate(context.Background(), "   "); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
}

func TestTranslate_BuildsRequestAndMeta(t *testing.T) {
	fake := &fakeChat{content: `{"agent_name":"Dental Desk","agent_type":"receptionist","personality":{"tone":"friendly","traits":["warm"]},"integrations":{"phone":false,"email":true}}`}
	tr := NewTranslator(fake, "")
	fixed := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	tr.clock = func() time.Time { return fixed }

	cfg, err := tr.Translate(context.Background(), "A friendly dental receptionist")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}

	if fake.got.Model != "gpt-4o" {
		t.Fatalf("expected default model, got %q", fake.got.Model)
	}
	if fake.got.ResponseFormat == nil || fake.got.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Fatalf("expected json_object response format")
	}
	if fake.got.Temperature != 0.7 {
		t.Fatalf("expected temperature 0.7, got %v", fake.got.Temperature)
	}
	if len(fake.got.Messages) != 2 || fake.got.Messages[1].Content != "A friendly dental receptionist" {
		t.Fatalf("unexpected messages: %+v", fake.got.Messages)
	}

	if cfg["agent_name"] != "Dental Desk" {
		t.Fatalf("unexpected agent_name: %v", cfg["agent_name"])
	}
	integrations := cfg["integrations"].(map[string]any)
	if integrations["phone"] != true || integrations["email"] != true {
		t.Fatalf("expected phone forced true, got %v", integrations)
	}
	meta := cfg["_meta"].(map[string]any)
	if meta["original_prompt"] != "A friendly dental receptionist" {
		t.Fatalf("unexpected meta: %v", meta)
	}
	if meta["generated_at"] != "2025-02-03T04:05:06Z" {
		t.Fatalf("unexpected generated_at: %v", meta["generated_at"])
	}
}

func TestTranslate_UpstreamAndDecodeErrors(t *testing.T) {
	upstream := errors.New("rate limited")
	tr := NewTranslator(&fakeChat{err: upstream}, "gpt-4o-mini")
	if _, err := tr.Translate(context.Background(), "x"); !errors.Is(err, upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	tr = NewTranslator(&fakeChat{content: "not json"}, "")
	if _, err := tr.Translate(context.Background(), "x"); err == nil {
		t.Fatalf("expected decode error")
	}

	tr = NewTranslator(&fakeChat{noReply: true}, "")
	if _, err := tr.Translate(context.Background(), "x"); !errors.Is(err, ErrNoChoices) {
		t.Fatalf("expected ErrNoChoices, got %v", err)
	}
}

func TestTranslate_EmptyContentIsEmptyObject(t *testing.T) {
	tr := NewTranslator(&fakeChat{content: ""}, "")
	cfg, err := tr.Translate(context.Background(), "x")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if _, ok := cfg["_meta"]; !ok {
		t.Fatalf("expected _meta on empty config")
	}
}

func TestNormalize_CoercesOutOfEnumValues(t *testing.T) {
	cfg := map[string]any{
		"agent_type":  "concierge",
		"personality": map[string]any{"tone": "sarcastic"},
		"data_collection": []any{
			map[string]any{"field": "dob", "type": "datetime"},
			map[string]any{"field": "email", "type": "email"},
			"garbage",
		},
		"custom": "kept",
	}
	Normalize(cfg)

	if cfg["agent_type"] != "general" {
		t.Fatalf("expected general, got %v", cfg["agent_type"])
	}
	if cfg["personality"].(map[string]any)["tone"] != "professional" {
		t.Fatalf("expected professional tone")
	}
	fields := cfg["data_collection"].([]any)
	if fields[0].(map[string]any)["type"] != "string" || fields[1].(map[string]any)["type"] != "email" {
		t.Fatalf("unexpected field types: %v", fields)
	}
	if cfg["integrations"].(map[string]any)["phone"] != true {
		t.Fatalf("expected integrations.phone added")
	}
	if cfg["custom"] != "kept" {
		t.Fatalf("unknown keys must be preserved")
	}
}

func TestTranslate_NullOutput(t *testing.T) {
	for _, content := range []string{"null", "[1, 2]", `"text"`, "42"} {
		tr := NewTranslator(&fakeChat{content: content}, "")
		cfg, err := tr.Translate(context.Background(), "a receptionist")
		if err != nil {
			t.Fatalf("%s: translate: %v", content, err)
		}
		meta, ok := cfg["_meta"].(map[string]any)
		if !ok || meta["original_prompt"] != "a receptionist" {
			t.Fatalf("%s: expected _meta, got %v", content, cfg)
		}
		if integrations, _ := cfg["integrations"].(map[string]any); integrations["phone"] != true {
			t.Fatalf("%s: expected normalized config, got %v", content, cfg)
		}
	}
}

package elevenlabs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// UnknownCaller is stored when the payload names no caller.
const UnknownCaller = "unknown"

var ErrMalformedPayload = errors.New("elevenlabs: payload is not a JSON object")

// Completion is the provider-neutral view of a post-call delivery.
type Completion struct {
	Type           string
	AgentID        string
	ConversationID string

	CallerPhone string
	CallerName  *string
	CallerEmail *string

	DurationSecs int
	Summary      *string

	// Transcript is the provider's transcript value re-encoded unchanged, nil when falsy.
	Transcript json.RawMessage

	// DataCollected is analysis.data_collection_results verbatim, {} when absent.
	DataCollected map[string]any
}

// ParseCompletion accepts both the flat payload
//
//	{agent_id, caller_id, call_duration_secs, transcript, transcript_summary, analysis}
//
// and the provider envelope
//
//	{type, data: {agent_id, conversation_id, transcript, metadata: {...}, analysis: {...}}}.
//
// Every nested access tolerates missing or mistyped levels.
func ParseCompletion(body []byte) (Completion, error) {
	// UseNumber keeps numeric literals intact when transcript and data fields are re-encoded.
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var top map[string]any
	if err := dec.Decode(&top); err != nil {
		return Completion{}, fmt.Errorf("elevenlabs: decode payload: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Completion{}, errors.New("elevenlabs: trailing data after payload object")
	}
	if top == nil {
		return Completion{}, ErrMalformedPayload
	}

	root := top
	if data := object(top, "data"); data != nil && str(top, "agent_id") == "" {
		root = data
	}

	analysis := object(root, "analysis")
	metadata := object(root, "metadata")
	results := object(analysis, "data_collection_results")

	caller := firstNonEmpty(
		str(root, "caller_id"),
		str(root, "user_id"),
		str(object(metadata, "phone_call"), "external_number"),
		UnknownCaller,
	)

	out := Completion{
		Type:           str(top, "type"),
		AgentID:        str(root, "agent_id"),
		ConversationID: str(root, "conversation_id"),
		CallerPhone:    caller,
		CallerName:     nonEmpty(str(object(results, "full_name"), "value")),
		CallerEmail:    nonEmpty(str(object(results, "email"), "value")),
		DataCollected:  results,
	}

	raw, err := transcript(root["transcript"])
	if err != nil {
		return Completion{}, err
	}
	out.Transcript = raw

	if d, ok := number(root, "call_duration_secs"); ok {
		out.DurationSecs = seconds(d)
	} else if d, ok := number(metadata, "call_duration_secs"); ok {
		out.DurationSecs = seconds(d)
	}

	summary := str(root, "transcript_summary")
	if summary == "" {
		summary = str(analysis, "transcript_summary")
	}
	out.Summary = nonEmpty(summary)

	if out.DataCollected == nil {
		out.DataCollected = map[string]any{}
	}
	return out, nil
}

// transcript re-encodes any truthy value as received. Turns keep every
// provider field, including ones this service does not read.
func transcript(v any) (json.RawMessage, error) {
	if !truthy(v) {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: encode transcript: %w", err)
	}
	return b, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}

func object(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]any)
	return v
}

func str(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		// numeric caller ids
		f, err := v.Float64()
		if err != nil {
			return v.String()
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return ""
	}
}

func number(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	n, ok := m[key].(json.Number)
	if !ok {
		return 0, false
	}
	v, err := n.Float64()
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func seconds(d float64) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

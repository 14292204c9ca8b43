package calls

import (
	"encoding/json"
	"errors"
	"time"
)

// Call is one inbound conversation instance. Every call belongs to exactly one agent.
//
// Two writers exist: the voice router records the call at start, and the
// completion webhook records a second, enriched row. The rows are not merged.
type Call struct {
	ID      string `json:"id" db:"id"`
	AgentID string `json:"agent_id" db:"agent_id"`

	TwilioCallSID            *string `json:"twilio_call_sid" db:"twilio_call_sid"`
	ElevenLabsConversationID *string `json:"elevenlabs_conversation_id" db:"elevenlabs_conversation_id"`

	CallerPhone    *string `json:"caller_phone" db:"caller_phone"`
	CallerName     *string `json:"caller_name" db:"caller_name"`
	CallerEmail    *string `json:"caller_email" db:"caller_email"`
	CallerLocation *string `json:"caller_location" db:"caller_location"`

	DurationSecs int    `json:"duration_secs" db:"duration_secs"`
	Status       Status `json:"status" db:"status"`

	Summary *string `json:"summary" db:"summary"`

	// Transcript is the provider's transcript stored verbatim, nil when absent.
	Transcript json.RawMessage `json:"transcript" db:"transcript"`

	// DataCollected is the provider's extracted-field map, stored verbatim.
	DataCollected map[string]any `json:"data_collected" db:"data_collected"`

	CostCents int       `json:"cost_cents" db:"cost_cents"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TranscriptMessage is the typed view of one conversation turn.
type TranscriptMessage struct {
	Role           string  `json:"role"`
	Message        string  `json:"message"`
	TimeInCallSecs float64 `json:"time_in_call_secs"`
}

// Turns decodes the stored transcript leniently. Entries that are not
// objects are skipped and mistyped fields are left zero.
func (c Call) Turns() []TranscriptMessage {
	var items []json.RawMessage
	if len(c.Transcript) == 0 || json.Unmarshal(c.Transcript, &items) != nil {
		return nil
	}
	out := make([]TranscriptMessage, 0, len(items))
	for _, it := range items {
		var turn struct {
			Role           any `json:"role"`
			Message        any `json:"message"`
			TimeInCallSecs any `json:"time_in_call_secs"`
		}
		if json.Unmarshal(it, &turn) != nil {
			continue
		}
		m := TranscriptMessage{}
		m.Role, _ = turn.Role.(string)
		m.Message, _ = turn.Message.(string)
		m.TimeInCallSecs, _ = turn.TimeInCallSecs.(float64)
		out = append(out, m)
	}
	return out
}

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusMissed     Status = "missed"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusMissed, StatusFailed:
		return true
	default:
		return false
	}
}

// WithAgent is a call joined with the owning agent's display fields.
type WithAgent struct {
	Call
	Agent AgentRef `json:"agent"`
}

type AgentRef struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	PhoneNumber *string `json:"phone_number"`
}

// Totals aggregates calls over a set of agents.
type Totals struct {
	Calls        int `json:"calls"`
	DurationSecs int `json:"duration_secs"`

	// CallsSince counts calls created at or after the requested instant.
	CallsSince int `json:"calls_since"`
}

// RangeStats aggregates calls created in a half-open [from, to) window.
type RangeStats struct {
	Calls      int
	Completed  int
	Failed     int
	Missed     int
	InProgress int

	DurationSecs int
	// Identified counts calls with a caller name or email.
	Identified int
	CostCents  int
}

var ErrInvalidCall = errors.New("invalid call")

// Validate checks the fields every writer must supply.
func (c Call) Validate() error {
	if c.ID == "" || c.AgentID == "" {
		return ErrInvalidCall
	}
	if !c.Status.Valid() {
		return ErrInvalidCall
	}
	if c.DurationSecs < 0 {
		return ErrInvalidCall
	}
	if len(c.Transcript) > 0 && !json.Valid(c.Transcript) {
		return ErrInvalidCall
	}
	return nil
}

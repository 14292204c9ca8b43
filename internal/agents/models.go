package agents

import (
	"strings"
	"time"
)

// Agent is one configured voice assistant.
//
// The External* fields are the join keys used by provider webhooks:
// the Twilio voice route addresses an agent by ID, the ElevenLabs
// completion webhook by ElevenLabsAgentID.
type Agent struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`
	Name   string `json:"name" db:"name"`
	Slug   string `json:"slug" db:"slug"`

	// Config is the translator output. It is stored and returned as-is.
	Config Config `json:"config" db:"config"`
	Status Status `json:"status" db:"status"`

	PhoneNumber              *string `json:"phone_number" db:"phone_number"`
	TwilioPhoneSID           *string `json:"twilio_phone_sid" db:"twilio_phone_sid"`
	ElevenLabsAgentID        *string `json:"elevenlabs_agent_id" db:"elevenlabs_agent_id"`
	ElevenLabsConversationID *string `json:"elevenlabs_conversation_id" db:"elevenlabs_conversation_id"`

	MinutesUsed int `json:"minutes_used" db:"minutes_used"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at" db:"deleted_at"`
}

// ExternalAgentID returns the conversational-AI agent id, or "" if not provisioned.
func (a Agent) ExternalAgentID() string {
	if a.ElevenLabsAgentID == nil {
		return ""
	}
	return strings.TrimSpace(*a.ElevenLabsAgentID)
}

func (a Agent) Deleted() bool { return a.DeletedAt != nil }

type Status string

const (
	StatusDraft     Status = "draft"
	StatusDeploying Status = "deploying"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusError     Status = "error"
)

// Valid reports whether s is a known status. Any known status may follow any other.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusDeploying, StatusActive, StatusPaused, StatusError:
		return true
	default:
		return false
	}
}

// Config is an opaque structured agent configuration document.
type Config map[string]any

const fallbackName = "Untitled Agent"

// AgentName returns config.agent_name when it is a non-blank string.
func (c Config) AgentName() string {
	if c == nil {
		return ""
	}
	if s, ok := c["agent_name"].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// Provisioning carries the external resources attached to an agent out of band.
// Nil fields are left unchanged.
type Provisioning struct {
	PhoneNumber       *string `json:"phone_number"`
	TwilioPhoneSID    *string `json:"twilio_phone_sid"`
	ElevenLabsAgentID *string `json:"elevenlabs_agent_id"`

	// Status defaults to active when empty.
	Status Status `json:"status,omitempty"`
}

package audit

import "time"

// Event is an immutable, append-only record of an agent lifecycle change.
//
// Invariants:
// - Events are never updated or deleted.
// - agent_id and type are required.
// - Recording is best-effort; callers never fail a request on an audit error.
type Event struct {
	ID      string `json:"id" db:"id"`
	AgentID string `json:"agent_id" db:"agent_id"`

	// UserID is the owner of the agent at the time of the event.
	UserID string    `json:"user_id,omitempty" db:"user_id"`
	Type   EventType `json:"type" db:"type"`

	// ActorRole is the role of the caller that caused the event (user, admin, service).
	ActorRole string `json:"actor_role,omitempty" db:"actor_role"`

	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON with the details of the change.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventAgentCreated       EventType = "created"
	EventAgentStatusChanged EventType = "status_changed"
	EventAgentProvisioned   EventType = "provisioned"
	EventAgentDeleted       EventType = "deleted"
)

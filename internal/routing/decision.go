package routing

// Decision is the provider-agnostic output of the routing engine.
//
// It must contain only information the provider adapter (TwiML builder)
// needs to execute it. No provider-specific fields belong here.
type Decision struct {
	AgentID string `json:"agent_id,omitempty"`
	CallID  string `json:"call_id,omitempty"`

	Action Action `json:"action"`

	// Message is spoken before hanging up on ActionDecline.
	Message string `json:"message,omitempty"`

	// ConnectTo is the media relay URL on ActionConnect.
	ConnectTo string `json:"connect_to,omitempty"`

	// Reason is intended for internal logs/metrics.
	Reason string `json:"reason,omitempty"`
}

type Action string

const (
	ActionDecline Action = "decline"
	ActionConnect Action = "connect"
)

// Decline reasons.
const (
	ReasonAgentIDMissing      = "agent_id_missing"
	ReasonAgentNotFound       = "agent_not_found"
	ReasonAgentNotProvisioned = "agent_not_provisioned"
	ReasonAtCapacity          = "at_capacity"
	ReasonBridged             = "bridged"
)

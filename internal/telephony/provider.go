package telephony

import (
	"context"
	"time"
)

// Router decides what to do with an inbound call.
//
// Provider adapters depend only on this abstraction; agent lookup, call
// logging and capacity checks live behind it (internal/routing).
type Router interface {
	RouteInboundCall(ctx context.Context, req InboundCallRequest) (InboundCallResult, error)
}

// InboundCallRequest represents an inbound call event received from a provider.
type InboundCallRequest struct {
	// AgentID is the internal agent the dialed number is routed to. May be empty.
	AgentID string `json:"agent_id"`

	// ProviderCallID is the provider's unique identifier for this call.
	ProviderCallID string `json:"provider_call_id"`

	// From and To are E.164 where possible.
	From string `json:"from"`
	To   string `json:"to"`

	// CallerLocation is a best-effort "city, state, country" from provider geo fields.
	CallerLocation string `json:"caller_location,omitempty"`

	// OccurredAt is the provider event time.
	OccurredAt time.Time `json:"occurred_at"`
}

// InboundCallResult is the provider adapter response used to drive next steps.
type InboundCallResult struct {
	CallID string `json:"call_id,omitempty"` // internal call identifier if created

	// Action describes what should happen next at the provider boundary.
	Action InboundCallAction `json:"action"`

	// Message is spoken to the caller before hanging up when Action == "decline".
	Message string `json:"message,omitempty"`

	// ConnectTo is the media relay URL when Action == "connect".
	ConnectTo string `json:"connect_to,omitempty"`
}

type InboundCallAction string

const (
	InboundCallActionDecline InboundCallAction = "decline"
	InboundCallActionConnect InboundCallAction = "connect"
)

// Caller-facing decline messages.
const (
	MessageNotConfigured = "Sorry, this number is not configured."
	MessageUnavailable   = "Sorry, this assistant is unavailable."
	MessageBusy          = "All lines are busy. Please try again later."
	MessageError         = "An error occurred."
)

// Decline builds a say-and-hang-up result.
func Decline(message string) InboundCallResult {
	return InboundCallResult{Action: InboundCallActionDecline, Message: message}
}

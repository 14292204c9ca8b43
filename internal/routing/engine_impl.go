package routing

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"voice-agent-platform/internal/agents"
	"voice-agent-platform/internal/calls"
	"voice-agent-platform/internal/metrics"
	"voice-agent-platform/internal/telephony"
	"voice-agent-platform/pkg/logger"
	"voice-agent-platform/pkg/utils"

	"github.com/google/uuid"
)

// AgentLookup resolves an agent by internal id. agents.ErrNotFound means unknown.
type AgentLookup interface {
	Get(ctx context.Context, id string) (agents.Agent, error)
}

type CallWriter interface {
	Insert(ctx context.Context, c calls.Call) error
}

// SlotLimiter caps concurrent live calls per agent.
type SlotLimiter interface {
	Acquire(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// RoutingEngine evaluates an inbound call.
//
// Order:
//  1. Agent id present
//  2. Agent resolves and has a conversational-AI agent id
//  3. Concurrent-call cap (fails open on limiter errors)
//  4. Call row written, then bridge decision
type RoutingEngine struct {
	Agents  AgentLookup
	Calls   CallWriter
	Limiter SlotLimiter

	// RelayBaseURL is the ws(s) endpoint the call is bridged to; the agent's
	// external id is appended as the last path segment.
	RelayBaseURL string

	Metrics *metrics.Metrics

	Now   func() time.Time
	NewID func() string
}

type RouteInput struct {
	Inbound telephony.InboundCallRequest
}

func NewRoutingEngine(agentLookup AgentLookup, callWriter CallWriter, limiter SlotLimiter, relayBaseURL string) *RoutingEngine {
	return &RoutingEngine{
		Agents:       agentLookup,
		Calls:        callWriter,
		Limiter:      limiter,
		RelayBaseURL: relayBaseURL,
		Now:          time.Now,
		NewID:        uuid.NewString,
	}
}

func (e *RoutingEngine) Route(ctx context.Context, in RouteInput) (Decision, error) {
	if e.Agents == nil || e.Calls == nil {
		return Decision{}, errors.New("routing: engine not configured")
	}
	log := logger.From(ctx)

	agentID := strings.TrimSpace(in.Inbound.AgentID)
	if agentID == "" {
		return Decision{Action: ActionDecline, Message: telephony.MessageNotConfigured, Reason: ReasonAgentIDMissing}, nil
	}

	agent, err := e.Agents.Get(ctx, agentID)
	if errors.Is(err, agents.ErrNotFound) || errors.Is(err, agents.ErrInvalidArgument) {
		return Decision{AgentID: agentID, Action: ActionDecline, Message: telephony.MessageUnavailable, Reason: ReasonAgentNotFound}, nil
	}
	if err != nil {
		return Decision{}, err
	}

	externalID := agent.ExternalAgentID()
	if externalID == "" {
		return Decision{AgentID: agent.ID, Action: ActionDecline, Message: telephony.MessageUnavailable, Reason: ReasonAgentNotProvisioned}, nil
	}

	acquired := false
	if e.Limiter != nil {
		ok, err := e.Limiter.Acquire(ctx, agent.ID)
		switch {
		case errors.Is(err, utils.ErrLimiterDisabled):
			// cap not configured
		case err != nil:
			log.Warn("call limiter unavailable, admitting call", "agent_id", agent.ID, "err", err)
		case !ok:
			return Decision{AgentID: agent.ID, Action: ActionDecline, Message: telephony.MessageBusy, Reason: ReasonAtCapacity}, nil
		default:
			acquired = true
		}
	}

	now := e.now()
	if !in.Inbound.OccurredAt.IsZero() {
		now = in.Inbound.OccurredAt
	}
	// The row is recorded as completed at call start; the completion webhook
	// writes its own enriched row.
	call := calls.Call{
		ID:             e.newID(),
		AgentID:        agent.ID,
		TwilioCallSID:  optional(in.Inbound.ProviderCallID),
		CallerPhone:    optional(in.Inbound.From),
		CallerLocation: optional(in.Inbound.CallerLocation),
		Status:         calls.StatusCompleted,
		DataCollected:  map[string]any{},
		CreatedAt:      now.UTC(),
	}
	if err := e.Calls.Insert(ctx, call); err != nil {
		if acquired {
			if rerr := e.Limiter.Release(ctx, agent.ID); rerr != nil {
				log.Warn("call slot release failed", "agent_id", agent.ID, "err", rerr)
			}
		}
		return Decision{}, err
	}
	e.Metrics.CallRecorded("router")

	return Decision{
		AgentID:   agent.ID,
		CallID:    call.ID,
		Action:    ActionConnect,
		ConnectTo: RelayURL(e.RelayBaseURL, externalID),
		Reason:    ReasonBridged,
	}, nil
}

// RouteInboundCall adapts Route to the provider-facing telephony.Router contract.
func (e *RoutingEngine) RouteInboundCall(ctx context.Context, req telephony.InboundCallRequest) (telephony.InboundCallResult, error) {
	d, err := e.Route(ctx, RouteInput{Inbound: req})
	if err != nil {
		return telephony.InboundCallResult{}, err
	}
	logger.From(ctx).Info("inbound call routed", "agent_id", d.AgentID, "call_id", d.CallID, "action", string(d.Action), "reason", d.Reason)

	switch d.Action {
	case ActionDecline:
		return telephony.Decline(d.Message), nil
	case ActionConnect:
		return telephony.InboundCallResult{CallID: d.CallID, Action: telephony.InboundCallActionConnect, ConnectTo: d.ConnectTo}, nil
	default:
		return telephony.InboundCallResult{}, errors.New("routing: unknown decision action")
	}
}

// RelayURL joins the relay base and the external agent id as a path segment.
func RelayURL(base, externalAgentID string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(externalAgentID)
}

func (e *RoutingEngine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *RoutingEngine) newID() string {
	if e.NewID == nil {
		return uuid.NewString()
	}
	return e.NewID()
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

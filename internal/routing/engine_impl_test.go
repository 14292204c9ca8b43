package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"voice-agent-platform/internal/agents"
	"voice-agent-platform/internal/calls"
	"voice-agent-platform/internal/telephony"
	"voice-agent-platform/pkg/utils"
)

type stubAgents struct {
	byID map[string]agents.Agent
	err  error
}

func (s stubAgents) Get(ctx context.Context, id string) (agents.Agent, error) {
	if s.err != nil {
		return agents.Agent{}, s.err
	}
	a, ok := s.byID[id]
	if !ok {
		return agents.Agent{}, agents.ErrNotFound
	}
	return a, nil
}

type stubLimiter struct {
	ok         bool
	err        error
	acquired   int
	released   int
	releaseErr error
}

func (s *stubLimiter) Acquire(ctx context.Context, id string) (bool, error) {
	s.acquired++
	return s.ok, s.err
}

func (s *stubLimiter) Release(ctx context.Context, id string) error {
	s.released++
	return s.releaseErr
}

func strPtr(s string) *string { return &s }

func newEngine(limiter SlotLimiter) (*RoutingEngine, *calls.MemoryRepo) {
	repo := calls.NewMemoryRepo()
	e := NewRoutingEngine(stubAgents{byID: map[string]agents.Agent{
		"a-1":    {ID: "a-1", ElevenLabsAgentID: strPtr("el_1")},
		"a-bare": {ID: "a-bare"},
	}}, repo, limiter, "wss://api.elevenlabs.io/v1/convai/twilio")
	e.Now = func() time.Time { return time.Unix(1700000000, 0) }
	e.NewID = func() string { return "call-1" }
	return e, repo
}

func TestRoute_MissingAgentIDDeclines(t *testing.T) {
	e, repo := newEngine(nil)
	d, err := e.Route(context.Background(), RouteInput{Inbound: telephony.InboundCallRequest{From: "+1"}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d.Action != ActionDecline || d.Message != telephony.MessageNotConfigured {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if len(repo.All()) != 0 {
		t.Fatalf("no call must be written")
	}
}

func TestRoute_UnknownAndUnprovisionedAgentsDecline(t *testing.T) {
	e, repo := newEngine(nil)
	for _, id := range []string{"nope", "a-bare"} {
		d, err := e.Route(context.Background(), RouteInput{Inbound: telephony.InboundCallRequest{AgentID: id, From: "+1"}})
		if err != nil {
			t.Fatalf("%s: unexpected err: %v", id, err)
		}
		if d.Action != ActionDecline || d.Message != telephony.MessageUnavailable {
			t.Fatalf("%s: unexpected decision: %+v", id, d)
		}
	}
	if len(repo.All()) != 0 {
		t.Fatalf("no call must be written")
	}
}

func TestRoute_ResolvedAgentWritesCallThenBridges(t *testing.T) {
	e, repo := newEngine(nil)
	d, err := e.Route(context.Background(), RouteInput{Inbound: telephony.InboundCallRequest{AgentID: "a-1", From: "+15551234567", ProviderCallID: "CA9"}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d.Action != ActionConnect || d.ConnectTo != "wss://api.elevenlabs.io/v1/convai/twilio/el_1" {
		t.Fatalf("unexpected decision: %+v", d)
	}

	rows := repo.All()
	if len(rows) != 1 {
		t.Fatalf("expected one call, got %d", len(rows))
	}
	c := rows[0]
	if c.AgentID != "a-1" || c.Status != calls.StatusCompleted || c.ID != "call-1" {
		t.Fatalf("unexpected call: %+v", c)
	}
	if c.CallerPhone == nil || *c.CallerPhone != "+15551234567" {
		t.Fatalf("expected caller phone recorded")
	}
	if c.TwilioCallSID == nil || *c.TwilioCallSID != "CA9" {
		t.Fatalf("expected call sid recorded")
	}
}

func TestRoute_StoreErrorsPropagate(t *testing.T) {
	e, repo := newEngine(nil)
	repo.Err = errors.New("insert failed")
	if _, err := e.Route(context.Background(), RouteInput{Inbound: telephony.InboundCallRequest{AgentID: "a-1"}}); err == nil {
		t.Fatalf("expected insert error")
	}

	e.Agents = stubAgents{err: errors.New("db down")}
	if _, err := e.Route(context.Background(), RouteInput{Inbound: telephony.InboundCallRequest{AgentID: "a-1"}}); err == nil {
		t.Fatalf("expected lookup error")
	}
}

func TestRoute_AtCapacityDeclinesWithoutWrite(t *testing.T) {
	lim := &stubLimiter{ok: false}
	e, repo := newEngine(lim)
	d, err := e.Route(context.Background(), RouteInput{Inbound: telephony.InboundCallRequest{AgentID: "a-1"}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d.Action != ActionDecline || d.Message != telephony.MessageBusy {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if len(repo.All()) != 0 {
		t.Fatalf("no call must be written at capacity")
	}
}

func TestRoute_LimiterErrorFailsOpen(t *testing.T) {
	e, repo := newEngine(&stubLimiter{err: errors.New("redis down")})
	d, err := e.Route(context.Background(), RouteInput{Inbound: telephony.InboundCallRequest{AgentID: "a-1"}})
	if err != nil || d.Action != ActionConnect {
		t.Fatalf("expected bridge on limiter error, got %+v %v", d, err)
	}
	if len(repo.All()) != 1 {
		t.Fatalf("expected call written")
	}
}

func TestRoute_DisabledLimiterIsIgnored(t *testing.T) {
	var lim *utils.ConcurrencyLimiter
	e, _ := newEngine(lim)
	d, err := e.Route(context.Background(), RouteInput{Inbound: telephony.InboundCallRequest{AgentID: "a-1"}})
	if err != nil || d.Action != ActionConnect {
		t.Fatalf("expected bridge with nil limiter, got %+v %v", d, err)
	}
}

func TestRoute_ReleasesSlotWhenWriteFails(t *testing.T) {
	lim := &stubLimiter{ok: true}
	e, repo := newEngine(lim)
	repo.Err = errors.New("insert failed")
	if _, err := e.Route(context.Background(), RouteInput{Inbound: telephony.InboundCallRequest{AgentID: "a-1"}}); err == nil {
		t.Fatalf("expected error")
	}
	if lim.acquired != 1 || lim.released != 1 {
		t.Fatalf("expected slot acquired and released, got %d/%d", lim.acquired, lim.released)
	}
}

func TestRouteInboundCall_MapsDecision(t *testing.T) {
	e, _ := newEngine(nil)
	res, err := e.RouteInboundCall(context.Background(), telephony.InboundCallRequest{AgentID: "a-1"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Action != telephony.InboundCallActionConnect || res.CallID != "call-1" {
		t.Fatalf("unexpected result: %+v", res)
	}

	res, err = e.RouteInboundCall(context.Background(), telephony.InboundCallRequest{})
	if err != nil || res.Action != telephony.InboundCallActionDecline || res.Message != telephony.MessageNotConfigured {
		t.Fatalf("unexpected decline result: %+v %v", res, err)
	}
}

func TestRelayURL(t *testing.T) {
	if got := RelayURL("wss://relay/", "a b"); got != "wss://relay/a%20b" {
		t.Fatalf("unexpected relay url %q", got)
	}
}

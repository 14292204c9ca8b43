package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"voice-agent-platform/internal/agents"
	"voice-agent-platform/internal/calls"
)

func seed(t *testing.T) (*Service, time.Time) {
	t.Helper()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	agentRepo := agents.NewMemoryRepo()
	for _, a := range []agents.Agent{
		{ID: "a1", UserID: "u1", Slug: "a1", Status: agents.StatusActive, CreatedAt: now},
		{ID: "a2", UserID: "u1", Slug: "a2", Status: agents.StatusDraft, CreatedAt: now},
		{ID: "a3", UserID: "u2", Slug: "a3", Status: agents.StatusActive, CreatedAt: now},
	} {
		if err := agentRepo.Insert(ctx, a); err != nil {
			t.Fatalf("insert agent: %v", err)
		}
	}

	name := "Ada"
	callRepo := calls.NewMemoryRepo()
	for _, c := range []calls.Call{
		{ID: "c1", AgentID: "a1", Status: calls.StatusCompleted, DurationSecs: 90, CallerName: &name, CreatedAt: now.Add(-time.Hour)},
		{ID: "c2", AgentID: "a1", Status: calls.StatusFailed, DurationSecs: 30, CostCents: 4, CreatedAt: now.Add(-10 * 24 * time.Hour)},
		{ID: "c3", AgentID: "a2", Status: calls.StatusMissed, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "c4", AgentID: "a3", Status: calls.StatusCompleted, DurationSecs: 600, CreatedAt: now},
	} {
		if err := callRepo.Insert(ctx, c); err != nil {
			t.Fatalf("insert call: %v", err)
		}
	}

	svc := NewService(NewStoreRepo(agentRepo, callRepo))
	svc.now = func() time.Time { return now }
	return svc, now
}

func TestDashboardStats_UserIsolation(t *testing.T) {
	svc, _ := seed(t)

	got, err := svc.DashboardStats(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := DashboardStats{TotalAgents: 2, ActiveAgents: 1, TotalCalls: 3, TotalMinutes: 2, CallsThisWeek: 2}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestDashboardStats_NoAgents(t *testing.T) {
	svc, _ := seed(t)

	got, err := svc.DashboardStats(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != (DashboardStats{}) {
		t.Fatalf("expected zero stats, got %+v", got)
	}
	if _, err := svc.DashboardStats(context.Background(), " "); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestCallsSummary_StatusBreakdown(t *testing.T) {
	svc, now := seed(t)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{UserID: "u1", Range: TimeRange{From: now.Add(-30 * 24 * time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 3 || out.CompletedCalls != 1 || out.FailedCalls != 1 || out.MissedCalls != 1 {
		t.Fatalf("unexpected summary: %+v", out)
	}
	if out.TotalDurationSeconds != 120 || out.AverageDurationSeconds != 40 || out.IdentifiedCallers != 1 || out.TotalCostCents != 4 {
		t.Fatalf("unexpected aggregates: %+v", out)
	}
}

func TestCallsSummary_RangeAndAgentFilter(t *testing.T) {
	svc, now := seed(t)
	r := TimeRange{From: now.Add(-24 * time.Hour), To: now}

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{UserID: "u1", AgentID: "a1", Range: r})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 1 || out.CompletedCalls != 1 {
		t.Fatalf("unexpected summary: %+v", out)
	}

	if _, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{UserID: "u1", AgentID: "a3", Range: r}); !errors.Is(err, agents.ErrNotFound) {
		t.Fatalf("expected foreign agent to be not found, got %v", err)
	}
	if _, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{UserID: "u1", Range: TimeRange{From: now, To: now}}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for empty range, got %v", err)
	}
}

// statsOnlyCalls fails every row listing so summaries must come from Stats.
type statsOnlyCalls struct {
	*calls.MemoryRepo
}

func (statsOnlyCalls) ListByAgents(ctx context.Context, agentIDs []string, limit int) ([]calls.Call, error) {
	return nil, errors.New("row listing not allowed")
}

func TestCallsSummary_AggregatesInStore(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	agentRepo := agents.NewMemoryRepo()
	if err := agentRepo.Insert(ctx, agents.Agent{ID: "a1", UserID: "u1", Slug: "a1", Status: agents.StatusActive, CreatedAt: now}); err != nil {
		t.Fatalf("insert agent: %v", err)
	}
	callRepo := calls.NewMemoryRepo()
	for _, c := range []calls.Call{
		{ID: "c1", AgentID: "a1", Status: calls.StatusInProgress, DurationSecs: 10, CreatedAt: now.Add(-time.Minute)},
		{ID: "c2", AgentID: "a1", Status: calls.StatusCompleted, DurationSecs: 50, CreatedAt: now.Add(-2 * time.Minute)},
		{ID: "c3", AgentID: "a1", Status: calls.StatusCompleted, DurationSecs: 70, CreatedAt: now},
	} {
		if err := callRepo.Insert(ctx, c); err != nil {
			t.Fatalf("insert call: %v", err)
		}
	}

	svc := NewService(NewStoreRepo(agentRepo, statsOnlyCalls{callRepo}))
	out, err := svc.CallsSummary(ctx, CallsSummaryRequest{UserID: "u1", Range: TimeRange{From: now.Add(-time.Hour), To: now}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	// c3 sits on the exclusive upper bound.
	if out.TotalCalls != 2 || out.InProgressCalls != 1 || out.CompletedCalls != 1 {
		t.Fatalf("unexpected summary: %+v", out)
	}
	if out.TotalDurationSeconds != 60 || out.AverageDurationSeconds != 30 {
		t.Fatalf("unexpected aggregates: %+v", out)
	}
}

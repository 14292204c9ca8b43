package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory insert-only Repository for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	calls []Call

	// Err, when set, is returned by every method.
	Err error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Insert(ctx context.Context, c Call) error {
	if err := c.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.calls = append(r.calls, c)
	return nil
}

// All returns every stored call in insertion order.
func (r *MemoryRepo) All() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *MemoryRepo) ListByAgent(ctx context.Context, agentID string, limit int) ([]Call, error) {
	return r.ListByAgents(ctx, []string{agentID}, limit)
}

func (r *MemoryRepo) ListByAgents(ctx context.Context, agentIDs []string, limit int) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	want := toSet(agentIDs)
	out := make([]Call, 0)
	for _, c := range r.calls {
		if _, ok := want[c.AgentID]; ok {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) Totals(ctx context.Context, agentIDs []string, since time.Time) (Totals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return Totals{}, r.Err
	}
	want := toSet(agentIDs)
	var t Totals
	for _, c := range r.calls {
		if _, ok := want[c.AgentID]; !ok {
			continue
		}
		t.Calls++
		t.DurationSecs += c.DurationSecs
		if !c.CreatedAt.Before(since) {
			t.CallsSince++
		}
	}
	return t, nil
}

func (r *MemoryRepo) Stats(ctx context.Context, agentIDs []string, from, to time.Time) (RangeStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return RangeStats{}, r.Err
	}
	want := toSet(agentIDs)
	var s RangeStats
	for _, c := range r.calls {
		if _, ok := want[c.AgentID]; !ok {
			continue
		}
		if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
			continue
		}
		s.Calls++
		switch c.Status {
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		case StatusMissed:
			s.Missed++
		case StatusInProgress:
			s.InProgress++
		}
		s.DurationSecs += c.DurationSecs
		if c.CallerName != nil || c.CallerEmail != nil {
			s.Identified++
		}
		s.CostCents += c.CostCents
	}
	return s, nil
}

func (r *MemoryRepo) HasConversation(ctx context.Context, conversationID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	for _, c := range r.calls {
		if c.ElevenLabsConversationID != nil && *c.ElevenLabsConversationID == conversationID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepo) Ping(ctx context.Context) error { return r.Err }

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

package reporting

import (
	"context"
	"time"

	"voice-agent-platform/internal/agents"
	"voice-agent-platform/internal/calls"
)

// Repository abstracts data access for reporting.
// Every read is bounded to agents owned by one user.
type Repository interface {
	ListAgents(ctx context.Context, userID string) ([]agents.Agent, error)
	CallStats(ctx context.Context, agentIDs []string, tr TimeRange) (calls.RangeStats, error)
	CallTotals(ctx context.Context, agentIDs []string, since time.Time) (calls.Totals, error)
}

// StoreRepo reads through the agent and call stores.
type StoreRepo struct {
	Agents agents.Repository
	Calls  calls.Repository
}

func NewStoreRepo(agentRepo agents.Repository, callRepo calls.Repository) *StoreRepo {
	return &StoreRepo{Agents: agentRepo, Calls: callRepo}
}

func (r *StoreRepo) ListAgents(ctx context.Context, userID string) ([]agents.Agent, error) {
	return r.Agents.ListByUser(ctx, userID)
}

func (r *StoreRepo) CallStats(ctx context.Context, agentIDs []string, tr TimeRange) (calls.RangeStats, error) {
	return r.Calls.Stats(ctx, agentIDs, tr.From, tr.To)
}

func (r *StoreRepo) CallTotals(ctx context.Context, agentIDs []string, since time.Time) (calls.Totals, error) {
	return r.Calls.Totals(ctx, agentIDs, since)
}

package calls

import (
	"context"
	"time"
)

// Repository is the persistence contract for call rows. Calls are insert-only.
type Repository interface {
	Insert(ctx context.Context, c Call) error

	// ListByAgent returns the agent's calls, newest first. limit <= 0 means no limit.
	ListByAgent(ctx context.Context, agentID string, limit int) ([]Call, error)

	// ListByAgents returns calls across agents, newest first. limit <= 0 means no limit.
	ListByAgents(ctx context.Context, agentIDs []string, limit int) ([]Call, error)

	Totals(ctx context.Context, agentIDs []string, since time.Time) (Totals, error)

	// Stats aggregates calls with from <= created_at < to.
	Stats(ctx context.Context, agentIDs []string, from, to time.Time) (RangeStats, error)

	// HasConversation reports whether a row already carries the conversation id.
	HasConversation(ctx context.Context, conversationID string) (bool, error)

	Ping(ctx context.Context) error
}

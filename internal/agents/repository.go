package agents

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("agent not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrSlugTaken       = errors.New("agent slug already exists")
	ErrConflict        = errors.New("external agent id already assigned")
)

// Repository is the persistence contract for agent rows.
// Soft-deleted rows are invisible to every read.
type Repository interface {
	Insert(ctx context.Context, a Agent) error
	GetByID(ctx context.Context, id string) (Agent, error)
	GetBySlug(ctx context.Context, slug string) (Agent, error)
	GetByExternalAgentID(ctx context.Context, externalAgentID string) (Agent, error)
	ListByUser(ctx context.Context, userID string) ([]Agent, error)

	// Mutate loads the row, applies fn and persists the result atomically.
	// fn may return an error to abort without writing.
	Mutate(ctx context.Context, id string, fn func(a *Agent) error) (Agent, error)

	SoftDelete(ctx context.Context, id string, at time.Time) error

	// Ping performs a lightweight read against the agents table.
	Ping(ctx context.Context) error
}

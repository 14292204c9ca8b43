package agents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local development.
// It enforces the same uniqueness rules as the Postgres schema.
type MemoryRepo struct {
	mu     sync.Mutex
	agents map[string]Agent

	// PingErr, when set, is returned by Ping.
	PingErr error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{agents: map[string]Agent{}} }

func (r *MemoryRepo) Insert(ctx context.Context, a Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[a.ID]; ok {
		return ErrInvalidArgument
	}
	for _, existing := range r.agents {
		if existing.Slug == a.Slug {
			return ErrSlugTaken
		}
		if a.ExternalAgentID() != "" && !existing.Deleted() && existing.ExternalAgentID() == a.ExternalAgentID() {
			return ErrConflict
		}
	}
	r.agents[a.ID] = a
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok || a.Deleted() {
		return Agent{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) GetBySlug(ctx context.Context, slug string) (Agent, error) {
	return r.find(func(a Agent) bool { return a.Slug == slug })
}

func (r *MemoryRepo) GetByExternalAgentID(ctx context.Context, externalAgentID string) (Agent, error) {
	return r.find(func(a Agent) bool { return a.ExternalAgentID() == externalAgentID })
}

func (r *MemoryRepo) find(match func(Agent) bool) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.agents {
		if !a.Deleted() && match(a) {
			return a, nil
		}
	}
	return Agent{}, ErrNotFound
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Agent, 0)
	for _, a := range r.agents {
		if a.UserID == userID && !a.Deleted() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) Mutate(ctx context.Context, id string, fn func(a *Agent) error) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok || a.Deleted() {
		return Agent{}, ErrNotFound
	}
	if err := fn(&a); err != nil {
		return Agent{}, err
	}
	if ext := a.ExternalAgentID(); ext != "" {
		for otherID, other := range r.agents {
			if otherID != id && !other.Deleted() && other.ExternalAgentID() == ext {
				return Agent{}, ErrConflict
			}
		}
	}
	r.agents[id] = a
	return a, nil
}

func (r *MemoryRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok || a.Deleted() {
		return ErrNotFound
	}
	a.DeletedAt = &at
	a.UpdatedAt = at
	r.agents[id] = a
	return nil
}

func (r *MemoryRepo) Ping(ctx context.Context) error { return r.PingErr }

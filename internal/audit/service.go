package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only. No Update/Delete methods are provided.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records agent lifecycle events.
//
// Audit is internal-only. Callers should treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.AgentID == "" || e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogAgentEvent records one lifecycle change. details is encoded as the JSON metadata.
func (s *Service) LogAgentEvent(ctx context.Context, agentID, userID, actorRole string, typ EventType, message string, details map[string]any) error {
	metadata := ""
	if len(details) > 0 {
		b, err := json.Marshal(details)
		if err != nil {
			return err
		}
		metadata = string(b)
	}
	return s.Append(ctx, Event{
		AgentID:   agentID,
		UserID:    userID,
		Type:      typ,
		ActorRole: actorRole,
		Message:   message,
		Metadata:  metadata,
	})
}

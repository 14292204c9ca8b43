package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"voice-agent-platform/internal/audit"
	"voice-agent-platform/internal/rbac"

	"github.com/google/uuid"
)

// ErrForbidden is returned when a user-scoped caller acts on behalf of another user.
var ErrForbidden = errors.New("agent belongs to another user")

const slugAttempts = 5

// EventRecorder receives lifecycle events. Failures are logged and ignored.
type EventRecorder interface {
	LogAgentEvent(ctx context.Context, agentID, userID, actorRole string, typ audit.EventType, message string, details map[string]any) error
}

// Service implements agent use-cases over a Repository.
// Callers obtain a Scope with Privileged or ForUser; the scope decides
// whether row ownership is enforced.
type Service struct {
	repo   Repository
	events EventRecorder
	log    *slog.Logger
	clock  func() time.Time
	newID  func() string
}

func NewService(repo Repository, events EventRecorder, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:   repo,
		events: events,
		log:    log,
		clock:  time.Now,
		newID:  uuid.NewString,
	}
}

// Ping checks that the agents table is readable.
func (s *Service) Ping(ctx context.Context) error { return s.repo.Ping(ctx) }

// Scope is a Service bound to one caller.
type Scope struct {
	svc    *Service
	userID string
	role   string
}

// Privileged returns a scope that bypasses ownership checks. role is recorded
// in audit events (service for webhooks and service-key callers, admin for admins).
func (s *Service) Privileged(role string) *Scope {
	if role == "" {
		role = rbac.RoleService
	}
	return &Scope{svc: s, role: role}
}

// ForUser returns a scope restricted to rows owned by userID.
func (s *Service) ForUser(userID string) *Scope {
	return &Scope{svc: s, userID: userID, role: rbac.RoleUser}
}

// ForRole picks the scope for an authenticated caller.
func (s *Service) ForRole(userID, role string) *Scope {
	if rbac.BypassesOwnership(role) {
		return s.Privileged(role)
	}
	return s.ForUser(userID)
}

func (sc *Scope) privileged() bool { return sc.userID == "" }

func (sc *Scope) owns(a Agent) bool { return sc.privileged() || a.UserID == sc.userID }

type CreateRequest struct {
	UserID string
	Config Config

	// Deploy starts the agent in deploying instead of draft.
	Deploy bool
}

// Create stores a new agent derived from its configuration document.
// The slug is retried on collision.
func (sc *Scope) Create(ctx context.Context, req CreateRequest) (Agent, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" || req.Config == nil {
		return Agent{}, ErrInvalidArgument
	}
	if !sc.privileged() && userID != sc.userID {
		return Agent{}, ErrForbidden
	}

	name := req.Config.AgentName()
	slugBase := name
	if name == "" {
		name = fallbackName
		slugBase = "agent"
	}
	if Slugify(slugBase) == "" {
		slugBase = "agent"
	}

	status := StatusDraft
	if req.Deploy {
		status = StatusDeploying
	}

	now := sc.svc.clock().UTC()
	a := Agent{
		ID:        sc.svc.newID(),
		UserID:    userID,
		Name:      name,
		Config:    req.Config,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var err error
	for i := 0; i < slugAttempts; i++ {
		a.Slug = NewSlug(slugBase)
		err = sc.svc.repo.Insert(ctx, a)
		if !errors.Is(err, ErrSlugTaken) {
			break
		}
	}
	if err != nil {
		return Agent{}, fmt.Errorf("create agent: %w", err)
	}

	sc.record(ctx, a, audit.EventAgentCreated, "agent created", map[string]any{"status": a.Status, "slug": a.Slug})
	return a, nil
}

func (sc *Scope) Get(ctx context.Context, id string) (Agent, error) {
	if strings.TrimSpace(id) == "" {
		return Agent{}, ErrInvalidArgument
	}
	if _, err := uuid.Parse(id); err != nil {
		// Non-uuid ids can never match a row; skip the round trip.
		return Agent{}, ErrNotFound
	}
	a, err := sc.svc.repo.GetByID(ctx, id)
	if err != nil {
		return Agent{}, err
	}
	if !sc.owns(a) {
		return Agent{}, ErrNotFound
	}
	return a, nil
}

func (sc *Scope) GetBySlug(ctx context.Context, slug string) (Agent, error) {
	if strings.TrimSpace(slug) == "" {
		return Agent{}, ErrInvalidArgument
	}
	a, err := sc.svc.repo.GetBySlug(ctx, slug)
	if err != nil {
		return Agent{}, err
	}
	if !sc.owns(a) {
		return Agent{}, ErrNotFound
	}
	return a, nil
}

// FindByExternalAgentID resolves the agent joined to a conversational-AI agent id.
func (sc *Scope) FindByExternalAgentID(ctx context.Context, externalAgentID string) (Agent, error) {
	externalAgentID = strings.TrimSpace(externalAgentID)
	if externalAgentID == "" {
		return Agent{}, ErrNotFound
	}
	a, err := sc.svc.repo.GetByExternalAgentID(ctx, externalAgentID)
	if err != nil {
		return Agent{}, err
	}
	if !sc.owns(a) {
		return Agent{}, ErrNotFound
	}
	return a, nil
}

// List returns the caller's agents, newest first. A privileged scope must pass userID.
func (sc *Scope) List(ctx context.Context, userID string) ([]Agent, error) {
	if !sc.privileged() {
		userID = sc.userID
	}
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidArgument
	}
	return sc.svc.repo.ListByUser(ctx, userID)
}

func (sc *Scope) SetStatus(ctx context.Context, id string, status Status) (Agent, error) {
	if !status.Valid() {
		return Agent{}, ErrInvalidArgument
	}
	if _, err := sc.Get(ctx, id); err != nil {
		return Agent{}, err
	}
	var from Status
	a, err := sc.svc.repo.Mutate(ctx, id, func(a *Agent) error {
		from = a.Status
		a.Status = status
		a.UpdatedAt = sc.svc.clock().UTC()
		return nil
	})
	if err != nil {
		return Agent{}, err
	}
	sc.record(ctx, a, audit.EventAgentStatusChanged, "status changed", map[string]any{"from": from, "to": status})
	return a, nil
}

// Provision attaches external telephony and conversational-AI resources to an agent.
func (sc *Scope) Provision(ctx context.Context, id string, p Provisioning) (Agent, error) {
	if p.Status == "" {
		p.Status = StatusActive
	}
	if !p.Status.Valid() {
		return Agent{}, ErrInvalidArgument
	}
	if _, err := sc.Get(ctx, id); err != nil {
		return Agent{}, err
	}
	a, err := sc.svc.repo.Mutate(ctx, id, func(a *Agent) error {
		if p.PhoneNumber != nil {
			a.PhoneNumber = trimmedOrNil(*p.PhoneNumber)
		}
		if p.TwilioPhoneSID != nil {
			a.TwilioPhoneSID = trimmedOrNil(*p.TwilioPhoneSID)
		}
		if p.ElevenLabsAgentID != nil {
			a.ElevenLabsAgentID = trimmedOrNil(*p.ElevenLabsAgentID)
		}
		a.Status = p.Status
		a.UpdatedAt = sc.svc.clock().UTC()
		return nil
	})
	if err != nil {
		return Agent{}, err
	}
	sc.record(ctx, a, audit.EventAgentProvisioned, "agent provisioned", map[string]any{
		"status":              a.Status,
		"elevenlabs_agent_id": a.ExternalAgentID(),
	})
	return a, nil
}

// Delete soft-deletes the agent; it disappears from every lookup.
func (sc *Scope) Delete(ctx context.Context, id string) error {
	a, err := sc.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := sc.svc.repo.SoftDelete(ctx, id, sc.svc.clock().UTC()); err != nil {
		return err
	}
	sc.record(ctx, a, audit.EventAgentDeleted, "agent deleted", nil)
	return nil
}

func (sc *Scope) record(ctx context.Context, a Agent, typ audit.EventType, message string, details map[string]any) {
	if sc.svc.events == nil {
		return
	}
	if err := sc.svc.events.LogAgentEvent(ctx, a.ID, a.UserID, sc.role, typ, message, details); err != nil {
		sc.svc.log.WarnContext(ctx, "audit event not recorded", "agent_id", a.ID, "type", string(typ), "err", err)
	}
}

func trimmedOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

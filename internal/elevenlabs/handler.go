package elevenlabs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"voice-agent-platform/internal/agents"
	"voice-agent-platform/internal/calls"
	"voice-agent-platform/internal/metrics"
	"voice-agent-platform/pkg/logger"
	"voice-agent-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxBodyBytes = 5 << 20

// AgentFinder resolves the agent joined to the provider's agent id.
type AgentFinder interface {
	FindByExternalAgentID(ctx context.Context, externalAgentID string) (agents.Agent, error)
}

type CallWriter interface {
	Insert(ctx context.Context, c calls.Call) error
	HasConversation(ctx context.Context, conversationID string) (bool, error)
}

// SlotReleaser frees the live-call slot taken by the voice router.
type SlotReleaser interface {
	Release(ctx context.Context, id string) error
}

// CompletionHandler records the enriched call row when a conversation ends.
// Every delivery is inserted; duplicate deliveries produce duplicate rows.
// The live-call slot is released once per conversation id.
type CompletionHandler struct {
	Agents  AgentFinder
	Calls   CallWriter
	Limiter SlotReleaser

	// Secret enables ElevenLabs-Signature validation when set.
	Secret string

	Metrics *metrics.Metrics
	Now     func() time.Time
	NewID   func() string
}

func (h CompletionHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)
	ctx := c.Request.Context()

	if h.Agents == nil || h.Calls == nil {
		h.fail(c, errors.New("completion webhook not configured"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		h.fail(c, fmt.Errorf("read body: %w", err))
		return
	}

	if h.Secret != "" {
		if err := VerifySignature(h.Secret, c.GetHeader(SignatureHeader), body, h.now()); err != nil {
			log.Warn("elevenlabs signature rejected", "err", err)
			h.Metrics.Webhook(metrics.ProviderElevenLabs, "rejected_signature")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
			return
		}
	}

	done, err := ParseCompletion(body)
	if err != nil {
		h.fail(c, err)
		return
	}

	agent, err := h.Agents.FindByExternalAgentID(ctx, done.AgentID)
	if errors.Is(err, agents.ErrNotFound) {
		log.Info("completion for unknown agent", "elevenlabs_agent_id", done.AgentID)
		h.Metrics.Webhook(metrics.ProviderElevenLabs, "agent_not_found")
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	// A repeated conversation id already gave its slot back.
	firstDelivery := true
	if done.ConversationID != "" {
		seen, err := h.Calls.HasConversation(ctx, done.ConversationID)
		if err != nil {
			h.fail(c, err)
			return
		}
		firstDelivery = !seen
	}

	call := calls.Call{
		ID:                       h.newID(),
		AgentID:                  agent.ID,
		ElevenLabsConversationID: nonEmpty(done.ConversationID),
		CallerPhone:              nonEmpty(done.CallerPhone),
		CallerName:               done.CallerName,
		CallerEmail:              done.CallerEmail,
		DurationSecs:             done.DurationSecs,
		Status:                   calls.StatusCompleted,
		Summary:                  done.Summary,
		Transcript:               done.Transcript,
		DataCollected:            done.DataCollected,
		CreatedAt:                h.now().UTC(),
	}
	if err := h.Calls.Insert(ctx, call); err != nil {
		h.fail(c, err)
		return
	}
	h.Metrics.CallRecorded("completion_webhook")
	if firstDelivery {
		h.release(ctx, agent.ID)
	}

	log.Info("conversation recorded",
		"agent_id", agent.ID,
		"call_id", call.ID,
		"conversation_id", done.ConversationID,
		"duration_secs", call.DurationSecs,
		"turns", len(call.Turns()),
		"duplicate", !firstDelivery,
	)
	h.Metrics.Webhook(metrics.ProviderElevenLabs, "recorded")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h CompletionHandler) release(ctx context.Context, agentID string) {
	if h.Limiter == nil {
		return
	}
	err := h.Limiter.Release(ctx, agentID)
	if err != nil && !errors.Is(err, utils.ErrLimiterDisabled) {
		logger.From(ctx).Warn("call slot release failed", "agent_id", agentID, "err", err)
	}
}

func (h CompletionHandler) fail(c *gin.Context, err error) {
	logger.FromGin(c).Error("elevenlabs webhook error", "err", err)
	h.Metrics.Webhook(metrics.ProviderElevenLabs, "error")
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (h CompletionHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func (h CompletionHandler) newID() string {
	if h.NewID == nil {
		return uuid.NewString()
	}
	return h.NewID()
}

package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"voice-agent-platform/internal/agents"
	"voice-agent-platform/internal/rbac"
	"voice-agent-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

type createAgentRequest struct {
	Config map[string]any `json:"config"`
	UserID string         `json:"userId"`
	Deploy bool           `json:"deploy"`
}

type agentSummary struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Status agents.Status `json:"status"`
}

// CreateAgent stores a new agent from a translated configuration.
func (h Handlers) CreateAgent(c *gin.Context) {
	var req createAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Config and userId required"})
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.Config == nil || req.UserID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Config and userId required"})
		return
	}

	a, err := h.scope(c).Create(c.Request.Context(), agents.CreateRequest{
		UserID: req.UserID,
		Config: agents.Config(req.Config),
		Deploy: req.Deploy,
	})
	if errors.Is(err, agents.ErrForbidden) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "userId does not match the authenticated user"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("create agent failed", "user_id", req.UserID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logger.FromGin(c).Info("agent created", "agent_id", a.ID, "slug", a.Slug)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"agent":   agentSummary{ID: a.ID, Name: a.Name, Status: a.Status},
	})
}

func (h Handlers) ListAgents(c *gin.Context) {
	userID := targetUser(c)
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "userId required"})
		return
	}
	list, err := h.scope(c).List(c.Request.Context(), userID)
	if err != nil {
		writeAgentError(c, err)
		return
	}
	if list == nil {
		list = []agents.Agent{}
	}
	c.JSON(http.StatusOK, gin.H{"agents": list})
}

func (h Handlers) GetAgent(c *gin.Context) {
	a, err := h.scope(c).Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAgentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": a})
}

func (h Handlers) GetAgentBySlug(c *gin.Context) {
	a, err := h.scope(c).GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeAgentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": a})
}

type setStatusRequest struct {
	Status agents.Status `json:"status"`
}

func (h Handlers) SetAgentStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "status must be one of draft, deploying, active, paused, error"})
		return
	}
	a, err := h.scope(c).SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		writeAgentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "agent": agentSummary{ID: a.ID, Name: a.Name, Status: a.Status}})
}

// ProvisionAgent attaches the phone number and conversational-AI agent.
// RBAC: service only.
func (h Handlers) ProvisionAgent(c *gin.Context) {
	var req agents.Provisioning
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	a, err := h.Agents.Privileged(rbac.RoleService).Provision(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeAgentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "agent": a})
}

func (h Handlers) DeleteAgent(c *gin.Context) {
	if err := h.scope(c).Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeAgentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

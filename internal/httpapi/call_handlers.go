package httpapi

import (
	"errors"
	"net/http"
	"time"

	"voice-agent-platform/internal/agents"
	"voice-agent-platform/internal/calls"
	"voice-agent-platform/internal/reporting"
	"voice-agent-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const defaultSummaryWindow = 30 * 24 * time.Hour

// ListAgentCalls returns one agent's calls, newest first.
func (h Handlers) ListAgentCalls(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	a, err := h.scope(c).Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAgentError(c, err)
		return
	}
	rows, err := h.Calls.ListByAgent(c.Request.Context(), a.ID, limit)
	if err != nil {
		logger.FromGin(c).Error("list calls failed", "agent_id", a.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rows == nil {
		rows = []calls.Call{}
	}
	c.JSON(http.StatusOK, gin.H{"calls": rows})
}

// ListCalls returns recent calls across the user's agents with agent details.
func (h Handlers) ListCalls(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	userID := targetUser(c)
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "userId required"})
		return
	}

	owned, err := h.scope(c).List(c.Request.Context(), userID)
	if err != nil {
		writeAgentError(c, err)
		return
	}
	out := []calls.WithAgent{}
	if len(owned) == 0 {
		c.JSON(http.StatusOK, gin.H{"calls": out})
		return
	}

	byID := make(map[string]agents.Agent, len(owned))
	ids := make([]string, 0, len(owned))
	for _, a := range owned {
		byID[a.ID] = a
		ids = append(ids, a.ID)
	}

	rows, err := h.Calls.ListByAgents(c.Request.Context(), ids, limit)
	if err != nil {
		logger.FromGin(c).Error("list calls failed", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for _, row := range rows {
		a := byID[row.AgentID]
		out = append(out, calls.WithAgent{
			Call:  row,
			Agent: calls.AgentRef{ID: a.ID, Name: a.Name, PhoneNumber: a.PhoneNumber},
		})
	}
	c.JSON(http.StatusOK, gin.H{"calls": out})
}

func (h Handlers) DashboardStats(c *gin.Context) {
	userID := targetUser(c)
	stats, err := h.Reports.DashboardStats(c.Request.Context(), userID)
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "userId required"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("dashboard stats failed", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CallsSummary reports calls by status over ?from=&to= (RFC 3339, default the
// trailing 30 days), optionally for one ?agentId=.
func (h Handlers) CallsSummary(c *gin.Context) {
	to := h.now()
	from := to.Add(-defaultSummaryWindow)
	var err error
	if v := c.Query("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC 3339"})
			return
		}
	}
	if v := c.Query("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC 3339"})
			return
		}
	}

	out, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		UserID:  targetUser(c),
		AgentID: c.Query("agentId"),
		Range:   reporting.TimeRange{From: from, To: to},
	})
	switch {
	case errors.Is(err, reporting.ErrInvalidRequest):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "userId and a valid range are required"})
	case errors.Is(err, agents.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
	case err != nil:
		logger.FromGin(c).Error("calls summary failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, out)
	}
}

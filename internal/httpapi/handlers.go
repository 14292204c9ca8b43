package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"voice-agent-platform/internal/agents"
	"voice-agent-platform/internal/auth"
	"voice-agent-platform/internal/calls"
	"voice-agent-platform/internal/metrics"
	"voice-agent-platform/internal/prompt"
	"voice-agent-platform/internal/rbac"
	"voice-agent-platform/internal/reporting"
	"voice-agent-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth       *auth.Manager
	Agents     *agents.Service
	Calls      calls.Repository
	Translator *prompt.Translator
	Reports    *reporting.Service
	Metrics    *metrics.Metrics

	Now func() time.Time
}

const (
	defaultCallLimit = 50
	maxCallLimit     = 200
)

func (h Handlers) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

type identity struct {
	UserID string
	Role   string
}

func callerIdentity(c *gin.Context) identity {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	return identity{UserID: uid, Role: role}
}

// scope returns the agent store view matching the caller's role.
func (h Handlers) scope(c *gin.Context) *agents.Scope {
	id := callerIdentity(c)
	return h.Agents.ForRole(id.UserID, id.Role)
}

// targetUser resolves whose data a listing reads. Users always read their own;
// admin and service callers may name a user with ?userId=.
func targetUser(c *gin.Context) string {
	id := callerIdentity(c)
	if rbac.BypassesOwnership(id.Role) {
		if q := strings.TrimSpace(c.Query("userId")); q != "" {
			return q
		}
	}
	return id.UserID
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return defaultCallLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > maxCallLimit {
		n = maxCallLimit
	}
	return n, true
}

// writeAgentError maps agent service errors onto HTTP statuses.
func writeAgentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, agents.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
	case errors.Is(err, agents.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case errors.Is(err, agents.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, agents.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "elevenlabs_agent_id already assigned"})
	default:
		logger.FromGin(c).Error("agent store error", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

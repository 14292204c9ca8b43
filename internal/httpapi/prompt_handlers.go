package httpapi

import (
	"net/http"
	"strings"

	"voice-agent-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

type parsePromptRequest struct {
	Prompt string `json:"prompt"`
}

// ParsePrompt turns a free-text description into an agent configuration.
func (h Handlers) ParsePrompt(c *gin.Context) {
	if !h.Translator.Configured() {
		h.Metrics.Translation("not_configured")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "OpenAI API key not configured"})
		return
	}

	var req parsePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "Prompt is required"})
		return
	}

	cfg, err := h.Translator.Translate(c.Request.Context(), req.Prompt)
	if err != nil {
		logger.FromGin(c).Error("prompt translation failed", "err", err)
		h.Metrics.Translation("error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	h.Metrics.Translation("ok")
	c.JSON(http.StatusOK, gin.H{"success": true, "config": cfg})
}

package main

import (
	"context"

	"voice-agent-platform/internal/agents"
	"voice-agent-platform/internal/auth"
	"voice-agent-platform/internal/calls"
	"voice-agent-platform/internal/config"
	"voice-agent-platform/internal/elevenlabs"
	"voice-agent-platform/internal/health"
	"voice-agent-platform/internal/httpapi"
	"voice-agent-platform/internal/metrics"
	"voice-agent-platform/internal/prompt"
	"voice-agent-platform/internal/rbac"
	"voice-agent-platform/internal/reporting"
	"voice-agent-platform/internal/routing"
	"voice-agent-platform/internal/telephony"
	"voice-agent-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

type dependencies struct {
	cfg        config.Config
	auth       *auth.Manager
	agents     *agents.Service
	calls      calls.Repository
	translator *prompt.Translator
	reports    *reporting.Service
	metrics    *metrics.Metrics
	limiter    *utils.ConcurrencyLimiter
	redisPing  func(ctx context.Context) error
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d dependencies) {
	// public
	r.GET("/healthz", health.Liveness)
	r.GET("/metrics", gin.WrapH(d.metrics.Handler()))

	checker := health.Checker{
		Database: health.PingFunc(d.agents.Ping),
		Redis:    health.PingFunc(d.redisPing),
		Secrets:  d.cfg.SecretPresence(),
	}
	r.GET("/api/health", checker.Handle)

	// Provider webhooks authenticate with their own signatures and act
	// with the privileged store scope.
	webhookScope := d.agents.Privileged(rbac.RoleService)
	{
		engine := routing.NewRoutingEngine(webhookScope, d.calls, d.limiter, d.cfg.ElevenLabs.RelayBaseURL)
		engine.Metrics = d.metrics
		h := telephony.TwilioVoiceHandler{
			Router:        engine,
			AuthToken:     d.cfg.Twilio.AuthToken,
			PublicBaseURL: d.cfg.App.PublicBaseURL,
			Metrics:       d.metrics,
		}
		r.POST("/api/webhooks/twilio/voice", h.HandleInboundCall)
	}
	{
		h := elevenlabs.CompletionHandler{
			Agents:  webhookScope,
			Calls:   d.calls,
			Limiter: d.limiter,
			Secret:  d.cfg.ElevenLabs.WebhookSecret,
			Metrics: d.metrics,
		}
		r.POST("/api/webhooks/elevenlabs", h.Handle)
	}

	h := httpapi.Handlers{
		Auth:       d.auth,
		Agents:     d.agents,
		Calls:      d.calls,
		Translator: d.translator,
		Reports:    d.reports,
		Metrics:    d.metrics,
	}

	api := r.Group("/api")
	api.POST("/auth/refresh", h.RefreshToken)

	protected := api.Group("")
	protected.Use(auth.Authenticate(d.auth, d.cfg.Store.ServiceKey))
	{
		// AUTH: token issuance for the identity provider in front of this API.
		protected.POST("/auth/token", rbac.RequireAnyRole(), h.IssueToken)

		protected.Use(rbac.RequireUser())
		protected.Use(rbac.RequireAnyRole(rbac.RoleUser, rbac.RoleAdmin))

		protected.POST("/parse-prompt", h.ParsePrompt)
		protected.POST("/create-agent", h.CreateAgent)

		agentsGroup := protected.Group("/agents")
		{
			agentsGroup.GET("", h.ListAgents)
			agentsGroup.GET("/slug/:slug", h.GetAgentBySlug)
			agentsGroup.GET("/:id", h.GetAgent)
			agentsGroup.GET("/:id/calls", h.ListAgentCalls)
			agentsGroup.PATCH("/:id/status", h.SetAgentStatus)
			agentsGroup.POST("/:id/provision", rbac.RequireAnyRole(), h.ProvisionAgent)
			agentsGroup.DELETE("/:id", h.DeleteAgent)
		}

		protected.GET("/calls", h.ListCalls)
		protected.GET("/dashboard/stats", h.DashboardStats)
		protected.GET("/reports/calls", h.CallsSummary)
	}
}

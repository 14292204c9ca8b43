// Package health aggregates dependency and configuration checks.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"voice-agent-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

const defaultTimeout = 3 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Checker runs a lightweight read against the store and reports which
// required secrets are configured.
//
// Redis is reported but does not affect the verdict: the call limiter
// admits calls when Redis is unavailable.
type Checker struct {
	Database Pinger
	Redis    Pinger

	// Secrets maps each required secret name to whether it is set.
	Secrets map[string]bool

	Timeout time.Duration
	Now     func() time.Time
}

type Connection struct {
	Connected bool    `json:"connected"`
	Error     *string `json:"error"`
}

type Report struct {
	Timestamp   string          `json:"timestamp"`
	Status      string          `json:"status"`
	Database    Connection      `json:"database"`
	Redis       *Connection     `json:"redis,omitempty"`
	Environment map[string]bool `json:"environment"`
}

func (r Report) Healthy() bool { return r.Status == StatusHealthy }

// Check never fails; every problem is folded into the unhealthy verdict.
func (c Checker) Check(ctx context.Context) Report {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	r := Report{
		Timestamp:   now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Status:      StatusHealthy,
		Environment: map[string]bool{},
	}
	for name, ok := range c.Secrets {
		r.Environment[name] = ok
		if !ok {
			r.Status = StatusUnhealthy
		}
	}

	r.Database = probe(ctx, c.Database, timeout)
	if !r.Database.Connected {
		r.Status = StatusUnhealthy
	}
	if c.Redis != nil {
		rc := probe(ctx, c.Redis, timeout)
		r.Redis = &rc
	}
	return r
}

func probe(ctx context.Context, p Pinger, timeout time.Duration) (out Connection) {
	if p == nil {
		msg := "not configured"
		return Connection{Error: &msg}
	}
	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprint(rec)
			out = Connection{Error: &msg}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		msg := err.Error()
		return Connection{Error: &msg}
	}
	return Connection{Connected: true}
}

// Handle serves the aggregated report: 200 when healthy, 500 otherwise.
func (c Checker) Handle(ctx *gin.Context) {
	r := c.Check(ctx.Request.Context())
	code := http.StatusOK
	if !r.Healthy() {
		code = http.StatusInternalServerError
		logger.FromGin(ctx).Warn("health check failed", "database", r.Database.Connected, "environment", r.Environment)
	}
	ctx.JSON(code, r)
}

// Liveness answers without touching dependencies.
func Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

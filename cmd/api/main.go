package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voice-agent-platform/internal/agents"
	"voice-agent-platform/internal/audit"
	"voice-agent-platform/internal/auth"
	"voice-agent-platform/internal/calls"
	"voice-agent-platform/internal/config"
	"voice-agent-platform/internal/metrics"
	"voice-agent-platform/internal/prompt"
	"voice-agent-platform/internal/reporting"
	"voice-agent-platform/internal/store"
	"voice-agent-platform/pkg/logger"
	"voice-agent-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

const (
	callSlotTTL    = 2 * time.Hour
	callSlotPrefix = "voice:calls:live:"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if missing := cfg.MissingSecrets(); len(missing) > 0 {
		log.Warn("required secrets missing; dependent features disabled", "missing", missing)
	}

	// Token verification is optional outside production; service-key callers still work.
	var authManager *auth.Manager
	if cfg.Auth.JWTSecret != "" {
		authManager, err = auth.NewManager(cfg.Auth)
		if err != nil {
			log.Error("auth init failed", "err", err)
			os.Exit(1)
		}
	}

	db, err := store.Open(rootCtx, cfg.Store)
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	var limiter *utils.ConcurrencyLimiter
	if n := cfg.Limits.MaxConcurrentCallsPerAgent; n > 0 {
		limiter, err = utils.NewConcurrencyLimiter(rdb, callSlotPrefix, n, callSlotTTL)
		if err != nil {
			log.Error("call limiter init failed", "err", err)
			os.Exit(1)
		}
	}

	agentRepo := agents.NewPostgresRepo(db)
	callRepo := calls.NewPostgresRepo(db)
	events := audit.NewService(audit.NewPostgresRepo(db))

	deps := dependencies{
		cfg:        cfg,
		auth:       authManager,
		agents:     agents.NewService(agentRepo, events, log),
		calls:      callRepo,
		translator: prompt.FromConfig(cfg.OpenAI),
		reports:    reporting.NewService(reporting.NewStoreRepo(agentRepo, callRepo)),
		metrics:    metrics.New("voice"),
		limiter:    limiter,
		redisPing:  func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(deps.metrics.Middleware())

	registerRoutes(r, deps)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

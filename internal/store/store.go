package store

import (
	"context"
	"database/sql"
	"fmt"

	"voice-agent-platform/internal/config"
	"voice-agent-platform/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DriverName is the database/sql driver registered by pgx.
const DriverName = "pgx"

// Open connects to Postgres and, when configured, applies the schema.
func Open(ctx context.Context, cfg config.StoreConfig) (*sql.DB, error) {
	db, err := utils.OpenPostgres(ctx, DriverName, cfg.URL, utils.PostgresPoolConfig{})
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// Migrate applies the idempotent schema statements in order.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS agents (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		config JSONB NOT NULL DEFAULT '{}'::jsonb,
		status TEXT NOT NULL DEFAULT 'draft'
			CHECK (status IN ('draft', 'deploying', 'active', 'paused', 'error')),
		phone_number TEXT,
		twilio_phone_sid TEXT,
		elevenlabs_agent_id TEXT,
		elevenlabs_conversation_id TEXT,
		minutes_used INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		deleted_at TIMESTAMPTZ,
		CONSTRAINT agents_slug_key UNIQUE (slug)
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS agents_elevenlabs_agent_id_live_key
		ON agents (elevenlabs_agent_id) WHERE deleted_at IS NULL AND elevenlabs_agent_id IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_agents_user_created ON agents (user_id, created_at DESC) WHERE deleted_at IS NULL;`,
	`CREATE TABLE IF NOT EXISTS calls (
		id UUID PRIMARY KEY,
		agent_id UUID NOT NULL REFERENCES agents (id),
		twilio_call_sid TEXT,
		elevenlabs_conversation_id TEXT,
		caller_phone TEXT,
		caller_name TEXT,
		caller_email TEXT,
		caller_location TEXT,
		duration_secs INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL
			CHECK (status IN ('in_progress', 'completed', 'missed', 'failed')),
		summary TEXT,
		transcript JSONB,
		data_collected JSONB NOT NULL DEFAULT '{}'::jsonb,
		cost_cents INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_calls_agent_created ON calls (agent_id, created_at DESC);`,
	`CREATE TABLE IF NOT EXISTS agent_events (
		id UUID PRIMARY KEY,
		agent_id UUID NOT NULL,
		user_id TEXT,
		type TEXT NOT NULL,
		actor_role TEXT,
		message TEXT,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_agent_events_agent_created ON agent_events (agent_id, created_at);`,
}

package audit

import (
	"context"
	"database/sql"
	"fmt"

	"voice-agent-platform/pkg/utils"
)

// PostgresRepo appends events to the agent_events table. It never updates rows.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	metadata := e.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO agent_events (id, agent_id, user_id, type, actor_role, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)`,
		e.ID,
		e.AgentID,
		utils.NullString(e.UserID),
		string(e.Type),
		utils.NullString(e.ActorRole),
		utils.NullString(e.Message),
		metadata,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: append %s: %w", e.Type, err)
	}
	return nil
}

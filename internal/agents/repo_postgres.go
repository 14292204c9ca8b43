package agents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"voice-agent-platform/pkg/utils"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation    = "23505"
	slugConstraint       = "agents_slug_key"
	externalIDConstraint = "agents_elevenlabs_agent_id_live_key"
)

const agentColumns = `id, user_id, name, slug, config, status, phone_number, twilio_phone_sid,
       elevenlabs_agent_id, elevenlabs_conversation_id, minutes_used, created_at, updated_at, deleted_at`

// PostgresRepo stores agents in the agents table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (Agent, error) {
	var (
		a                                        Agent
		rawConfig                                []byte
		phone, twilioSID, elevenID, elevenConvID sql.NullString
		deletedAt                                sql.NullTime
	)
	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Name,
		&a.Slug,
		&rawConfig,
		&a.Status,
		&phone,
		&twilioSID,
		&elevenID,
		&elevenConvID,
		&a.MinutesUsed,
		&a.CreatedAt,
		&a.UpdatedAt,
		&deletedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Agent{}, ErrNotFound
		}
		return Agent{}, err
	}
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &a.Config); err != nil {
			return Agent{}, fmt.Errorf("decode agent config: %w", err)
		}
	}
	a.PhoneNumber = utils.StringPtr(phone)
	a.TwilioPhoneSID = utils.StringPtr(twilioSID)
	a.ElevenLabsAgentID = utils.StringPtr(elevenID)
	a.ElevenLabsConversationID = utils.StringPtr(elevenConvID)
	if deletedAt.Valid {
		t := deletedAt.Time
		a.DeletedAt = &t
	}
	return a, nil
}

func (r *PostgresRepo) Insert(ctx context.Context, a Agent) error {
	cfg, err := json.Marshal(configOrEmpty(a.Config))
	if err != nil {
		return fmt.Errorf("encode agent config: %w", err)
	}
	const q = `
INSERT INTO agents (
  id, user_id, name, slug, config, status, phone_number, twilio_phone_sid,
  elevenlabs_agent_id, elevenlabs_conversation_id, minutes_used, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
`
	_, err = r.db.ExecContext(ctx, q,
		a.ID,
		a.UserID,
		a.Name,
		a.Slug,
		cfg,
		string(a.Status),
		utils.PtrValue(a.PhoneNumber),
		utils.PtrValue(a.TwilioPhoneSID),
		utils.PtrValue(a.ElevenLabsAgentID),
		utils.PtrValue(a.ElevenLabsConversationID),
		a.MinutesUsed,
		a.CreatedAt,
		a.UpdatedAt,
	)
	return mapWriteErr(err)
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Agent, error) {
	q := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1 AND deleted_at IS NULL`
	return scanAgent(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) GetBySlug(ctx context.Context, slug string) (Agent, error) {
	q := `SELECT ` + agentColumns + ` FROM agents WHERE slug = $1 AND deleted_at IS NULL`
	return scanAgent(r.db.QueryRowContext(ctx, q, slug))
}

func (r *PostgresRepo) GetByExternalAgentID(ctx context.Context, externalAgentID string) (Agent, error) {
	q := `SELECT ` + agentColumns + ` FROM agents WHERE elevenlabs_agent_id = $1 AND deleted_at IS NULL LIMIT 1`
	return scanAgent(r.db.QueryRowContext(ctx, q, externalAgentID))
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string) ([]Agent, error) {
	q := `SELECT ` + agentColumns + ` FROM agents WHERE user_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	out := make([]Agent, 0)
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return out, nil
}

func (r *PostgresRepo) Mutate(ctx context.Context, id string, fn func(a *Agent) error) (Agent, error) {
	var out Agent
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Lock the row so concurrent status/provisioning writes serialize.
		q := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
		a, err := scanAgent(tx.QueryRowContext(ctx, q, id))
		if err != nil {
			return err
		}
		if err := fn(&a); err != nil {
			return err
		}
		const upd = `
UPDATE agents
SET name = $2, status = $3, phone_number = $4, twilio_phone_sid = $5,
    elevenlabs_agent_id = $6, elevenlabs_conversation_id = $7, minutes_used = $8, updated_at = $9
WHERE id = $1
`
		if _, err := tx.ExecContext(ctx, upd,
			a.ID,
			a.Name,
			string(a.Status),
			utils.PtrValue(a.PhoneNumber),
			utils.PtrValue(a.TwilioPhoneSID),
			utils.PtrValue(a.ElevenLabsAgentID),
			utils.PtrValue(a.ElevenLabsConversationID),
			a.MinutesUsed,
			a.UpdatedAt,
		); err != nil {
			return mapWriteErr(err)
		}
		out = a
		return nil
	})
	if err != nil {
		return Agent{}, err
	}
	return out, nil
}

func (r *PostgresRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE agents SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, id, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) Ping(ctx context.Context) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM agents LIMIT 1`).Scan(&one)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return nil
}

func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case slugConstraint:
			return ErrSlugTaken
		case externalIDConstraint:
			return ErrConflict
		}
	}
	return err
}

func configOrEmpty(c Config) Config {
	if c == nil {
		return Config{}
	}
	return c
}

package calls

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"voice-agent-platform/pkg/utils"
)

const callColumns = `c.id, c.agent_id, c.twilio_call_sid, c.elevenlabs_conversation_id, c.caller_phone, c.caller_name,
       c.caller_email, c.caller_location, c.duration_secs, c.status, c.summary, c.transcript, c.data_collected,
       c.cost_cents, c.created_at`

// PostgresRepo stores calls in the calls table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Insert(ctx context.Context, c Call) error {
	if err := c.Validate(); err != nil {
		return err
	}
	var transcript any
	if len(c.Transcript) > 0 {
		transcript = string(c.Transcript)
	}
	dataCollected := c.DataCollected
	if dataCollected == nil {
		dataCollected = map[string]any{}
	}
	data, err := json.Marshal(dataCollected)
	if err != nil {
		return fmt.Errorf("encode data_collected: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO calls (id, agent_id, twilio_call_sid, elevenlabs_conversation_id, caller_phone, caller_name,
		                   caller_email, caller_location, duration_secs, status, summary, transcript, data_collected,
		                   cost_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13::jsonb, $14, $15)`,
		c.ID,
		c.AgentID,
		utils.PtrValue(c.TwilioCallSID),
		utils.PtrValue(c.ElevenLabsConversationID),
		utils.PtrValue(c.CallerPhone),
		utils.PtrValue(c.CallerName),
		utils.PtrValue(c.CallerEmail),
		utils.PtrValue(c.CallerLocation),
		c.DurationSecs,
		string(c.Status),
		utils.PtrValue(c.Summary),
		transcript,
		string(data),
		c.CostCents,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ListByAgent(ctx context.Context, agentID string, limit int) ([]Call, error) {
	return r.list(ctx, `WHERE c.agent_id = $1`, agentID, limit)
}

func (r *PostgresRepo) ListByAgents(ctx context.Context, agentIDs []string, limit int) ([]Call, error) {
	if len(agentIDs) == 0 {
		return []Call{}, nil
	}
	return r.list(ctx, `WHERE c.agent_id = ANY($1::uuid[])`, agentIDs, limit)
}

func (r *PostgresRepo) list(ctx context.Context, where string, arg any, limit int) ([]Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls c ` + where + ` ORDER BY c.created_at DESC`
	args := []any{arg}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCall(rows *sql.Rows) (Call, error) {
	var (
		c                              Call
		twilioSID, convID, phone, name sql.NullString
		email, location, summary       sql.NullString
		rawTranscript, rawData         []byte
	)
	if err := rows.Scan(
		&c.ID,
		&c.AgentID,
		&twilioSID,
		&convID,
		&phone,
		&name,
		&email,
		&location,
		&c.DurationSecs,
		&c.Status,
		&summary,
		&rawTranscript,
		&rawData,
		&c.CostCents,
		&c.CreatedAt,
	); err != nil {
		return Call{}, fmt.Errorf("scan call: %w", err)
	}
	c.TwilioCallSID = utils.StringPtr(twilioSID)
	c.ElevenLabsConversationID = utils.StringPtr(convID)
	c.CallerPhone = utils.StringPtr(phone)
	c.CallerName = utils.StringPtr(name)
	c.CallerEmail = utils.StringPtr(email)
	c.CallerLocation = utils.StringPtr(location)
	c.Summary = utils.StringPtr(summary)
	if len(rawTranscript) > 0 {
		c.Transcript = json.RawMessage(rawTranscript)
	}
	if len(rawData) > 0 {
		if err := json.Unmarshal(rawData, &c.DataCollected); err != nil {
			return Call{}, fmt.Errorf("decode data_collected: %w", err)
		}
	}
	return c, nil
}

func (r *PostgresRepo) Totals(ctx context.Context, agentIDs []string, since time.Time) (Totals, error) {
	if len(agentIDs) == 0 {
		return Totals{}, nil
	}
	var t Totals
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(duration_secs), 0),
		       COUNT(*) FILTER (WHERE created_at >= $2)
		FROM calls
		WHERE agent_id = ANY($1::uuid[])`,
		agentIDs, since,
	).Scan(&t.Calls, &t.DurationSecs, &t.CallsSince)
	if err != nil {
		return Totals{}, fmt.Errorf("call totals: %w", err)
	}
	return t, nil
}

func (r *PostgresRepo) Stats(ctx context.Context, agentIDs []string, from, to time.Time) (RangeStats, error) {
	if len(agentIDs) == 0 {
		return RangeStats{}, nil
	}
	var s RangeStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       COUNT(*) FILTER (WHERE status = 'missed'),
		       COUNT(*) FILTER (WHERE status = 'in_progress'),
		       COALESCE(SUM(duration_secs), 0),
		       COUNT(*) FILTER (WHERE caller_name IS NOT NULL OR caller_email IS NOT NULL),
		       COALESCE(SUM(cost_cents), 0)
		FROM calls
		WHERE agent_id = ANY($1::uuid[])
		  AND created_at >= $2
		  AND created_at < $3`,
		agentIDs, from, to,
	).Scan(&s.Calls, &s.Completed, &s.Failed, &s.Missed, &s.InProgress, &s.DurationSecs, &s.Identified, &s.CostCents)
	if err != nil {
		return RangeStats{}, fmt.Errorf("call stats: %w", err)
	}
	return s, nil
}

func (r *PostgresRepo) HasConversation(ctx context.Context, conversationID string) (bool, error) {
	var seen bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM calls WHERE elevenlabs_conversation_id = $1)`,
		conversationID,
	).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("lookup conversation: %w", err)
	}
	return seen, nil
}

func (r *PostgresRepo) Ping(ctx context.Context) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM calls LIMIT 1`).Scan(&one)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return nil
}

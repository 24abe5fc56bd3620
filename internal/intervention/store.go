package intervention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/salonbase/noshow-engine/internal/channels"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ExecutionStore persists executed interventions and their per-action
// outcomes. Records are append-only; only the effectiveness annotation is
// ever updated after the fact.
type ExecutionStore struct {
	db DB
}

// NewExecutionStore creates an execution store backed by Postgres.
func NewExecutionStore(db DB) *ExecutionStore {
	return &ExecutionStore{db: db}
}

// Save writes the execution record and one row per action outcome.
func (s *ExecutionStore) Save(ctx context.Context, rec ExecutedIntervention) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO executed_interventions (id, rule_id, appointment_id, client_id, executed_at, result)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.RuleID, rec.AppointmentID, rec.ClientID, rec.ExecutedAt, string(rec.Result),
	)
	if err != nil {
		return fmt.Errorf("intervention: save execution: %w", err)
	}

	for _, o := range rec.Outcomes {
		_, err := s.db.Exec(ctx, `
			INSERT INTO intervention_action_outcomes
				(id, execution_id, seq, channel, template_id, status, sent_at, provider_message_id, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			uuid.New(), rec.ID, o.Seq, string(o.Channel), o.TemplateID, string(o.Status),
			o.SentAt, o.ProviderMessageID, o.Error,
		)
		if err != nil {
			return fmt.Errorf("intervention: save outcome %d: %w", o.Seq, err)
		}
	}
	return nil
}

// GetLastExecution returns the most recent execution of a rule for an
// appointment, or nil when the rule has never fired for it. Outcomes are not
// loaded; cooldown checks only need the timestamp.
func (s *ExecutionStore) GetLastExecution(ctx context.Context, ruleID string, appointmentID uuid.UUID) (*ExecutedIntervention, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, rule_id, appointment_id, client_id, executed_at, result
		FROM executed_interventions
		WHERE rule_id = $1 AND appointment_id = $2
		ORDER BY executed_at DESC
		LIMIT 1`, ruleID, appointmentID)

	rec, err := scanExecution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("intervention: get last execution: %w", err)
	}
	return rec, nil
}

// ListByAppointment returns every execution recorded for an appointment,
// oldest first, with outcomes attached.
func (s *ExecutionStore) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]ExecutedIntervention, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, rule_id, appointment_id, client_id, executed_at, result, effectiveness
		FROM executed_interventions
		WHERE appointment_id = $1
		ORDER BY executed_at ASC`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("intervention: list executions: %w", err)
	}
	defer rows.Close()

	var out []ExecutedIntervention
	for rows.Next() {
		var rec ExecutedIntervention
		var result string
		if err := rows.Scan(&rec.ID, &rec.RuleID, &rec.AppointmentID, &rec.ClientID,
			&rec.ExecutedAt, &result, &rec.Effectiveness); err != nil {
			return nil, fmt.Errorf("intervention: scan execution: %w", err)
		}
		rec.Result = Result(result)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("intervention: iterate executions: %w", err)
	}

	for i := range out {
		out[i].Outcomes, err = s.listOutcomes(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MarkEffectiveness records how well an intervention worked, on a 0-1 scale,
// once the appointment's final disposition is known.
func (s *ExecutionStore) MarkEffectiveness(ctx context.Context, executionID uuid.UUID, score float64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE executed_interventions SET effectiveness = $2 WHERE id = $1`,
		executionID, score,
	)
	if err != nil {
		return fmt.Errorf("intervention: mark effectiveness: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("intervention: mark effectiveness: execution %s not found", executionID)
	}
	return nil
}

func (s *ExecutionStore) listOutcomes(ctx context.Context, executionID uuid.UUID) ([]ActionOutcome, error) {
	rows, err := s.db.Query(ctx, `
		SELECT seq, channel, template_id, status, sent_at, provider_message_id, error
		FROM intervention_action_outcomes
		WHERE execution_id = $1
		ORDER BY seq ASC`, executionID)
	if err != nil {
		return nil, fmt.Errorf("intervention: list outcomes: %w", err)
	}
	defer rows.Close()

	var out []ActionOutcome
	for rows.Next() {
		var o ActionOutcome
		var ch, status string
		var sentAt *time.Time
		if err := rows.Scan(&o.Seq, &ch, &o.TemplateID, &status, &sentAt, &o.ProviderMessageID, &o.Error); err != nil {
			return nil, fmt.Errorf("intervention: scan outcome: %w", err)
		}
		o.Channel = channels.Channel(ch)
		o.Status = ActionStatus(status)
		o.SentAt = sentAt
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("intervention: iterate outcomes: %w", err)
	}
	return out, nil
}

func scanExecution(row pgx.Row) (*ExecutedIntervention, error) {
	var rec ExecutedIntervention
	var result string
	err := row.Scan(&rec.ID, &rec.RuleID, &rec.AppointmentID, &rec.ClientID, &rec.ExecutedAt, &result)
	if err != nil {
		return nil, err
	}
	rec.Result = Result(result)
	return &rec, nil
}

package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists risk profiles and their append-only score history.
type Store struct {
	db     DB
	scorer *Scorer
}

// NewStore creates a profile store backed by Postgres.
func NewStore(db DB, scorer *Scorer) *Store {
	return &Store{db: db, scorer: scorer}
}

// Get loads a client's profile, or nil when the client has never been scored.
func (s *Store) Get(ctx context.Context, clientID uuid.UUID) (*RiskProfile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT client_id, score, level, trend, segment, no_show_count,
		       factor_reliability, factor_engagement, factor_recency, factor_value, factor_loyalty,
		       updated_at
		FROM risk_profiles
		WHERE client_id = $1`, clientID)

	var p RiskProfile
	var level, trend string
	err := row.Scan(&p.ClientID, &p.Score, &level, &trend, &p.Segment, &p.NoShowCount,
		&p.Factors.Reliability, &p.Factors.Engagement, &p.Factors.Recency,
		&p.Factors.Value, &p.Factors.Loyalty, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("risk: get profile: %w", err)
	}
	p.Level = Level(level)
	p.Trend = Trend(trend)

	p.History, err = s.listHistory(ctx, clientID, maxHistoryEntries)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert writes the profile's current state; history entries are persisted
// separately through AppendHistory.
func (s *Store) Upsert(ctx context.Context, p *RiskProfile) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO risk_profiles (client_id, score, level, trend, segment, no_show_count,
			factor_reliability, factor_engagement, factor_recency, factor_value, factor_loyalty, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (client_id) DO UPDATE SET
			score = EXCLUDED.score,
			level = EXCLUDED.level,
			trend = EXCLUDED.trend,
			segment = EXCLUDED.segment,
			no_show_count = EXCLUDED.no_show_count,
			factor_reliability = EXCLUDED.factor_reliability,
			factor_engagement = EXCLUDED.factor_engagement,
			factor_recency = EXCLUDED.factor_recency,
			factor_value = EXCLUDED.factor_value,
			factor_loyalty = EXCLUDED.factor_loyalty,
			updated_at = EXCLUDED.updated_at`,
		p.ClientID, p.Score, string(p.Level), string(p.Trend), p.Segment, p.NoShowCount,
		p.Factors.Reliability, p.Factors.Engagement, p.Factors.Recency,
		p.Factors.Value, p.Factors.Loyalty, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("risk: upsert profile: %w", err)
	}
	return nil
}

// AppendHistory records one score event. History rows are never updated.
func (s *Store) AppendHistory(ctx context.Context, clientID uuid.UUID, e ScoreEvent) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO risk_score_history (id, client_id, occurred_at, score, event, delta)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), clientID, e.At, e.Score, string(e.Event), e.Delta,
	)
	if err != nil {
		return fmt.Errorf("risk: append history: %w", err)
	}
	return nil
}

// ApplyEvent loads the client's profile (creating the neutral baseline when
// the client has never been scored), applies the event delta, and persists
// both the profile and the history entry.
func (s *Store) ApplyEvent(ctx context.Context, clientID uuid.UUID, event EventKind) (ScoreChange, error) {
	profile, err := s.Get(ctx, clientID)
	if err != nil {
		return ScoreChange{}, err
	}
	if profile == nil {
		neutral := s.scorer.NeutralProfile(clientID)
		profile = &neutral
	}

	change := s.scorer.ApplyEvent(profile, event)

	if err := s.Upsert(ctx, profile); err != nil {
		return ScoreChange{}, err
	}
	last := profile.History[len(profile.History)-1]
	if err := s.AppendHistory(ctx, clientID, last); err != nil {
		return ScoreChange{}, err
	}
	return change, nil
}

// listHistory returns the client's most recent events in chronological order.
// The newest rows win the limit; trend derivation looks at the tail.
func (s *Store) listHistory(ctx context.Context, clientID uuid.UUID, limit int) ([]ScoreEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT occurred_at, score, event, delta
		FROM risk_score_history
		WHERE client_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("risk: list history: %w", err)
	}
	defer rows.Close()

	var out []ScoreEvent
	for rows.Next() {
		var e ScoreEvent
		var event string
		var at time.Time
		if err := rows.Scan(&at, &e.Score, &event, &e.Delta); err != nil {
			return nil, fmt.Errorf("risk: scan history: %w", err)
		}
		e.At = at
		e.Event = EventKind(event)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("risk: iterate history: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

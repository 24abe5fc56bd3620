package risk

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetMissingProfile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clientID := uuid.New()
	mock.ExpectQuery("SELECT client_id, score, level").
		WithArgs(clientID).
		WillReturnRows(pgxmock.NewRows([]string{"client_id"}))

	store := NewStore(mock, testScorer())
	p, err := store.Get(context.Background(), clientID)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestStoreGetProfileWithHistory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clientID := uuid.New()
	updated := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT client_id, score, level").
		WithArgs(clientID).
		WillReturnRows(pgxmock.NewRows([]string{
			"client_id", "score", "level", "trend", "segment", "no_show_count",
			"factor_reliability", "factor_engagement", "factor_recency", "factor_value", "factor_loyalty",
			"updated_at",
		}).AddRow(clientID, 65, "HIGH", "DECLINING", "Risk", 2, 40.0, 20.0, 60.0, 30.0, 10.0, updated))

	mock.ExpectQuery("SELECT occurred_at, score, event, delta").
		WithArgs(clientID, maxHistoryEntries).
		WillReturnRows(pgxmock.NewRows([]string{"occurred_at", "score", "event", "delta"}).
			AddRow(updated, 65, "NO_SHOW", 15))

	store := NewStore(mock, testScorer())
	p, err := store.Get(context.Background(), clientID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 65, p.Score)
	assert.Equal(t, LevelHigh, p.Level)
	assert.Equal(t, TrendDeclining, p.Trend)
	require.Len(t, p.History, 1)
	assert.Equal(t, EventNoShow, p.History[0].Event)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetKeepsNewestHistory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clientID := uuid.New()
	newest := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT client_id, score, level").
		WithArgs(clientID).
		WillReturnRows(pgxmock.NewRows([]string{
			"client_id", "score", "level", "trend", "segment", "no_show_count",
			"factor_reliability", "factor_engagement", "factor_recency", "factor_value", "factor_loyalty",
			"updated_at",
		}).AddRow(clientID, 65, "HIGH", "DECLINING", "Risk", 2, 40.0, 20.0, 60.0, 30.0, 10.0, newest))

	// The query returns the most recent rows first, the way the database
	// serves ORDER BY occurred_at DESC LIMIT.
	historyRows := pgxmock.NewRows([]string{"occurred_at", "score", "event", "delta"})
	for i := 0; i < maxHistoryEntries; i++ {
		historyRows.AddRow(newest.AddDate(0, 0, -i), 65-i, "APPOINTMENT_COMPLETED", -5)
	}
	mock.ExpectQuery("ORDER BY occurred_at DESC").
		WithArgs(clientID, maxHistoryEntries).
		WillReturnRows(historyRows)

	store := NewStore(mock, testScorer())
	p, err := store.Get(context.Background(), clientID)
	require.NoError(t, err)
	require.NotNil(t, p)

	// The slice comes back in chronological order with the newest event last.
	require.Len(t, p.History, maxHistoryEntries)
	assert.Equal(t, newest, p.History[maxHistoryEntries-1].At)
	assert.Equal(t, 65, p.History[maxHistoryEntries-1].Score)
	assert.True(t, p.History[0].At.Before(p.History[1].At))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := &RiskProfile{
		ClientID:  uuid.New(),
		Score:     72,
		Level:     LevelHigh,
		Trend:     TrendStable,
		Segment:   SegmentRisk,
		Factors:   FactorScores{Reliability: 30, Engagement: 10, Recency: 40, Value: 20, Loyalty: 15},
		UpdatedAt: time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO risk_profiles").
		WithArgs(p.ClientID, 72, "HIGH", "STABLE", "Risk", 0, 30.0, 10.0, 40.0, 20.0, 15.0, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewStore(mock, testScorer())
	require.NoError(t, store.Upsert(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreApplyEventCreatesNeutralBaseline(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clientID := uuid.New()

	// No existing profile: the store starts from the neutral 50 baseline.
	mock.ExpectQuery("SELECT client_id, score, level").
		WithArgs(clientID).
		WillReturnRows(pgxmock.NewRows([]string{"client_id"}))
	mock.ExpectExec("INSERT INTO risk_profiles").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO risk_score_history").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewStore(mock, testScorer())
	change, err := store.ApplyEvent(context.Background(), clientID, EventNoShow)
	require.NoError(t, err)
	assert.Equal(t, 50, change.Old)
	assert.Equal(t, 65, change.New)
	assert.Equal(t, 15, change.Delta)
	assert.NoError(t, mock.ExpectationsWereMet())
}

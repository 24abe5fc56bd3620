package intervention

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonbase/noshow-engine/internal/channels"
)

func TestExecutionStoreSave(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sentAt := time.Date(2025, 5, 14, 10, 0, 1, 0, time.UTC)
	rec := ExecutedIntervention{
		ID:            uuid.New(),
		RuleID:        "critical_confirmation",
		AppointmentID: uuid.New(),
		ClientID:      uuid.New(),
		ExecutedAt:    time.Date(2025, 5, 14, 10, 0, 0, 0, time.UTC),
		Result:        ResultPartial,
		Outcomes: []ActionOutcome{
			{Seq: 0, Channel: channels.ChannelWhatsApp, TemplateID: "critical_confirmation_request",
				Status: ActionSent, SentAt: &sentAt, ProviderMessageID: "msg-1"},
			{Seq: 1, Channel: channels.ChannelSMS, TemplateID: "critical_confirmation_request",
				Status: ActionFailed, Error: "provider 502"},
		},
	}

	mock.ExpectExec("INSERT INTO executed_interventions").
		WithArgs(rec.ID, rec.RuleID, rec.AppointmentID, rec.ClientID, rec.ExecutedAt, "PARTIAL").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO intervention_action_outcomes").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO intervention_action_outcomes").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewExecutionStore(mock)
	require.NoError(t, store.Save(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionStoreGetLastExecution(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ruleID := "critical_confirmation"
	appointmentID := uuid.New()
	execID := uuid.New()
	clientID := uuid.New()
	executedAt := time.Date(2025, 5, 14, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, rule_id, appointment_id").
		WithArgs(ruleID, appointmentID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "rule_id", "appointment_id", "client_id", "executed_at", "result",
		}).AddRow(execID, ruleID, appointmentID, clientID, executedAt, "SUCCESS"))

	store := NewExecutionStore(mock)
	rec, err := store.GetLastExecution(context.Background(), ruleID, appointmentID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, execID, rec.ID)
	assert.Equal(t, executedAt, rec.ExecutedAt)
	assert.Equal(t, ResultSuccess, rec.Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionStoreGetLastExecutionMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	appointmentID := uuid.New()
	mock.ExpectQuery("SELECT id, rule_id, appointment_id").
		WithArgs("never_fired", appointmentID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	store := NewExecutionStore(mock)
	rec, err := store.GetLastExecution(context.Background(), "never_fired", appointmentID)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestExecutionStoreMarkEffectiveness(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	execID := uuid.New()
	mock.ExpectExec("UPDATE executed_interventions").
		WithArgs(execID, 0.8).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewExecutionStore(mock)
	require.NoError(t, store.MarkEffectiveness(context.Background(), execID, 0.8))

	// Unknown execution ids are an error, not a silent no-op.
	mock.ExpectExec("UPDATE executed_interventions").
		WithArgs(execID, 0.8).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.Error(t, store.MarkEffectiveness(context.Background(), execID, 0.8))
	assert.NoError(t, mock.ExpectationsWereMet())
}

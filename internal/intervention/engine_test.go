package intervention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonbase/noshow-engine/internal/booking"
	"github.com/salonbase/noshow-engine/internal/channels"
	"github.com/salonbase/noshow-engine/internal/prediction"
	"github.com/salonbase/noshow-engine/internal/risk"
	"github.com/salonbase/noshow-engine/pkg/logging"
)

var engineNow = time.Date(2025, 5, 14, 10, 0, 0, 0, time.UTC)

// memLastExec is an in-memory LastExecutionSource keyed by rule and
// appointment, with an optional injected lookup error.
type memLastExec struct {
	records map[string]*ExecutedIntervention
	err     error
}

func newMemLastExec() *memLastExec {
	return &memLastExec{records: make(map[string]*ExecutedIntervention)}
}

func (m *memLastExec) record(ruleID string, appointmentID uuid.UUID, at time.Time) {
	m.records[ruleID+"/"+appointmentID.String()] = &ExecutedIntervention{
		ID:            uuid.New(),
		RuleID:        ruleID,
		AppointmentID: appointmentID,
		ExecutedAt:    at,
		Result:        ResultSuccess,
	}
}

func (m *memLastExec) GetLastExecution(_ context.Context, ruleID string, appointmentID uuid.UUID) (*ExecutedIntervention, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.records[ruleID+"/"+appointmentID.String()], nil
}

func testEngine(t *testing.T, rules []Rule, lastExec LastExecutionSource, at time.Time) *Engine {
	t.Helper()
	return NewEngine(rules, lastExec, func() time.Time { return at }, logging.New("error"))
}

func apptIn(hours float64, price float64) booking.AppointmentSnapshot {
	return booking.AppointmentSnapshot{
		ID:           uuid.New(),
		ClientID:     uuid.New(),
		ServiceName:  "Hydrafacial",
		ScheduledAt:  engineNow.Add(time.Duration(hours * float64(time.Hour))),
		CreatedAt:    engineNow.Add(-72 * time.Hour),
		ServicePrice: price,
	}
}

func predAt(level risk.Level, score int) prediction.Prediction {
	return prediction.Prediction{RiskScore: score, RiskLevel: level}
}

func ruleIDs(rules []Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.ID
	}
	return out
}

func TestEvaluateCriticalWindow(t *testing.T) {
	eng := testEngine(t, DefaultRules(), newMemLastExec(), engineNow)

	// 36h out: inside the 24-48h confirmation window.
	appt := apptIn(36, 80)
	matched, err := eng.Evaluate(context.Background(), appt, predAt(risk.LevelCritical, 92), nil)
	require.NoError(t, err)
	assert.Contains(t, ruleIDs(matched), "critical_confirmation")
	assert.NotContains(t, ruleIDs(matched), "critical_phone_outreach")

	// 2h out: the confirmation window has closed; phone outreach applies.
	appt = apptIn(2, 80)
	matched, err = eng.Evaluate(context.Background(), appt, predAt(risk.LevelCritical, 92), nil)
	require.NoError(t, err)
	assert.NotContains(t, ruleIDs(matched), "critical_confirmation")
	assert.Contains(t, ruleIDs(matched), "critical_phone_outreach")
}

func TestEvaluateSortsByPriorityStably(t *testing.T) {
	eng := testEngine(t, DefaultRules(), newMemLastExec(), engineNow)

	// CRITICAL, high value, 36h out: confirmation (prio 1) and payment
	// request (prio 2) both fire, in priority order.
	appt := apptIn(36, 250)
	matched, err := eng.Evaluate(context.Background(), appt, predAt(risk.LevelCritical, 95), nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(matched), 2)
	assert.Equal(t, "critical_confirmation", matched[0].ID)
	assert.Equal(t, "high_risk_payment_request", matched[1].ID)
	for i := 1; i < len(matched); i++ {
		assert.GreaterOrEqual(t, matched[i].Priority, matched[i-1].Priority)
	}
}

func TestEvaluateTriggerConjunction(t *testing.T) {
	tests := []struct {
		name    string
		trigger Trigger
		appt    booking.AppointmentSnapshot
		pred    prediction.Prediction
		profile *risk.RiskProfile
		want    bool
	}{
		{
			name:    "level mismatch fails the whole trigger",
			trigger: Trigger{Levels: []risk.Level{risk.LevelHigh}, MinValue: floatPtr(50)},
			appt:    apptIn(24, 200),
			pred:    predAt(risk.LevelMedium, 45),
			want:    false,
		},
		{
			name:    "score range inclusive at both ends",
			trigger: Trigger{ScoreMin: intPtr(60), ScoreMax: intPtr(89)},
			appt:    apptIn(24, 0),
			pred:    predAt(risk.LevelHigh, 89),
			want:    true,
		},
		{
			name:    "score above max fails",
			trigger: Trigger{ScoreMin: intPtr(60), ScoreMax: intPtr(89)},
			appt:    apptIn(24, 0),
			pred:    predAt(risk.LevelCritical, 90),
			want:    false,
		},
		{
			name:    "min value gates on service price",
			trigger: Trigger{MinValue: floatPtr(100)},
			appt:    apptIn(24, 99.99),
			pred:    predAt(risk.LevelHigh, 70),
			want:    false,
		},
		{
			name:    "first time clause must match exactly",
			trigger: Trigger{FirstTime: boolPtr(true)},
			appt:    apptIn(24, 100),
			pred:    predAt(risk.LevelMedium, 40),
			want:    false,
		},
		{
			name:    "no-show history satisfied by profile count",
			trigger: Trigger{HasNoShowHistory: boolPtr(true)},
			appt:    apptIn(24, 100),
			pred:    predAt(risk.LevelMedium, 40),
			profile: &risk.RiskProfile{NoShowCount: 2},
			want:    true,
		},
		{
			name:    "no-show history clause fails without a profile",
			trigger: Trigger{HasNoShowHistory: boolPtr(true)},
			appt:    apptIn(24, 100),
			pred:    predAt(risk.LevelMedium, 40),
			want:    false,
		},
		{
			name:    "empty trigger matches everything",
			trigger: Trigger{},
			appt:    apptIn(1, 0),
			pred:    predAt(risk.LevelLow, 5),
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchesTrigger(tt.trigger, tt.appt, tt.pred, tt.profile, engineNow)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateCooldownSuppressesRefire(t *testing.T) {
	lastExec := newMemLastExec()
	appt := apptIn(36, 80)
	pred := predAt(risk.LevelCritical, 92)

	eng := testEngine(t, DefaultRules(), lastExec, engineNow)
	matched, err := eng.Evaluate(context.Background(), appt, pred, nil)
	require.NoError(t, err)
	require.Contains(t, ruleIDs(matched), "critical_confirmation")

	// The rule fired; within its 24h cooldown it must not fire again.
	lastExec.record("critical_confirmation", appt.ID, engineNow)

	later := testEngine(t, DefaultRules(), lastExec, engineNow.Add(6*time.Hour))
	appt2 := appt
	appt2.ScheduledAt = engineNow.Add(30 * time.Hour) // still inside the trigger window
	matched, err = later.Evaluate(context.Background(), appt2, pred, nil)
	require.NoError(t, err)
	assert.NotContains(t, ruleIDs(matched), "critical_confirmation")

	// After the cooldown elapses the rule is eligible again.
	expired := testEngine(t, DefaultRules(), lastExec, engineNow.Add(25*time.Hour))
	appt3 := appt
	appt3.ScheduledAt = engineNow.Add(55 * time.Hour)
	matched, err = expired.Evaluate(context.Background(), appt3, pred, nil)
	require.NoError(t, err)
	assert.Contains(t, ruleIDs(matched), "critical_confirmation")
}

func TestEvaluateCooldownLookupErrorAborts(t *testing.T) {
	lastExec := newMemLastExec()
	lastExec.err = errors.New("connection reset")

	eng := testEngine(t, DefaultRules(), lastExec, engineNow)
	matched, err := eng.Evaluate(context.Background(), apptIn(36, 80), predAt(risk.LevelCritical, 92), nil)
	require.Error(t, err)
	assert.Nil(t, matched)
}

func TestEvaluateSkipsInactiveRules(t *testing.T) {
	rules := DefaultRules()
	for i := range rules {
		if rules[i].ID == "critical_confirmation" {
			rules[i].Active = false
		}
	}

	eng := testEngine(t, rules, newMemLastExec(), engineNow)
	matched, err := eng.Evaluate(context.Background(), apptIn(36, 80), predAt(risk.LevelCritical, 92), nil)
	require.NoError(t, err)
	assert.NotContains(t, ruleIDs(matched), "critical_confirmation")
}

func TestUpdateRule(t *testing.T) {
	eng := testEngine(t, DefaultRules(), newMemLastExec(), engineNow)

	updated := Rule{
		ID:       "medium_risk_reminder",
		Name:     "Medium risk: reminder, SMS only",
		Trigger:  Trigger{Levels: []risk.Level{risk.LevelMedium}},
		Actions:  []Action{{Channel: channels.ChannelSMS, TemplateID: "gentle_reminder"}},
		Priority: 9,
		Active:   true,
	}
	assert.True(t, eng.UpdateRule(updated))

	var found Rule
	for _, r := range eng.Rules() {
		if r.ID == "medium_risk_reminder" {
			found = r
		}
	}
	assert.Equal(t, 9, found.Priority)
	assert.Len(t, found.Actions, 1)

	// Unknown ids are a logged no-op, not an error.
	assert.False(t, eng.UpdateRule(Rule{ID: "does_not_exist"}))
	assert.Len(t, eng.Rules(), len(DefaultRules()))
}

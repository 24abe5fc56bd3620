package intervention

import (
	"time"

	"github.com/google/uuid"

	"github.com/salonbase/noshow-engine/internal/channels"
	"github.com/salonbase/noshow-engine/internal/risk"
)

// Timing controls when an action should run relative to the appointment.
type Timing string

const (
	TimingImmediate    Timing = "immediate"
	TimingHoursBefore  Timing = "hours_before"
	TimingSpecificTime Timing = "specific_time"
)

// Action is one channel-bound step of an intervention plan.
type Action struct {
	Channel     channels.Channel  `json:"channel"`
	TemplateID  string            `json:"template_id"`
	Params      map[string]string `json:"params,omitempty"`
	Delay       time.Duration     `json:"delay,omitempty"`
	Timing      Timing            `json:"timing,omitempty"`
	HoursBefore float64           `json:"hours_before,omitempty"`
	At          *time.Time        `json:"at,omitempty"`
}

// Trigger is the conjunction of conditions under which a rule fires. Optional
// clauses are pointers; nil means the clause is not part of the conjunction.
type Trigger struct {
	Levels           []risk.Level `json:"levels"`
	ScoreMin         *int         `json:"score_min,omitempty"`
	ScoreMax         *int         `json:"score_max,omitempty"`
	HoursBeforeMin   *float64     `json:"hours_before_min,omitempty"`
	HoursBeforeMax   *float64     `json:"hours_before_max,omitempty"`
	MinValue         *float64     `json:"min_value,omitempty"`
	FirstTime        *bool        `json:"first_time,omitempty"`
	HasNoShowHistory *bool        `json:"has_no_show_history,omitempty"`
}

// Rule is one declarative intervention rule. Rules are loaded once and are
// immutable at runtime; UpdateRule replaces an entry wholesale.
type Rule struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Trigger  Trigger       `json:"trigger"`
	Actions  []Action      `json:"actions"`
	Priority int           `json:"priority"` // lower = more urgent
	Active   bool          `json:"active"`
	Cooldown time.Duration `json:"cooldown"`
}

// ActionStatus is the lifecycle state of one dispatched action.
type ActionStatus string

const (
	ActionPending   ActionStatus = "PENDING"
	ActionSent      ActionStatus = "SENT"
	ActionDelivered ActionStatus = "DELIVERED"
	ActionFailed    ActionStatus = "FAILED"
	ActionResponded ActionStatus = "RESPONDED"
)

// succeeded reports whether the status counts as a successful dispatch.
func (s ActionStatus) succeeded() bool {
	switch s {
	case ActionSent, ActionDelivered, ActionResponded:
		return true
	default:
		return false
	}
}

// Result is the aggregate outcome of one executed plan.
type Result string

const (
	ResultSuccess Result = "SUCCESS"
	ResultPartial Result = "PARTIAL"
	ResultFailed  Result = "FAILED"
)

// ActionOutcome records the dispatch attempt of one action.
type ActionOutcome struct {
	Seq               int              `json:"seq"`
	Channel           channels.Channel `json:"channel"`
	TemplateID        string           `json:"template_id"`
	Status            ActionStatus     `json:"status"`
	SentAt            *time.Time       `json:"sent_at,omitempty"`
	ProviderMessageID string           `json:"provider_message_id,omitempty"`
	Error             string           `json:"error,omitempty"`
}

// ExecutedIntervention is the append-only audit record of one rule execution.
// It is created once, receives one outcome per action during dispatch, has its
// result set when all actions resolve, and is immutable afterwards except for
// the optional effectiveness annotation.
type ExecutedIntervention struct {
	ID            uuid.UUID       `json:"id"`
	RuleID        string          `json:"rule_id"`
	AppointmentID uuid.UUID       `json:"appointment_id"`
	ClientID      uuid.UUID       `json:"client_id"`
	ExecutedAt    time.Time       `json:"executed_at"`
	Outcomes      []ActionOutcome `json:"outcomes"`
	Result        Result          `json:"result"`
	Effectiveness *float64        `json:"effectiveness,omitempty"`
}

// aggregateResult applies the plan-result rule: SUCCESS iff every action
// reached a successful status, FAILED iff none did, PARTIAL otherwise. An
// action left PENDING counts as failed.
func aggregateResult(outcomes []ActionOutcome) Result {
	if len(outcomes) == 0 {
		return ResultSuccess
	}
	succeeded, failed := 0, 0
	for _, o := range outcomes {
		if o.Status.succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	switch {
	case failed == 0:
		return ResultSuccess
	case succeeded == 0:
		return ResultFailed
	default:
		return ResultPartial
	}
}

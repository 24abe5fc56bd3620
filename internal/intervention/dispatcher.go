package intervention

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/salonbase/noshow-engine/internal/booking"
	"github.com/salonbase/noshow-engine/internal/channels"
	"github.com/salonbase/noshow-engine/internal/observability/metrics"
	"github.com/salonbase/noshow-engine/internal/templates"
	"github.com/salonbase/noshow-engine/pkg/logging"
)

// Dispatcher executes intervention plans: it renders each action's template,
// delivers it through the channel sender, and records one outcome per action.
type Dispatcher struct {
	sender    channels.Sender
	templates *templates.Registry
	timeout   time.Duration
	metrics   *metrics.RetentionMetrics
	now       func() time.Time
	logger    *logging.Logger
}

// NewDispatcher creates a dispatcher. timeout bounds each individual channel
// send; zero disables the per-action deadline.
func NewDispatcher(sender channels.Sender, registry *templates.Registry, timeout time.Duration, m *metrics.RetentionMetrics, now func() time.Time, logger *logging.Logger) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		sender:    sender,
		templates: registry,
		timeout:   timeout,
		metrics:   m,
		now:       now,
		logger:    logger,
	}
}

// Execute runs the rule's actions in declared order against one appointment.
// A failing action is recorded as FAILED and never aborts its siblings; the
// method always returns a complete record, never an error.
func (d *Dispatcher) Execute(ctx context.Context, rule Rule, appt booking.AppointmentSnapshot, client booking.Client, business booking.Business) ExecutedIntervention {
	record := ExecutedIntervention{
		ID:            uuid.New(),
		RuleID:        rule.ID,
		AppointmentID: appt.ID,
		ClientID:      client.ID,
		ExecutedAt:    d.now().UTC(),
	}

	vars := baseVariables(appt, client, business)

	for i, action := range rule.Actions {
		outcome := d.dispatchAction(ctx, i, action, appt, client, vars)
		record.Outcomes = append(record.Outcomes, outcome)
	}
	record.Result = aggregateResult(record.Outcomes)

	d.metrics.ObserveIntervention(rule.ID, string(record.Result))
	d.logger.Info("intervention: plan executed",
		"rule_id", rule.ID,
		"appointment_id", appt.ID,
		"result", string(record.Result),
		"actions", len(record.Outcomes),
	)
	return record
}

// dispatchAction renders and sends one action. Anything the sender does wrong
// (error return or panic) becomes a FAILED outcome.
func (d *Dispatcher) dispatchAction(ctx context.Context, seq int, action Action, appt booking.AppointmentSnapshot, client booking.Client, base map[string]string) (outcome ActionOutcome) {
	outcome = ActionOutcome{
		Seq:        seq,
		Channel:    action.Channel,
		TemplateID: action.TemplateID,
		Status:     ActionPending,
	}

	defer func() {
		if r := recover(); r != nil {
			outcome.Status = ActionFailed
			outcome.Error = fmt.Sprintf("sender panic: %v", r)
			d.logger.Error("intervention: sender panicked",
				"channel", string(action.Channel),
				"template_id", action.TemplateID,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	vars := make(map[string]string, len(base)+len(action.Params))
	for k, v := range base {
		vars[k] = v
	}
	for k, v := range action.Params {
		vars[k] = v
	}

	message := d.templates.Render(action.TemplateID, vars)
	recipient := recipientFor(action.Channel, client)

	sendCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	started := d.now()
	report, err := d.sender.Send(sendCtx, action.Channel, recipient, message, action.Params)
	d.metrics.ObserveDispatchLatency(string(action.Channel), d.now().Sub(started).Seconds())

	if err != nil {
		outcome.Status = ActionFailed
		outcome.Error = err.Error()
		d.logger.Warn("intervention: action failed",
			"channel", string(action.Channel),
			"template_id", action.TemplateID,
			"appointment_id", appt.ID,
			"error", err,
		)
		return outcome
	}

	sentAt := report.SentAt
	if sentAt.IsZero() {
		sentAt = d.now().UTC()
	}
	outcome.Status = ActionSent
	outcome.SentAt = &sentAt
	outcome.ProviderMessageID = report.ProviderMessageID
	return outcome
}

// baseVariables is the fixed variable set every action template can rely on;
// action params are merged on top and win on conflict.
func baseVariables(appt booking.AppointmentSnapshot, client booking.Client, business booking.Business) map[string]string {
	return map[string]string{
		"client_name":      client.Name,
		"service_name":     appt.ServiceName,
		"date":             appt.ScheduledAt.Format("Monday, January 2"),
		"time":             appt.ScheduledAt.Format("3:04 PM"),
		"price":            "$" + strconv.FormatFloat(appt.ServicePrice, 'f', 2, 64),
		"business_name":    business.Name,
		"business_phone":   business.Phone,
		"business_address": business.Address,
		"recipient_name":   client.Name,
	}
}

func recipientFor(ch channels.Channel, client booking.Client) string {
	if ch == channels.ChannelEmail {
		return client.Email
	}
	return client.Phone
}

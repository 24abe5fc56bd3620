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
	"github.com/salonbase/noshow-engine/internal/templates"
	"github.com/salonbase/noshow-engine/pkg/logging"
)

// scriptedSender returns a canned result per channel and records every call.
type scriptedSender struct {
	fail  map[channels.Channel]error
	panic map[channels.Channel]string
	calls []sentCall
}

type sentCall struct {
	channel   channels.Channel
	recipient string
	message   string
}

func (s *scriptedSender) Send(_ context.Context, ch channels.Channel, recipient, message string, _ map[string]string) (channels.DeliveryReport, error) {
	s.calls = append(s.calls, sentCall{channel: ch, recipient: recipient, message: message})
	if msg, ok := s.panic[ch]; ok {
		panic(msg)
	}
	if err, ok := s.fail[ch]; ok {
		return channels.DeliveryReport{Status: "failed"}, err
	}
	return channels.DeliveryReport{Status: "sent", ProviderMessageID: "msg-" + string(ch)}, nil
}

var dispatchNow = time.Date(2025, 5, 14, 10, 0, 0, 0, time.UTC)

func testDispatcher(sender channels.Sender) *Dispatcher {
	logger := logging.New("error")
	return NewDispatcher(sender, templates.NewRegistry(logger), 0, nil, func() time.Time { return dispatchNow }, logger)
}

func threeActionRule() Rule {
	return Rule{
		ID:   "critical_full_press",
		Name: "Critical: confirmation, payment, reminder",
		Actions: []Action{
			{Channel: channels.ChannelWhatsApp, TemplateID: templates.IDCriticalConfirm},
			{Channel: channels.ChannelPaymentRequest, TemplateID: templates.IDPaymentRequest,
				Params: map[string]string{"payment_link": "https://pay.example/abc"}},
			{Channel: channels.ChannelSMS, TemplateID: templates.IDGentleReminder},
		},
		Priority: 1,
		Active:   true,
	}
}

func dispatchFixture() (booking.AppointmentSnapshot, booking.Client, booking.Business) {
	appt := booking.AppointmentSnapshot{
		ID:           uuid.New(),
		ClientID:     uuid.New(),
		ServiceName:  "Laser Hair Removal",
		ScheduledAt:  time.Date(2025, 5, 16, 15, 0, 0, 0, time.UTC),
		ServicePrice: 250,
	}
	client := booking.Client{ID: appt.ClientID, Name: "Dana", Phone: "+15551230000", Email: "dana@example.com"}
	business := booking.Business{Name: "Glow Medspa", Phone: "+15559870000", Address: "12 Main St"}
	return appt, client, business
}

func TestExecuteAllSucceed(t *testing.T) {
	sender := &scriptedSender{}
	d := testDispatcher(sender)
	appt, client, business := dispatchFixture()

	rec := d.Execute(context.Background(), threeActionRule(), appt, client, business)

	assert.Equal(t, ResultSuccess, rec.Result)
	require.Len(t, rec.Outcomes, 3)
	for i, o := range rec.Outcomes {
		assert.Equal(t, i, o.Seq)
		assert.Equal(t, ActionSent, o.Status)
		require.NotNil(t, o.SentAt)
		assert.Empty(t, o.Error)
	}
	assert.Equal(t, "critical_full_press", rec.RuleID)
	assert.Equal(t, appt.ID, rec.AppointmentID)
	assert.Equal(t, client.ID, rec.ClientID)
}

func TestExecutePartialFailureNeverAbortsSiblings(t *testing.T) {
	sender := &scriptedSender{
		fail: map[channels.Channel]error{
			channels.ChannelPaymentRequest: errors.New("provider 502"),
		},
	}
	d := testDispatcher(sender)
	appt, client, business := dispatchFixture()

	rec := d.Execute(context.Background(), threeActionRule(), appt, client, business)

	assert.Equal(t, ResultPartial, rec.Result)
	require.Len(t, rec.Outcomes, 3)
	assert.Equal(t, ActionSent, rec.Outcomes[0].Status)
	assert.Equal(t, ActionFailed, rec.Outcomes[1].Status)
	assert.Contains(t, rec.Outcomes[1].Error, "provider 502")
	assert.Equal(t, ActionSent, rec.Outcomes[2].Status)

	// All three sends were attempted despite the middle failure.
	assert.Len(t, sender.calls, 3)
}

func TestExecuteAllFail(t *testing.T) {
	err := errors.New("gateway down")
	sender := &scriptedSender{
		fail: map[channels.Channel]error{
			channels.ChannelWhatsApp:       err,
			channels.ChannelPaymentRequest: err,
			channels.ChannelSMS:            err,
		},
	}
	d := testDispatcher(sender)
	appt, client, business := dispatchFixture()

	rec := d.Execute(context.Background(), threeActionRule(), appt, client, business)
	assert.Equal(t, ResultFailed, rec.Result)
	for _, o := range rec.Outcomes {
		assert.Equal(t, ActionFailed, o.Status)
	}
}

func TestExecuteEmptyPlanIsSuccess(t *testing.T) {
	d := testDispatcher(&scriptedSender{})
	appt, client, business := dispatchFixture()

	rec := d.Execute(context.Background(), Rule{ID: "noop", Active: true}, appt, client, business)
	assert.Equal(t, ResultSuccess, rec.Result)
	assert.Empty(t, rec.Outcomes)
}

func TestExecuteRecoversFromSenderPanic(t *testing.T) {
	sender := &scriptedSender{
		panic: map[channels.Channel]string{channels.ChannelWhatsApp: "nil provider client"},
	}
	d := testDispatcher(sender)
	appt, client, business := dispatchFixture()

	rec := d.Execute(context.Background(), threeActionRule(), appt, client, business)

	assert.Equal(t, ResultPartial, rec.Result)
	require.Len(t, rec.Outcomes, 3)
	assert.Equal(t, ActionFailed, rec.Outcomes[0].Status)
	assert.Contains(t, rec.Outcomes[0].Error, "sender panic")
	assert.Equal(t, ActionSent, rec.Outcomes[1].Status)
	assert.Equal(t, ActionSent, rec.Outcomes[2].Status)
}

func TestExecuteRendersTemplateVariables(t *testing.T) {
	sender := &scriptedSender{}
	d := testDispatcher(sender)
	appt, client, business := dispatchFixture()

	rule := Rule{
		ID: "payment_only",
		Actions: []Action{
			{Channel: channels.ChannelPaymentRequest, TemplateID: templates.IDPaymentRequest,
				Params: map[string]string{"payment_link": "https://pay.example/abc"}},
		},
		Active: true,
	}
	d.Execute(context.Background(), rule, appt, client, business)

	require.Len(t, sender.calls, 1)
	msg := sender.calls[0].message
	assert.Contains(t, msg, "Dana")
	assert.Contains(t, msg, "Laser Hair Removal")
	assert.Contains(t, msg, "$250.00")
	assert.Contains(t, msg, "https://pay.example/abc")
	assert.NotContains(t, msg, "{{")
}

func TestExecuteRoutesEmailToEmailAddress(t *testing.T) {
	sender := &scriptedSender{}
	d := testDispatcher(sender)
	appt, client, business := dispatchFixture()

	rule := Rule{
		ID: "email_only",
		Actions: []Action{
			{Channel: channels.ChannelEmail, TemplateID: templates.IDEmailReminder},
			{Channel: channels.ChannelSMS, TemplateID: templates.IDGentleReminder},
		},
		Active: true,
	}
	d.Execute(context.Background(), rule, appt, client, business)

	require.Len(t, sender.calls, 2)
	assert.Equal(t, "dana@example.com", sender.calls[0].recipient)
	assert.Equal(t, "+15551230000", sender.calls[1].recipient)
}

func TestAggregateResultCountsPendingAsFailed(t *testing.T) {
	outcomes := []ActionOutcome{
		{Seq: 0, Channel: channels.ChannelSMS, Status: ActionSent},
		{Seq: 1, Channel: channels.ChannelEmail, Status: ActionPending},
	}
	assert.Equal(t, ResultPartial, aggregateResult(outcomes))

	assert.Equal(t, ResultFailed, aggregateResult([]ActionOutcome{
		{Seq: 0, Channel: channels.ChannelSMS, Status: ActionPending},
	}))
}

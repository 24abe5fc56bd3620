package intervention

import (
	"time"

	"github.com/salonbase/noshow-engine/internal/channels"
	"github.com/salonbase/noshow-engine/internal/risk"
	"github.com/salonbase/noshow-engine/internal/templates"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

// DefaultRules returns the shipped rule catalog, in declaration order. The
// order matters for priority ties: Evaluate sorts stably, so two rules with
// the same priority fire in the order listed here.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:   "critical_confirmation",
			Name: "Critical risk: require confirmation 24-48h out",
			Trigger: Trigger{
				Levels:         []risk.Level{risk.LevelCritical},
				HoursBeforeMin: floatPtr(24),
				HoursBeforeMax: floatPtr(48),
			},
			Actions: []Action{
				{Channel: channels.ChannelWhatsApp, TemplateID: templates.IDCriticalConfirm},
				{Channel: channels.ChannelConfirmation, TemplateID: templates.IDCriticalConfirm},
			},
			Priority: 1,
			Active:   true,
			Cooldown: 24 * time.Hour,
		},
		{
			ID:   "critical_phone_outreach",
			Name: "Critical risk: phone call inside 24h",
			Trigger: Trigger{
				Levels:         []risk.Level{risk.LevelCritical},
				HoursBeforeMax: floatPtr(24),
			},
			Actions: []Action{
				{Channel: channels.ChannelPhoneCall, TemplateID: templates.IDPhoneScriptCritical},
			},
			Priority: 1,
			Active:   true,
			Cooldown: 12 * time.Hour,
		},
		{
			ID:   "high_risk_payment_request",
			Name: "High risk, high value: request advance payment",
			Trigger: Trigger{
				Levels:   []risk.Level{risk.LevelHigh, risk.LevelCritical},
				MinValue: floatPtr(100),
			},
			Actions: []Action{
				{Channel: channels.ChannelPaymentRequest, TemplateID: templates.IDPaymentRequest},
			},
			Priority: 2,
			Active:   true,
			Cooldown: 48 * time.Hour,
		},
		{
			ID:   "high_risk_confirmation",
			Name: "High risk: ask for a confirmation",
			Trigger: Trigger{
				Levels:         []risk.Level{risk.LevelHigh},
				HoursBeforeMin: floatPtr(4),
			},
			Actions: []Action{
				{Channel: channels.ChannelWhatsApp, TemplateID: templates.IDConfirmationRequest},
				{Channel: channels.ChannelSMS, TemplateID: templates.IDConfirmationRequest},
			},
			Priority: 3,
			Active:   true,
			Cooldown: 24 * time.Hour,
		},
		{
			ID:   "repeat_offender_incentive",
			Name: "No-show history: sweeten showing up",
			Trigger: Trigger{
				Levels:           []risk.Level{risk.LevelMedium, risk.LevelHigh},
				HasNoShowHistory: boolPtr(true),
			},
			Actions: []Action{
				{Channel: channels.ChannelIncentiveOffer, TemplateID: templates.IDIncentiveOffer,
					Params: map[string]string{"incentive": "a complimentary add-on"}},
			},
			Priority: 4,
			Active:   true,
			Cooldown: 72 * time.Hour,
		},
		{
			ID:   "first_visit_welcome",
			Name: "First visit: warm welcome with confirmation",
			Trigger: Trigger{
				Levels:    []risk.Level{risk.LevelMedium, risk.LevelHigh},
				FirstTime: boolPtr(true),
			},
			Actions: []Action{
				{Channel: channels.ChannelWhatsApp, TemplateID: templates.IDFirstVisitWelcome},
			},
			Priority: 5,
			Active:   true,
			Cooldown: 48 * time.Hour,
		},
		{
			ID:   "medium_risk_reminder",
			Name: "Medium risk: gentle reminder",
			Trigger: Trigger{
				Levels:         []risk.Level{risk.LevelMedium},
				HoursBeforeMin: floatPtr(12),
				HoursBeforeMax: floatPtr(72),
			},
			Actions: []Action{
				{Channel: channels.ChannelSMS, TemplateID: templates.IDGentleReminder},
				{Channel: channels.ChannelEmail, TemplateID: templates.IDEmailReminder,
					Params: map[string]string{"subject": "Your upcoming appointment"}},
			},
			Priority: 6,
			Active:   true,
			Cooldown: 48 * time.Hour,
		},
	}
}

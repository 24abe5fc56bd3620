package templates

// Template ids referenced by the default intervention rules.
const (
	IDConfirmationRequest = "confirmation_request"
	IDCriticalConfirm     = "critical_confirmation_request"
	IDPaymentRequest      = "payment_request"
	IDGentleReminder      = "gentle_reminder"
	IDFirstVisitWelcome   = "first_visit_welcome"
	IDIncentiveOffer      = "incentive_offer"
	IDPhoneScriptCritical = "phone_script_critical"
	IDEmailReminder       = "email_reminder"
)

// DefaultCatalog returns the built-in outbound message templates.
func DefaultCatalog() []Template {
	return []Template{
		{
			ID:   IDConfirmationRequest,
			Body: "Hi {{client_name}}! This is {{business_name}}. Can you confirm your {{service_name}} on {{date}} at {{time}}? Reply YES to confirm or call us at {{business_phone}} to reschedule.",
		},
		{
			ID:   IDCriticalConfirm,
			Body: "Hi {{client_name}}, we still have you down for {{service_name}} on {{date}} at {{time}} at {{business_name}}. We need a confirmation to hold your spot. Reply YES, or call {{business_phone}} if your plans changed.",
		},
		{
			ID:   IDPaymentRequest,
			Body: "Hi {{client_name}}! To secure your {{service_name}} on {{date}} at {{time}} ({{price}}), {{business_name}} asks for an advance payment. Pay here: {{payment_link}}",
		},
		{
			ID:   IDGentleReminder,
			Body: "Hi {{client_name}}! Just a friendly reminder from {{business_name}}: your {{service_name}} is on {{date}} at {{time}}. See you at {{business_address}}!",
		},
		{
			ID:   IDFirstVisitWelcome,
			Body: "Hi {{client_name}}, welcome to {{business_name}}! We're looking forward to your first {{service_name}} on {{date}} at {{time}}. Reply YES to confirm. See you at {{business_address}}!",
		},
		{
			ID:   IDIncentiveOffer,
			Body: "Hi {{client_name}}! Keep your {{service_name}} on {{date}} at {{time}} and {{business_name}} will add {{incentive}} as a thank-you for showing up on time. Reply YES to confirm!",
		},
		{
			ID:   IDPhoneScriptCritical,
			Body: "Call {{client_name}} about the {{service_name}} on {{date}} at {{time}}. Confirm attendance, offer to reschedule if needed, mention the advance-payment option for {{price}}.",
		},
		{
			ID:   IDEmailReminder,
			Body: "Hello {{client_name}},\n\nThis is a reminder of your {{service_name}} appointment with {{business_name}} on {{date}} at {{time}}.\n\nAddress: {{business_address}}\nQuestions? Call {{business_phone}}.\n\nSee you soon!",
		},
	}
}

package channels

import (
	"context"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/salonbase/noshow-engine/pkg/logging"
)

// SendGridConfig holds configuration for the email sender.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// SendGridSender delivers the EMAIL channel via the SendGrid API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *logging.Logger
	now       func() time.Time
}

// NewSendGridSender creates an email sender, or nil when no API key is set.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = "SalonBase"
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
		now:       time.Now,
	}
}

// Send delivers one email. The subject comes from the action's params; a
// missing subject gets a generic one rather than failing the send.
func (s *SendGridSender) Send(ctx context.Context, _ Channel, recipient, message string, params map[string]string) (DeliveryReport, error) {
	if s == nil || s.client == nil {
		return DeliveryReport{Status: "failed"}, fmt.Errorf("channels: sendgrid client not configured")
	}

	subject := params["subject"]
	if subject == "" {
		subject = "About your upcoming appointment"
	}
	toName := params["recipient_name"]

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(toName, recipient)
	msg := mail.NewSingleEmail(from, subject, to, message, "")

	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return DeliveryReport{Status: "failed"}, fmt.Errorf("channels: sendgrid send: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("channels: sendgrid rejected message",
			"status", resp.StatusCode,
			"to", recipient,
		)
		return DeliveryReport{Status: "failed"}, fmt.Errorf("channels: sendgrid status %d", resp.StatusCode)
	}

	return DeliveryReport{Status: "sent", SentAt: s.now().UTC()}, nil
}

var _ Sender = (*SendGridSender)(nil)

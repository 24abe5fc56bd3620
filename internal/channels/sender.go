package channels

import (
	"context"
	"fmt"
	"time"

	"github.com/salonbase/noshow-engine/pkg/logging"
)

// Channel is an external communication or payment capability.
type Channel string

const (
	ChannelWhatsApp       Channel = "WHATSAPP"
	ChannelSMS            Channel = "SMS"
	ChannelEmail          Channel = "EMAIL"
	ChannelPhoneCall      Channel = "PHONE_CALL"
	ChannelPaymentRequest Channel = "PAYMENT_REQUEST"
	ChannelIncentiveOffer Channel = "INCENTIVE_OFFER"
	ChannelConfirmation   Channel = "CONFIRMATION_REQUIRED"
)

// DeliveryReport is what a provider reports back for one send attempt.
type DeliveryReport struct {
	Status            string    `json:"status"` // queued, sent, delivered
	SentAt            time.Time `json:"sent_at"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
}

// Sender delivers one rendered message on one channel. Implementations report
// failure through the error return and must not panic past this boundary;
// retry policy also lives behind this interface, not in the caller.
type Sender interface {
	Send(ctx context.Context, ch Channel, recipient, message string, params map[string]string) (DeliveryReport, error)
}

// Registry routes each channel to its configured sender.
type Registry struct {
	senders map[Channel]Sender
	logger  *logging.Logger
}

// NewRegistry creates an empty channel registry.
func NewRegistry(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{senders: make(map[Channel]Sender), logger: logger}
}

// Set assigns the sender for one or more channels.
func (r *Registry) Set(sender Sender, chs ...Channel) {
	for _, ch := range chs {
		r.senders[ch] = sender
	}
}

// Send routes to the channel's sender.
func (r *Registry) Send(ctx context.Context, ch Channel, recipient, message string, params map[string]string) (DeliveryReport, error) {
	sender, ok := r.senders[ch]
	if !ok {
		return DeliveryReport{Status: "failed"}, fmt.Errorf("channels: no sender configured for %s", ch)
	}
	return sender.Send(ctx, ch, recipient, message, params)
}

var _ Sender = (*Registry)(nil)

// LogSender logs the message instead of delivering it. Used in development
// and as the default for channels without a configured provider.
type LogSender struct {
	logger *logging.Logger
	now    func() time.Time
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *logging.Logger, now func() time.Time) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &LogSender{logger: logger, now: now}
}

// Send logs the outbound message and reports it as sent.
func (s *LogSender) Send(_ context.Context, ch Channel, recipient, message string, _ map[string]string) (DeliveryReport, error) {
	s.logger.Info("channels: log-only send",
		"channel", string(ch),
		"to", recipient,
		"body", message,
	)
	return DeliveryReport{Status: "sent", SentAt: s.now().UTC()}, nil
}

var _ Sender = (*LogSender)(nil)

package channels

import (
	"context"
	"errors"

	"github.com/salonbase/noshow-engine/pkg/logging"
)

// FailoverSender attempts a primary send, then falls back to a secondary
// provider on error.
type FailoverSender struct {
	primary       Sender
	secondary     Sender
	primaryName   string
	secondaryName string
	logger        *logging.Logger
}

// NewFailoverSender builds a failover sender with named providers.
func NewFailoverSender(primary Sender, primaryName string, secondary Sender, secondaryName string, logger *logging.Logger) *FailoverSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &FailoverSender{
		primary:       primary,
		secondary:     secondary,
		primaryName:   primaryName,
		secondaryName: secondaryName,
		logger:        logger,
	}
}

var _ Sender = (*FailoverSender)(nil)

// Send tries the primary provider first, then the secondary on failure.
func (f *FailoverSender) Send(ctx context.Context, ch Channel, recipient, message string, params map[string]string) (DeliveryReport, error) {
	if f == nil || f.primary == nil {
		return DeliveryReport{Status: "failed"}, errors.New("channels: failover primary sender not configured")
	}

	report, err := f.primary.Send(ctx, ch, recipient, message, params)
	if err == nil {
		return report, nil
	}
	if f.secondary == nil {
		return report, err
	}

	f.logger.Warn("channels: primary send failed, attempting fallback",
		"provider", f.primaryName,
		"fallback", f.secondaryName,
		"channel", string(ch),
		"error", err,
		"to", recipient,
	)
	fallbackReport, fallbackErr := f.secondary.Send(ctx, ch, recipient, message, params)
	if fallbackErr != nil {
		f.logger.Error("channels: fallback send failed",
			"provider", f.secondaryName,
			"error", fallbackErr,
			"to", recipient,
		)
		return fallbackReport, fallbackErr
	}
	return fallbackReport, nil
}

package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/salonbase/noshow-engine/pkg/logging"
)

const defaultTelnyxBaseURL = "https://api.telnyx.com"

// TelnyxConfig configures the Telnyx-backed sender.
type TelnyxConfig struct {
	APIKey             string
	MessagingProfileID string
	BaseURL            string
	FromNumber         string
	Timeout            time.Duration
	HTTPClient         *http.Client
}

// TelnyxSender delivers SMS and WhatsApp messages through the Telnyx
// messaging API.
type TelnyxSender struct {
	apiKey     string
	profileID  string
	baseURL    string
	from       string
	httpClient *http.Client
	logger     *logging.Logger
	now        func() time.Time
}

// NewTelnyxSender creates a Telnyx sender.
func NewTelnyxSender(cfg TelnyxConfig, logger *logging.Logger) (*TelnyxSender, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("channels: telnyx API key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultTelnyxBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TelnyxSender{
		apiKey:     cfg.APIKey,
		profileID:  cfg.MessagingProfileID,
		baseURL:    baseURL,
		from:       cfg.FromNumber,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}, nil
}

type telnyxMessageRequest struct {
	From               string `json:"from,omitempty"`
	To                 string `json:"to"`
	Text               string `json:"text"`
	MessagingProfileID string `json:"messaging_profile_id,omitempty"`
	Type               string `json:"type,omitempty"`
}

type telnyxMessageResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Errors []struct {
		Code   string `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// Send posts one message to the Telnyx messaging endpoint.
func (s *TelnyxSender) Send(ctx context.Context, ch Channel, recipient, message string, _ map[string]string) (DeliveryReport, error) {
	payload := telnyxMessageRequest{
		From:               s.from,
		To:                 recipient,
		Text:               message,
		MessagingProfileID: s.profileID,
	}
	if ch == ChannelWhatsApp {
		payload.Type = "whatsapp"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return DeliveryReport{Status: "failed"}, fmt.Errorf("channels: telnyx marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v2/messages", bytes.NewReader(body))
	if err != nil {
		return DeliveryReport{Status: "failed"}, fmt.Errorf("channels: telnyx request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return DeliveryReport{Status: "failed"}, fmt.Errorf("channels: telnyx send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return DeliveryReport{Status: "failed"}, fmt.Errorf("channels: telnyx read response: %w", err)
	}

	var parsed telnyxMessageResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := ""
		if len(parsed.Errors) > 0 {
			detail = parsed.Errors[0].Detail
		}
		s.logger.Error("channels: telnyx rejected message",
			"status", resp.StatusCode,
			"to", recipient,
			"detail", detail,
		)
		return DeliveryReport{Status: "failed"}, fmt.Errorf("channels: telnyx status %d: %s", resp.StatusCode, detail)
	}

	return DeliveryReport{
		Status:            "sent",
		SentAt:            s.now().UTC(),
		ProviderMessageID: parsed.Data.ID,
	}, nil
}

var _ Sender = (*TelnyxSender)(nil)

package messaging

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/liaxp/backend/pkg/config"
)

// SendResult carries the provider's message identifier so delivery callbacks
// can correlate status updates back to the log entry.
type SendResult struct {
	Success    bool
	ExternalID string
	Error      string
}

// Provider is the outbound channel for coach messages.
type Provider interface {
	Send(ctx context.Context, toPhoneE164, body, companyID string) (*SendResult, error)
	ValidateWebhook(signature string, payload []byte) bool
	ProviderName() string
}

const httpTimeout = 15 * time.Second

// NewProvider builds the configured channel client. Unknown provider names
// fail at startup rather than at first send.
func NewProvider(cfg config.WhatsAppConfig) (Provider, error) {
	httpClient := &http.Client{Timeout: httpTimeout}

	switch cfg.Provider {
	case "meta":
		return NewMetaClient(httpClient, cfg.Meta.Token, cfg.Meta.PhoneID, cfg.Meta.AppSecret), nil
	case "twilio":
		return NewTwilioClient(httpClient, cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From), nil
	default:
		return nil, fmt.Errorf("unknown whatsapp provider: %q", cfg.Provider)
	}
}

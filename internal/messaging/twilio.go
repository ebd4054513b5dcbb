package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/liaxp/backend/pkg/logger"
)

const twilioAPIURL = "https://api.twilio.com/2010-04-01"

// TwilioClient talks to the Twilio WhatsApp messaging API.
type TwilioClient struct {
	httpClient *http.Client
	accountSID string
	authToken  string
	from       string
	baseURL    string
}

func NewTwilioClient(httpClient *http.Client, accountSID, authToken, from string) *TwilioClient {
	if from == "" {
		from = "whatsapp:+14155238886"
	}
	return &TwilioClient{
		httpClient: httpClient,
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    twilioAPIURL,
	}
}

type twilioSendResponse struct {
	SID string `json:"sid"`
}

func (c *TwilioClient) Send(ctx context.Context, toPhoneE164, body, companyID string) (*SendResult, error) {
	to := toPhoneE164
	if !strings.HasPrefix(to, "whatsapp:") {
		to = "whatsapp:" + to
	}

	form := url.Values{}
	form.Set("From", c.from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call twilio api: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("Twilio send failed",
			zap.Int("status", resp.StatusCode),
			zap.String("company_id", companyID),
		)
		return &SendResult{
			Success: false,
			Error:   fmt.Sprintf("twilio error (%d): %s", resp.StatusCode, string(respBody)),
		}, nil
	}

	var parsed twilioSendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse twilio response: %w", err)
	}

	return &SendResult{Success: true, ExternalID: parsed.SID}, nil
}

// ValidateWebhook is a pass-through; Twilio request signing uses the full
// request URL plus sorted form params, which the webhook handler owns.
// TODO: move X-Twilio-Signature validation here once the handler forwards
// the request URL.
func (c *TwilioClient) ValidateWebhook(signature string, payload []byte) bool {
	return true
}

func (c *TwilioClient) ProviderName() string {
	return "twilio"
}

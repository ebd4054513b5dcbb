package messaging

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/liaxp/backend/pkg/logger"
)

const metaGraphURL = "https://graph.facebook.com/v18.0"

// MetaClient talks to the Meta WhatsApp Cloud API.
type MetaClient struct {
	httpClient *http.Client
	token      string
	phoneID    string
	appSecret  string
	baseURL    string
}

func NewMetaClient(httpClient *http.Client, token, phoneID, appSecret string) *MetaClient {
	return &MetaClient{
		httpClient: httpClient,
		token:      token,
		phoneID:    phoneID,
		appSecret:  appSecret,
		baseURL:    metaGraphURL,
	}
}

type metaSendRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             metaSendText `json:"text"`
}

type metaSendText struct {
	Body string `json:"body"`
}

type metaSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (c *MetaClient) Send(ctx context.Context, toPhoneE164, body, companyID string) (*SendResult, error) {
	to := strings.TrimPrefix(toPhoneE164, "whatsapp:")
	to = strings.TrimPrefix(to, "+")

	payload, err := json.Marshal(metaSendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             metaSendText{Body: body},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call meta api: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("Meta send failed",
			zap.Int("status", resp.StatusCode),
			zap.String("company_id", companyID),
		)
		return &SendResult{
			Success: false,
			Error:   fmt.Sprintf("meta error (%d): %s", resp.StatusCode, string(respBody)),
		}, nil
	}

	var parsed metaSendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse meta response: %w", err)
	}

	externalID := ""
	if len(parsed.Messages) > 0 {
		externalID = parsed.Messages[0].ID
	}

	return &SendResult{Success: true, ExternalID: externalID}, nil
}

// ValidateWebhook checks Meta's X-Hub-Signature-256 header against the app
// secret. An empty secret disables validation for local development.
func (c *MetaClient) ValidateWebhook(signature string, payload []byte) bool {
	if c.appSecret == "" {
		return true
	}

	signature = strings.TrimPrefix(signature, "sha256=")
	mac := hmac.New(sha256.New, []byte(c.appSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

func (c *MetaClient) ProviderName() string {
	return "meta"
}

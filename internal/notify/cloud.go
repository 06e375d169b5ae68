package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"temporada/internal/config"
	applog "temporada/internal/log"
)

const defaultGraphURL = "https://graph.facebook.com"

// CloudConfig holds the WhatsApp Cloud API credentials.
type CloudConfig struct {
	BaseURL       string
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
}

// CloudClient sends text messages through the WhatsApp Cloud API.
type CloudClient struct {
	cfg        CloudConfig
	httpClient *http.Client
	now        func() time.Time
}

func NewCloudClient(cfg CloudConfig, httpClient *http.Client) *CloudClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGraphURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v24.0"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &CloudClient{cfg: cfg, httpClient: httpClient, now: time.Now}
}

func (c *CloudClient) Mode() string { return ModeCloud }

type cloudText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type cloudRequest struct {
	MessagingProduct string    `json:"messaging_product"`
	RecipientType    string    `json:"recipient_type"`
	To               string    `json:"to"`
	Type             string    `json:"type"`
	Text             cloudText `json:"text"`
}

type cloudResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *CloudClient) endpoint() string {
	return fmt.Sprintf("%s/%s/%s/messages",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.APIVersion, c.cfg.PhoneNumberID)
}

func (c *CloudClient) Send(ctx context.Context, phone, body string) (Result, error) {
	payload, err := json.Marshal(cloudRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               phone,
		Type:             "text",
		Text:             cloudText{Body: body},
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	var parsed cloudResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			return Result{}, fmt.Errorf("cloud API returned status %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return Result{}, fmt.Errorf("cloud API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if decodeErr != nil {
		return Result{}, fmt.Errorf("parse response: %w", decodeErr)
	}
	if len(parsed.Messages) == 0 {
		return Result{}, fmt.Errorf("cloud API response has no message id")
	}

	return Result{Mode: ModeCloud, MessageID: parsed.Messages[0].ID, SentAt: c.now()}, nil
}

// NewSender builds the sender for the cloud driver: the Cloud API client
// when credentials are configured, the Simulator otherwise. The device
// driver is opened by the caller through notify/device.
func NewSender(cfg *config.Config, logger *applog.Logger) Sender {
	if cfg.WhatsAppSimulated() {
		return NewSimulator(logger)
	}
	return NewCloudClient(CloudConfig{
		BaseURL:       cfg.WhatsAppBaseURL,
		APIVersion:    cfg.WhatsAppAPIVersion,
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		AccessToken:   cfg.WhatsAppToken,
	}, nil)
}

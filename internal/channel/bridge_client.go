package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vhvplatform/go-whatsapp-automation-service/internal/domain"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/logger"
)

// BridgeClient talks to the browser-automation bridge that owns the WhatsApp session
type BridgeClient struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

// NewBridgeClient creates a client for the bridge at baseURL
func NewBridgeClient(baseURL string, timeout time.Duration, log *logger.Logger) *BridgeClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BridgeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type statusResponse struct {
	Authenticated bool `json:"authenticated"`
}

type sendRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
	APIKey      string `json:"apiKey"`
}

type sendResponse struct {
	Success bool `json:"success"`
}

// IsAuthenticated asks the bridge whether its session is logged in.
// Any failure to reach the bridge counts as not authenticated.
func (c *BridgeClient) IsAuthenticated(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("Bridge status check failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("Bridge status check returned non-2xx", "status", resp.StatusCode)
		return false
	}

	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		c.log.Warn("Bridge status response is not valid JSON", "error", err)
		return false
	}
	return sr.Authenticated
}

// SendMessage decrypts the team's API key and asks the bridge to deliver the message
func (c *BridgeClient) SendMessage(ctx context.Context, recipient, body string, creds domain.ChannelCredentials) (bool, error) {
	apiKey, err := DecryptAPIKey(creds.EncryptedAPIKey, creds.Passphrase)
	if err != nil {
		return false, err
	}

	reqBody, err := json.Marshal(sendRequest{
		PhoneNumber: recipient,
		Message:     body,
		APIKey:      apiKey,
	})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(reqBody))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(respBody))
	}

	var sr sendResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return false, fmt.Errorf("failed to decode json: %w body=%q", err, string(respBody))
	}
	return sr.Success, nil
}

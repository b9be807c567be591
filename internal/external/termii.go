package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gatherly/internal/types"
)

// termiiAPIBase is the default Termii API base URL.
const termiiAPIBase = "https://api.ng.termii.com"

// TermiiClientConfig holds the configuration for creating a TermiiClient.
type TermiiClientConfig struct {
	APIKey   string
	SenderID string
	BaseURL  string // Override for testing; defaults to termiiAPIBase
	Logger   *slog.Logger
}

// TermiiClient implements SMSProvider against the Termii messaging API.
// Termii puts the API key in the JSON body rather than a header.
type TermiiClient struct {
	base     *BaseClient
	apiKey   string
	senderID string
	baseURL  string
	logger   *slog.Logger
}

// NewTermiiClient creates a new TermiiClient.
func NewTermiiClient(httpClient *http.Client, cfg TermiiClientConfig) *TermiiClient {
	base := NewBaseClient(
		httpClient,
		"termii",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"Gatherly/1.0",
	)
	return NewTermiiClientWithBase(base, cfg)
}

// NewTermiiClientWithBase creates a TermiiClient with a pre-configured
// BaseClient.
func NewTermiiClientWithBase(base *BaseClient, cfg TermiiClientConfig) *TermiiClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = termiiAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TermiiClient{
		base:     base,
		apiKey:   cfg.APIKey,
		senderID: cfg.SenderID,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		logger:   logger,
	}
}

// termiiSendPayload is the Termii /api/sms/send request body.
type termiiSendPayload struct {
	To      string `json:"to"`
	From    string `json:"from"`
	SMS     string `json:"sms"`
	Type    string `json:"type"`
	Channel string `json:"channel"`
	APIKey  string `json:"api_key"`
}

// termiiSendResponse is the success body.
type termiiSendResponse struct {
	MessageID string `json:"message_id"`
	Message   string `json:"message"`
	Code      string `json:"code"`
}

// SendSMS transmits a text message through Termii and returns the provider
// message ID.
func (c *TermiiClient) SendSMS(ctx context.Context, input SMSInput) (string, error) {
	payload := termiiSendPayload{
		To:      input.To,
		From:    c.senderID,
		SMS:     input.Message,
		Type:    "plain",
		Channel: "generic",
		APIKey:  c.apiKey,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to marshal Termii send payload",
			err,
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sms/send", bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create Termii send request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return "", c.wrapError("SendSMS", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var out termiiSendResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&out); decodeErr != nil {
			c.logger.WarnContext(ctx, "termii response body unreadable", "error", decodeErr)
			return "", nil
		}
		return out.MessageID, nil
	}

	return "", c.handleErrorResponse(resp, "SendSMS")
}

func (c *TermiiClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamSMSProvider,
			fmt.Sprintf("%s: Termii returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var tErr termiiSendResponse
	errMsg := string(body)
	if jsonErr := json.Unmarshal(body, &tErr); jsonErr == nil && tErr.Message != "" {
		errMsg = tErr.Message
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("%s: Termii rate limit exceeded", operation),
			nil,
		)
	case resp.StatusCode >= 500:
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("%s: Termii server error: %s", operation, errMsg),
			nil,
		)
	default:
		return types.NewAppError(
			types.ErrCodeUpstreamSMSProvider,
			fmt.Sprintf("%s: Termii error (%d): %s", operation, resp.StatusCode, errMsg),
			nil,
		)
	}
}

func (c *TermiiClient) wrapError(operation string, err error) error {
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamSMSProvider,
		fmt.Sprintf("%s: Termii request failed: %v", operation, err),
		err,
	)
}

var _ SMSProvider = (*TermiiClient)(nil)

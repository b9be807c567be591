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

// fcmAPIBase is the default FCM HTTP v1 API base URL.
const fcmAPIBase = "https://fcm.googleapis.com"

// FCMClientConfig holds the configuration for creating an FCMClient.
type FCMClientConfig struct {
	ProjectID string
	// TokenSource supplies a valid OAuth2 bearer token per request. In
	// production this is backed by service account credentials; tests supply
	// a static string.
	TokenSource func(ctx context.Context) (string, error)
	BaseURL     string // Override for testing; defaults to fcmAPIBase
	Logger      *slog.Logger
}

// FCMClient implements PushProvider against the FCM HTTP v1 send endpoint.
type FCMClient struct {
	base        *BaseClient
	projectID   string
	tokenSource func(ctx context.Context) (string, error)
	baseURL     string
	logger      *slog.Logger
}

// NewFCMClient creates a new FCMClient.
func NewFCMClient(httpClient *http.Client, cfg FCMClientConfig) *FCMClient {
	base := NewBaseClient(
		httpClient,
		"fcm",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"Gatherly/1.0",
	)
	return NewFCMClientWithBase(base, cfg)
}

// NewFCMClientWithBase creates an FCMClient with a pre-configured BaseClient.
func NewFCMClientWithBase(base *BaseClient, cfg FCMClientConfig) *FCMClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fcmAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &FCMClient{
		base:        base,
		projectID:   cfg.ProjectID,
		tokenSource: cfg.TokenSource,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		logger:      logger,
	}
}

// fcmSendPayload is the FCM HTTP v1 messages:send request body.
type fcmSendPayload struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// fcmErrorResponse is the FCM v1 error envelope.
type fcmErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// SendPush delivers one push message to one device token. An UNREGISTERED
// token surfaces as ErrCodeNotFoundDevice so the caller can deactivate it.
func (c *FCMClient) SendPush(ctx context.Context, input PushInput) error {
	token, err := c.tokenSource(ctx)
	if err != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamPushProvider,
			"failed to obtain FCM access token",
			err,
		)
	}

	payload := fcmSendPayload{
		Message: fcmMessage{
			Token: input.Token,
			Notification: fcmNotification{
				Title: input.Title,
				Body:  input.Body,
			},
			Data: input.Data,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to marshal FCM send payload",
			err,
		)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", c.baseURL, c.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create FCM send request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.base.Do(req)
	if err != nil {
		return c.wrapError("SendPush", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	return c.handleErrorResponse(resp, "SendPush")
}

func (c *FCMClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamPushProvider,
			fmt.Sprintf("%s: FCM returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var fErr fcmErrorResponse
	errMsg := string(body)
	status := ""
	if jsonErr := json.Unmarshal(body, &fErr); jsonErr == nil && fErr.Error.Message != "" {
		errMsg = fErr.Error.Message
		status = fErr.Error.Status
	}

	switch {
	case status == "UNREGISTERED" || resp.StatusCode == http.StatusNotFound:
		// The token is stale; the device registry should deactivate it.
		return types.NewAppError(
			types.ErrCodeNotFoundDevice,
			fmt.Sprintf("%s: FCM token no longer registered", operation),
			nil,
		)
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("%s: FCM rate limit exceeded", operation),
			nil,
		)
	case resp.StatusCode >= 500:
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("%s: FCM server error: %s", operation, errMsg),
			nil,
		)
	default:
		return types.NewAppError(
			types.ErrCodeUpstreamPushProvider,
			fmt.Sprintf("%s: FCM error (%d): %s", operation, resp.StatusCode, errMsg),
			nil,
		)
	}
}

func (c *FCMClient) wrapError(operation string, err error) error {
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamPushProvider,
		fmt.Sprintf("%s: FCM request failed: %v", operation, err),
		err,
	)
}

var _ PushProvider = (*FCMClient)(nil)

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

// resendAPIBase is the default Resend API base URL.
// Overridable in tests via ResendClientConfig.BaseURL.
const resendAPIBase = "https://api.resend.com"

// ResendClientConfig holds the configuration for creating a ResendClient.
type ResendClientConfig struct {
	APIKey      string
	FromAddress string
	BaseURL     string // Override for testing; defaults to resendAPIBase
	Logger      *slog.Logger
}

// ResendClient implements EmailProvider by making direct HTTP calls to the
// Resend /emails API through BaseClient, so every send goes through the
// shared resilience infrastructure (circuit breaker, retries, error mapping)
// and is easy to test with httptest.
type ResendClient struct {
	base    *BaseClient
	apiKey  string
	from    string
	baseURL string
	logger  *slog.Logger
}

// NewResendClient creates a new ResendClient. The httpClient timeout should
// be kept tight (10s or less); delivery latency belongs to the queue, not the
// request path.
func NewResendClient(httpClient *http.Client, cfg ResendClientConfig) *ResendClient {
	base := NewBaseClient(
		httpClient,
		"resend",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"Gatherly/1.0",
	)
	return NewResendClientWithBase(base, cfg)
}

// NewResendClientWithBase creates a ResendClient with a pre-configured
// BaseClient. Useful in tests to control retry behavior.
func NewResendClientWithBase(base *BaseClient, cfg ResendClientConfig) *ResendClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = resendAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ResendClient{
		base:    base,
		apiKey:  cfg.APIKey,
		from:    cfg.FromAddress,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// resendEmailPayload is the Resend POST /emails request body.
type resendEmailPayload struct {
	From    string            `json:"from"`
	To      []string          `json:"to"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html,omitempty"`
	Text    string            `json:"text,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// resendEmailResponse is the success body, carrying the provider message ID.
type resendEmailResponse struct {
	ID string `json:"id"`
}

// resendErrorResponse is the JSON error body returned by Resend.
type resendErrorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// SendEmail transmits an email through Resend and returns the provider
// message ID.
//
// Error mapping:
//   - 429 -> handled by BaseClient (retry + ErrCodeUpstreamRateLimited)
//   - 5xx -> handled by BaseClient (retry + ErrCodeUpstreamUnavailable)
//   - Other 4xx -> types.ErrCodeUpstreamEmailProvider
func (c *ResendClient) SendEmail(ctx context.Context, input EmailInput) (string, error) {
	payload := resendEmailPayload{
		From:    c.from,
		To:      []string{input.To},
		Subject: input.Subject,
		HTML:    input.BodyHTML,
		Text:    input.BodyText,
	}
	if input.ReferenceID != "" {
		payload.Headers = map[string]string{"X-Entity-Ref-ID": input.ReferenceID}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to marshal Resend email payload",
			err,
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create Resend email request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.base.Do(req)
	if err != nil {
		return "", c.wrapError("SendEmail", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		var out resendEmailResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&out); decodeErr != nil {
			// The send succeeded; a missing message ID is not a failure.
			c.logger.WarnContext(ctx, "resend response body unreadable", "error", decodeErr)
			return "", nil
		}
		return out.ID, nil
	}

	return "", c.handleErrorResponse(resp, "SendEmail")
}

// handleErrorResponse reads a Resend error body and maps it to an AppError.
func (c *ResendClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamEmailProvider,
			fmt.Sprintf("%s: Resend returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var rErr resendErrorResponse
	errMsg := string(body)
	if jsonErr := json.Unmarshal(body, &rErr); jsonErr == nil && rErr.Message != "" {
		errMsg = rErr.Message
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("%s: Resend rate limit exceeded", operation),
			nil,
		)
	case resp.StatusCode >= 500:
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("%s: Resend server error: %s", operation, errMsg),
			nil,
		)
	default:
		return types.NewAppError(
			types.ErrCodeUpstreamEmailProvider,
			fmt.Sprintf("%s: Resend error (%d): %s", operation, resp.StatusCode, errMsg),
			nil,
		)
	}
}

// wrapError wraps a BaseClient transport error with context. AppErrors from
// BaseClient already carry the right upstream code and pass through as-is.
func (c *ResendClient) wrapError(operation string, err error) error {
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamEmailProvider,
		fmt.Sprintf("%s: Resend request failed: %v", operation, err),
		err,
	)
}

var _ EmailProvider = (*ResendClient)(nil)

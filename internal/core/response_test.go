package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherly/internal/types"
)

func newRequest(t *testing.T, method, body string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(method, "/v1/reminders", strings.NewReader(body))
	return r.WithContext(types.WithRequestID(r.Context(), "req_test"))
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) APIErrorResponse {
	t.Helper()
	var body APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestJSONWritesEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, newRequest(t, http.MethodGet, ""), http.StatusCreated, APIResponse{
		Data: map[string]string{"id": "rem_1"},
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"id":"rem_1"}}`, rec.Body.String())
}

func TestErrorMapsAppErrorToStatus(t *testing.T) {
	appErr := types.NewAppError(types.ErrCodeNotFoundReminder, "reminder not found", nil)

	rec := httptest.NewRecorder()
	Error(rec, newRequest(t, http.MethodGet, ""), appErr)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeErrorBody(t, rec)
	assert.Equal(t, "not_found_reminder", body.Error.Code)
	assert.Equal(t, "reminder not found", body.Error.Message)
	assert.Equal(t, "req_test", body.Error.RequestID)
}

func TestErrorIncludesDetails(t *testing.T) {
	appErr := types.NewAppError(types.ErrCodeValidationFailed, "Request validation failed", nil)
	appErr.Details = map[string]any{"title": "must not be empty"}

	rec := httptest.NewRecorder()
	Error(rec, newRequest(t, http.MethodPost, ""), appErr)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorBody(t, rec)
	assert.Equal(t, "must not be empty", body.Error.Details["title"])
}

func TestErrorHidesGenericErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, newRequest(t, http.MethodGet, ""), errors.New("pq: relation does not exist"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeErrorBody(t, rec)
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), body.Error.Code)
	assert.NotContains(t, rec.Body.String(), "relation")
}

func TestErrorUnwrapsWrappedAppError(t *testing.T) {
	inner := types.NewAppError(types.ErrCodeUpstreamRateLimited, "provider rate limit hit", nil)
	wrapped := &types.AppError{
		Code:    inner.Code,
		Message: inner.Message,
		Err:     errors.New("429 from provider"),
	}

	rec := httptest.NewRecorder()
	Error(rec, newRequest(t, http.MethodPost, ""), wrapped)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestDecodeJSONValid(t *testing.T) {
	var dst struct {
		Title string `json:"title"`
	}
	rec := httptest.NewRecorder()
	err := DecodeJSON(rec, newRequest(t, http.MethodPost, `{"title":"Party"}`), &dst)

	require.NoError(t, err)
	assert.Equal(t, "Party", dst.Title)
}

func TestDecodeJSONRejections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed", `{"title":`},
		{"wrong type", `{"title":123}`},
		{"unknown field", `{"surprise":true}`},
		{"trailing value", `{"title":"a"}{"title":"b"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst struct {
				Title string `json:"title"`
			}
			rec := httptest.NewRecorder()
			err := DecodeJSON(rec, newRequest(t, http.MethodPost, tt.body), &dst)

			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, types.ErrCodeValidationInvalidJSON, appErr.Code)
		})
	}
}

func TestDecodeJSONEnforcesBodyLimit(t *testing.T) {
	var dst struct {
		Message string `json:"message"`
	}
	huge := `{"message":"` + strings.Repeat("x", maxRequestBodySize) + `"}`
	rec := httptest.NewRecorder()
	err := DecodeJSON(rec, newRequest(t, http.MethodPost, huge), &dst)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidJSON, appErr.Code)
	assert.Contains(t, appErr.Message, "1 MB")
}

package core

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherly/internal/config"
	"gatherly/internal/types"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := NewServer(&config.Config{}, logger)
	require.NoError(t, err)
	return srv
}

func TestRequestIDGeneratesWhenMissing(t *testing.T) {
	srv := newTestServer(t)

	var seen string
	srv.Router().Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"))
}

func TestRequestIDHonorsUpstreamHeader(t *testing.T) {
	srv := newTestServer(t)

	var seen string
	srv.Router().Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "gateway-abc-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "gateway-abc-123", seen)
	assert.Equal(t, "gateway-abc-123", rec.Header().Get("X-Request-Id"))
}

func TestRecovererConvertsPanicTo500(t *testing.T) {
	srv := newTestServer(t)
	srv.Router().Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("nil map write")
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), body.Error.Code)
	assert.NotContains(t, rec.Body.String(), "nil map write")
}

func TestRequireUserRejectsMissingHeader(t *testing.T) {
	srv := newTestServer(t)
	srv.Router().With(srv.RequireUser).Get("/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "auth_user_missing", body.Error.Code)
}

func TestRequireUserPutsIDInContext(t *testing.T) {
	srv := newTestServer(t)

	var seen string
	srv.Router().With(srv.RequireUser).Get("/me", func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetUserID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-Id", "usr_42")
	srv.Handler().ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "usr_42", seen)
}

func TestResponseCaptureRecordsImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	rc := &responseCapture{ResponseWriter: rec, statusCode: http.StatusOK}

	_, err := rc.Write([]byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rc.statusCode)
	assert.True(t, rc.written)
}

func TestResponseCaptureKeepsFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rc := &responseCapture{ResponseWriter: rec}

	rc.WriteHeader(http.StatusCreated)
	rc.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusCreated, rc.statusCode)
}

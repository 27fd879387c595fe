package sdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushRateLimitCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"code":"E_RATE_LIMITED","error":"push budget exhausted"}`))
	}))
	defer srv.Close()

	s, err := New(srv.URL, "dev-1")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Sync.Push(context.Background(), []*PushEntry{
		{Path: "settings.json", Content: "{}", Hash: "abc"},
	})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeRateLimited, apiErr.Code)
	assert.Equal(t, 7*time.Second, apiErr.RetryAfter)
}

func TestPushErrorWithoutRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"E_INVALID_REQUEST","error":"entries cannot be empty"}`))
	}))
	defer srv.Close()

	s, err := New(srv.URL, "dev-1")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Sync.Push(context.Background(), nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeInvalidRequest, apiErr.Code)
	assert.Zero(t, apiErr.RetryAfter)
}

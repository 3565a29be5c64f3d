package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastClient(retries int) *Client {
	return New(Options{
		Timeout:         time.Second,
		MaxRetries:      retries,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		UserAgent:       "swapwatch-test",
	}, zerolog.Nop())
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "swapwatch-test", r.Header.Get("User-Agent"))
		_ = json.NewEncoder(w).Encode(map[string]string{"value": "ok"})
	}))
	defer srv.Close()

	var out struct {
		Value string `json:"value"`
	}
	require.NoError(t, fastClient(3).GetJSON(context.Background(), srv.URL, nil, &out))
	assert.Equal(t, "ok", out.Value)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := fastClient(3).GetJSON(context.Background(), srv.URL, nil, nil)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadRequest))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetJSONGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := fastClient(2).GetJSON(context.Background(), srv.URL, nil, nil)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusTooManyRequests))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendJSONPostsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		var in map[string]int
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]int{"doubled": in["n"] * 2})
	}))
	defer srv.Close()

	var out map[string]int
	err := fastClient(0).SendJSON(context.Background(), http.MethodPost, srv.URL, map[string]string{"X-Api-Key": "secret"}, map[string]int{"n": 21}, &out)
	require.NoError(t, err)
	assert.Equal(t, 42, out["doubled"])
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "https://api.example/v0/webhooks", redact("https://api.example/v0/webhooks?api-key=abc"))
	assert.Equal(t, "https://api.example", redact("https://api.example"))
}

package ionq

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, MaxRetry: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, c.baseURL)
	assert.Equal(t, defaultMaxRetry, c.maxRetry)
	assert.NotNil(t, c.httpClient)
}

func TestClient_CreateJob_SendsAuthAndBody(t *testing.T) {
	var got JobRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/jobs", r.URL.Path)
		assert.Equal(t, "apiKey test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"job-1","status":"submitted"}`))
	})

	resp, err := c.CreateJob(context.Background(), &JobRequest{
		Target: "simulator",
		Shots:  10,
		Input:  &CircuitInput{Format: circuitFormat, Qubits: 1, Circuit: []GateInstruction{{Gate: "h", Target: intPtr(0)}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", resp.ID)
	assert.Equal(t, JobStatusSubmitted, resp.Status)

	assert.Equal(t, "simulator", got.Target)
	assert.Equal(t, 10, got.Shots)
	require.NotNil(t, got.Input)
	assert.Equal(t, circuitFormat, got.Input.Format)
}

func TestClient_GetResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs/job-7/results", r.URL.Path)
		_, _ = w.Write([]byte(`{"0":0.5,"3":0.5}`))
	})

	hist, err := c.GetResults(context.Background(), "job-7")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"0": 0.5, "3": 0.5}, hist)
}

func TestClient_CancelAndDelete(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(`{"id":"job-2","status":"canceled"}`))
	})

	resp, err := c.CancelJob(context.Background(), "job-2")
	require.NoError(t, err)
	assert.Equal(t, JobStatusCanceled, resp.Status)
	require.NoError(t, c.DeleteJob(context.Background(), "job-2"))

	assert.Equal(t, []string{"PUT /jobs/job-2/status/cancel", "DELETE /jobs/job-2"}, calls)
}

func TestClient_RetriesRetriableStatus(t *testing.T) {
	var attempts atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"type":"RateLimited","message":"slow down"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"job-3","status":"running"}`))
	})

	resp, err := c.GetJob(context.Background(), "job-3")
	require.NoError(t, err)
	assert.Equal(t, JobStatusRunning, resp.Status)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"NotFoundError","message":"no such job"}}`))
	})

	_, err := c.GetJob(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), attempts.Load())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "NotFoundError", apiErr.Type)
	assert.Equal(t, "no such job", apiErr.Message)
}

func TestClient_UnauthorizedMapsToErrUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad key"))
	})

	_, err := c.GetJob(context.Background(), "job")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "bad key")
}

func TestClient_GivesUpAfterMaxRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL, MaxRetry: 100 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.GetJob(context.Background(), "job")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}

func TestClient_RespectsContextDuringBackoff(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetJob(ctx, "job")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

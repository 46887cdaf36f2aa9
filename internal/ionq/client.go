// Package ionq is the client for the remote quantum job API: REST transport,
// circuit serialization, job polling and result decoding.
package ionq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/qsweep/internal/metrics"
)

const (
	// DefaultAPIURL is the production API endpoint.
	DefaultAPIURL = "https://api.ionq.co/v0.3"

	defaultHTTPTimeout = 60 * time.Second
	defaultMaxRetry    = 5 * time.Minute

	// Retry backoff parameters
	baseRetryDelay = 250 * time.Millisecond
	maxRetryDelay  = 30 * time.Second

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 * 1024
)

// Config holds remote API client configuration.
type Config struct {
	// APIKey is sent as "Authorization: apiKey <key>".
	APIKey string

	// BaseURL defaults to DefaultAPIURL.
	BaseURL string

	// HTTPClient defaults to a client with a 60s timeout.
	HTTPClient *http.Client

	// MaxRetry bounds the total time spent retrying one request.
	MaxRetry time.Duration

	Logger *zap.Logger
}

// Client handles remote job API interactions.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetry   time.Duration
	logger     *zap.Logger
}

// NewClient creates a new API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	c := &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: cfg.HTTPClient,
		maxRetry:   cfg.MaxRetry,
		logger:     cfg.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultAPIURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if c.maxRetry <= 0 {
		c.maxRetry = defaultMaxRetry
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c, nil
}

// JobRequest is the body of a job creation request.
type JobRequest struct {
	Target   string            `json:"target"`
	Shots    int               `json:"shots"`
	Name     string            `json:"name,omitempty"`
	Input    *CircuitInput     `json:"input"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// JobFailure describes why a job failed.
type JobFailure struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// JobResponse is the API representation of a job.
type JobResponse struct {
	ID       string            `json:"id"`
	Status   JobStatus         `json:"status"`
	Target   string            `json:"target,omitempty"`
	Qubits   int               `json:"qubits,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Failure  *JobFailure       `json:"failure,omitempty"`
}

type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// retriableError marks a failed attempt that may succeed if repeated.
type retriableError struct {
	err error
}

func (e *retriableError) Error() string { return e.err.Error() }
func (e *retriableError) Unwrap() error { return e.err }

// CreateJob submits a job.
func (c *Client) CreateJob(ctx context.Context, req *JobRequest) (*JobResponse, error) {
	var job JobResponse
	if err := c.do(ctx, "create_job", http.MethodPost, "/jobs", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob retrieves the current state of a job.
func (c *Client) GetJob(ctx context.Context, id string) (*JobResponse, error) {
	var job JobResponse
	if err := c.do(ctx, "get_job", http.MethodGet, "/jobs/"+id, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetResults retrieves the output histogram of a completed job. Keys are
// little-endian state indices, values are probabilities.
func (c *Client) GetResults(ctx context.Context, id string) (map[string]float64, error) {
	hist := make(map[string]float64)
	if err := c.do(ctx, "get_results", http.MethodGet, "/jobs/"+id+"/results", nil, &hist); err != nil {
		return nil, err
	}
	return hist, nil
}

// CancelJob cancels a queued or running job.
func (c *Client) CancelJob(ctx context.Context, id string) (*JobResponse, error) {
	var job JobResponse
	if err := c.do(ctx, "cancel_job", http.MethodPut, "/jobs/"+id+"/status/cancel", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// DeleteJob deletes a job and its results.
func (c *Client) DeleteJob(ctx context.Context, id string) error {
	return c.do(ctx, "delete_job", http.MethodDelete, "/jobs/"+id, nil, nil)
}

// do sends a request, retrying transport failures and retriable status codes
// with exponential backoff until maxRetry has elapsed.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ionq: marshal %s request: %w", op, err)
		}
	}

	deadline := time.Now().Add(c.maxRetry)
	delay := baseRetryDelay
	for attempt := 1; ; attempt++ {
		err := c.attempt(ctx, op, method, path, payload, out)
		if err == nil {
			return nil
		}

		var retry *retriableError
		if !errors.As(err, &retry) {
			return err
		}
		if time.Now().Add(delay).After(deadline) {
			return fmt.Errorf("ionq: %s: giving up after %d attempts: %w", op, attempt, retry.err)
		}

		metrics.APIRetries.WithLabelValues(op).Inc()
		c.logger.Warn("Remote API request failed, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(retry.err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

func (c *Client) attempt(ctx context.Context, op, method, path string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("ionq: build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "apiKey "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.APIRequests.WithLabelValues(op, "error").Inc()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &retriableError{err: fmt.Errorf("ionq: %s: %w", op, err)}
	}
	defer resp.Body.Close()

	metrics.APIRequests.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("ionq: decode %s response: %w", op, err)
		}
		return nil
	}

	apiErr := decodeAPIError(resp)
	if isRetriableStatus(resp.StatusCode) {
		return &retriableError{err: apiErr}
	}
	return apiErr
}

func decodeAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(body)}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		apiErr.Type = env.Error.Type
		apiErr.Message = env.Error.Message
	}
	return apiErr
}

func isRetriableStatus(code int) bool {
	return code == http.StatusConflict || code == http.StatusTooManyRequests || code >= 500
}

package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// AuthError indicates that the server rejected the client's token.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (401): %s", e.Reason)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// APIError is a non-2xx response other than 401.
type APIError struct {
	Status  int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error (%d): %s: %s", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries sets how often a throttled or unavailable request is
// retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBackoff replaces the wait between retries when the server sends no
// Retry-After header.
func WithBackoff(backoff func(attempt int) time.Duration) Option {
	return func(c *Client) { c.backoff = backoff }
}

// Client talks to the hdcharts HTTP API on behalf of one signed-in user.
// Each data domain has its own load state; saves are only sent for
// domains that have been loaded.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	backoff    func(attempt int) time.Duration

	gate *gate
}

// New creates a Client for the API at baseURL authenticating with token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		backoff:    exponentialBackoff,
		gate:       newGate(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the common part of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Reason  string `json:"reason"`
	Detail  string `json:"detail"`
}

// do builds the request, handles auth, retries throttled and unavailable
// responses with backoff, and decodes the JSON response into result.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if retryable(resp.StatusCode) && attempt < c.maxRetries {
			lastErr = fmt.Errorf("status %d on %s %s", resp.StatusCode, method, path)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryAfter(resp, attempt)):
				continue
			}
		}

		var env envelope
		_ = json.Unmarshal(respBody, &env)

		if resp.StatusCode == http.StatusUnauthorized {
			reason := env.Reason
			if reason == "" {
				reason = env.Error
			}
			return &AuthError{Reason: reason}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg := env.Error
			if msg == "" {
				msg = strings.TrimSpace(string(respBody))
			}
			return &APIError{Status: resp.StatusCode, Message: msg, Detail: env.Detail}
		}

		if result == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
		}
		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryAfter reads the Retry-After header and falls back to the
// client's backoff.
func (c *Client) retryAfter(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return c.backoff(attempt)
}

// exponentialBackoff waits 1s, 2s, 4s, ... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}

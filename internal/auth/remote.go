package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RemoteVerifier asks the identity provider who a token belongs to by
// calling its user endpoint.
type RemoteVerifier struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRemoteVerifier creates a verifier for the provider at baseURL
// (e.g., https://project.example.co). apiKey is sent as the provider's
// "apikey" header.
func NewRemoteVerifier(baseURL, apiKey string) *RemoteVerifier {
	return &RemoteVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Verify calls GET {baseURL}/auth/v1/user with the token.
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return Identity{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if v.apiKey != "" {
		req.Header.Set("apikey", v.apiKey)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("calling identity provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Identity{}, fmt.Errorf("reading identity provider response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Identity{}, &Error{Reason: "invalid or expired token"}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Identity{}, fmt.Errorf(
			"identity provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)),
		)
	}

	var id Identity
	if err := json.Unmarshal(body, &id); err != nil {
		return Identity{}, fmt.Errorf("decoding identity provider response: %w", err)
	}
	if id.UserID == "" {
		return Identity{}, &Error{Reason: "identity provider returned no user"}
	}
	return id, nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nhle/hdcharts/internal/model"
)

// ErrMissingToken is returned when a request carries no bearer token.
var ErrMissingToken = errors.New("missing bearer token")

// Error reports a token that was presented but rejected. Reason is safe
// to show to the caller.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "unauthorized: " + e.Reason + ": " + e.Err.Error()
	}
	return "unauthorized: " + e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// IsAuthError reports whether err (or any error in its chain) means the
// caller is not authenticated.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrMissingToken) {
		return true
	}
	var authErr *Error
	return errors.As(err, &authErr)
}

// Identity is the verified caller.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email,omitempty"`
}

// Verifier turns a bearer token into the identity it was issued to.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, token string) (Identity, error)

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, token string) (Identity, error) {
	return f(ctx, token)
}

// BearerToken extracts the token from an "Authorization: Bearer ..."
// header.
func BearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", &Error{Reason: "authorization header must use the Bearer scheme"}
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// NewVerifier builds the verifier selected by cfg.Mode.
func NewVerifier(cfg model.AuthConfig) (Verifier, error) {
	switch cfg.Mode {
	case "jwt":
		v, err := NewJWTVerifier(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "remote":
		if cfg.ProviderURL == "" {
			return nil, errors.New("auth.provider_url is required in remote mode")
		}
		return NewRemoteVerifier(cfg.ProviderURL, cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

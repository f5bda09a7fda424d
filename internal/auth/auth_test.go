package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/hdcharts/internal/auth"
	"github.com/nhle/hdcharts/internal/model"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		missing bool
		invalid bool
	}{
		{name: "bearer", header: "Bearer abc.def", want: "abc.def"},
		{name: "lowercase scheme", header: "bearer abc", want: "abc"},
		{name: "no header", header: "", missing: true},
		{name: "empty token", header: "Bearer   ", missing: true},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", invalid: true},
		{name: "no scheme", header: "abc", invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := auth.BearerToken(r)
			switch {
			case tt.missing:
				assert.ErrorIs(t, err, auth.ErrMissingToken)
			case tt.invalid:
				var authErr *auth.Error
				assert.ErrorAs(t, err, &authErr)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			if err != nil {
				assert.True(t, auth.IsAuthError(err))
			}
		})
	}
}

func TestJWTVerifier(t *testing.T) {
	v, err := auth.NewJWTVerifier("test-secret")
	require.NoError(t, err)

	token, err := v.Issue(auth.Identity{UserID: "nurse-1", Email: "n1@clinic.test"}, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "nurse-1", id.UserID)
	assert.Equal(t, "n1@clinic.test", id.Email)
}

func TestJWTVerifierRejects(t *testing.T) {
	v, err := auth.NewJWTVerifier("test-secret")
	require.NoError(t, err)
	other, err := auth.NewJWTVerifier("other-secret")
	require.NoError(t, err)

	wrongKey, err := other.Issue(auth.Identity{UserID: "nurse-1"}, time.Hour)
	require.NoError(t, err)

	expired, err := v.Issue(auth.Identity{UserID: "nurse-1"}, -time.Hour)
	require.NoError(t, err)

	noSubject, err := v.Issue(auth.Identity{}, time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "nurse-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		reason string
	}{
		{"wrong key", wrongKey, "invalid token"},
		{"expired", expired, "token expired"},
		{"no subject", noSubject, "token has no subject"},
		{"alg none", none, "invalid token"},
		{"garbage", "not-a-jwt", "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			var authErr *auth.Error
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, tt.reason, authErr.Reason)
		})
	}

	_, err = v.Verify(context.Background(), "")
	assert.ErrorIs(t, err, auth.ErrMissingToken)
}

func TestNewJWTVerifierRequiresSecret(t *testing.T) {
	_, err := auth.NewJWTVerifier("")
	assert.Error(t, err)
}

func TestRemoteVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "anon", r.Header.Get("apikey"))

		switch r.Header.Get("Authorization") {
		case "Bearer good":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "nurse-1", "email": "n1@clinic.test"})
		case "Bearer empty":
			_ = json.NewEncoder(w).Encode(map[string]string{})
		case "Bearer broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	v := auth.NewRemoteVerifier(srv.URL+"/", "anon")
	ctx := context.Background()

	id, err := v.Verify(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{UserID: "nurse-1", Email: "n1@clinic.test"}, id)

	_, err = v.Verify(ctx, "bad")
	assert.True(t, auth.IsAuthError(err))

	_, err = v.Verify(ctx, "empty")
	assert.True(t, auth.IsAuthError(err))

	_, err = v.Verify(ctx, "broken")
	require.Error(t, err)
	assert.False(t, auth.IsAuthError(err), "provider outages are not the caller's fault")

	_, err = v.Verify(ctx, "")
	assert.ErrorIs(t, err, auth.ErrMissingToken)
}

func TestNewVerifier(t *testing.T) {
	v, err := auth.NewVerifier(model.AuthConfig{Mode: "jwt", JWTSecret: "s"})
	require.NoError(t, err)
	assert.IsType(t, &auth.JWTVerifier{}, v)

	v, err = auth.NewVerifier(model.AuthConfig{Mode: "remote", ProviderURL: "https://id.example"})
	require.NoError(t, err)
	assert.IsType(t, &auth.RemoteVerifier{}, v)

	_, err = auth.NewVerifier(model.AuthConfig{Mode: "remote"})
	assert.Error(t, err)

	_, err = auth.NewVerifier(model.AuthConfig{Mode: "magic"})
	assert.Error(t, err)
}

func TestIdentityContext(t *testing.T) {
	ctx := auth.WithIdentity(context.Background(), auth.Identity{UserID: "nurse-1"})
	id, ok := auth.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "nurse-1", id.UserID)

	_, ok = auth.FromContext(context.Background())
	assert.False(t, ok)
}

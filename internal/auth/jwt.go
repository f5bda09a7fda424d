package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims the verifier reads. The user id is the
// registered "sub" claim.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256 tokens signed with a shared secret, the way
// the identity provider signs its access tokens.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
	now    func() time.Time
}

// NewJWTVerifier creates a verifier for tokens signed with secret.
func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &JWTVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(30*time.Second),
		),
		now: time.Now,
	}, nil
}

// Verify checks the token signature and expiry and returns its subject.
func (v *JWTVerifier) Verify(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Identity{}, &Error{Reason: "token expired", Err: err}
	case err != nil:
		return Identity{}, &Error{Reason: "invalid token", Err: err}
	}

	if claims.Subject == "" {
		return Identity{}, &Error{Reason: "token has no subject"}
	}
	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// Issue signs a token for id that expires after ttl. It is used for local
// development and by tests; production tokens come from the provider.
func (v *JWTVerifier) Issue(id Identity, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/nhle/hdcharts/internal/model"
)

const serviceName = "hdcharts"

// Keys under which verifier secrets are stored.
const (
	KeyJWTSecret = "auth.jwt_secret"
	KeyAPIKey    = "auth.api_key"
)

// Keys lists every key the server reads from the keyring.
var Keys = []string{KeyJWTSecret, KeyAPIKey}

// Ring reads and writes hdcharts secrets in a keyring.
type Ring struct {
	kr keyring.Keyring
}

// NewRing wraps an already opened keyring.
func NewRing(kr keyring.Keyring) *Ring {
	return &Ring{kr: kr}
}

// Open returns a Ring backed by the system keyring.
func Open() (*Ring, error) {
	kr, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/hdcharts/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("hdcharts-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewRing(kr), nil
}

// Get retrieves a secret by key.
func (r *Ring) Get(key string) (string, error) {
	item, err := r.kr.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a secret by key.
func (r *Ring) Set(key string, value string) error {
	err := r.kr.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "hdcharts " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a secret by key.
func (r *Ring) Delete(key string) error {
	if err := r.kr.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// Apply fills secrets that are empty in cfg from the keyring. Values
// already set by the config file or environment take precedence; keys
// missing from the keyring are left empty.
func (r *Ring) Apply(cfg *model.AuthConfig) error {
	targets := map[string]*string{
		KeyJWTSecret: &cfg.JWTSecret,
		KeyAPIKey:    &cfg.APIKey,
	}
	for key, dst := range targets {
		if *dst != "" {
			continue
		}
		value, err := r.Get(key)
		if errors.Is(err, keyring.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		*dst = value
	}
	return nil
}

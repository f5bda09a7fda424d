package credential_test

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/hdcharts/internal/credential"
	"github.com/nhle/hdcharts/internal/model"
)

func TestRingRoundTrip(t *testing.T) {
	ring := credential.NewRing(keyring.NewArrayKeyring(nil))

	require.NoError(t, ring.Set(credential.KeyJWTSecret, "s3cret"))

	got, err := ring.Get(credential.KeyJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	require.NoError(t, ring.Delete(credential.KeyJWTSecret))
	_, err = ring.Get(credential.KeyJWTSecret)
	assert.ErrorIs(t, err, keyring.ErrKeyNotFound)
}

func TestApplyFillsOnlyEmptySecrets(t *testing.T) {
	ring := credential.NewRing(keyring.NewArrayKeyring([]keyring.Item{
		{Key: credential.KeyJWTSecret, Data: []byte("from-keyring")},
		{Key: credential.KeyAPIKey, Data: []byte("anon-key")},
	}))

	cfg := model.AuthConfig{JWTSecret: "from-env"}
	require.NoError(t, ring.Apply(&cfg))

	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, "anon-key", cfg.APIKey)
}

func TestApplyIgnoresMissingKeys(t *testing.T) {
	ring := credential.NewRing(keyring.NewArrayKeyring(nil))

	cfg := model.AuthConfig{}
	require.NoError(t, ring.Apply(&cfg))
	assert.Empty(t, cfg.JWTSecret)
	assert.Empty(t, cfg.APIKey)
}

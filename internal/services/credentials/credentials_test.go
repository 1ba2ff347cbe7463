package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	e, err := New("super-secret-key", "pepper")
	require.NoError(t, err)

	plaintext := `{"access_key_id":"AKIA...","secret":"abc123"}`
	sealed, err := e.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	got, err := e.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	e, err := New("super-secret-key", "pepper")
	require.NoError(t, err)

	a, err := e.Encrypt("same input")
	require.NoError(t, err)
	b, err := e.Encrypt("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b) // fresh nonce per call
}

func TestDecryptRejectsTampering(t *testing.T) {
	e, err := New("super-secret-key", "pepper")
	require.NoError(t, err)

	sealed, err := e.Encrypt("payload")
	require.NoError(t, err)

	tampered := []byte(sealed)
	tampered[len(tampered)-2] ^= 'x'
	_, err = e.Decrypt(string(tampered))
	assert.Error(t, err)
}

func TestDecryptWrongKey(t *testing.T) {
	a, err := New("key-one", "pepper")
	require.NoError(t, err)
	b, err := New("key-two", "pepper")
	require.NoError(t, err)

	sealed, err := a.Encrypt("payload")
	require.NoError(t, err)
	_, err = b.Decrypt(sealed)
	assert.Error(t, err)
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New("", "pepper")
	assert.Error(t, err)
}

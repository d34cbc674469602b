package util

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() string {
	return hex.EncodeToString(make([]byte, 32))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey()

	ciphertext, err := Encrypt(key, "gho_testAccessToken123")
	require.NoError(t, err)
	assert.NotEqual(t, "gho_testAccessToken123", ciphertext)

	plaintext, err := Decrypt(key, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "gho_testAccessToken123", plaintext)
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	key := testKey()

	a, err := Encrypt(key, "same-input")
	require.NoError(t, err)
	b, err := Encrypt(key, "same-input")
	require.NoError(t, err)

	// Random nonce per call
	assert.NotEqual(t, a, b)
}

func TestDecryptWithWrongKey(t *testing.T) {
	ciphertext, err := Encrypt(testKey(), "secret")
	require.NoError(t, err)

	wrongKey := hex.EncodeToString(append(make([]byte, 31), 1))
	_, err = Decrypt(wrongKey, ciphertext)
	assert.Error(t, err)
}

func TestEncryptRejectsShortKey(t *testing.T) {
	_, err := Encrypt("abcd", "secret")
	assert.Error(t, err)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	_, err := Decrypt(testKey(), "not-base64!!!")
	assert.Error(t, err)
}

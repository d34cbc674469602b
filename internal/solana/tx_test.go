package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeypair(t *testing.T) *Keypair {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	kp, err := KeypairFromBase58(base58.Encode(seed))
	require.NoError(t, err)
	return kp
}

func TestKeypairFromBase58(t *testing.T) {
	t.Run("accepts 32 byte seed", func(t *testing.T) {
		kp := testKeypair(t)
		assert.Len(t, kp.PublicKey(), ed25519.PublicKeySize)
	})

	t.Run("accepts 64 byte secret key", func(t *testing.T) {
		seed := make([]byte, ed25519.SeedSize)
		full := ed25519.NewKeyFromSeed(seed)
		kp, err := KeypairFromBase58(base58.Encode(full))
		require.NoError(t, err)
		assert.Equal(t, []byte(full.Public().(ed25519.PublicKey)), kp.PublicKey())
	})

	t.Run("rejects other lengths", func(t *testing.T) {
		_, err := KeypairFromBase58(base58.Encode([]byte("short")))
		assert.Error(t, err)
	})

	t.Run("rejects invalid base58", func(t *testing.T) {
		_, err := KeypairFromBase58("not!valid!base58!0OIl")
		assert.Error(t, err)
	})
}

func TestBuildMemoTransaction(t *testing.T) {
	kp := testKeypair(t)
	blockhash := base58.Encode(make([]byte, 32))
	memo := []byte(`{"uid":"user-123","cat":"Public Tweets","hash":"abc"}`)

	t.Run("produces a verifiable signed transaction", func(t *testing.T) {
		encoded, err := BuildMemoTransaction(kp, blockhash, memo)
		require.NoError(t, err)

		raw, err := base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err)

		// compact-u16 signature count, then one 64-byte signature
		require.Equal(t, byte(1), raw[0])
		signature := raw[1 : 1+ed25519.SignatureSize]
		message := raw[1+ed25519.SignatureSize:]

		assert.True(t, ed25519.Verify(kp.PublicKey(), message, signature))
	})

	t.Run("message carries header, accounts, blockhash and memo", func(t *testing.T) {
		encoded, err := BuildMemoTransaction(kp, blockhash, memo)
		require.NoError(t, err)

		raw, _ := base64.StdEncoding.DecodeString(encoded)
		message := raw[1+ed25519.SignatureSize:]

		// header: 1 required signature, 0 readonly signed, 1 readonly unsigned
		assert.Equal(t, []byte{1, 0, 1}, message[:3])
		// two account keys: signer then memo program
		assert.Equal(t, byte(2), message[3])
		assert.Equal(t, kp.PublicKey(), message[4:36])
		program, _ := base58.Decode(MemoProgramID)
		assert.Equal(t, program, message[36:68])
		// memo bytes are the instruction payload at the tail
		assert.Equal(t, memo, message[len(message)-len(memo):])
	})

	t.Run("rejects malformed blockhash", func(t *testing.T) {
		_, err := BuildMemoTransaction(kp, base58.Encode([]byte("tooshort")), memo)
		assert.Error(t, err)
	})
}

func TestAppendCompactU16(t *testing.T) {
	t.Run("single byte below 0x80", func(t *testing.T) {
		assert.Equal(t, []byte{0x05}, appendCompactU16(nil, 5))
		assert.Equal(t, []byte{0x7f}, appendCompactU16(nil, 0x7f))
	})

	t.Run("two bytes for larger values", func(t *testing.T) {
		assert.Equal(t, []byte{0x80, 0x01}, appendCompactU16(nil, 0x80))
		assert.Equal(t, []byte{0xff, 0x01}, appendCompactU16(nil, 0xff))
	})
}

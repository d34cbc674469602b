package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
)

// MemoProgramID is the SPL Memo v2 program.
const MemoProgramID = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"

// Keypair is an ed25519 signing keypair in Solana's 64-byte secret-key
// layout (seed followed by public key).
type Keypair struct {
	priv ed25519.PrivateKey
}

// KeypairFromBase58 parses a base58-encoded secret key as produced by the
// Solana CLI. Both the 64-byte secret key and the 32-byte seed form are
// accepted.
func KeypairFromBase58(encoded string) (*Keypair, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}

	switch len(raw) {
	case ed25519.PrivateKeySize:
		return &Keypair{priv: ed25519.PrivateKey(raw)}, nil
	case ed25519.SeedSize:
		return &Keypair{priv: ed25519.NewKeyFromSeed(raw)}, nil
	default:
		return nil, fmt.Errorf("private key must be %d or %d bytes, got %d",
			ed25519.PrivateKeySize, ed25519.SeedSize, len(raw))
	}
}

func (k *Keypair) PublicKey() []byte {
	return k.priv.Public().(ed25519.PublicKey)
}

func (k *Keypair) PublicKeyBase58() string {
	return base58.Encode(k.PublicKey())
}

func (k *Keypair) sign(message []byte) []byte {
	return ed25519.Sign(k.priv, message)
}

// BuildMemoTransaction builds and signs a legacy transaction carrying a
// single memo instruction, returning it base64-encoded for sendTransaction.
//
// Account layout: [signer (writable, fee payer), memo program (readonly)].
// The signer is also passed as the memo instruction's only account so the
// memo is attributable to the notary key.
func BuildMemoTransaction(signer *Keypair, recentBlockhash string, memo []byte) (string, error) {
	blockhash, err := base58.Decode(recentBlockhash)
	if err != nil {
		return "", fmt.Errorf("decode blockhash: %w", err)
	}
	if len(blockhash) != 32 {
		return "", fmt.Errorf("blockhash must be 32 bytes, got %d", len(blockhash))
	}

	programID, err := base58.Decode(MemoProgramID)
	if err != nil {
		return "", fmt.Errorf("decode memo program id: %w", err)
	}

	// Message header: 1 required signature, 0 readonly signed accounts,
	// 1 readonly unsigned account (the memo program).
	var message []byte
	message = append(message, 1, 0, 1)

	message = appendCompactU16(message, 2)
	message = append(message, signer.PublicKey()...)
	message = append(message, programID...)

	message = append(message, blockhash...)

	// One instruction: program index 1, one account (index 0), memo bytes.
	message = appendCompactU16(message, 1)
	message = append(message, 1)
	message = appendCompactU16(message, 1)
	message = append(message, 0)
	message = appendCompactU16(message, len(memo))
	message = append(message, memo...)

	signature := signer.sign(message)

	var tx []byte
	tx = appendCompactU16(tx, 1)
	tx = append(tx, signature...)
	tx = append(tx, message...)

	return base64.StdEncoding.EncodeToString(tx), nil
}

// appendCompactU16 appends n in the compact-u16 (shortvec) encoding used
// throughout the Solana wire format.
func appendCompactU16(buf []byte, n int) []byte {
	for n >= 0x80 {
		buf = append(buf, byte(n&0x7f)|0x80)
		n >>= 7
	}
	return append(buf, byte(n))
}

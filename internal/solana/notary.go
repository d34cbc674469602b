package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// lowBalanceThreshold is 0.001 SOL. Below it the notary logs a warning but
// still attempts the transaction; an actually insufficient balance fails
// naturally at submission.
const lowBalanceThreshold = 1_000_000

const confirmPollInterval = 500 * time.Millisecond

// memoPayload is the compact consent record written on-chain. The user ID
// is truncated so a full identity never lands on a public ledger.
type memoPayload struct {
	UID  string `json:"uid"`
	Cat  string `json:"cat"`
	Hash string `json:"hash"`
}

// Notary anchors consent hashes on Solana. With no keypair configured every
// anchor call is a documented no-op returning an empty signature and no
// error.
type Notary struct {
	client  *Client
	keypair *Keypair
	timeout time.Duration
}

func NewNotary(rpcURL, privateKeyBase58 string, timeout time.Duration) *Notary {
	n := &Notary{
		client:  NewClient(rpcURL),
		timeout: timeout,
	}

	if privateKeyBase58 == "" {
		log.Warn().Msg("solana notary key not configured: consent hashes will not be anchored on-chain")
		return n
	}

	keypair, err := KeypairFromBase58(privateKeyBase58)
	if err != nil {
		log.Error().Err(err).Msg("invalid SOLANA_NOTARY_PRIVATE_KEY format, expected base58 string")
		return n
	}

	n.keypair = keypair
	log.Info().Str("pubkey", keypair.PublicKeyBase58()).Msg("solana notary configured")
	return n
}

func (n *Notary) Enabled() bool {
	return n.keypair != nil
}

// PublicKey returns the notary's base58 public key, or "" when unconfigured.
func (n *Notary) PublicKey() string {
	if n.keypair == nil {
		return ""
	}
	return n.keypair.PublicKeyBase58()
}

// AnchorConsent records a consent hash on-chain via a memo transaction and
// returns the transaction signature. The permission change has already been
// persisted before this runs, so every failure here is soft: callers log
// the error and carry on.
func (n *Notary) AnchorConsent(ctx context.Context, userID, categoryName, consentHash string) (string, error) {
	if n.keypair == nil {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	balance, err := n.client.GetBalance(ctx, n.keypair.PublicKeyBase58())
	if err != nil {
		return "", fmt.Errorf("check notary balance: %w", err)
	}
	if balance < lowBalanceThreshold {
		log.Warn().Uint64("lamports", balance).Msg("notary wallet balance low, transaction might fail")
	}

	memo, err := json.Marshal(memoPayload{
		UID:  truncateUserID(userID),
		Cat:  categoryName,
		Hash: consentHash,
	})
	if err != nil {
		return "", fmt.Errorf("marshal memo payload: %w", err)
	}

	blockhash, err := n.client.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch blockhash: %w", err)
	}

	tx, err := BuildMemoTransaction(n.keypair, blockhash, memo)
	if err != nil {
		return "", fmt.Errorf("build memo transaction: %w", err)
	}

	signature, err := n.client.SendTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("submit transaction: %w", err)
	}

	if err := n.awaitConfirmation(ctx, signature); err != nil {
		return "", err
	}

	log.Info().Str("signature", signature).Str("category", categoryName).Msg("consent hash anchored on-chain")
	return signature, nil
}

func (n *Notary) awaitConfirmation(ctx context.Context, signature string) error {
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation timed out for %s: %w", signature, ctx.Err())
		case <-ticker.C:
			status, err := n.client.GetSignatureStatus(ctx, signature)
			if err != nil {
				return fmt.Errorf("poll signature status: %w", err)
			}
			if status == nil {
				continue
			}
			if status.Err != nil {
				return errors.New("transaction failed on-chain")
			}
			switch status.ConfirmationStatus {
			case "confirmed", "finalized":
				return nil
			}
		}
	}
}

func truncateUserID(userID string) string {
	if len(userID) <= 8 {
		return userID
	}
	return userID[:8]
}

// Package consent produces the audit fingerprint recorded on every data
// permission change.
package consent

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeHash returns the consent fingerprint for one permission transition.
//
// The hash covers the new state plus a timestamp and a random nonce, so no
// two transitions ever produce the same digest, even when a permission
// returns to an identical level. It is an audit fingerprint, not a
// content-addressed identifier: it is not reproducible from the logical
// state and is not chained to prior hashes.
func ComputeHash(userID, target, level string) string {
	nonce := make([]byte, 8)
	_, _ = rand.Read(nonce)

	data := fmt.Sprintf("%s:%s:%s:%s:%s",
		userID, target, level,
		time.Now().UTC().Format(time.RFC3339Nano),
		hex.EncodeToString(nonce),
	)

	digest := sha256.Sum256([]byte(data))
	return hex.EncodeToString(digest[:])
}

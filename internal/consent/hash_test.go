package consent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeHash(t *testing.T) {
	t.Run("returns 64 character hex string", func(t *testing.T) {
		hash := ComputeHash("user-1", "Public Tweets", "monetized")
		assert.Len(t, hash, 64)
		for _, c := range hash {
			assert.True(t, (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f'))
		}
	})

	t.Run("identical inputs produce different hashes", func(t *testing.T) {
		hash1 := ComputeHash("user-1", "Public Tweets", "monetized")
		hash2 := ComputeHash("user-1", "Public Tweets", "monetized")
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("never collides across many transitions", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			hash := ComputeHash("user-1", "Code Repositories", "denied")
			assert.False(t, seen[hash], "duplicate consent hash: %s", hash)
			seen[hash] = true
		}
	})

	t.Run("level transition back to original still yields a new hash", func(t *testing.T) {
		first := ComputeHash("user-1", "Voice Notes", "denied")
		_ = ComputeHash("user-1", "Voice Notes", "monetized")
		back := ComputeHash("user-1", "Voice Notes", "denied")
		assert.NotEqual(t, first, back)
	})
}

// Package pkce stores PKCE code verifiers for the lifetime of one OAuth
// authorization round-trip.
package pkce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a verifier is absent, expired, or already
// consumed. Callers must treat it as a terminal flow failure: the user has
// to restart authorization.
var ErrNotFound = errors.New("pkce: verifier not found")

// MaxTTL bounds how long a verifier may live regardless of what the caller
// asks for. Enforced by the store itself, not just by cookie expiry.
const MaxTTL = 10 * time.Minute

// Store persists one code verifier per flow. TakeOnce is destructive: a
// verifier can be consumed exactly once, so a replayed callback observes
// ErrNotFound even inside the TTL window.
type Store interface {
	Put(ctx context.Context, flowID, verifier string, ttl time.Duration) error
	TakeOnce(ctx context.Context, flowID string) (string, error)
}

const keyPrefix = "pkce:verifier:"

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, flowID, verifier string, ttl time.Duration) error {
	if flowID == "" || verifier == "" {
		return errors.New("pkce: flowID and verifier are required")
	}
	if err := s.client.Set(ctx, key(flowID), verifier, ClampTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("pkce: store verifier: %w", err)
	}
	return nil
}

// TakeOnce reads and deletes atomically via GETDEL, which is what makes
// the one-shot guarantee hold across concurrent callbacks.
func (s *RedisStore) TakeOnce(ctx context.Context, flowID string) (string, error) {
	verifier, err := s.client.GetDel(ctx, key(flowID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("pkce: take verifier: %w", err)
	}
	return verifier, nil
}

func key(flowID string) string {
	return keyPrefix + flowID
}

// ClampTTL bounds a requested TTL to (0, MaxTTL].
func ClampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > MaxTTL {
		return MaxTTL
	}
	return ttl
}

// MemoryStore is a process-local Store with the same one-shot and TTL
// semantics. Used in tests and single-node development runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	verifier  string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Put(ctx context.Context, flowID, verifier string, ttl time.Duration) error {
	if flowID == "" || verifier == "" {
		return errors.New("pkce: flowID and verifier are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[flowID] = memoryEntry{
		verifier:  verifier,
		expiresAt: time.Now().Add(ClampTTL(ttl)),
	}
	return nil
}

func (s *MemoryStore) TakeOnce(ctx context.Context, flowID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[flowID]
	if !ok {
		return "", ErrNotFound
	}
	delete(s.entries, flowID)

	if time.Now().After(entry.expiresAt) {
		return "", ErrNotFound
	}
	return entry.verifier, nil
}

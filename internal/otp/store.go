// Package otp issues and verifies short-lived one-time codes keyed by
// (purpose, identifier). Codes are stored hashed in a TTL store; the
// store is pluggable so multi-instance deployments share Redis while
// single-instance/dev setups can run on an in-process map. The two
// backends are selected once at startup and never mixed.
package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoEntry is returned by Store.Get when no live entry exists for the key.
var ErrNoEntry = errors.New("otp: no entry")

// Store is an expiring key/value store. Put unconditionally overwrites any
// existing entry (latest write wins); Get also reports the remaining TTL so
// the issuer can derive when the entry was created. CompareAndDelete is the
// consumption primitive: it removes the entry only if the stored value
// matches, atomically, so two concurrent verifications of the same code
// cannot both succeed.
type Store interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (value string, remaining time.Duration, err error)
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
}

// RedisStore keeps entries in Redis under a prefix, sharing state across
// instances. This is the backend for any deployment with more than one
// server process.
type RedisStore struct {
	Client *redis.Client
	Prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client, Prefix: "otp:"}
}

func (s *RedisStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.Client.Set(ctx, s.Prefix+key, value, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, time.Duration, error) {
	pipe := s.Client.Pipeline()
	getCmd := pipe.Get(ctx, s.Prefix+key)
	ttlCmd := pipe.TTL(ctx, s.Prefix+key)
	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return "", 0, ErrNoEntry
		}
		return "", 0, err
	}
	return getCmd.Val(), ttlCmd.Val(), nil
}

// compareAndDeleteScript deletes the key only while it still holds the
// expected value. GET and DEL run inside one script, so of two concurrent
// consumers exactly one sees the delete succeed.
var compareAndDeleteScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

func (s *RedisStore) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	n, err := compareAndDeleteScript.Run(ctx, s.Client, []string{s.Prefix + key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MemoryStore is a process-local TTL map. It only works when a single
// instance both issues and verifies codes, so it is reserved for dev and
// single-instance deployments where Redis is unreachable.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return "", 0, ErrNoEntry
	}
	remaining := time.Until(e.expiresAt)
	if remaining <= 0 {
		delete(s.entries, key)
		return "", 0, ErrNoEntry
	}
	return e.value, remaining, nil
}

func (s *MemoryStore) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		delete(s.entries, key)
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(e.value), []byte(value)) != 1 {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

// sweepLocked drops expired entries so the map cannot grow unbounded
// between verifications. Called with the lock held.
func (s *MemoryStore) sweepLocked() {
	now := time.Now()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}

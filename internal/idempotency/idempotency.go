// Package idempotency remembers confirm requests so a retried submission
// replays the first answer instead of creating the orders again.
package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "idempotency:"
	keyTTL    = 24 * time.Hour
	pending   = "pending"
)

// Guard claims request keys and stores the response of the first request
type Guard interface {
	// Claim returns true for the first request carrying key
	Claim(ctx context.Context, key string) (bool, error)
	// Save stores the response for a claimed key
	Save(ctx context.Context, key string, resp []byte) error
	// Load returns the stored response; ok is false while the first request is still running
	Load(ctx context.Context, key string) ([]byte, bool, error)
	// Release drops a claim so the request can be tried again
	Release(ctx context.Context, key string) error
}

// RedisGuard keeps keys in Redis
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisGuard creates a guard on client
func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client, ttl: keyTTL}
}

func (r *RedisGuard) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, keyPrefix+key, pending, r.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *RedisGuard) Save(ctx context.Context, key string, resp []byte) error {
	return r.client.Set(ctx, keyPrefix+key, resp, r.ttl).Err()
}

func (r *RedisGuard) Load(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if string(val) == pending {
		return nil, false, nil
	}
	return val, true, nil
}

func (r *RedisGuard) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, keyPrefix+key).Err()
}

type entry struct {
	resp    []byte
	done    bool
	expires time.Time
}

// MemoryGuard keeps keys in process memory
type MemoryGuard struct {
	mu   sync.Mutex
	ttl  time.Duration
	keys map[string]entry
	now  func() time.Time
}

// NewMemoryGuard creates an in-process guard
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{ttl: keyTTL, keys: make(map[string]entry), now: time.Now}
}

func (m *MemoryGuard) Claim(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.expire(now)
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = entry{expires: now.Add(m.ttl)}
	return true, nil
}

func (m *MemoryGuard) Save(_ context.Context, key string, resp []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = entry{resp: append([]byte(nil), resp...), done: true, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryGuard) Load(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.keys[key]
	if !ok || !e.done || m.now().After(e.expires) {
		return nil, false, nil
	}
	return append([]byte(nil), e.resp...), true, nil
}

func (m *MemoryGuard) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func (m *MemoryGuard) expire(now time.Time) {
	for k, e := range m.keys {
		if now.After(e.expires) {
			delete(m.keys, k)
		}
	}
}

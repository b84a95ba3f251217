package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL is how long an idle workflow snapshot is kept.
const DefaultSessionTTL = 24 * time.Hour

// SessionStore keeps the latest snapshot of each workflow so a session can
// resume after a restart or on another instance.
type SessionStore interface {
	// Load returns the saved snapshot, or nil if there is none.
	Load(ctx context.Context, identity string) (*Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Close() error
}

// MemorySessionStore keeps snapshots in process memory.
type MemorySessionStore struct {
	mu    sync.RWMutex
	snaps map[string][]byte
}

// NewMemorySessionStore creates an empty MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{snaps: make(map[string][]byte)}
}

// Load implements SessionStore.
func (m *MemorySessionStore) Load(_ context.Context, identity string) (*Snapshot, error) {
	m.mu.RLock()
	data, ok := m.snaps[identity]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decodeSnapshot(data)
}

// Save implements SessionStore.
func (m *MemorySessionStore) Save(_ context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	m.mu.Lock()
	m.snaps[snap.Identity] = data
	m.mu.Unlock()
	return nil
}

// Close implements SessionStore.
func (m *MemorySessionStore) Close() error { return nil }

// RedisSessionStore keeps snapshots in Redis with a sliding TTL.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisClient connects to the Redis server at url (redis://...).
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewRedisSessionStore creates a store on client. A non-positive ttl uses DefaultSessionTTL.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionStore{client: client, prefix: "yecs:workflow:", ttl: ttl}
}

// Load implements SessionStore.
func (r *RedisSessionStore) Load(ctx context.Context, identity string) (*Snapshot, error) {
	data, err := r.client.Get(ctx, r.prefix+identity).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", identity, err)
	}
	return decodeSnapshot(data)
}

// Save implements SessionStore.
func (r *RedisSessionStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+snap.Identity, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session %s: %w", snap.Identity, err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisSessionStore) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

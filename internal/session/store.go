package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists conversation sessions keyed by user id. Get returns
// (nil, nil) when no session exists.
type Store interface {
	Get(ctx context.Context, userID string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID string) error
}

// RedisStore keeps sessions in Redis with an idle TTL, so a conversation
// abandoned mid-flow expires back to idle instead of lingering forever.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a session store on the given client. ttl <= 0
// disables expiry.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("session: redis client required")
	}
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(userID string) string {
	return "session:" + userID
}

// Get loads the session for a user.
func (r *RedisStore) Get(ctx context.Context, userID string) (*Session, error) {
	raw, err := r.client.Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: load %s: %w", userID, err)
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", userID, err)
	}
	return &s, nil
}

// Put stores the session, refreshing its TTL.
func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	if s == nil || s.UserID == "" {
		return errors.New("session: user id required")
	}
	s.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", s.UserID, err)
	}
	if err := r.client.Set(ctx, sessionKey(s.UserID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("session: store %s: %w", s.UserID, err)
	}
	return nil
}

// Delete removes the session for a user.
func (r *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("session: delete %s: %w", userID, err)
	}
	return nil
}

// MemoryStore is a concurrent in-process store for tests and single-node
// deployments without Redis.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Get returns a copy of the stored session, or (nil, nil).
func (m *MemoryStore) Get(_ context.Context, userID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

// Put stores a copy of the session.
func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	if s == nil || s.UserID == "" {
		return errors.New("session: user id required")
	}
	s.UpdatedAt = time.Now().UTC()
	copied := *s
	m.mu.Lock()
	m.sessions[s.UserID] = &copied
	m.mu.Unlock()
	return nil
}

// Delete removes the session for a user.
func (m *MemoryStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
	return nil
}

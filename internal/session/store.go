/**
 * @description
 * Session storage for the dashboard: the bearer token and the serialized signed-in
 * user, keyed by the browser session id. Two backends are provided, an in-process
 * map for single-replica runs and Redis for shared sessions across replicas.
 */
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session id has no stored record.
var ErrNotFound = errors.New("session not found")

// Record is what a session persists between requests.
type Record struct {
	ID        string          `json:"id"`
	Token     string          `json:"token,omitempty"`
	User      json.RawMessage `json:"user,omitempty"`
	Demo      bool            `json:"demo,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewID returns a fresh session id.
func NewID() string { return uuid.NewString() }

// Store persists session records. Writes are last-writer-wins.
type Store interface {
	Get(ctx context.Context, id string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
}

type memoryItem struct {
	record    Record
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem), ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.ttl > 0 && s.now().After(item.expiresAt) {
		delete(s.items, id)
		return nil, ErrNotFound
	}
	rec := item.record
	return &rec, nil
}

func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" {
		return errors.New("session record requires an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	stored := *rec
	stored.UpdatedAt = now.UTC()
	s.items[rec.ID] = memoryItem{record: stored, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

// RedisStore keeps sessions in Redis as JSON with a sliding TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	trimmedPrefix := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmedPrefix == "" {
		trimmedPrefix = "subsentry:session"
	}
	return &RedisStore{client: client, prefix: trimmedPrefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":" + id
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" {
		return errors.New("session record requires an id")
	}
	stored := *rec
	stored.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(rec.ID), raw, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

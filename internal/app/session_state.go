package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/subsentry/dashboard-service/internal/domain"
	"github.com/subsentry/dashboard-service/internal/session"
	"github.com/tidwall/gjson"
)

const sessionWriteTimeout = 3 * time.Second

// SessionState is one browser session's storage: bearer token, serialized user and demo flag.
// It satisfies the backend client's Session interface.
type SessionState struct {
	mu     sync.RWMutex
	store  session.Store
	rec    session.Record
	logger *slog.Logger
}

// LoadSessionState reads the record for id, starting an empty one when none is stored.
func LoadSessionState(ctx context.Context, store session.Store, id string, logger *slog.Logger) (*SessionState, error) {
	rec, err := store.Get(ctx, id)
	switch {
	case errors.Is(err, session.ErrNotFound):
		rec = &session.Record{ID: id}
	case err != nil:
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &SessionState{store: store, rec: *rec, logger: logger}, nil
}

func (s *SessionState) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.ID
}

func (s *SessionState) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Token
}

// UserID reads the id of the stored user, falling back to the token's subject claim.
func (s *SessionState) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.rec.User) > 0 {
		if id := gjson.GetBytes(s.rec.User, "id").String(); id != "" {
			return id
		}
	}
	if s.rec.Token == "" {
		return ""
	}
	return tokenClaims(s.rec.Token).subject
}

// User decodes the stored user, or nil when none is stored.
func (s *SessionState) User() *domain.User {
	s.mu.RLock()
	raw := s.rec.User
	s.mu.RUnlock()
	if len(raw) == 0 {
		return nil
	}
	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil
	}
	return &u
}

func (s *SessionState) Demo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Demo
}

// ClearToken drops the token after the backend rejected it. The stored user stays.
func (s *SessionState) ClearToken() {
	ctx, cancel := context.WithTimeout(context.Background(), sessionWriteTimeout)
	defer cancel()
	s.mu.Lock()
	s.rec.Token = ""
	s.mu.Unlock()
	if err := s.save(ctx); err != nil {
		s.logger.Warn("failed to persist cleared token", "session_id", s.ID(), "error", err)
	}
}

// Persist stores token and user together.
func (s *SessionState) Persist(ctx context.Context, token string, user *domain.User) error {
	var raw json.RawMessage
	if user != nil {
		encoded, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("failed to serialize user: %w", err)
		}
		raw = encoded
	}
	s.mu.Lock()
	s.rec.Token = token
	s.rec.User = raw
	s.mu.Unlock()
	return s.save(ctx)
}

// SetUser replaces the stored user and keeps the token.
func (s *SessionState) SetUser(ctx context.Context, user domain.User) error {
	return s.Persist(ctx, s.Token(), &user)
}

func (s *SessionState) SetDemo(ctx context.Context, demo bool) error {
	s.mu.Lock()
	s.rec.Demo = demo
	s.mu.Unlock()
	return s.save(ctx)
}

// Clear removes token and user. The demo flag is kept.
func (s *SessionState) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.rec.Token = ""
	s.rec.User = nil
	s.mu.Unlock()
	return s.save(ctx)
}

func (s *SessionState) save(ctx context.Context) error {
	s.mu.Lock()
	s.rec.UpdatedAt = time.Now().UTC()
	rec := s.rec
	s.mu.Unlock()
	return s.store.Save(ctx, &rec)
}

package demo

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// Sandboxes keeps one seeded Backend per browser session, so demo visitors never see
// each other's changes. A sandbox left unused for the idle TTL is dropped and reseeded
// on the next request.
type Sandboxes struct {
	mu       sync.Mutex
	backends *gocache.Cache
	logger   *slog.Logger
	opts     []Option
}

func NewSandboxes(logger *slog.Logger, idleTTL time.Duration, opts ...Option) *Sandboxes {
	if idleTTL <= 0 {
		idleTTL = time.Hour
	}
	return &Sandboxes{
		backends: gocache.New(idleTTL, idleTTL/2),
		logger:   logger,
		opts:     opts,
	}
}

func (s *Sandboxes) seed() (*Backend, error) {
	opts := append([]Option{WithUserID("demo-" + uuid.NewString())}, s.opts...)
	return NewBackend(s.logger, opts...)
}

// Get returns the sandbox of sessionID, seeding one when none exists.
func (s *Sandboxes) Get(sessionID string) (*Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.backends.Get(sessionID); ok {
		b := v.(*Backend)
		s.backends.SetDefault(sessionID, b)
		return b, nil
	}
	b, err := s.seed()
	if err != nil {
		return nil, err
	}
	s.backends.SetDefault(sessionID, b)
	return b, nil
}

// Fresh replaces the sandbox of sessionID with a newly seeded one.
func (s *Sandboxes) Fresh(sessionID string) (*Backend, error) {
	b, err := s.seed()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.backends.SetDefault(sessionID, b)
	s.mu.Unlock()
	return b, nil
}

// Drop discards the sandbox of sessionID.
func (s *Sandboxes) Drop(sessionID string) {
	s.mu.Lock()
	s.backends.Delete(sessionID)
	s.mu.Unlock()
}

// Len is the number of live sandboxes.
func (s *Sandboxes) Len() int { return s.backends.ItemCount() }

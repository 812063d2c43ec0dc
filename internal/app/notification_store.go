package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/subsentry/dashboard-service/internal/domain"
	"github.com/subsentry/dashboard-service/pkg/subsentryclient"
)

// ReconcileDelay is how long after a local change the store refetches from the backend.
const ReconcileDelay = 100 * time.Millisecond

// NotificationAPI is the slice of the backend client the notification store calls.
type NotificationAPI interface {
	Notifications(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	DeleteNotification(ctx context.Context, userID, id string) error
}

// NotificationStore holds the notification list of one session.
// Entries added locally (synthesized alerts) survive refetches until deleted.
type NotificationStore struct {
	mu       sync.Mutex
	items    []domain.Notification
	local    map[string]bool
	onChange func([]domain.Notification)
	timer    *time.Timer
	closed   bool

	// generation is bumped by Reset; a Fetch started under an older one is discarded.
	generation uint64

	api            NotificationAPI
	toasts         *Toasts
	logger         *slog.Logger
	reconcileDelay time.Duration
}

func NewNotificationStore(api NotificationAPI, toasts *Toasts, logger *slog.Logger) *NotificationStore {
	return &NotificationStore{
		items:          []domain.Notification{},
		local:          map[string]bool{},
		api:            api,
		toasts:         toasts,
		logger:         logger,
		reconcileDelay: ReconcileDelay,
	}
}

// OnChange registers a callback that receives the list after every change.
func (s *NotificationStore) OnChange(fn func([]domain.Notification)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Items returns a copy of the list, newest first as received.
func (s *NotificationStore) Items() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Notification{}, s.items...)
}

func (s *NotificationStore) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.UnreadCount(s.items)
}

func (s *NotificationStore) Filtered(f domain.NotificationFilter) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.FilterNotifications(s.items, f)
}

// changed must be called without the lock held.
func (s *NotificationStore) changed() {
	s.mu.Lock()
	fn := s.onChange
	snapshot := append([]domain.Notification{}, s.items...)
	s.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}

// Fetch replaces the server-backed entries with the backend's list. The result is
// dropped when Reset ran while the request was in flight.
func (s *NotificationStore) Fetch(ctx context.Context) error {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()
	list, err := s.api.Notifications(ctx, "")
	if err != nil {
		return err
	}
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug("discarded notification fetch started before reset")
		return nil
	}
	merged := make([]domain.Notification, 0, len(list)+len(s.local))
	seen := make(map[string]bool, len(list))
	for _, n := range list {
		seen[n.ID] = true
		merged = append(merged, n)
	}
	for _, n := range s.items {
		if s.local[n.ID] && !seen[n.ID] {
			merged = append(merged, n)
		}
	}
	s.items = merged
	s.mu.Unlock()
	s.changed()
	return nil
}

// Add inserts a locally synthesized notification at the head unless its id is present.
func (s *NotificationStore) Add(n domain.Notification) bool {
	s.mu.Lock()
	for _, existing := range s.items {
		if existing.ID == n.ID {
			s.mu.Unlock()
			return false
		}
	}
	s.local[n.ID] = true
	s.items = append([]domain.Notification{n}, s.items...)
	s.mu.Unlock()
	s.changed()
	return true
}

func (s *NotificationStore) isLocal(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local[id]
}

// MarkRead is idempotent: an entry already read is left alone.
func (s *NotificationStore) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := -1
	for i, n := range s.items {
		if n.ID == id {
			idx = i
			break
		}
	}
	alreadyRead := idx >= 0 && s.items[idx].Read
	s.mu.Unlock()
	if alreadyRead {
		return nil
	}

	if !s.isLocal(id) {
		if err := s.api.MarkNotificationRead(ctx, "", id); err != nil {
			s.toasts.Error(subsentryclient.MessageOr(err, "Failed to mark notification as read"))
			return err
		}
	}

	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Read = true
		}
	}
	s.mu.Unlock()
	s.changed()
	s.scheduleReconcile()
	return nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context) error {
	if err := s.api.MarkAllNotificationsRead(ctx, ""); err != nil {
		s.toasts.Error(subsentryclient.MessageOr(err, "Failed to mark all notifications as read"))
		return err
	}
	s.mu.Lock()
	for i := range s.items {
		s.items[i].Read = true
	}
	s.mu.Unlock()
	s.changed()
	s.scheduleReconcile()
	return nil
}

func (s *NotificationStore) Delete(ctx context.Context, id string) error {
	if !s.isLocal(id) {
		if err := s.api.DeleteNotification(ctx, "", id); err != nil {
			s.toasts.Error(subsentryclient.MessageOr(err, "Failed to delete notification"))
			return err
		}
	}
	s.mu.Lock()
	out := s.items[:0]
	for _, n := range s.items {
		if n.ID != id {
			out = append(out, n)
		}
	}
	s.items = out
	delete(s.local, id)
	s.mu.Unlock()
	s.changed()
	s.scheduleReconcile()
	return nil
}

// scheduleReconcile coalesces refetches: a pending one is pushed back.
func (s *NotificationStore) scheduleReconcile() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Reset(s.reconcileDelay)
		return
	}
	s.timer = time.AfterFunc(s.reconcileDelay, func() {
		s.mu.Lock()
		s.timer = nil
		s.mu.Unlock()
		if err := s.Fetch(context.Background()); err != nil {
			s.logger.Warn("notification reconcile failed", "error", err)
		}
	})
}

// Reset stops a pending reconcile and clears the list, as on sign-out.
func (s *NotificationStore) Reset() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
	s.items = []domain.Notification{}
	s.local = map[string]bool{}
	s.mu.Unlock()
	s.changed()
}

// Close resets the store and refuses further reconciles.
func (s *NotificationStore) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Reset()
}

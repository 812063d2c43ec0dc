package query

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Topic names a class of data change.
type Topic string

const (
	TopicSubscriptionsChanged Topic = "subscriptions.changed"
	TopicNotificationsChanged Topic = "notifications.changed"
	TopicReportsChanged       Topic = "reports.changed"
	TopicSettingsChanged      Topic = "settings.changed"
)

// Topics lists every topic the dashboard publishes.
var Topics = []Topic{TopicSubscriptionsChanged, TopicNotificationsChanged, TopicReportsChanged, TopicSettingsChanged}

// Event is a change notification for one user.
type Event struct {
	ID     string    `json:"id"`
	Topic  Topic     `json:"topic"`
	UserID string    `json:"userId"`
	Origin string    `json:"origin"`
	At     time.Time `json:"at"`
}

// Handler receives events. It runs on the publisher's goroutine.
type Handler func(ctx context.Context, ev Event)

// Relay forwards events to other replicas.
type Relay interface {
	Forward(ctx context.Context, ev Event) error
}

type subscriberKey struct {
	topic  Topic
	userID string
}

// Registry is the explicit publish/subscribe hub between mutations and mounted views.
type Registry struct {
	mu       sync.RWMutex
	handlers map[subscriberKey]map[uint64]Handler
	nextID   uint64
	relay    Relay
	origin   string
	logger   *slog.Logger
}

// NewRegistry creates a registry. origin identifies this replica on relayed events.
func NewRegistry(origin string, logger *slog.Logger) *Registry {
	if origin == "" {
		origin = uuid.NewString()
	}
	return &Registry{
		handlers: make(map[subscriberKey]map[uint64]Handler),
		origin:   origin,
		logger:   logger,
	}
}

// Origin returns the replica identifier stamped on published events.
func (r *Registry) Origin() string { return r.origin }

// SetRelay installs the cross-replica relay. Passing nil disables relaying.
func (r *Registry) SetRelay(relay Relay) {
	r.mu.Lock()
	r.relay = relay
	r.mu.Unlock()
}

// Subscription is returned by Subscribe. Close removes the handler.
type Subscription struct {
	registry *Registry
	key      subscriberKey
	id       uint64
	once     sync.Once
}

// Close unsubscribes. Calling it more than once is safe.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.registry.mu.Lock()
		defer s.registry.mu.Unlock()
		set := s.registry.handlers[s.key]
		delete(set, s.id)
		if len(set) == 0 {
			delete(s.registry.handlers, s.key)
		}
	})
}

// Subscribe registers h for topic events of one user.
func (r *Registry) Subscribe(topic Topic, userID string, h Handler) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := subscriberKey{topic: topic, userID: userID}
	r.nextID++
	if r.handlers[key] == nil {
		r.handlers[key] = make(map[uint64]Handler)
	}
	r.handlers[key][r.nextID] = h
	return &Subscription{registry: r, key: key, id: r.nextID}
}

// Subscribers reports how many handlers are registered for a topic and user.
func (r *Registry) Subscribers(topic Topic, userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[subscriberKey{topic: topic, userID: userID}])
}

// Publish dispatches ev to every current subscriber before returning, then forwards it
// to the relay when one is installed.
func (r *Registry) Publish(ctx context.Context, ev Event) Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	ev.Origin = r.origin
	r.dispatch(ctx, ev)

	r.mu.RLock()
	relay := r.relay
	r.mu.RUnlock()
	if relay != nil {
		if err := relay.Forward(ctx, ev); err != nil && r.logger != nil {
			r.logger.Warn("failed to relay event", "topic", ev.Topic, "event_id", ev.ID, "error", err)
		}
	}
	return ev
}

// Deliver dispatches an event received from the relay. Events this replica published
// itself are ignored since they were already dispatched.
func (r *Registry) Deliver(ctx context.Context, ev Event) bool {
	if ev.Origin == r.origin {
		return false
	}
	r.dispatch(ctx, ev)
	return true
}

func (r *Registry) dispatch(ctx context.Context, ev Event) {
	r.mu.RLock()
	set := r.handlers[subscriberKey{topic: ev.Topic, userID: ev.UserID}]
	handlers := make([]Handler, 0, len(set))
	for _, h := range set {
		handlers = append(handlers, h)
	}
	r.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, ev)
	}
}

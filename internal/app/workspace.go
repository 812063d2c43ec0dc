/**
 * @description
 * A Workspace is everything one browser session used to keep in memory: the auth,
 * notification and theme stores, the toast queue, the backend client bound to the
 * session token, and the views currently mounted by that session's clients.
 *
 * Key features:
 * - Activated on the authenticated transition: preferences load, the poller starts and
 *   cache invalidation is wired to the registry for the signed-in user.
 * - Deactivated on sign-out: poller stopped, mounts closed, the user's cache entries invalidated.
 * - Mutations publish on the registry before returning, so mounted views refetch once.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/subsentry/dashboard-service/internal/domain"
	"github.com/subsentry/dashboard-service/internal/query"
	"github.com/subsentry/dashboard-service/pkg/subsentryclient"
)

// Observer receives workspace lifecycle and publish events.
type Observer interface {
	WorkspaceOpened()
	WorkspaceClosed()
	EventPublished(topic string)
	PollCompleted(err error)
}

type noopObserver struct{}

func (noopObserver) WorkspaceOpened() {}
func (noopObserver) WorkspaceClosed() {}
func (noopObserver) EventPublished(string) {}
func (noopObserver) PollCompleted(error) {}

// topicResources lists the cache resource prefixes each topic makes stale.
var topicResources = map[query.Topic][]string{
	query.TopicSubscriptionsChanged: {"subscriptions", "analytics"},
	query.TopicNotificationsChanged: {"notifications"},
	query.TopicReportsChanged:       {"reports"},
	query.TopicSettingsChanged:      {"settings"},
}

// Workspace is the per-session container of stores and mounted views.
type Workspace struct {
	Auth          *AuthStore
	Notifications *NotificationStore
	Theme         *ThemeStore
	Toasts        *Toasts

	session   *SessionState
	client    *subsentryclient.Client
	poller    *Poller
	cache     *query.Cache
	registry  *query.Registry
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time
	lookahead int

	mu           sync.Mutex
	activeUser   string
	invalidators []*query.Subscription
	mounts       map[*Mount]struct{}
	onboarding   *domain.Onboarding
	wizard       *domain.ReportWizard
	lastSeen     time.Time
	closed       bool
}

// workspaceDeps is what the Manager hands every new workspace.
type workspaceDeps struct {
	client       *subsentryclient.Client
	cache        *query.Cache
	registry     *query.Registry
	prefs        PreferenceRepository
	observer     Observer
	logger       *slog.Logger
	now          func() time.Time
	lookahead    int
	pollInterval time.Duration
}

func newWorkspace(state *SessionState, deps workspaceDeps) *Workspace {
	logger := deps.logger.With("session_id", state.ID())
	observer := deps.observer
	if observer == nil {
		observer = noopObserver{}
	}
	w := &Workspace{
		Toasts:     &Toasts{},
		Theme:      NewThemeStore(deps.prefs),
		session:    state,
		cache:      deps.cache,
		registry:   deps.registry,
		observer:   observer,
		logger:     logger,
		now:        deps.now,
		lookahead:  deps.lookahead,
		mounts:     map[*Mount]struct{}{},
		onboarding: domain.NewOnboarding(),
		lastSeen:   deps.now(),
	}
	if w.lookahead <= 0 {
		w.lookahead = 7
	}

	w.Auth = NewAuthStore(nil, state, w.Toasts, logger)
	w.Auth.now = deps.now
	// 401s on background paths arrive on the poller goroutine, which Stop waits for.
	w.client = deps.client.ForSession(state, func() { go w.Auth.ForceLogout() })
	w.Auth.api = w.client
	w.Notifications = NewNotificationStore(w.client, w.Toasts, logger)
	w.poller = NewPoller(deps.pollInterval, w.Notifications.Fetch, logger)
	w.poller.SetObserver(observer)
	w.Auth.OnChange(w.onAuthChange)
	observer.WorkspaceOpened()
	return w
}

// SessionID returns the id of the browser session.
func (w *Workspace) SessionID() string { return w.session.ID() }

// Demo reports whether the session runs against the demo backend.
func (w *Workspace) Demo() bool { return w.session.Demo() }

// UserID is the resolved user of the session, empty when signed out.
func (w *Workspace) UserID() string { return w.session.UserID() }

// Touch records activity for idle eviction.
func (w *Workspace) Touch() {
	w.mu.Lock()
	w.lastSeen = w.now()
	w.mu.Unlock()
}

// idleBefore reports whether the workspace was last used before cutoff, or before
// anonCutoff while signed out. A workspace with mounted views is never idle.
func (w *Workspace) idleBefore(cutoff, anonCutoff time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.mounts) > 0 {
		return false
	}
	if w.activeUser == "" {
		return w.lastSeen.Before(anonCutoff)
	}
	return w.lastSeen.Before(cutoff)
}

func (w *Workspace) onAuthChange(prev, next AuthState) {
	switch {
	case !prev.Authenticated && next.Authenticated:
		w.activate()
	case prev.Authenticated && !next.Authenticated:
		w.deactivate()
	case prev.Authenticated && next.Authenticated && userOf(prev) != userOf(next):
		w.deactivate()
		w.activate()
	}
}

func userOf(s AuthState) string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

func (w *Workspace) activate() {
	userID := w.UserID()
	if userID == "" {
		w.logger.Warn("authenticated without a resolvable user id")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), subsentryclient.DefaultTimeout)
	defer cancel()
	if err := w.Theme.Load(ctx, userID); err != nil {
		w.logger.Warn("failed to load preferences", "user_id", userID, "error", err)
	}
	if w.Demo() {
		if err := w.Theme.SetDemoMode(ctx, true); err != nil {
			w.logger.Warn("failed to persist demo flag", "error", err)
		}
	}

	w.mu.Lock()
	w.activeUser = userID
	for topic, resources := range topicResources {
		resources := resources
		w.invalidators = append(w.invalidators, w.registry.Subscribe(topic, userID, func(ctx context.Context, ev query.Event) {
			for _, prefix := range resources {
				w.cache.Invalidate(query.Match{ResourcePrefix: prefix, UserID: ev.UserID})
			}
		}))
	}
	w.mu.Unlock()

	w.poller.Start()
	w.logger.Info("workspace activated", "user_id", userID)
}

func (w *Workspace) deactivate() {
	w.poller.Stop()
	w.Notifications.Reset()

	w.mu.Lock()
	userID := w.activeUser
	w.activeUser = ""
	invalidators := w.invalidators
	w.invalidators = nil
	mounts := make([]*Mount, 0, len(w.mounts))
	for m := range w.mounts {
		mounts = append(mounts, m)
	}
	w.onboarding = domain.NewOnboarding()
	w.wizard = nil
	w.mu.Unlock()

	for _, sub := range invalidators {
		sub.Close()
	}
	for _, m := range mounts {
		m.Close()
	}
	if userID != "" {
		w.cache.Invalidate(query.Match{UserID: userID})
	}
	w.logger.Info("workspace deactivated", "user_id", userID)
}

// Close tears the workspace down without touching session storage.
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	active := w.activeUser != ""
	w.mu.Unlock()

	if active {
		w.deactivate()
	}
	w.poller.Stop()
	w.Notifications.Close()
	w.observer.WorkspaceClosed()
}

// requireUser resolves the user id or fails with the local precondition error.
func (w *Workspace) requireUser() (string, error) {
	id := w.UserID()
	if id == "" {
		return "", domain.ErrMissingUserID
	}
	return id, nil
}

func (w *Workspace) key(resource string, params map[string]string) query.Key {
	return query.NewKey(resource, w.UserID(), params)
}

// publish announces a change for the current user on the registry.
func (w *Workspace) publish(ctx context.Context, topic query.Topic) {
	userID := w.UserID()
	if userID == "" {
		return
	}
	w.registry.Publish(ctx, query.Event{Topic: topic, UserID: userID})
	w.observer.EventPublished(string(topic))
}

// IsFatal reports errors that abort a view instead of degrading it to stale data.
func IsFatal(err error) bool {
	return errors.Is(err, subsentryclient.ErrUnauthorized) ||
		errors.Is(err, domain.ErrMissingUserID) ||
		errors.Is(err, query.ErrDisabled)
}

// load reads one keyed query into dst. Non-fatal errors become a toast and leave the
// last good value (if any) in dst.
func load[T any](ctx context.Context, w *Workspace, key query.Key, label string, fetch func(context.Context) (T, error), dst *T) (query.Meta, error) {
	v, meta, err := query.Get(ctx, w.cache, key, fetch)
	if err != nil {
		if IsFatal(err) {
			return meta, err
		}
		w.logger.Warn("view query failed", "resource", key.Resource(), "stale", meta.Stale, "error", err)
		w.Toasts.Error(subsentryclient.MessageOr(err, "Failed to load "+label))
		if !meta.Cached {
			return meta, nil
		}
	}
	*dst = v
	return meta, nil
}

// ViewMeta summarizes the freshness of the queries behind a view.
type ViewMeta struct {
	Stale     bool      `json:"stale"`
	FetchedAt time.Time `json:"fetchedAt"`
}

type metaCollector struct {
	mu   sync.Mutex
	meta ViewMeta
}

func (c *metaCollector) add(m query.Meta, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m.Stale {
		c.meta.Stale = true
	}
	if c.meta.FetchedAt.IsZero() || (!m.FetchedAt.IsZero() && m.FetchedAt.Before(c.meta.FetchedAt)) {
		c.meta.FetchedAt = m.FetchedAt
	}
	return err
}

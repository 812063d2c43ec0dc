/**
 * @description
 * Manager owns every open Workspace, keyed by browser session id. It decides which
 * backend a session talks to (the configured REST backend or the session's own
 * in-process demo sandbox) and drives the demo setup/reset controls.
 *
 * @dependencies
 * - golang.org/x/sync/singleflight: concurrent first requests of one session share a single Open.
 * - github.com/robfig/cron/v3: periodic eviction of idle workspaces.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/subsentry/dashboard-service/internal/demo"
	"github.com/subsentry/dashboard-service/internal/query"
	"github.com/subsentry/dashboard-service/internal/session"
	"github.com/subsentry/dashboard-service/pkg/subsentryclient"
)

// DefaultAnonymousIdle bounds how long a workspace that never signed in is kept.
const DefaultAnonymousIdle = 5 * time.Minute

// ErrDemoDisabled is returned by the demo controls when no demo backend is configured.
var ErrDemoDisabled = errors.New("demo mode is not enabled on this server")

// ManagerConfig wires a Manager.
type ManagerConfig struct {
	Client        *subsentryclient.Client
	DemoClient    *subsentryclient.Client
	Demo          *demo.Sandboxes
	Sessions      session.Store
	Preferences   PreferenceRepository
	Cache         *query.Cache
	Registry      *query.Registry
	Observer      Observer
	Logger        *slog.Logger
	PollInterval  time.Duration
	Lookahead     int
	Now           func() time.Time
	// AnonymousIdle is how long a signed-out workspace stays open without requests.
	AnonymousIdle time.Duration
}

type Manager struct {
	cfg     ManagerConfig
	mu      sync.Mutex
	spaces  map[string]*Workspace
	opening singleflight.Group
	evictor *cron.Cron
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.AnonymousIdle <= 0 {
		cfg.AnonymousIdle = DefaultAnonymousIdle
	}
	return &Manager{cfg: cfg, spaces: map[string]*Workspace{}}
}

// DemoAvailable reports whether the demo controls can be used.
func (m *Manager) DemoAvailable() bool {
	return m.cfg.Demo != nil && m.cfg.DemoClient != nil
}

// deps builds the workspace dependencies of session id. Demo sessions get a client
// bound to their own sandbox.
func (m *Manager) deps(id string, demoMode bool) (workspaceDeps, error) {
	client := m.cfg.Client
	if demoMode && m.DemoAvailable() {
		sandbox, err := m.cfg.Demo.Get(id)
		if err != nil {
			return workspaceDeps{}, fmt.Errorf("failed to seed demo sandbox: %w", err)
		}
		client = m.cfg.DemoClient.ForTransport(sandbox.HTTPClient())
	}
	return workspaceDeps{
		client:       client,
		cache:        m.cfg.Cache,
		registry:     m.cfg.Registry,
		prefs:        m.cfg.Preferences,
		observer:     m.cfg.Observer,
		logger:       m.cfg.Logger,
		now:          m.cfg.Now,
		lookahead:    m.cfg.Lookahead,
		pollInterval: m.cfg.PollInterval,
	}, nil
}

func (m *Manager) lookup(id string) (*Workspace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.spaces[id]
	return w, ok
}

// Open returns the workspace of session id, restoring it from session storage on first use.
func (m *Manager) Open(ctx context.Context, id string) (*Workspace, error) {
	if w, ok := m.lookup(id); ok {
		w.Touch()
		return w, nil
	}
	v, err, _ := m.opening.Do(id, func() (interface{}, error) {
		if w, ok := m.lookup(id); ok {
			return w, nil
		}
		state, err := LoadSessionState(ctx, m.cfg.Sessions, id, m.cfg.Logger)
		if err != nil {
			return nil, err
		}
		deps, err := m.deps(id, state.Demo())
		if err != nil {
			return nil, err
		}
		w := newWorkspace(state, deps)
		if err := w.Auth.Restore(ctx); err != nil {
			m.cfg.Logger.Warn("failed to restore session", "session_id", id, "error", err)
		}
		m.mu.Lock()
		m.spaces[id] = w
		m.mu.Unlock()
		return w, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Workspace), nil
}

// Close tears down the workspace of session id. Session storage is untouched.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	w, ok := m.spaces[id]
	delete(m.spaces, id)
	m.mu.Unlock()
	if ok {
		w.Close()
	}
}

// Len is the number of open workspaces.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.spaces)
}

// EvictIdle closes workspaces untouched for longer than maxIdle. Signed-out workspaces
// go after AnonymousIdle when that is shorter.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	now := m.cfg.Now()
	cutoff := now.Add(-maxIdle)
	anonCutoff := now.Add(-min(maxIdle, m.cfg.AnonymousIdle))
	m.mu.Lock()
	var idle []string
	for id, w := range m.spaces {
		if w.idleBefore(cutoff, anonCutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()
	for _, id := range idle {
		m.Close(id)
	}
	if len(idle) > 0 {
		m.cfg.Logger.Info("evicted idle workspaces", "count", len(idle))
	}
	return len(idle)
}

// StartEviction runs EvictIdle on a schedule until Shutdown.
func (m *Manager) StartEviction(every, maxIdle time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.evictor != nil {
		return nil
	}
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(slog.NewLogLogger(m.cfg.Logger.Handler(), slog.LevelInfo)))))
	if _, err := c.AddFunc("@every "+every.String(), func() { m.EvictIdle(maxIdle) }); err != nil {
		return fmt.Errorf("failed to schedule workspace eviction: %w", err)
	}
	c.Start()
	m.evictor = c
	return nil
}

// Shutdown stops eviction and closes every workspace.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	c := m.evictor
	m.evictor = nil
	ids := make([]string, 0, len(m.spaces))
	for id := range m.spaces {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	for _, id := range ids {
		m.Close(id)
	}
}

// EnableDemo gives session id a freshly seeded demo sandbox, installs the fixed demo
// token and signs in through the normal restore path.
func (m *Manager) EnableDemo(ctx context.Context, id string) (*Workspace, error) {
	if !m.DemoAvailable() {
		return nil, ErrDemoDisabled
	}
	m.Close(id)
	state, err := LoadSessionState(ctx, m.cfg.Sessions, id, m.cfg.Logger)
	if err != nil {
		return nil, err
	}
	if _, err := m.cfg.Demo.Fresh(id); err != nil {
		return nil, fmt.Errorf("failed to seed demo sandbox: %w", err)
	}
	if err := state.SetDemo(ctx, true); err != nil {
		return nil, fmt.Errorf("failed to persist demo flag: %w", err)
	}
	if err := state.Persist(ctx, demo.Token, nil); err != nil {
		return nil, fmt.Errorf("failed to persist demo token: %w", err)
	}
	w, err := m.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	if !w.Auth.State().Authenticated {
		return nil, errors.New("demo backend rejected the demo token")
	}
	w.Toasts.Success("Demo mode enabled")
	return w, nil
}

// ResetDemo drops the session's demo sandbox and returns session id to a signed-out,
// non-demo state.
func (m *Manager) ResetDemo(ctx context.Context, id string) (*Workspace, error) {
	if !m.DemoAvailable() {
		return nil, ErrDemoDisabled
	}
	m.Close(id)
	m.cfg.Demo.Drop(id)
	state, err := LoadSessionState(ctx, m.cfg.Sessions, id, m.cfg.Logger)
	if err != nil {
		return nil, err
	}
	userID := state.UserID()
	if err := state.Clear(ctx); err != nil {
		return nil, err
	}
	if err := state.SetDemo(ctx, false); err != nil {
		return nil, err
	}
	if userID != "" {
		m.cfg.Cache.Remove(query.Match{UserID: userID})
		m.clearDemoPreference(ctx, userID)
	}
	return m.Open(ctx, id)
}

func (m *Manager) clearDemoPreference(ctx context.Context, userID string) {
	if m.cfg.Preferences == nil {
		return
	}
	prefs, err := m.cfg.Preferences.GetPreferences(ctx, userID)
	if err != nil {
		return
	}
	prefs.DemoMode = false
	if err := m.cfg.Preferences.SavePreferences(ctx, *prefs); err != nil {
		m.cfg.Logger.Warn("failed to clear demo preference", "user_id", userID, "error", err)
	}
}

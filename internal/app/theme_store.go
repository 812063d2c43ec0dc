package app

import (
	"context"
	"errors"
	"sync"

	"github.com/subsentry/dashboard-service/internal/domain"
	"github.com/subsentry/dashboard-service/internal/store"
)

// PreferenceRepository persists the per-user local preferences.
type PreferenceRepository interface {
	GetPreferences(ctx context.Context, userID string) (*domain.Preferences, error)
	SavePreferences(ctx context.Context, prefs domain.Preferences) error
}

// ThemeStore tracks the light/dark choice of one user.
type ThemeStore struct {
	mu    sync.Mutex
	prefs domain.Preferences
	repo  PreferenceRepository
}

// NewThemeStore starts on the light theme. repo may be nil.
func NewThemeStore(repo PreferenceRepository) *ThemeStore {
	return &ThemeStore{prefs: domain.Preferences{Theme: domain.ThemeLight}, repo: repo}
}

// Load reads the stored preferences for userID; a missing row keeps the defaults.
func (t *ThemeStore) Load(ctx context.Context, userID string) error {
	t.mu.Lock()
	t.prefs.UserID = userID
	t.mu.Unlock()
	if t.repo == nil || userID == "" {
		return nil
	}
	prefs, err := t.repo.GetPreferences(ctx, userID)
	if errors.Is(err, store.ErrPreferencesNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.prefs = *prefs
	if t.prefs.Theme == "" {
		t.prefs.Theme = domain.ThemeLight
	}
	t.mu.Unlock()
	return nil
}

func (t *ThemeStore) Theme() domain.Theme {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prefs.Theme
}

func (t *ThemeStore) Preferences() domain.Preferences {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prefs
}

// Toggle flips the theme and persists it when a user is known.
func (t *ThemeStore) Toggle(ctx context.Context) (domain.Theme, error) {
	t.mu.Lock()
	t.prefs.Theme = t.prefs.Theme.Toggle()
	prefs := t.prefs
	t.mu.Unlock()
	return prefs.Theme, t.persist(ctx, prefs)
}

func (t *ThemeStore) SetDemoMode(ctx context.Context, demo bool) error {
	t.mu.Lock()
	t.prefs.DemoMode = demo
	prefs := t.prefs
	t.mu.Unlock()
	return t.persist(ctx, prefs)
}

func (t *ThemeStore) persist(ctx context.Context, prefs domain.Preferences) error {
	if t.repo == nil || prefs.UserID == "" {
		return nil
	}
	return t.repo.SavePreferences(ctx, prefs)
}

/**
 * @description
 * Data access for client preferences (theme and demo flag), the server-side
 * counterpart of the dashboard's local storage. SQL is built with squirrel and
 * run through pgx.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/subsentry/dashboard-service/internal/domain"
)

// ErrPreferencesNotFound is returned when a user has no stored preferences.
var ErrPreferencesNotFound = errors.New("preferences not found")

const preferencesTable = "client_preferences"

// DB is the subset of pgxpool.Pool used by the repository.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles database operations for client preferences.
type Repository struct {
	db DB
	sb squirrel.StatementBuilderType
}

// NewRepository creates a new repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db, sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)}
}

// EnsureSchema creates the preferences table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	query := `
        CREATE TABLE IF NOT EXISTS client_preferences (
            user_id TEXT PRIMARY KEY,
            theme TEXT NOT NULL DEFAULT 'light',
            demo_mode BOOLEAN NOT NULL DEFAULT FALSE,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )
    `
	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s: %w", preferencesTable, err)
	}
	return nil
}

// GetPreferences retrieves the preferences stored for a user.
func (r *Repository) GetPreferences(ctx context.Context, userID string) (*domain.Preferences, error) {
	query, args, err := r.sb.
		Select("user_id", "theme", "demo_mode").
		From(preferencesTable).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var (
		prefs domain.Preferences
		theme string
	)
	err = r.db.QueryRow(ctx, query, args...).Scan(&prefs.UserID, &theme, &prefs.DemoMode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPreferencesNotFound
		}
		return nil, err
	}
	prefs.Theme = domain.Theme(theme)
	return &prefs, nil
}

// SavePreferences creates or replaces a user's preferences.
func (r *Repository) SavePreferences(ctx context.Context, prefs domain.Preferences) error {
	if strings.TrimSpace(prefs.UserID) == "" {
		return domain.ErrMissingUserID
	}
	theme := prefs.Theme
	if theme == "" {
		theme = domain.ThemeLight
	}
	query, args, err := r.sb.
		Insert(preferencesTable).
		Columns("user_id", "theme", "demo_mode", "updated_at").
		Values(prefs.UserID, string(theme), prefs.DemoMode, time.Now().UTC()).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET theme = EXCLUDED.theme, demo_mode = EXCLUDED.demo_mode, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// DeletePreferences removes a user's stored preferences.
func (r *Repository) DeletePreferences(ctx context.Context, userID string) error {
	query, args, err := r.sb.
		Delete(preferencesTable).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, query, args...)
	return err
}

// MemoryRepository keeps preferences in memory when no database is configured.
type MemoryRepository struct {
	mu    sync.RWMutex
	prefs map[string]domain.Preferences
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{prefs: make(map[string]domain.Preferences)}
}

func (m *MemoryRepository) GetPreferences(_ context.Context, userID string) (*domain.Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prefs[userID]
	if !ok {
		return nil, ErrPreferencesNotFound
	}
	return &p, nil
}

func (m *MemoryRepository) SavePreferences(_ context.Context, prefs domain.Preferences) error {
	if strings.TrimSpace(prefs.UserID) == "" {
		return domain.ErrMissingUserID
	}
	if prefs.Theme == "" {
		prefs.Theme = domain.ThemeLight
	}
	m.mu.Lock()
	m.prefs[prefs.UserID] = prefs
	m.mu.Unlock()
	return nil
}

func (m *MemoryRepository) DeletePreferences(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.prefs, userID)
	m.mu.Unlock()
	return nil
}

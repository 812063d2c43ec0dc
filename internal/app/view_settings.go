package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/subsentry/dashboard-service/internal/domain"
)

// SettingsPage is the settings view model.
type SettingsPage struct {
	Settings                domain.Settings                `json:"settings"`
	Categories              []domain.Category              `json:"categories"`
	Currencies              []domain.Currency              `json:"currencies"`
	NotificationPreferences domain.NotificationPreferences `json:"notificationPreferences"`
	Theme                   domain.Theme                   `json:"theme"`
	Meta                    ViewMeta                       `json:"meta"`
}

func (w *Workspace) SettingsView(ctx context.Context) (*SettingsPage, error) {
	userID, err := w.requireUser()
	if err != nil {
		return nil, err
	}

	view := &SettingsPage{Theme: w.Theme.Theme()}
	var meta metaCollector
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return meta.add(load(gctx, w, w.key("settings", nil), "settings",
			func(ctx context.Context) (domain.Settings, error) {
				s, err := w.client.Settings(ctx, userID)
				if err != nil {
					return domain.Settings{}, err
				}
				return *s, nil
			}, &view.Settings))
	})
	g.Go(func() error {
		return meta.add(load(gctx, w, w.key("settings/categories", nil), "categories",
			func(ctx context.Context) ([]domain.Category, error) { return w.client.Categories(ctx, userID) },
			&view.Categories))
	})
	g.Go(func() error {
		return meta.add(load(gctx, w, w.key("settings/currencies", nil), "currencies",
			w.client.Currencies, &view.Currencies))
	})
	g.Go(func() error {
		return meta.add(load(gctx, w, w.key("settings/notification-preferences", nil), "notification preferences",
			func(ctx context.Context) (domain.NotificationPreferences, error) {
				p, err := w.client.NotificationPreferences(ctx, userID)
				if err != nil {
					return domain.NotificationPreferences{}, err
				}
				return *p, nil
			}, &view.NotificationPreferences))
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if view.Categories == nil {
		view.Categories = []domain.Category{}
	}
	if len(view.Currencies) == 0 {
		view.Currencies = domain.SupportedCurrencies
	}
	view.Meta = meta.meta
	return view, nil
}

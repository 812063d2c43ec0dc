package app

import (
	"context"
	"time"

	"github.com/subsentry/dashboard-service/internal/domain"
	"github.com/subsentry/dashboard-service/pkg/subsentryclient"
)

const monthLayout = "2006-01"

// CalendarView is the month grid with its filters and selected-day detail.
type CalendarView struct {
	Month           string                 `json:"month"`
	Previous        string                 `json:"previousMonth"`
	Next            string                 `json:"nextMonth"`
	Weeks           [][]domain.CalendarDay `json:"weeks"`
	Categories      []string               `json:"categories"`
	Filter          domain.CalendarFilter  `json:"filter"`
	Selected        *domain.Date           `json:"selected,omitempty"`
	SelectedEntries []domain.CalendarEntry `json:"selectedEntries"`
	Meta            ViewMeta               `json:"meta"`
}

// Calendar places the filtered subscriptions on the requested month.
func (w *Workspace) Calendar(ctx context.Context, params ViewParams) (*CalendarView, error) {
	userID, err := w.requireUser()
	if err != nil {
		return nil, err
	}

	var subs []domain.Subscription
	var meta metaCollector
	err = meta.add(load(ctx, w, w.key("subscriptions", nil), "subscriptions",
		func(ctx context.Context) ([]domain.Subscription, error) {
			return w.client.ListSubscriptions(ctx, subsentryclient.ListParams{UserID: userID})
		}, &subs))
	if err != nil {
		return nil, err
	}

	now := w.now()
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if params.Month != "" {
		if m, err := time.Parse(monthLayout, params.Month); err == nil {
			month = m
		}
	}
	var selected time.Time
	if params.Selected != "" {
		if d, err := domain.ParseDate(params.Selected); err == nil {
			selected = d.Time
		}
	}

	filter := domain.CalendarFilter{Category: params.Category, Search: params.Search}
	visible := filter.Apply(subs)
	view := &CalendarView{
		Month:           month.Format(monthLayout),
		Previous:        month.AddDate(0, -1, 0).Format(monthLayout),
		Next:            month.AddDate(0, 1, 0).Format(monthLayout),
		Weeks:           domain.MonthGrid(month, now, selected, visible),
		Categories:      domain.UniqueCategories(subs),
		Filter:          filter,
		SelectedEntries: []domain.CalendarEntry{},
		Meta:            meta.meta,
	}
	if !selected.IsZero() {
		d := domain.DateOf(selected)
		view.Selected = &d
		view.SelectedEntries = domain.EntriesForDay(visible, selected)
	}
	return view, nil
}

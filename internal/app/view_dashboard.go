package app

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/subsentry/dashboard-service/internal/domain"
	"github.com/subsentry/dashboard-service/pkg/subsentryclient"
)

// DashboardView is the landing page model.
type DashboardView struct {
	Subscriptions []domain.Subscription `json:"subscriptions"`
	Overview      domain.Overview       `json:"overview"`
	QuickStats    domain.QuickStats     `json:"quickStats"`
	SpendingTrend []domain.TrendPoint   `json:"spendingTrend"`
	Upcoming      domain.UpcomingWidget `json:"upcoming"`
	Categories    []string              `json:"categories"`
	Unread        int                   `json:"unreadNotifications"`
	Meta          ViewMeta              `json:"meta"`
}

// Dashboard fetches subscriptions, overview, trend and upcoming renewals concurrently.
func (w *Workspace) Dashboard(ctx context.Context) (*DashboardView, error) {
	userID, err := w.requireUser()
	if err != nil {
		return nil, err
	}

	var (
		subs     []domain.Subscription
		overview domain.Overview
		trend    []domain.TrendPoint
		upcoming []domain.Subscription
		meta     metaCollector
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return meta.add(load(gctx, w, w.key("subscriptions", nil), "subscriptions",
			func(ctx context.Context) ([]domain.Subscription, error) {
				return w.client.ListSubscriptions(ctx, subsentryclient.ListParams{UserID: userID})
			}, &subs))
	})
	g.Go(func() error {
		return meta.add(load(gctx, w, w.key("analytics/overview", nil), "overview",
			func(ctx context.Context) (domain.Overview, error) {
				o, err := w.client.Overview(ctx, subsentryclient.AnalyticsParams{UserID: userID})
				if err != nil {
					return domain.Overview{}, err
				}
				return *o, nil
			}, &overview))
	})
	g.Go(func() error {
		return meta.add(load(gctx, w, w.key("analytics/spending-trend", nil), "spending trend",
			func(ctx context.Context) ([]domain.TrendPoint, error) {
				return w.client.SpendingTrend(ctx, subsentryclient.AnalyticsParams{UserID: userID})
			}, &trend))
	})
	g.Go(func() error {
		params := map[string]string{"days": strconv.Itoa(w.lookahead)}
		return meta.add(load(gctx, w, w.key("subscriptions/upcoming", params), "upcoming renewals",
			func(ctx context.Context) ([]domain.Subscription, error) {
				return w.client.UpcomingSubscriptions(ctx, userID, w.lookahead)
			}, &upcoming))
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := w.now()
	if upcoming == nil {
		upcoming = subs
	}
	for _, alert := range domain.RenewalAlerts(subs, now) {
		w.Notifications.Add(alert)
	}

	if subs == nil {
		subs = []domain.Subscription{}
	}
	if trend == nil {
		trend = []domain.TrendPoint{}
	}
	return &DashboardView{
		Subscriptions: subs,
		Overview:      overview,
		QuickStats:    domain.QuickStatsFrom(overview),
		SpendingTrend: trend,
		Upcoming:      domain.BuildUpcomingWidget(upcoming, now, w.lookahead),
		Categories:    domain.UniqueCategories(subs),
		Unread:        w.Notifications.UnreadCount(),
		Meta:          meta.meta,
	}, nil
}

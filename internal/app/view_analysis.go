package app

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/subsentry/dashboard-service/internal/domain"
	"github.com/subsentry/dashboard-service/pkg/subsentryclient"
)

// AnalysisView is the analytics page for one date range.
type AnalysisView struct {
	DateRange         domain.AnalyticsRange `json:"dateRange"`
	Overview          domain.Overview       `json:"overview"`
	SpendingTrend     []domain.TrendPoint   `json:"spendingTrend"`
	CategoryBreakdown []domain.Slice        `json:"categoryBreakdown"`
	BillingCycles     []domain.Slice        `json:"billingCycles"`
	TopSubscriptions  []domain.TopItem      `json:"topSubscriptions"`
	Projection        domain.Projection     `json:"projection"`
	Insights          []string              `json:"insights"`
	Comparison        []domain.Comparison   `json:"comparison,omitempty"`
	Meta              ViewMeta              `json:"meta"`
}

// Analysis runs every analytics query for the range concurrently.
func (w *Workspace) Analysis(ctx context.Context, params ViewParams) (*AnalysisView, error) {
	userID, err := w.requireUser()
	if err != nil {
		return nil, err
	}
	r := domain.ParseAnalyticsRange(params.DateRange)
	ap := subsentryclient.AnalyticsParams{UserID: userID, DateRange: r}
	rangeParams := map[string]string{"dateRange": string(r)}

	view := &AnalysisView{DateRange: r}
	var meta metaCollector
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return meta.add(load(gctx, w, w.key("analytics/overview", rangeParams), "overview",
			func(ctx context.Context) (domain.Overview, error) {
				o, err := w.client.Overview(ctx, ap)
				if err != nil {
					return domain.Overview{}, err
				}
				return *o, nil
			}, &view.Overview))
	})
	g.Go(func() error {
		return meta.add(load(gctx, w, w.key("analytics/spending-trend", rangeParams), "spending trend",
			func(ctx context.Context) ([]domain.TrendPoint, error) { return w.client.SpendingTrend(ctx, ap) },
			&view.SpendingTrend))
	})
	g.Go(func() error {
		return meta.add(load(gctx, w, w.key("analytics/category-breakdown", rangeParams), "category breakdown",
			func(ctx context.Context) ([]domain.Slice, error) { return w.client.CategoryBreakdown(ctx, ap) },
			&view.CategoryBreakdown))
	})
	g.Go(func() error {
		return meta.add(load(gctx, w, w.key("analytics/billing-cycle", rangeParams), "billing cycles",
			func(ctx context.Context) ([]domain.Slice, error) { return w.client.BillingCycles(ctx, ap) },
			&view.BillingCycles))
	})
	g.Go(func() error {
		return meta.add(load(gctx, w, w.key("analytics/top-subscriptions", rangeParams), "top subscriptions",
			func(ctx context.Context) ([]domain.TopItem, error) { return w.client.TopSubscriptions(ctx, ap) },
			&view.TopSubscriptions))
	})
	g.Go(func() error {
		return meta.add(load(gctx, w, w.key("analytics/projections", rangeParams), "projections",
			func(ctx context.Context) (domain.Projection, error) {
				p, err := w.client.Projections(ctx, ap)
				if err != nil {
					return domain.Projection{}, err
				}
				return *p, nil
			}, &view.Projection))
	})
	g.Go(func() error {
		return meta.add(load(gctx, w, w.key("analytics/insights", rangeParams), "insights",
			func(ctx context.Context) ([]string, error) { return w.client.Insights(ctx, ap) },
			&view.Insights))
	})
	if ids := compareIDs(params.Compare); len(ids) > 0 {
		g.Go(func() error {
			return meta.add(load(gctx, w, w.key("analytics/compare", map[string]string{"ids": strings.Join(ids, ",")}), "comparison",
				func(ctx context.Context) ([]domain.Comparison, error) { return w.client.Compare(ctx, userID, ids) },
				&view.Comparison))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if view.SpendingTrend == nil {
		view.SpendingTrend = []domain.TrendPoint{}
	}
	if view.CategoryBreakdown == nil {
		view.CategoryBreakdown = []domain.Slice{}
	}
	if view.BillingCycles == nil {
		view.BillingCycles = []domain.Slice{}
	}
	if view.TopSubscriptions == nil {
		view.TopSubscriptions = []domain.TopItem{}
	}
	if view.Insights == nil {
		view.Insights = []string{}
	}
	view.Meta = meta.meta
	return view, nil
}

// compareIDs dedups and sorts so the same selection maps to one cache key.
func compareIDs(ids []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

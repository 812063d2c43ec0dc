package subsentryclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/subsentry/dashboard-service/internal/domain"
)

// AnalyticsParams selects the user and date window for analytics queries.
type AnalyticsParams struct {
	UserID    string
	DateRange domain.AnalyticsRange
}

func (c *Client) analyticsQuery(p AnalyticsParams) (url.Values, error) {
	params := url.Values{}
	params.Set("dateRange", string(p.DateRange))
	return c.userQuery(p.UserID, params)
}

func (c *Client) Overview(ctx context.Context, p AnalyticsParams) (*domain.Overview, error) {
	q, err := c.analyticsQuery(p)
	if err != nil {
		return nil, err
	}
	var out domain.Overview
	if err := c.getJSON(ctx, "/analytics/overview", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SpendingTrend(ctx context.Context, p AnalyticsParams) ([]domain.TrendPoint, error) {
	q, err := c.analyticsQuery(p)
	if err != nil {
		return nil, err
	}
	out := []domain.TrendPoint{}
	if err := c.getList(ctx, "/analytics/spending-trend", q, &out, "monthlyData", "trend"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CategoryBreakdown(ctx context.Context, p AnalyticsParams) ([]domain.Slice, error) {
	q, err := c.analyticsQuery(p)
	if err != nil {
		return nil, err
	}
	out := []domain.Slice{}
	if err := c.getList(ctx, "/analytics/category-breakdown", q, &out, "categories"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) BillingCycles(ctx context.Context, p AnalyticsParams) ([]domain.Slice, error) {
	q, err := c.analyticsQuery(p)
	if err != nil {
		return nil, err
	}
	out := []domain.Slice{}
	if err := c.getList(ctx, "/analytics/billing-cycle", q, &out, "cycles"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) TopSubscriptions(ctx context.Context, p AnalyticsParams) ([]domain.TopItem, error) {
	q, err := c.analyticsQuery(p)
	if err != nil {
		return nil, err
	}
	out := []domain.TopItem{}
	if err := c.getList(ctx, "/analytics/top-subscriptions", q, &out, "subscriptions"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Projections(ctx context.Context, p AnalyticsParams) (*domain.Projection, error) {
	q, err := c.analyticsQuery(p)
	if err != nil {
		return nil, err
	}
	var out domain.Projection
	if err := c.getJSON(ctx, "/analytics/projections", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Insights(ctx context.Context, p AnalyticsParams) ([]string, error) {
	q, err := c.analyticsQuery(p)
	if err != nil {
		return nil, err
	}
	out := []string{}
	if err := c.getList(ctx, "/analytics/insights", q, &out, "insights"); err != nil {
		return nil, err
	}
	return out, nil
}

// Compare fetches side-by-side figures for the given subscriptions.
func (c *Client) Compare(ctx context.Context, userID string, ids []string) ([]domain.Comparison, error) {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/analytics/compare",
		query:  q,
		body:   map[string][]string{"subscriptionIds": ids},
	})
	if err != nil {
		return nil, err
	}
	out := []domain.Comparison{}
	if err := decode(UnwrapList(resp.body, "comparison"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

package app

import (
	"context"

	"github.com/subsentry/dashboard-service/internal/domain"
	"github.com/subsentry/dashboard-service/pkg/subsentryclient"
)

// ProfileStats summarizes the user's subscriptions on the profile page.
type ProfileStats struct {
	TotalSubscriptions  int     `json:"totalSubscriptions"`
	ActiveSubscriptions int     `json:"activeSubscriptions"`
	MonthlySpend        float64 `json:"monthlySpend"`
	AnnualSpend         float64 `json:"annualSpend"`
	Categories          int     `json:"categories"`
	MemberSince         string  `json:"memberSince,omitempty"`
}

type ProfileView struct {
	User  *domain.User `json:"user"`
	Stats ProfileStats `json:"stats"`
	Theme domain.Theme `json:"theme"`
	Meta  ViewMeta     `json:"meta"`
}

// Profile combines the signed-in user with stats derived from the subscription list.
func (w *Workspace) Profile(ctx context.Context) (*ProfileView, error) {
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

	user := w.Auth.State().User
	if user == nil {
		user = w.session.User()
	}
	return &ProfileView{
		User:  user,
		Stats: profileStats(subs),
		Theme: w.Theme.Theme(),
		Meta:  meta.meta,
	}, nil
}

func profileStats(subs []domain.Subscription) ProfileStats {
	stats := ProfileStats{TotalSubscriptions: len(subs), Categories: len(domain.UniqueCategories(subs))}
	var earliest domain.Date
	monthly := 0.0
	for _, s := range subs {
		if s.IsCancelled() {
			continue
		}
		stats.ActiveSubscriptions++
		monthly += domain.MonthlyCost(s)
		if !s.StartDate.IsZero() && (earliest.IsZero() || s.StartDate.Before(earliest.Time)) {
			earliest = s.StartDate
		}
	}
	stats.MonthlySpend = domain.Round2(monthly)
	stats.AnnualSpend = domain.Round2(monthly * 12)
	if !earliest.IsZero() {
		stats.MemberSince = earliest.Format("January 2006")
	}
	return stats
}

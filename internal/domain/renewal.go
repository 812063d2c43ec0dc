package domain

import (
	"strconv"
	"time"
)

// UpcomingShown is how many renewals the dashboard widget lists before "View all".
const UpcomingShown = 5

// UpcomingItem is a row in the upcoming-renewals widget.
type UpcomingItem struct {
	Subscription Subscription `json:"subscription"`
	DaysUntil    int          `json:"daysUntil"`
	Label        string       `json:"label"`
}

// UpcomingWidget is the dashboard's upcoming-renewals panel.
type UpcomingWidget struct {
	Items         []UpcomingItem `json:"items"`
	Total         int            `json:"total"`
	ViewAll       string         `json:"viewAll,omitempty"`
	LookaheadDays int            `json:"lookaheadDays"`
}

// RenewalLabel renders the relative day label used in the widget.
func RenewalLabel(days int) string {
	switch days {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	default:
		return strconv.Itoa(days) + " days"
	}
}

// BuildUpcomingWidget lists renewals in [today, today+lookahead) by date, capped for display.
func BuildUpcomingWidget(subs []Subscription, now time.Time, lookahead int) UpcomingWidget {
	upcoming := UpcomingWithin(subs, now, lookahead)
	w := UpcomingWidget{Items: []UpcomingItem{}, Total: len(upcoming), LookaheadDays: lookahead}
	for i, s := range upcoming {
		if i == UpcomingShown {
			break
		}
		days := DaysUntil(now, s.NextRenewalDate.Time)
		w.Items = append(w.Items, UpcomingItem{Subscription: s, DaysUntil: days, Label: RenewalLabel(days)})
	}
	if len(upcoming) > UpcomingShown {
		w.ViewAll = "View all " + strconv.Itoa(len(upcoming))
	}
	return w
}

// QuickStats are the headline tiles on the dashboard.
type QuickStats struct {
	MonthlySpend      float64 `json:"monthlySpend"`
	AnnualProjection  float64 `json:"annualProjection"`
	ActiveCount       int     `json:"activeCount"`
	UpcomingRenewals  int     `json:"upcomingRenewals"`
	CostPerDay        float64 `json:"costPerDay"`
	CategoryCount     int     `json:"categoryCount"`
	TotalSubscription int     `json:"totalSubscriptions"`
}

// QuickStatsFrom maps the analytics overview onto the dashboard tiles.
func QuickStatsFrom(o Overview) QuickStats {
	return QuickStats{
		MonthlySpend:      o.AverageMonthly,
		AnnualProjection:  o.AnnualProjection,
		ActiveCount:       o.ActiveSubscriptions,
		UpcomingRenewals:  o.UpcomingRenewals,
		CostPerDay:        o.CostPerDay,
		CategoryCount:     o.CategoryCount,
		TotalSubscription: o.TotalSubscriptions,
	}
}

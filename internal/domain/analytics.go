package domain

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// AnalyticsRange is the window selector on the analysis page.
type AnalyticsRange string

const (
	Range1Month  AnalyticsRange = "1month"
	Range3Months AnalyticsRange = "3months"
	Range6Months AnalyticsRange = "6months"
	Range1Year   AnalyticsRange = "1year"
	RangeAll     AnalyticsRange = "all"
)

// ParseAnalyticsRange lowercases input and maps "yearly" to 1year; unknown values pass through.
func ParseAnalyticsRange(s string) AnalyticsRange {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "yearly" {
		return Range1Year
	}
	return AnalyticsRange(s)
}

func (r AnalyticsRange) months() (int, bool) {
	switch r {
	case Range1Month:
		return 1, true
	case Range3Months:
		return 3, true
	case Range6Months:
		return 6, true
	case Range1Year:
		return 12, true
	}
	return 0, false
}

type Overview struct {
	TotalSubscriptions     int     `json:"totalSubscriptions"`
	ActiveSubscriptions    int     `json:"activeSubscriptions"`
	AverageMonthlySpending float64 `json:"averageMonthlySpending"`
	TotalSpent             float64 `json:"totalSpent"`
	AverageMonthly         float64 `json:"averageMonthly"`
	AnnualProjection       float64 `json:"annualProjection"`
	CostPerDay             float64 `json:"costPerDay"`
	UpcomingRenewals       int     `json:"upcomingRenewals"`
	CategoryCount          int     `json:"categoryCount"`
}

type TrendPoint struct {
	Month string  `json:"month"`
	Year  int     `json:"year"`
	Total float64 `json:"total"`
}

// Slice is a named value in a pie or bar chart.
type Slice struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type TopItem struct {
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
}

type Projection struct {
	AnnualProjection  float64 `json:"annualProjection"`
	MonthlyProjection float64 `json:"monthlyProjection"`
	Trend             string  `json:"trend"`
}

type Comparison struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Amount       float64      `json:"amount"`
	BillingCycle BillingCycle `json:"billingCycle"`
	Category     string       `json:"category"`
}

// Round2 rounds half away from zero to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// MonthlyCost normalizes a charge to a per-month figure.
func MonthlyCost(s Subscription) float64 {
	switch strings.ToLower(string(s.BillingCycle)) {
	case "annual", "yearly":
		return s.Amount / 12
	case "semi-annual":
		return s.Amount / 6
	case "quarterly":
		return s.Amount / 3
	case "weekly":
		return s.Amount * 4
	default:
		return s.Amount
	}
}

// FilterByRange keeps subscriptions whose start date falls within the range ending today.
func FilterByRange(subs []Subscription, r AnalyticsRange, now time.Time) []Subscription {
	months, ok := r.months()
	if !ok {
		return subs
	}
	today := DateOf(now).Time
	from := today.AddDate(0, -months, 0)
	out := make([]Subscription, 0, len(subs))
	for _, s := range subs {
		if s.StartDate.IsZero() {
			continue
		}
		start := DateOf(s.StartDate.Time).Time
		if start.Before(from) || start.After(today) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// UpcomingWithin returns subscriptions whose next renewal day is in [today, today+days).
func UpcomingWithin(subs []Subscription, now time.Time, days int) []Subscription {
	var out []Subscription
	for _, s := range subs {
		if s.NextRenewalDate.IsZero() {
			continue
		}
		d := DaysUntil(now, s.NextRenewalDate.Time)
		if d >= 0 && d < days {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NextRenewalDate.Before(out[j].NextRenewalDate.Time)
	})
	return out
}

func categoryOf(s Subscription) string {
	if s.Category == "" {
		return "Uncategorized"
	}
	return s.Category
}

// ComputeOverview aggregates the headline figures; upcoming counts renewals in the next 30 days
// over the unfiltered list.
func ComputeOverview(all []Subscription, r AnalyticsRange, now time.Time) Overview {
	subs := FilterByRange(all, r, now)
	monthly := 0.0
	active := 0
	categories := map[string]struct{}{}
	for _, s := range subs {
		monthly += MonthlyCost(s)
		if !s.IsCancelled() {
			active++
		}
		categories[categoryOf(s)] = struct{}{}
	}
	return Overview{
		TotalSubscriptions:     len(subs),
		ActiveSubscriptions:    active,
		AverageMonthlySpending: Round2(monthly),
		TotalSpent:             Round2(monthly),
		AverageMonthly:         Round2(monthly),
		AnnualProjection:       Round2(monthly * 12),
		CostPerDay:             Round2(monthly / 30),
		UpcomingRenewals:       len(UpcomingWithin(all, now, 30)),
		CategoryCount:          len(categories),
	}
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// ComputeTrend sums amounts by start month over the trailing window. The default is six months;
// "all" reaches back to the earliest start date and never shows fewer than twelve.
func ComputeTrend(all []Subscription, r AnalyticsRange, now time.Time) []TrendPoint {
	subs := FilterByRange(all, r, now)
	nowIdx := monthIndex(now)
	monthsToShow := 6
	startIdx := nowIdx - (monthsToShow - 1)
	if m, ok := r.months(); ok {
		monthsToShow = m
		startIdx = monthIndex(now.AddDate(0, -m, 0))
	} else if r == RangeAll {
		earliest := now.AddDate(-1, 0, 0)
		found := false
		for _, s := range subs {
			if s.StartDate.IsZero() {
				continue
			}
			if !found || s.StartDate.Before(earliest) {
				earliest = s.StartDate.Time
				found = true
			}
		}
		span := nowIdx - monthIndex(earliest)
		if now.Day() < earliest.Day() {
			span--
		}
		monthsToShow = span + 1
		if monthsToShow < 12 {
			monthsToShow = 12
		}
		startIdx = monthIndex(earliest)
	}

	totals := map[int]float64{}
	for _, s := range subs {
		if s.StartDate.IsZero() {
			continue
		}
		totals[monthIndex(s.StartDate.Time)] += s.Amount
	}

	points := make([]TrendPoint, 0, monthsToShow)
	for i := monthsToShow - 1; i >= 0; i-- {
		idx := nowIdx - i
		if idx < startIdx {
			continue
		}
		month := time.Month(idx%12 + 1)
		points = append(points, TrendPoint{
			Month: month.String()[:3],
			Year:  idx / 12,
			Total: Round2(totals[idx]),
		})
	}
	return points
}

// ComputeCategoryBreakdown sums raw amounts per category, largest first.
func ComputeCategoryBreakdown(all []Subscription, r AnalyticsRange, now time.Time) []Slice {
	totals := map[string]float64{}
	for _, s := range FilterByRange(all, r, now) {
		totals[categoryOf(s)] += s.Amount
	}
	return slicesFrom(totals)
}

// ComputeBillingCycles counts subscriptions per cycle.
func ComputeBillingCycles(all []Subscription, r AnalyticsRange, now time.Time) []Slice {
	counts := map[string]float64{}
	for _, s := range FilterByRange(all, r, now) {
		cycle := string(s.BillingCycle)
		if cycle == "" {
			cycle = string(CycleMonthly)
		}
		counts[cycle]++
	}
	return slicesFrom(counts)
}

func slicesFrom(m map[string]float64) []Slice {
	out := make([]Slice, 0, len(m))
	for name, v := range m {
		out = append(out, Slice{Name: name, Value: Round2(v)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TopLimit caps the top-subscriptions list.
const TopLimit = 5

// ComputeTop returns the most expensive subscriptions by raw amount.
func ComputeTop(all []Subscription, r AnalyticsRange, now time.Time) []TopItem {
	subs := append([]Subscription(nil), FilterByRange(all, r, now)...)
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].Amount > subs[j].Amount })
	if len(subs) > TopLimit {
		subs = subs[:TopLimit]
	}
	out := make([]TopItem, 0, len(subs))
	for _, s := range subs {
		out = append(out, TopItem{Name: s.Name, Amount: Round2(s.Amount), Category: s.Category})
	}
	return out
}

// ComputeProjection extrapolates from the unfiltered overview.
func ComputeProjection(all []Subscription, now time.Time) Projection {
	annual := ComputeOverview(all, "", now).AnnualProjection
	monthly := annual / 12
	trend := "flat"
	if monthly > 0 {
		trend = "increasing"
	}
	return Projection{AnnualProjection: Round2(annual), MonthlyProjection: Round2(monthly), Trend: trend}
}

// ComputeInsights produces the short textual observations shown under the charts.
func ComputeInsights(all []Subscription, now time.Time) []string {
	if len(all) == 0 {
		return []string{"Add your first subscription to unlock analytics."}
	}
	total := 0.0
	for _, s := range all {
		total += s.Amount
	}
	insights := []string{
		"You currently manage " + strconv.Itoa(len(all)) + " subscriptions.",
		"Average subscription cost is " + strconv.FormatFloat(Round2(total/float64(len(all))), 'f', -1, 64),
	}
	if soon := len(UpcomingWithin(all, now, 7)); soon > 0 {
		insights = append(insights, strconv.Itoa(soon)+" renewals due in the next week.")
	}
	return insights
}

// ComputeComparison returns the requested subscriptions in request order, skipping unknown ids.
func ComputeComparison(all []Subscription, ids []string) []Comparison {
	byID := make(map[string]Subscription, len(all))
	for _, s := range all {
		byID[s.ID] = s
	}
	out := make([]Comparison, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, Comparison{
			ID:           s.ID,
			Name:         s.Name,
			Amount:       Round2(s.Amount),
			BillingCycle: s.BillingCycle,
			Category:     s.Category,
		})
	}
	return out
}

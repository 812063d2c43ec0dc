/**
 * @description
 * Calendar placement for the renewal calendar view. Builds a Sunday-first month grid
 * and places each subscription on the day it started and the day it next renews.
 */
package domain

import (
	"sort"
	"strings"
	"time"
)

// PlacementKind tells whether a calendar entry marks a start or a renewal.
type PlacementKind string

const (
	PlacementStarted PlacementKind = "started"
	PlacementRenews  PlacementKind = "renews"
)

// CalendarEntry is a subscription placed on a specific day.
type CalendarEntry struct {
	Subscription Subscription  `json:"subscription"`
	Kind         PlacementKind `json:"kind"`
	Label        string        `json:"label"`
}

// CalendarDay is one cell of the month grid.
type CalendarDay struct {
	Date         Date            `json:"date"`
	Day          int             `json:"day"`
	InMonth      bool            `json:"inMonth"`
	Today        bool            `json:"today"`
	Selected     bool            `json:"selected"`
	Entries      []CalendarEntry `json:"entries"`
	MonthlyTotal float64         `json:"total"`
}

// CalendarFilter narrows which subscriptions are placed. Category must match exactly.
type CalendarFilter struct {
	Category string `json:"category"`
	Search   string `json:"search"`
}

// Apply returns the subscriptions that pass the filter.
func (f CalendarFilter) Apply(subs []Subscription) []Subscription {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]Subscription, 0, len(subs))
	for _, s := range subs {
		if f.Category != "" && s.Category != f.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(s.Name), search) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// UniqueCategories lists the distinct non-empty categories, sorted.
func UniqueCategories(subs []Subscription) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range subs {
		if s.Category == "" {
			continue
		}
		if _, ok := seen[s.Category]; ok {
			continue
		}
		seen[s.Category] = struct{}{}
		out = append(out, s.Category)
	}
	sort.Strings(out)
	return out
}

// EntriesForDay returns the placements that land on day.
func EntriesForDay(subs []Subscription, day time.Time) []CalendarEntry {
	var entries []CalendarEntry
	for _, s := range subs {
		if !s.StartDate.IsZero() && SameDay(s.StartDate.Time, day) {
			entries = append(entries, CalendarEntry{Subscription: s, Kind: PlacementStarted, Label: "Started"})
		}
		if !s.NextRenewalDate.IsZero() && SameDay(s.NextRenewalDate.Time, day) {
			entries = append(entries, CalendarEntry{Subscription: s, Kind: PlacementRenews, Label: "Renews"})
		}
	}
	return entries
}

// MonthGrid builds whole weeks covering month, starting on Sunday.
// Days outside the month are included and flagged.
func MonthGrid(month, today, selected time.Time, subs []Subscription) [][]CalendarDay {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	gridStart := first.AddDate(0, 0, -int(first.Weekday()))
	gridEnd := last.AddDate(0, 0, int(time.Saturday-last.Weekday()))

	var weeks [][]CalendarDay
	var week []CalendarDay
	for d := gridStart; !d.After(gridEnd); d = d.AddDate(0, 0, 1) {
		entries := EntriesForDay(subs, d)
		total := 0.0
		for _, e := range entries {
			if e.Kind == PlacementRenews {
				total += e.Subscription.Amount
			}
		}
		week = append(week, CalendarDay{
			Date:         Date{Time: d},
			Day:          d.Day(),
			InMonth:      d.Month() == first.Month(),
			Today:        SameDay(d, today),
			Selected:     !selected.IsZero() && SameDay(d, selected),
			Entries:      entries,
			MonthlyTotal: Round2(total),
		})
		if len(week) == 7 {
			weeks = append(weeks, week)
			week = nil
		}
	}
	return weeks
}

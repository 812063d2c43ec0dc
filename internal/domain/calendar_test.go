package domain

import (
	"testing"
	"time"
)

func TestCalendarFilter_CategoryIsExactAndCaseSensitive(t *testing.T) {
	subs := []Subscription{
		{ID: "1", Name: "Netflix", Category: "Streaming"},
		{ID: "2", Name: "Hulu", Category: "streaming"},
		{ID: "3", Name: "Spotify", Category: "Music"},
		{ID: "4", Name: "Streaming Box", Category: "Streaming Plus"},
	}

	got := CalendarFilter{Category: "Streaming"}.Apply(subs)
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("expected only the exact Streaming match, got %+v", got)
	}

	if n := len(CalendarFilter{}.Apply(subs)); n != 4 {
		t.Fatalf("expected empty category to keep all, got %d", n)
	}
}

func TestCalendarFilter_SearchIsCaseInsensitive(t *testing.T) {
	subs := []Subscription{
		{ID: "1", Name: "Netflix Premium", Category: "Streaming"},
		{ID: "2", Name: "Spotify", Category: "Music"},
	}
	got := CalendarFilter{Search: "NETFLIX"}.Apply(subs)
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("expected case-insensitive name match, got %+v", got)
	}
}

func TestUniqueCategories(t *testing.T) {
	subs := []Subscription{{Category: "Music"}, {Category: "Streaming"}, {Category: "Music"}, {Category: ""}}
	got := UniqueCategories(subs)
	if len(got) != 2 || got[0] != "Music" || got[1] != "Streaming" {
		t.Fatalf("unexpected categories %v", got)
	}
}

func TestMonthGrid_SundayFirstWithPlacements(t *testing.T) {
	subs := []Subscription{
		{ID: "n", Name: "Netflix", Amount: 15.99, StartDate: NewDate(2024, 1, 1), NextRenewalDate: NewDate(2024, 2, 1)},
		{ID: "s", Name: "Spotify", Amount: 9.99, StartDate: NewDate(2024, 2, 14), NextRenewalDate: NewDate(2024, 3, 14)},
	}
	today := time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC)
	weeks := MonthGrid(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), today, time.Time{}, subs)

	if len(weeks) != 5 {
		t.Fatalf("expected 5 weeks for February 2024, got %d", len(weeks))
	}
	first := weeks[0][0]
	if first.Date.Weekday() != time.Sunday || first.Day != 28 || first.InMonth {
		t.Fatalf("expected grid to open on Sunday Jan 28 outside the month, got %+v", first)
	}
	last := weeks[4][6]
	if last.Day != 2 || last.InMonth {
		t.Fatalf("expected grid to close on Saturday Mar 2, got %+v", last)
	}

	feb1 := weeks[0][4]
	if feb1.Day != 1 || len(feb1.Entries) != 1 || feb1.Entries[0].Kind != PlacementRenews {
		t.Fatalf("expected Netflix renewal on Feb 1, got %+v", feb1)
	}
	if feb1.MonthlyTotal != 15.99 {
		t.Fatalf("expected renewal total 15.99, got %v", feb1.MonthlyTotal)
	}

	feb14 := weeks[2][3]
	if feb14.Day != 14 || len(feb14.Entries) != 1 || feb14.Entries[0].Label != "Started" {
		t.Fatalf("expected Spotify start on Feb 14, got %+v", feb14)
	}

	feb10 := weeks[1][6]
	if !feb10.Today {
		t.Fatalf("expected Feb 10 to be flagged today, got %+v", feb10)
	}
}

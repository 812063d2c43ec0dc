package domain

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts lists every timestamp shape the backend is known to emit, most precise first.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// wireLayout matches the backend's LocalDateTime representation.
const wireLayout = "2006-01-02T15:04:05"

// Date is a timestamp that tolerates the backend's inconsistent date encodings.
type Date struct {
	time.Time
}

// NewDate returns midnight UTC of the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses any of the supported layouts.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, fmt.Errorf("unrecognized date %q", s)
}

// UnmarshalJSON accepts RFC 3339, LocalDateTime and plain date strings; null and "" give a zero Date.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON writes the LocalDateTime layout the backend expects.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.UTC().Format(wireLayout) + `"`), nil
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DaysUntil counts whole calendar days from `from` to `to`; negative when `to` is in the past.
func DaysUntil(from, to time.Time) int {
	start := DateOf(from).Time
	end := DateOf(to).Time
	return int(end.Sub(start).Hours() / 24)
}

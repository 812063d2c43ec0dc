package domain

import (
	"testing"
	"time"
)

func TestFilterNotifications(t *testing.T) {
	list := []Notification{
		{ID: "1", Read: false},
		{ID: "2", Read: true},
		{ID: "3", Read: false},
	}
	cases := []struct {
		filter NotificationFilter
		want   []string
	}{
		{FilterAll, []string{"1", "2", "3"}},
		{FilterUnread, []string{"1", "3"}},
		{FilterRead, []string{"2"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.filter), func(t *testing.T) {
			got := FilterNotifications(list, tc.filter)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d entries, got %d", len(tc.want), len(got))
			}
			for i, id := range tc.want {
				if got[i].ID != id {
					t.Fatalf("expected id %s at %d, got %s", id, i, got[i].ID)
				}
			}
		})
	}
	if UnreadCount(list) != 2 {
		t.Fatalf("expected 2 unread, got %d", UnreadCount(list))
	}
	if ParseNotificationFilter("bogus") != FilterAll {
		t.Fatal("expected unknown filter to fall back to all")
	}
}

func TestRenewalAlerts_WithinTwoDays(t *testing.T) {
	now := time.Date(2024, 1, 30, 12, 0, 0, 0, time.UTC)
	subs := []Subscription{
		{ID: "netflix", Name: "Netflix", NextRenewalDate: NewDate(2024, 2, 1)},
		{ID: "gym", Name: "Gym", NextRenewalDate: NewDate(2024, 1, 31)},
		{ID: "adobe", Name: "Adobe", NextRenewalDate: NewDate(2024, 2, 14)},
		{ID: "old", Name: "Old", NextRenewalDate: NewDate(2024, 1, 20)},
		{ID: "gone", Name: "Gone", NextRenewalDate: NewDate(2024, 1, 31), Status: StatusCancelled},
	}

	alerts := RenewalAlerts(subs, now)
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}
	if alerts[0].ID != "urgent-netflix" || alerts[0].Message != "Netflix renews in 2 days" {
		t.Fatalf("unexpected first alert %+v", alerts[0])
	}
	if alerts[1].ID != "urgent-gym" || alerts[1].Message != "Gym renews in 1 day" {
		t.Fatalf("unexpected second alert %+v", alerts[1])
	}
	if alerts[0].Type != NotificationUrgent || alerts[0].Title != "Subscription Renewal Due Soon" {
		t.Fatalf("unexpected alert type/title %+v", alerts[0])
	}
}

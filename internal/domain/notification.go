/**
 * @description
 * Notification model and the pure derivations over a notification list:
 * read filtering, unread counting and the "renewal due soon" alerts that the
 * dashboard synthesizes from subscriptions.
 */
package domain

import (
	"fmt"
	"math"
	"time"
)

// NotificationType classifies a notification for display.
type NotificationType string

const (
	NotificationUrgent   NotificationType = "urgent"
	NotificationReminder NotificationType = "reminder"
	NotificationSuccess  NotificationType = "success"
	NotificationInfo     NotificationType = "info"
)

// Notification is a single entry in the notification panel.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt Date             `json:"createdAt"`
}

// NotificationFilter selects which notifications the panel shows.
type NotificationFilter string

const (
	FilterAll    NotificationFilter = "all"
	FilterUnread NotificationFilter = "unread"
	FilterRead   NotificationFilter = "read"
)

// ParseNotificationFilter maps unknown or empty input to FilterAll.
func ParseNotificationFilter(s string) NotificationFilter {
	switch NotificationFilter(s) {
	case FilterUnread:
		return FilterUnread
	case FilterRead:
		return FilterRead
	default:
		return FilterAll
	}
}

// FilterNotifications returns a new slice containing the entries that pass f.
func FilterNotifications(list []Notification, f NotificationFilter) []Notification {
	out := make([]Notification, 0, len(list))
	for _, n := range list {
		switch f {
		case FilterUnread:
			if n.Read {
				continue
			}
		case FilterRead:
			if !n.Read {
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

// UnreadCount counts entries with read=false.
func UnreadCount(list []Notification) int {
	count := 0
	for _, n := range list {
		if !n.Read {
			count++
		}
	}
	return count
}

// UrgentWindowDays is the renewal horizon for synthesized urgent alerts.
const UrgentWindowDays = 2

// UrgentNotificationID is the stable id of a synthesized alert, so repeated syntheses dedupe.
func UrgentNotificationID(subscriptionID string) string {
	return "urgent-" + subscriptionID
}

// RenewalAlerts builds urgent notifications for subscriptions renewing in 0..2 days.
// Days are rounded up, so a renewal later today counts as one day away.
func RenewalAlerts(subs []Subscription, now time.Time) []Notification {
	var alerts []Notification
	for _, sub := range subs {
		if sub.NextRenewalDate.IsZero() || sub.IsCancelled() {
			continue
		}
		days := int(math.Ceil(sub.NextRenewalDate.Sub(now).Hours() / 24))
		if days < 0 || days > UrgentWindowDays {
			continue
		}
		alerts = append(alerts, Notification{
			ID:        UrgentNotificationID(sub.ID),
			Type:      NotificationUrgent,
			Title:     "Subscription Renewal Due Soon",
			Message:   fmt.Sprintf("%s renews in %d %s", sub.Name, days, pluralDays(days)),
			CreatedAt: Date{Time: now},
		})
	}
	return alerts
}

func pluralDays(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}

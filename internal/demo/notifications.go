package demo

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/subsentry/dashboard-service/internal/domain"
)

var testNotifications = map[domain.NotificationType]domain.Notification{
	domain.NotificationUrgent:   {Title: "Test Urgent Alert", Message: "This is an urgent test notification"},
	domain.NotificationReminder: {Title: "Test Reminder", Message: "This is a reminder test notification"},
	domain.NotificationSuccess:  {Title: "Test Success", Message: "This is a success test notification"},
	domain.NotificationInfo:     {Title: "Test Info", Message: "This is an info test notification"},
}

func (b *Backend) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := append([]domain.Notification{}, b.data.Notifications...)
	b.mu.Unlock()
	respondWithData(w, http.StatusOK, out)
}

// handleMarkRead succeeds for an already read notification.
func (b *Backend) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.data.Notifications {
		if b.data.Notifications[i].ID == id {
			b.data.Notifications[i].Read = true
			respondWithSuccess(w)
			return
		}
	}
	respondWithError(w, http.StatusNotFound, "Notification not found")
}

func (b *Backend) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	for i := range b.data.Notifications {
		b.data.Notifications[i].Read = true
	}
	b.mu.Unlock()
	respondWithSuccess(w)
}

func (b *Backend) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, n := range b.data.Notifications {
		if n.ID == id {
			b.data.Notifications = append(b.data.Notifications[:i], b.data.Notifications[i+1:]...)
			respondWithSuccess(w)
			return
		}
	}
	respondWithError(w, http.StatusNotFound, "Notification not found")
}

func (b *Backend) handleGetNotificationPreferences(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	prefs := b.data.Preferences
	b.mu.Unlock()
	respondWithData(w, http.StatusOK, prefs)
}

func (b *Backend) handleUpdateNotificationPreferences(w http.ResponseWriter, r *http.Request) {
	var in domain.NotificationPreferences
	if err := decodeBody(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.ReminderDays < 0 {
		respondWithError(w, http.StatusBadRequest, "Reminder days must not be negative")
		return
	}
	b.mu.Lock()
	b.data.Preferences = in
	b.data.User.NotificationPreferences = &in
	b.mu.Unlock()
	respondWithData(w, http.StatusOK, in)
}

func (b *Backend) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Type domain.NotificationType `json:"type"`
	}
	if err := decodeBody(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	n, ok := testNotifications[in.Type]
	if !ok {
		in.Type = domain.NotificationInfo
		n = testNotifications[in.Type]
	}
	n.ID = "notif-" + uuid.NewString()
	n.Type = in.Type
	n.CreatedAt = domain.Date{Time: b.now()}

	b.mu.Lock()
	b.data.Notifications = append([]domain.Notification{n}, b.data.Notifications...)
	b.mu.Unlock()
	respondWithData(w, http.StatusCreated, n)
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/subsentry/dashboard-service/internal/domain"
	"github.com/subsentry/dashboard-service/internal/query"
	"github.com/subsentry/dashboard-service/pkg/subsentryclient"
)

// ErrNoWizard is returned when a wizard operation runs with no wizard open.
var ErrNoWizard = errors.New("no report wizard is open")

// mutate runs fn for the signed-in user, then publishes topic so mounted views refetch.
// Validation failures are returned for inline display without a toast.
func (w *Workspace) mutate(ctx context.Context, topic query.Topic, success, failure string, fn func(userID string) error) error {
	w.Touch()
	userID, err := w.requireUser()
	if err != nil {
		w.Toasts.Error(err.Error())
		return err
	}
	if err := fn(userID); err != nil {
		w.failure(err, failure)
		return err
	}
	w.publish(ctx, topic)
	if success != "" {
		w.Toasts.Success(success)
	}
	return nil
}

func (w *Workspace) failure(err error, fallback string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
	case errors.Is(err, subsentryclient.ErrUnauthorized):
		// ForceLogout already told the user.
	case errors.Is(err, domain.ErrMissingUserID):
		w.Toasts.Error(err.Error())
	case fallback == "":
		// The store toasted already.
	default:
		w.logger.Warn("mutation failed", "error", err)
		w.Toasts.Error(subsentryclient.MessageOr(err, fallback))
	}
}

func (w *Workspace) CreateSubscription(ctx context.Context, in domain.SubscriptionInput) (*domain.Subscription, error) {
	var created *domain.Subscription
	err := w.mutate(ctx, query.TopicSubscriptionsChanged, "Subscription added successfully!", "Failed to save subscription",
		func(userID string) error {
			if err := in.Validate(); err != nil {
				return err
			}
			var err error
			created, err = w.client.CreateSubscription(ctx, userID, in.Normalize())
			return err
		})
	return created, err
}

func (w *Workspace) UpdateSubscription(ctx context.Context, id string, in domain.SubscriptionInput) (*domain.Subscription, error) {
	var updated *domain.Subscription
	err := w.mutate(ctx, query.TopicSubscriptionsChanged, "Subscription updated successfully!", "Failed to save subscription",
		func(userID string) error {
			if err := in.Validate(); err != nil {
				return err
			}
			var err error
			updated, err = w.client.UpdateSubscription(ctx, userID, id, in.Normalize())
			return err
		})
	return updated, err
}

func (w *Workspace) DeleteSubscription(ctx context.Context, id string) error {
	return w.mutate(ctx, query.TopicSubscriptionsChanged, "Subscription deleted successfully", "Failed to delete subscription",
		func(userID string) error { return w.client.DeleteSubscription(ctx, userID, id) })
}

func (w *Workspace) BulkUpdateSubscriptions(ctx context.Context, updates []domain.BulkUpdate) error {
	return w.mutate(ctx, query.TopicSubscriptionsChanged, "Subscriptions updated successfully", "Failed to update subscriptions",
		func(userID string) error { return w.client.BulkUpdateSubscriptions(ctx, userID, updates) })
}

func (w *Workspace) BulkDeleteSubscriptions(ctx context.Context, ids []string) error {
	return w.mutate(ctx, query.TopicSubscriptionsChanged, "Subscriptions deleted successfully", "Failed to delete subscriptions",
		func(userID string) error { return w.client.BulkDeleteSubscriptions(ctx, userID, ids) })
}

// ImportSubscriptions uploads a CSV or JSON file and returns how many rows the backend took.
func (w *Workspace) ImportSubscriptions(ctx context.Context, filename string, data []byte) (int, error) {
	var imported int
	err := w.mutate(ctx, query.TopicSubscriptionsChanged, "", "Failed to import subscriptions",
		func(userID string) error {
			var err error
			imported, err = w.client.ImportSubscriptions(ctx, userID, filename, data)
			return err
		})
	if err == nil {
		w.Toasts.Success("Imported " + strconv.Itoa(imported) + " subscriptions")
	}
	return imported, err
}

// ExportSubscriptions changes nothing, so it publishes nothing.
func (w *Workspace) ExportSubscriptions(ctx context.Context, format, category string) (*subsentryclient.Blob, error) {
	userID, err := w.requireUser()
	if err != nil {
		return nil, err
	}
	blob, err := w.client.ExportSubscriptions(ctx, userID, format, category)
	if err != nil {
		w.failure(err, "Failed to export subscriptions")
		return nil, err
	}
	return blob, nil
}

// NotificationList is the notification panel model.
type NotificationList struct {
	Filter domain.NotificationFilter `json:"filter"`
	Items  []domain.Notification     `json:"items"`
	Unread int                       `json:"unreadCount"`
}

func (w *Workspace) NotificationList(filter domain.NotificationFilter) (*NotificationList, error) {
	if _, err := w.requireUser(); err != nil {
		return nil, err
	}
	return &NotificationList{
		Filter: filter,
		Items:  w.Notifications.Filtered(filter),
		Unread: w.Notifications.UnreadCount(),
	}, nil
}

func (w *Workspace) MarkNotificationRead(ctx context.Context, id string) error {
	return w.mutate(ctx, query.TopicNotificationsChanged, "", "",
		func(string) error { return w.Notifications.MarkRead(ctx, id) })
}

func (w *Workspace) MarkAllNotificationsRead(ctx context.Context) error {
	return w.mutate(ctx, query.TopicNotificationsChanged, "", "",
		func(string) error { return w.Notifications.MarkAllRead(ctx) })
}

func (w *Workspace) DeleteNotification(ctx context.Context, id string) error {
	return w.mutate(ctx, query.TopicNotificationsChanged, "", "",
		func(string) error { return w.Notifications.Delete(ctx, id) })
}

func (w *Workspace) UpdateNotificationPreferences(ctx context.Context, prefs domain.NotificationPreferences) error {
	return w.mutate(ctx, query.TopicSettingsChanged, "Notification preferences updated", "Failed to update notification preferences",
		func(userID string) error {
			if prefs.ReminderDays < 0 {
				v := domain.NewValidationError()
				v.Add("reminderDays", "Reminder days cannot be negative")
				return v
			}
			return w.client.UpdateNotificationPreferences(ctx, userID, prefs)
		})
}

// SendTestNotification asks the backend for a sample notification and pulls it in.
func (w *Workspace) SendTestNotification(ctx context.Context, kind domain.NotificationType) error {
	return w.mutate(ctx, query.TopicNotificationsChanged, "Test notification sent", "Failed to send test notification",
		func(userID string) error {
			if err := w.client.TestNotification(ctx, userID, kind); err != nil {
				return err
			}
			return w.Notifications.Fetch(ctx)
		})
}

// OpenWizard starts the report wizard, pre-filled from a template when templateID names one.
func (w *Workspace) OpenWizard(ctx context.Context, templateID string) (*WizardView, error) {
	if _, err := w.requireUser(); err != nil {
		return nil, err
	}
	var tmpl *domain.ReportTemplate
	if templateID != "" {
		templates, _, err := query.Get(ctx, w.cache, w.key("reports/templates", nil), w.client.ReportTemplates)
		if err != nil && len(templates) == 0 {
			w.failure(err, "Failed to load report templates")
			return nil, err
		}
		for i := range templates {
			if templates[i].ID == templateID {
				tmpl = &templates[i]
				break
			}
		}
	}
	w.mu.Lock()
	w.wizard = domain.NewReportWizard(w.now(), tmpl)
	w.mu.Unlock()
	return w.wizardView(nil), nil
}

func (w *Workspace) withWizard(fn func(wz *domain.ReportWizard) error) (*WizardView, error) {
	w.mu.Lock()
	if w.wizard == nil {
		w.mu.Unlock()
		return nil, ErrNoWizard
	}
	err := fn(w.wizard)
	w.mu.Unlock()

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return w.wizardView(verr.Fields), err
	}
	if err != nil {
		return nil, err
	}
	return w.wizardView(nil), nil
}

// UpdateWizard replaces the form values without moving between steps.
func (w *Workspace) UpdateWizard(form domain.ReportForm) (*WizardView, error) {
	return w.withWizard(func(wz *domain.ReportWizard) error {
		wz.Form = form
		return nil
	})
}

// WizardNext validates only the current step's fields before advancing.
func (w *Workspace) WizardNext() (*WizardView, error) {
	return w.withWizard(func(wz *domain.ReportWizard) error { return wz.Next() })
}

func (w *Workspace) WizardPrev() (*WizardView, error) {
	return w.withWizard(func(wz *domain.ReportWizard) error { return wz.Prev() })
}

func (w *Workspace) CloseWizard() {
	w.mu.Lock()
	w.wizard = nil
	w.mu.Unlock()
}

// SubmitWizard generates the report and, when a frequency was chosen, schedules it.
// Submission from any step but the last is refused.
func (w *Workspace) SubmitWizard(ctx context.Context) (*domain.Report, error) {
	w.mu.Lock()
	if w.wizard == nil {
		w.mu.Unlock()
		return nil, ErrNoWizard
	}
	if err := w.wizard.ReadyToSubmit(); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	form := w.wizard.Form
	w.mu.Unlock()

	var report *domain.Report
	err := w.mutate(ctx, query.TopicReportsChanged, "Report generated successfully!", "Failed to generate report",
		func(userID string) error {
			now := w.now()
			var err error
			report, err = w.client.GenerateReport(ctx, userID, form.GenerateRequest(now))
			if err != nil {
				return err
			}
			if sched := form.Schedule(report.ID, now); sched != nil {
				if _, err := w.client.ScheduleReport(ctx, userID, *sched); err != nil {
					return fmt.Errorf("report %s generated but not scheduled: %w", report.ID, err)
				}
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	w.CloseWizard()
	return report, nil
}

// DownloadReport resolves the report's name and format from the list before fetching the file.
func (w *Workspace) DownloadReport(ctx context.Context, id string) (*subsentryclient.Blob, error) {
	userID, err := w.requireUser()
	if err != nil {
		return nil, err
	}
	var name string
	var format domain.ReportFormat
	reports, _, listErr := query.Get(ctx, w.cache, w.key("reports/list", nil),
		func(ctx context.Context) ([]domain.Report, error) { return w.client.ListReports(ctx, userID) })
	if listErr != nil && IsFatal(listErr) {
		return nil, listErr
	}
	for _, r := range reports {
		if r.ID == id {
			name, format = r.Name, r.Format
			break
		}
	}
	blob, err := w.client.DownloadReport(ctx, userID, id, name, format)
	if err != nil {
		w.failure(err, "Failed to download report")
		return nil, err
	}
	return blob, nil
}

func (w *Workspace) DeleteReport(ctx context.Context, id string) error {
	return w.mutate(ctx, query.TopicReportsChanged, "Report deleted successfully", "Failed to delete report",
		func(userID string) error { return w.client.DeleteReport(ctx, userID, id) })
}

func (w *Workspace) UpdateSchedule(ctx context.Context, id string, sched domain.ReportSchedule) error {
	return w.mutate(ctx, query.TopicReportsChanged, "Schedule updated successfully", "Failed to update schedule",
		func(userID string) error { return w.client.UpdateSchedule(ctx, userID, id, sched) })
}

func (w *Workspace) DeleteSchedule(ctx context.Context, id string) error {
	return w.mutate(ctx, query.TopicReportsChanged, "Scheduled report deleted", "Failed to delete scheduled report",
		func(userID string) error { return w.client.DeleteSchedule(ctx, userID, id) })
}

func (w *Workspace) UpdateSettings(ctx context.Context, s domain.Settings) error {
	return w.mutate(ctx, query.TopicSettingsChanged, "Settings saved successfully", "Failed to save settings",
		func(userID string) error { return w.client.UpdateSettings(ctx, userID, s) })
}

func (w *Workspace) AddCategory(ctx context.Context, cat domain.Category) (*domain.Category, error) {
	var created *domain.Category
	err := w.mutate(ctx, query.TopicSettingsChanged, "Category added", "Failed to add category",
		func(userID string) error {
			if cat.Name == "" {
				v := domain.NewValidationError()
				v.Add("name", "Category name is required")
				return v
			}
			var err error
			created, err = w.client.AddCategory(ctx, userID, cat)
			return err
		})
	return created, err
}

func (w *Workspace) UpdateCategory(ctx context.Context, id string, cat domain.Category) error {
	return w.mutate(ctx, query.TopicSettingsChanged, "Category updated", "Failed to update category",
		func(userID string) error { return w.client.UpdateCategory(ctx, userID, id, cat) })
}

func (w *Workspace) DeleteCategory(ctx context.Context, id string) error {
	return w.mutate(ctx, query.TopicSettingsChanged, "Category deleted", "Failed to delete category",
		func(userID string) error { return w.client.DeleteCategory(ctx, userID, id) })
}

func (w *Workspace) UpdateCurrency(ctx context.Context, currency string) error {
	return w.mutate(ctx, query.TopicSettingsChanged, "Currency updated", "Failed to update currency",
		func(userID string) error { return w.client.UpdateCurrency(ctx, userID, currency) })
}

// UpdateProfile goes through the auth store so the cached user follows, then refreshes
// the views that show profile fields.
func (w *Workspace) UpdateProfile(ctx context.Context, profile domain.User) Result {
	if _, err := w.requireUser(); err != nil {
		w.Toasts.Error(err.Error())
		return Result{Error: err.Error()}
	}
	res := w.Auth.UpdateProfile(ctx, profile)
	if res.Success {
		w.publish(ctx, query.TopicSettingsChanged)
	}
	return res
}

// ToggleTheme flips the theme. A persistence failure keeps the new theme for this session.
func (w *Workspace) ToggleTheme(ctx context.Context) domain.Theme {
	theme, err := w.Theme.Toggle(ctx)
	if err != nil {
		w.logger.Warn("failed to persist theme", "error", err)
	}
	return theme
}

package demo

import (
	"fmt"
	"time"

	"github.com/subsentry/dashboard-service/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// Demo account credentials. Token is the fixed bearer installed by demo setup.
// UserID is the account id of a Backend built without WithUserID.
const (
	Email    = "test@subsentry.com"
	Password = "password123"
	UserName = "Test User"
	UserID   = "test-user-123"
	Token    = "demo-token-12345"
)

// Dataset is the full state served by the demo backend.
type Dataset struct {
	User          domain.User
	PasswordHash  []byte
	Subscriptions []domain.Subscription
	Notifications []domain.Notification
	Reports       []domain.Report
	Schedules     []domain.ReportSchedule
	Categories    []domain.Category
	Settings      domain.Settings
	Preferences   domain.NotificationPreferences
}

type seedSubscription struct {
	name          string
	amount        float64
	category      string
	start         domain.Date
	renewsInDays  int
	notes         string
	paymentMethod string
	portal        string
}

var seedSubscriptions = []seedSubscription{
	{"Netflix Premium", 15.99, "Streaming", domain.NewDate(2024, 1, 1), 5, "Premium plan with 4K streaming", "Credit Card ending in 1234", "https://netflix.com/account"},
	{"Spotify Premium", 9.99, "Music", domain.NewDate(2024, 1, 15), 2, "Student discount", "PayPal", "https://spotify.com/account"},
	{"Adobe Creative Cloud", 52.99, "Software", domain.NewDate(2024, 2, 1), 15, "All apps plan", "Credit Card ending in 5678", "https://adobe.com/account"},
	{"Gym Membership", 29.99, "Gym/Fitness", domain.NewDate(2024, 1, 1), 1, "Premium membership", "Bank Transfer", "https://gym.com/account"},
	{"Microsoft 365", 6.99, "Software", domain.NewDate(2024, 1, 1), 7, "Personal plan", "Credit Card ending in 9012", "https://microsoft.com/account"},
	{"Dropbox Pro", 9.99, "Cloud Services", domain.NewDate(2024, 1, 1), 10, "2TB storage plan", "Credit Card ending in 3456", "https://dropbox.com/account"},
}

// Seed builds the demo dataset owned by userID with renewal dates relative to now.
func Seed(now time.Time, userID string) (*Dataset, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash demo password: %w", err)
	}
	today := domain.DateOf(now)

	ds := &Dataset{
		User: domain.User{
			ID:              userID,
			Name:            UserName,
			Email:           Email,
			DefaultCurrency: "USD",
			Timezone:        "UTC",
			DateFormat:      "MM/DD/YYYY",
		},
		PasswordHash: hash,
		Settings: domain.Settings{
			Name:                 UserName,
			DefaultCurrency:      "USD",
			Timezone:             "UTC",
			DateFormat:           "MM/DD/YYYY",
			EmailNotifications:   true,
			BrowserNotifications: true,
			RenewalReminders:     true,
		},
		Preferences: domain.NotificationPreferences{Email: true, Push: true, ReminderDays: 3},
		Reports: []domain.Report{
			{ID: "demo-report-1", Name: "Monthly Summary Report", Type: domain.ReportSummary, Format: domain.FormatPDF, Status: "completed", GeneratedAt: domain.Date{Time: now.Add(-48 * time.Hour)}},
			{ID: "demo-report-2", Name: "Category Breakdown Report", Type: domain.ReportCategory, Format: domain.FormatExcel, Status: "completed", GeneratedAt: domain.Date{Time: now.Add(-7 * 24 * time.Hour)}},
		},
		Schedules: []domain.ReportSchedule{},
	}

	for i, s := range seedSubscriptions {
		ds.Subscriptions = append(ds.Subscriptions, domain.Subscription{
			ID:              fmt.Sprintf("demo-sub-%d", i+1),
			UserID:          userID,
			Name:            s.name,
			Amount:          s.amount,
			Currency:        "USD",
			Category:        s.category,
			BillingCycle:    domain.CycleMonthly,
			StartDate:       s.start,
			NextRenewalDate: domain.Date{Time: today.AddDate(0, 0, s.renewsInDays)},
			AutoRenewal:     true,
			Notes:           s.notes,
			PaymentMethod:   s.paymentMethod,
			PortalLink:      s.portal,
			Status:          domain.StatusActive,
			CreatedAt:       domain.Date{Time: now},
			UpdatedAt:       domain.Date{Time: now},
		})
	}

	ds.Notifications = []domain.Notification{
		{ID: "demo-notif-1", Type: domain.NotificationUrgent, Title: "Subscription Renewal Due Soon", Message: "Gym Membership renews in 1 day", CreatedAt: domain.Date{Time: now.Add(-2 * time.Hour)}},
		{ID: "demo-notif-2", Type: domain.NotificationReminder, Title: "Subscription Renewal Due Soon", Message: "Spotify Premium renews in 2 days", CreatedAt: domain.Date{Time: now.Add(-time.Hour)}},
		{ID: "demo-notif-3", Type: domain.NotificationSuccess, Title: "Subscription Added", Message: "Dropbox Pro has been added to your subscriptions", Read: true, CreatedAt: domain.Date{Time: now.Add(-24 * time.Hour)}},
	}

	for i, name := range domain.DefaultCategories {
		ds.Categories = append(ds.Categories, domain.Category{ID: fmt.Sprintf("demo-cat-%d", i+1), Name: name})
	}
	return ds, nil
}

// Templates are the quick report presets.
var Templates = []domain.ReportTemplate{
	{ID: "template-monthly", Title: "Monthly Summary", Description: "Overview of all subscriptions and spending for the current month", Type: domain.ReportSummary},
	{ID: "template-category", Title: "Category Breakdown", Description: "Detailed analysis by subscription category", Type: domain.ReportCategory},
	{ID: "template-annual", Title: "Annual Projection", Description: "Projected costs and trends for the next 12 months", Type: domain.ReportTrend},
}

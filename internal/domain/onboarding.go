package domain

import (
	"errors"
	"time"
)

// OnboardingStep describes one page of the first-run wizard.
type OnboardingStep struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// OnboardingSteps is the fixed wizard sequence.
var OnboardingSteps = []OnboardingStep{
	{Key: "welcome", Title: "Welcome to SubSentry!", Description: "Let's set up your account with some quick preferences."},
	{Key: "goals", Title: "What are your goals?", Description: "Select what you want to achieve with SubSentry."},
	{Key: "notifications", Title: "Enable Notifications", Description: "Stay informed about your subscription renewals and important updates."},
	{Key: "done", Title: "You're all set!", Description: "Your SubSentry account is ready to help you manage your subscriptions."},
}

const onboardingGoalsStep = 1

// OnboardingGoal is a selectable goal on the goals step.
type OnboardingGoal struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

var OnboardingGoals = []OnboardingGoal{
	{ID: "track-spending", Title: "Track Spending"},
	{ID: "save-money", Title: "Save Money"},
	{ID: "avoid-overpaying", Title: "Avoid Overpaying"},
	{ID: "organize-subscriptions", Title: "Stay Organized"},
	{ID: "get-insights", Title: "Get Insights"},
	{ID: "generate-reports", Title: "Generate Reports"},
}

var (
	ErrSelectGoal    = errors.New("select at least one goal to continue")
	ErrUnknownGoal   = errors.New("unknown onboarding goal")
	ErrNotFinalStep  = errors.New("onboarding is not on its final step")
	ErrOnboardingEnd = errors.New("no such onboarding step")
)

// Onboarding holds the local-only wizard selection. It is discarded on completion.
type Onboarding struct {
	Step  int      `json:"step"`
	Goals []string `json:"goals"`
}

func NewOnboarding() *Onboarding {
	return &Onboarding{Goals: []string{}}
}

// CanProceed reports whether Next would succeed.
func (o *Onboarding) CanProceed() bool {
	if o.Step == onboardingGoalsStep {
		return len(o.Goals) > 0
	}
	return o.Step < len(OnboardingSteps)-1
}

func (o *Onboarding) Next() error {
	if o.Step >= len(OnboardingSteps)-1 {
		return ErrOnboardingEnd
	}
	if o.Step == onboardingGoalsStep && len(o.Goals) == 0 {
		return ErrSelectGoal
	}
	o.Step++
	return nil
}

func (o *Onboarding) Prev() error {
	if o.Step == 0 {
		return ErrOnboardingEnd
	}
	o.Step--
	return nil
}

// ToggleGoal adds or removes goal from the selection.
func (o *Onboarding) ToggleGoal(goal string) error {
	known := false
	for _, g := range OnboardingGoals {
		if g.ID == goal {
			known = true
			break
		}
	}
	if !known {
		return ErrUnknownGoal
	}
	for i, g := range o.Goals {
		if g == goal {
			o.Goals = append(o.Goals[:i], o.Goals[i+1:]...)
			return nil
		}
	}
	o.Goals = append(o.Goals, goal)
	return nil
}

// Complete requires the final step and resets the selection.
func (o *Onboarding) Complete() error {
	if o.Step != len(OnboardingSteps)-1 {
		return ErrNotFinalStep
	}
	o.Step = 0
	o.Goals = []string{}
	return nil
}

// EnabledNotification is the local confirmation added when a channel is switched on during onboarding.
func EnabledNotification(channel string, now time.Time) (Notification, bool) {
	switch channel {
	case "browser":
		return Notification{
			ID:        "notification-enabled",
			Type:      NotificationSuccess,
			Title:     "Notifications Enabled",
			Message:   "You'll now receive browser notifications for important updates.",
			CreatedAt: Date{Time: now},
		}, true
	case "email":
		return Notification{
			ID:        "email-enabled",
			Type:      NotificationSuccess,
			Title:     "Email Notifications Enabled",
			Message:   "You'll receive email notifications for subscription updates.",
			CreatedAt: Date{Time: now},
		}, true
	}
	return Notification{}, false
}

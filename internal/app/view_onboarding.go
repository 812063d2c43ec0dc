package app

import (
	"context"

	"github.com/subsentry/dashboard-service/internal/domain"
	"github.com/subsentry/dashboard-service/internal/query"
)

// OnboardingView is the first-run wizard. Its selection never leaves the workspace.
type OnboardingView struct {
	Step       int                     `json:"step"`
	Steps      []domain.OnboardingStep `json:"steps"`
	Goals      []domain.OnboardingGoal `json:"goals"`
	Selected   []string                `json:"selectedGoals"`
	CanProceed bool                    `json:"canProceed"`
	Final      bool                    `json:"final"`
}

func (w *Workspace) OnboardingView() *OnboardingView {
	w.mu.Lock()
	defer w.mu.Unlock()
	o := w.onboarding
	return &OnboardingView{
		Step:       o.Step,
		Steps:      domain.OnboardingSteps,
		Goals:      domain.OnboardingGoals,
		Selected:   append([]string{}, o.Goals...),
		CanProceed: o.CanProceed(),
		Final:      o.Step == len(domain.OnboardingSteps)-1,
	}
}

func (w *Workspace) withOnboarding(fn func(o *domain.Onboarding) error) (*OnboardingView, error) {
	w.mu.Lock()
	err := fn(w.onboarding)
	w.mu.Unlock()
	if err != nil {
		w.Toasts.Error(err.Error())
		return nil, err
	}
	return w.OnboardingView(), nil
}

// OnboardingNext advances unless the goals step has no selection.
func (w *Workspace) OnboardingNext() (*OnboardingView, error) {
	return w.withOnboarding(func(o *domain.Onboarding) error { return o.Next() })
}

func (w *Workspace) OnboardingPrev() (*OnboardingView, error) {
	return w.withOnboarding(func(o *domain.Onboarding) error { return o.Prev() })
}

func (w *Workspace) OnboardingToggleGoal(goal string) (*OnboardingView, error) {
	return w.withOnboarding(func(o *domain.Onboarding) error { return o.ToggleGoal(goal) })
}

// OnboardingComplete discards the selection and returns the wizard to its start.
func (w *Workspace) OnboardingComplete() (*OnboardingView, error) {
	view, err := w.withOnboarding(func(o *domain.Onboarding) error { return o.Complete() })
	if err != nil {
		return nil, err
	}
	w.Toasts.Success("Welcome to SubSentry! Your account is ready.")
	return view, nil
}

// EnableNotification adds the local confirmation for a channel switched on during onboarding.
func (w *Workspace) EnableNotification(ctx context.Context, channel string) (bool, error) {
	if _, err := w.requireUser(); err != nil {
		return false, err
	}
	n, ok := domain.EnabledNotification(channel, w.now())
	if !ok {
		return false, nil
	}
	added := w.Notifications.Add(n)
	if added {
		w.publish(ctx, query.TopicNotificationsChanged)
	}
	return added, nil
}

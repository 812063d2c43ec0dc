package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/subsentry/dashboard-service/internal/demo"
	"github.com/subsentry/dashboard-service/internal/domain"
	"github.com/subsentry/dashboard-service/internal/query"
	"github.com/subsentry/dashboard-service/internal/session"
	"github.com/subsentry/dashboard-service/internal/store"
	"github.com/subsentry/dashboard-service/pkg/subsentryclient"
)

var fixedNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	backend  *demo.Backend
	demo     *demo.Sandboxes
	sessions *session.MemoryStore
	prefs    *store.MemoryRepository
	registry *query.Registry
	manager  *Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := discardLogger()
	backend, err := demo.NewBackend(logger, demo.WithClock(clock))
	if err != nil {
		t.Fatalf("failed to create demo backend: %v", err)
	}
	client := subsentryclient.NewClient(demo.BaseURL,
		subsentryclient.WithHTTPClient(backend.HTTPClient()),
		subsentryclient.WithLogger(logger),
	)
	h := &harness{
		backend:  backend,
		demo:     demo.NewSandboxes(logger, time.Hour, demo.WithClock(clock)),
		sessions: session.NewMemoryStore(time.Hour),
		prefs:    store.NewMemoryRepository(),
		registry: query.NewRegistry("test", logger),
	}
	h.manager = NewManager(ManagerConfig{
		Client:       client,
		DemoClient:   subsentryclient.NewClient(demo.BaseURL, subsentryclient.WithLogger(logger)),
		Demo:         h.demo,
		Sessions:     h.sessions,
		Preferences:  h.prefs,
		Cache:        query.NewCache(time.Minute, 10*time.Minute),
		Registry:     h.registry,
		Logger:       logger,
		PollInterval: time.Hour,
		Lookahead:    7,
		Now:          clock,
	})
	t.Cleanup(h.manager.Shutdown)
	return h
}

func (h *harness) signIn(t *testing.T, sessionID string) *Workspace {
	t.Helper()
	w, err := h.manager.Open(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("failed to open workspace: %v", err)
	}
	res := w.Auth.Login(context.Background(), domain.Credentials{Email: demo.Email, Password: demo.Password})
	if !res.Success {
		t.Fatalf("expected login to succeed, got %q", res.Error)
	}
	return w
}

type countingSink struct {
	mu      sync.Mutex
	updates []ViewUpdate
}

func (s *countingSink) push(u ViewUpdate) {
	s.mu.Lock()
	s.updates = append(s.updates, u)
	s.mu.Unlock()
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func (s *countingSink) last() ViewUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates[len(s.updates)-1]
}

func TestLogin_PersistsTokenAndUser(t *testing.T) {
	h := newHarness(t)
	w := h.signIn(t, "session-1")

	rec, err := h.sessions.Get(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("expected a stored session, got %v", err)
	}
	if rec.Token == "" {
		t.Fatal("expected the token to be persisted")
	}
	if got := gjson.GetBytes(rec.User, "email").String(); got != demo.Email {
		t.Fatalf("expected stored user email %q, got %q", demo.Email, got)
	}
	if w.UserID() != demo.UserID {
		t.Fatalf("expected user id %q, got %q", demo.UserID, w.UserID())
	}

	toasts := w.Toasts.Drain()
	if len(toasts) == 0 || toasts[len(toasts)-1].Message != "Welcome back, "+demo.UserName+"!" {
		t.Fatalf("expected a welcome toast, got %+v", toasts)
	}
}

func TestOpen_RestoresWithoutCredentials(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "session-1")
	h.manager.Close("session-1")

	w, err := h.manager.Open(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("failed to reopen: %v", err)
	}
	state := w.Auth.State()
	if !state.Authenticated {
		t.Fatal("expected the stored token to restore the session")
	}
	if state.User == nil || state.User.Email != demo.Email {
		t.Fatalf("expected the user to be repopulated, got %+v", state.User)
	}
}

func TestViews_RequireSignedInUser(t *testing.T) {
	h := newHarness(t)
	w, err := h.manager.Open(context.Background(), "anonymous")
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}

	if _, err := w.Dashboard(context.Background()); !errors.Is(err, domain.ErrMissingUserID) {
		t.Fatalf("expected ErrMissingUserID from the dashboard, got %v", err)
	}
	if _, _, err := w.Mount(context.Background(), ViewCalendar, ViewParams{}, nil); !errors.Is(err, domain.ErrMissingUserID) {
		t.Fatalf("expected ErrMissingUserID from mount, got %v", err)
	}
	if err := w.DeleteSubscription(context.Background(), "demo-sub-1"); !errors.Is(err, domain.ErrMissingUserID) {
		t.Fatalf("expected ErrMissingUserID from a mutation, got %v", err)
	}
}

func TestMount_RefetchesOncePerMutation(t *testing.T) {
	h := newHarness(t)
	w := h.signIn(t, "session-1")
	ctx := context.Background()

	dashboardSink, calendarSink, reportsSink := &countingSink{}, &countingSink{}, &countingSink{}
	dashboard, initial, err := w.Mount(ctx, ViewDashboard, ViewParams{}, dashboardSink.push)
	if err != nil {
		t.Fatalf("failed to mount dashboard: %v", err)
	}
	if n := len(initial.(*DashboardView).Subscriptions); n != 6 {
		t.Fatalf("expected 6 seeded subscriptions, got %d", n)
	}
	calendar, _, err := w.Mount(ctx, ViewCalendar, ViewParams{}, calendarSink.push)
	if err != nil {
		t.Fatalf("failed to mount calendar: %v", err)
	}
	reports, _, err := w.Mount(ctx, ViewReports, ViewParams{}, reportsSink.push)
	if err != nil {
		t.Fatalf("failed to mount reports: %v", err)
	}

	_, err = w.CreateSubscription(ctx, domain.SubscriptionInput{
		Name:         "YouTube Premium",
		Amount:       11.99,
		Category:     "Streaming",
		BillingCycle: domain.CycleMonthly,
		StartDate:    domain.NewDate(2025, time.March, 1),
	})
	if err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}
	dashboard.Wait()
	calendar.Wait()
	reports.Wait()

	if dashboardSink.count() != 1 || calendarSink.count() != 1 {
		t.Fatalf("expected exactly one refetch per subscribed view, got dashboard=%d calendar=%d",
			dashboardSink.count(), calendarSink.count())
	}
	if reportsSink.count() != 0 {
		t.Fatalf("reports view does not follow subscription changes, got %d refetches", reportsSink.count())
	}
	update := dashboardSink.last()
	if update.Err != nil {
		t.Fatalf("unexpected refetch error: %v", update.Err)
	}
	if n := len(update.Data.(*DashboardView).Subscriptions); n != 7 {
		t.Fatalf("expected the refetch to see 7 subscriptions, got %d", n)
	}
}

func TestMount_FollowsSwitchToAnotherUser(t *testing.T) {
	h := newHarness(t)
	w := h.signIn(t, "session-1")
	ctx := context.Background()
	first := w.UserID()

	res := w.Auth.Signup(ctx, domain.SignupInput{Name: "Second User", Email: "second@example.com", Password: "secret123"})
	if !res.Success {
		t.Fatalf("expected signup to succeed, got %q", res.Error)
	}
	second := w.UserID()
	if second == "" || second == first {
		t.Fatalf("expected a different user after signup, got %q (was %q)", second, first)
	}
	w.mu.Lock()
	active := w.activeUser
	w.mu.Unlock()
	if active != second {
		t.Fatalf("expected the workspace to be active for %q, got %q", second, active)
	}

	sink := &countingSink{}
	dashboard, initial, err := w.Mount(ctx, ViewDashboard, ViewParams{}, sink.push)
	if err != nil {
		t.Fatalf("failed to mount dashboard: %v", err)
	}
	if n := len(initial.(*DashboardView).Subscriptions); n != 0 {
		t.Fatalf("expected the new account to start empty, got %d subscriptions", n)
	}
	_, err = w.CreateSubscription(ctx, domain.SubscriptionInput{
		Name:         "YouTube Premium",
		Amount:       11.99,
		Category:     "Streaming",
		BillingCycle: domain.CycleMonthly,
		StartDate:    domain.NewDate(2025, time.March, 1),
	})
	if err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}
	dashboard.Wait()

	if sink.count() != 1 {
		t.Fatalf("expected exactly one refetch, got %d", sink.count())
	}
	if n := len(sink.last().Data.(*DashboardView).Subscriptions); n != 1 {
		t.Fatalf("expected the refetch to show the new subscription, got %d", n)
	}
}

func TestMount_ClosedViewIgnoresChanges(t *testing.T) {
	h := newHarness(t)
	w := h.signIn(t, "session-1")
	ctx := context.Background()

	sink := &countingSink{}
	m, _, err := w.Mount(ctx, ViewAnalysis, ViewParams{DateRange: "1year"}, sink.push)
	if err != nil {
		t.Fatalf("failed to mount: %v", err)
	}
	m.Close()
	m.Close()

	if err := w.DeleteSubscription(ctx, "demo-sub-1"); err != nil {
		t.Fatalf("expected delete to succeed, got %v", err)
	}
	m.Wait()
	if sink.count() != 0 {
		t.Fatalf("expected no updates after unmount, got %d", sink.count())
	}
}

func TestCreateSubscription_ValidationFailsBeforeNetwork(t *testing.T) {
	h := newHarness(t)
	w := h.signIn(t, "session-1")
	w.Toasts.Drain()

	_, err := w.CreateSubscription(context.Background(), domain.SubscriptionInput{Name: "No amount"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	for _, field := range []string{"amount", "category", "billingCycle", "startDate"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Errorf("expected a message for %s, got %v", field, verr.Fields)
		}
	}
	if toasts := w.Toasts.Drain(); len(toasts) != 0 {
		t.Fatalf("validation errors are shown inline, got toasts %+v", toasts)
	}
}

func TestLogout_TearsDownWorkspace(t *testing.T) {
	h := newHarness(t)
	w := h.signIn(t, "session-1")
	ctx := context.Background()

	m, _, err := w.Mount(ctx, ViewDashboard, ViewParams{}, nil)
	if err != nil {
		t.Fatalf("failed to mount: %v", err)
	}
	if !w.poller.Started() {
		t.Fatal("expected the poller to start on sign-in")
	}

	w.Auth.Logout(ctx)

	if w.poller.Started() {
		t.Fatal("expected the poller to stop on sign-out")
	}
	if n := h.registry.Subscribers(query.TopicSubscriptionsChanged, demo.UserID); n != 0 {
		t.Fatalf("expected every subscription closed, got %d", n)
	}
	m.Close()
	rec, err := h.sessions.Get(ctx, "session-1")
	if err != nil {
		t.Fatalf("expected the record to remain, got %v", err)
	}
	if rec.Token != "" || len(rec.User) != 0 {
		t.Fatalf("expected token and user cleared, got %+v", rec)
	}
}

func TestReportWizard_SubmitOnlyFromFinalStep(t *testing.T) {
	h := newHarness(t)
	w := h.signIn(t, "session-1")
	ctx := context.Background()

	if _, err := w.SubmitWizard(ctx); !errors.Is(err, ErrNoWizard) {
		t.Fatalf("expected ErrNoWizard, got %v", err)
	}
	if _, err := w.OpenWizard(ctx, ""); err != nil {
		t.Fatalf("failed to open wizard: %v", err)
	}
	if _, err := w.SubmitWizard(ctx); !errors.Is(err, domain.ErrWizardNotFinal) {
		t.Fatalf("expected ErrWizardNotFinal on step 1, got %v", err)
	}

	view, err := w.WizardNext()
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || view == nil || view.Errors["name"] == "" {
		t.Fatalf("expected the name to be required on step 1, got view=%+v err=%v", view, err)
	}

	before, err := w.Reports(ctx)
	if err != nil {
		t.Fatalf("failed to load reports: %v", err)
	}

	form := view.Form
	form.Name = "March spending"
	form.ScheduleFrequency = domain.ScheduleMonthly
	form.ScheduleDay = 5
	if _, err := w.UpdateWizard(form); err != nil {
		t.Fatalf("failed to update form: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := w.WizardNext(); err != nil {
			t.Fatalf("expected step %d to validate, got %v", i+1, err)
		}
	}

	report, err := w.SubmitWizard(ctx)
	if err != nil {
		t.Fatalf("expected submit to succeed, got %v", err)
	}
	if report.Name != "March spending" {
		t.Fatalf("unexpected report %+v", report)
	}

	after, err := w.Reports(ctx)
	if err != nil {
		t.Fatalf("failed to reload reports: %v", err)
	}
	if len(after.Reports) != len(before.Reports)+1 || len(after.Scheduled) != len(before.Scheduled)+1 {
		t.Fatalf("expected one more report and schedule, got %d/%d reports and %d/%d schedules",
			len(before.Reports), len(after.Reports), len(before.Scheduled), len(after.Scheduled))
	}
	if after.Wizard != nil {
		t.Fatal("expected the wizard to close after submission")
	}
}

func TestOnboarding_GoalsGateProgress(t *testing.T) {
	h := newHarness(t)
	w := h.signIn(t, "session-1")

	if _, err := w.OnboardingNext(); err != nil {
		t.Fatalf("expected to leave the welcome step, got %v", err)
	}
	if _, err := w.OnboardingNext(); !errors.Is(err, domain.ErrSelectGoal) {
		t.Fatalf("expected ErrSelectGoal without a goal, got %v", err)
	}
	view, err := w.OnboardingToggleGoal("save-money")
	if err != nil || !view.CanProceed {
		t.Fatalf("expected a selected goal to allow progress, got view=%+v err=%v", view, err)
	}
	if _, err := w.OnboardingNext(); err != nil {
		t.Fatalf("expected to advance with a goal, got %v", err)
	}
	if _, err := w.OnboardingNext(); err != nil {
		t.Fatalf("expected to reach the final step, got %v", err)
	}
	view, err = w.OnboardingComplete()
	if err != nil {
		t.Fatalf("expected completion, got %v", err)
	}
	if view.Step != 0 || len(view.Selected) != 0 {
		t.Fatalf("expected the selection discarded, got %+v", view)
	}
}

func TestToggleTheme_PersistsPreference(t *testing.T) {
	h := newHarness(t)
	w := h.signIn(t, "session-1")

	if got := w.ToggleTheme(context.Background()); got != domain.ThemeDark {
		t.Fatalf("expected dark after one toggle, got %q", got)
	}
	prefs, err := h.prefs.GetPreferences(context.Background(), demo.UserID)
	if err != nil {
		t.Fatalf("expected stored preferences, got %v", err)
	}
	if prefs.Theme != domain.ThemeDark {
		t.Fatalf("expected dark to be stored, got %q", prefs.Theme)
	}
}

func TestDashboard_SynthesizesUrgentAlerts(t *testing.T) {
	h := newHarness(t)
	w := h.signIn(t, "session-1")

	view, err := w.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("failed to render dashboard: %v", err)
	}
	// Gym in 1 day, Spotify in 2 and Netflix in 5; Microsoft at day 7 is outside the window.
	if view.Upcoming.Total != 3 {
		t.Fatalf("expected 3 renewals within 7 days, got %d", view.Upcoming.Total)
	}
	if _, err := w.Dashboard(context.Background()); err != nil {
		t.Fatalf("failed to re-render dashboard: %v", err)
	}

	urgent := 0
	for _, n := range w.Notifications.Items() {
		if strings.HasPrefix(n.ID, "urgent-") {
			urgent++
		}
	}
	// Repeated renders must not duplicate the synthesized alerts.
	if urgent != 2 {
		t.Fatalf("expected 2 urgent alerts, got %d", urgent)
	}
}

func TestDemoSetupAndReset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	w, err := h.manager.EnableDemo(ctx, "visitor")
	if err != nil {
		t.Fatalf("expected demo setup to succeed, got %v", err)
	}
	if !w.Demo() || !w.Auth.State().Authenticated || w.UserID() == "" {
		t.Fatalf("expected a signed-in demo workspace, got demo=%v user=%q", w.Demo(), w.UserID())
	}
	rec, _ := h.sessions.Get(ctx, "visitor")
	if rec.Token != demo.Token || !rec.Demo {
		t.Fatalf("expected the demo token and flag stored, got %+v", rec)
	}

	w, err = h.manager.ResetDemo(ctx, "visitor")
	if err != nil {
		t.Fatalf("expected demo reset to succeed, got %v", err)
	}
	if w.Demo() || w.Auth.State().Authenticated {
		t.Fatal("expected reset to leave a signed-out, non-demo workspace")
	}
}

func TestDemoSandboxesAreIsolatedPerSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	countSubscriptions := func(w *Workspace) int {
		t.Helper()
		view, err := w.Dashboard(ctx)
		if err != nil {
			t.Fatalf("failed to render dashboard: %v", err)
		}
		return len(view.Subscriptions)
	}

	a, err := h.manager.EnableDemo(ctx, "visitor-a")
	if err != nil {
		t.Fatalf("expected demo setup to succeed, got %v", err)
	}
	view, err := a.Dashboard(ctx)
	if err != nil {
		t.Fatalf("failed to render dashboard: %v", err)
	}
	ids := make([]string, 0, len(view.Subscriptions))
	for _, sub := range view.Subscriptions {
		ids = append(ids, sub.ID)
	}
	if err := a.BulkDeleteSubscriptions(ctx, ids); err != nil {
		t.Fatalf("expected bulk delete to succeed, got %v", err)
	}
	if n := countSubscriptions(a); n != 0 {
		t.Fatalf("expected the first visitor to have no subscriptions left, got %d", n)
	}

	b, err := h.manager.EnableDemo(ctx, "visitor-b")
	if err != nil {
		t.Fatalf("expected demo setup to succeed, got %v", err)
	}
	if b.UserID() == a.UserID() {
		t.Fatalf("expected separate demo accounts, both are %q", a.UserID())
	}
	if n := countSubscriptions(b); n != 6 {
		t.Fatalf("expected a fresh demo session to see 6 subscriptions, got %d", n)
	}
	if h.demo.Len() != 2 {
		t.Fatalf("expected one sandbox per demo session, got %d", h.demo.Len())
	}

	a, err = h.manager.EnableDemo(ctx, "visitor-a")
	if err != nil {
		t.Fatalf("expected repeated demo setup to succeed, got %v", err)
	}
	if n := countSubscriptions(a); n != 6 {
		t.Fatalf("expected setup to reseed the sandbox, got %d subscriptions", n)
	}

	if _, err := h.manager.ResetDemo(ctx, "visitor-a"); err != nil {
		t.Fatalf("expected demo reset to succeed, got %v", err)
	}
	if h.demo.Len() != 1 {
		t.Fatalf("expected reset to drop the sandbox, got %d left", h.demo.Len())
	}
}

func TestEvictIdle_ClosesStaleWorkspaces(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "session-1")

	if n := h.manager.EvictIdle(time.Minute); n != 0 {
		t.Fatalf("expected nothing idle yet, got %d", n)
	}
	if n := h.manager.EvictIdle(-time.Minute); n != 1 {
		t.Fatalf("expected the workspace to be evicted, got %d", n)
	}
	if h.manager.Len() != 0 {
		t.Fatalf("expected no open workspaces, got %d", h.manager.Len())
	}
}

func TestEvictIdle_DropsSignedOutWorkspacesSooner(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "signed-in")
	if _, err := h.manager.Open(context.Background(), "anonymous"); err != nil {
		t.Fatalf("failed to open workspace: %v", err)
	}

	h.manager.cfg.Now = func() time.Time { return fixedNow.Add(DefaultAnonymousIdle + time.Minute) }
	if n := h.manager.EvictIdle(time.Hour); n != 1 {
		t.Fatalf("expected only the signed-out workspace to be evicted, got %d", n)
	}
	if _, ok := h.manager.lookup("signed-in"); !ok {
		t.Fatal("expected the signed-in workspace to stay open")
	}
	if _, ok := h.manager.lookup("anonymous"); ok {
		t.Fatal("expected the signed-out workspace to be closed")
	}
}

func TestEvictIdle_KeepsWorkspacesWithMountedViews(t *testing.T) {
	h := newHarness(t)
	w := h.signIn(t, "session-1")

	sink := &countingSink{}
	m, _, err := w.Mount(context.Background(), ViewDashboard, ViewParams{}, sink.push)
	if err != nil {
		t.Fatalf("failed to mount: %v", err)
	}
	if n := h.manager.EvictIdle(-time.Minute); n != 0 {
		t.Fatalf("expected a mounted workspace to stay open, got %d evicted", n)
	}

	m.Close()
	if n := h.manager.EvictIdle(-time.Minute); n != 1 {
		t.Fatalf("expected the workspace to be evicted after unmount, got %d", n)
	}
}

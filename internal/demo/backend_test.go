package demo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/subsentry/dashboard-service/internal/domain"
	"github.com/subsentry/dashboard-service/pkg/subsentryclient"
)

type staticSession struct {
	token  string
	userID string
}

func (s *staticSession) Token() string  { return s.token }
func (s *staticSession) UserID() string { return s.userID }
func (s *staticSession) ClearToken()    { s.token = "" }

var fixedNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := NewBackend(slog.New(slog.NewTextHandler(io.Discard, nil)), WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	return b
}

func newDemoClient(b *Backend, token string) *subsentryclient.Client {
	return subsentryclient.NewClient(BaseURL,
		subsentryclient.WithHTTPClient(b.HTTPClient()),
		subsentryclient.WithSession(&staticSession{token: token, userID: UserID}),
	)
}

func TestLogin_ChecksPasswordHash(t *testing.T) {
	b := newTestBackend(t)
	client := newDemoClient(b, "")

	res, err := client.Login(context.Background(), domain.Credentials{Email: Email, Password: Password})
	if err != nil {
		t.Fatalf("expected login to succeed, got %v", err)
	}
	if res.User.ID != UserID || res.Token == "" {
		t.Fatalf("unexpected auth result %+v", res)
	}
	if _, err := b.userForToken(res.Token); err != nil {
		t.Fatalf("issued token should verify, got %v", err)
	}

	_, err = client.Login(context.Background(), domain.Credentials{Email: Email, Password: "wrong"})
	if subsentryclient.MessageOr(err, "Login failed") != "Invalid credentials" {
		t.Fatalf("expected invalid credentials message, got %v", err)
	}
}

func TestRequireToken_RejectsMissingBearer(t *testing.T) {
	b := newTestBackend(t)

	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/subscriptions?userId="+UserID, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions?userId=someone-else", nil)
	req.Header.Set("Authorization", "Bearer "+Token)
	b.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user's data, got %d", rec.Code)
	}
}

func TestClient_FixedTokenReadsSeededData(t *testing.T) {
	b := newTestBackend(t)
	client := newDemoClient(b, Token)
	ctx := context.Background()

	subs, err := client.ListSubscriptions(ctx, subsentryclient.ListParams{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(subs) != 6 {
		t.Fatalf("expected 6 seeded subscriptions, got %d", len(subs))
	}

	upcoming, err := client.UpcomingSubscriptions(ctx, "", 7)
	if err != nil {
		t.Fatalf("upcoming failed: %v", err)
	}
	// Renewals at +1, +2, +5 and +7 days fall inside a 7 day window.
	if len(upcoming) != 4 {
		t.Fatalf("expected 4 upcoming renewals, got %d", len(upcoming))
	}

	trend, err := client.SpendingTrend(ctx, subsentryclient.AnalyticsParams{DateRange: domain.Range6Months})
	if err != nil {
		t.Fatalf("trend failed: %v", err)
	}
	if len(trend) == 0 {
		t.Fatal("expected a non-empty trend")
	}

	currencies, err := client.Currencies(ctx)
	if err != nil || len(currencies) != len(domain.SupportedCurrencies) {
		t.Fatalf("unexpected currencies %v, err %v", currencies, err)
	}
}

func TestClient_CreateAddsNotification(t *testing.T) {
	b := newTestBackend(t)
	client := newDemoClient(b, Token)
	ctx := context.Background()

	before, _ := client.Notifications(ctx, "")
	_, err := client.CreateSubscription(ctx, "", domain.SubscriptionInput{
		Name:         "Hulu",
		Amount:       7.99,
		BillingCycle: domain.CycleMonthly,
		StartDate:    domain.NewDate(2025, 3, 1),
		Category:     "Streaming",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	after, _ := client.Notifications(ctx, "")
	if len(after) != len(before)+1 || after[0].Title != "Subscription Added" {
		t.Fatalf("expected a new notification at the head, got %+v", after)
	}
}

func TestClient_MarkReadIsIdempotent(t *testing.T) {
	b := newTestBackend(t)
	client := newDemoClient(b, Token)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := client.MarkNotificationRead(ctx, "", "demo-notif-1"); err != nil {
			t.Fatalf("mark read %d failed: %v", i, err)
		}
	}
	list, _ := client.Notifications(ctx, "")
	if domain.UnreadCount(list) != 1 {
		t.Fatalf("expected one unread notification left, got %d", domain.UnreadCount(list))
	}
}

func TestClient_ReportLifecycle(t *testing.T) {
	b := newTestBackend(t)
	client := newDemoClient(b, Token)
	ctx := context.Background()

	rep, err := client.GenerateReport(ctx, "", domain.GenerateRequest{Name: "March", Type: domain.ReportSummary, Format: domain.FormatCSV})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	blob, err := client.DownloadReport(ctx, "", rep.ID, "march", domain.FormatCSV)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if !strings.Contains(string(blob.Data), rep.ID) {
		t.Fatalf("unexpected report body %q", blob.Data)
	}

	sched, err := client.ScheduleReport(ctx, "", domain.ReportSchedule{Name: "Monthly", Frequency: domain.ScheduleMonthly, DayOfPeriod: 5, ReportID: rep.ID})
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if want := domain.NewDate(2025, time.April, 5); !sched.NextRunAt.Equal(want.Time) {
		t.Fatalf("expected next run %v, got %v", want, sched.NextRunAt)
	}

	var apiErr *subsentryclient.APIError
	if err := client.DeleteReport(ctx, "", "missing"); !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTransport_CarriesStatusHeadersAndBody(t *testing.T) {
	b := newTestBackend(t)
	req, err := http.NewRequest(http.MethodGet, BaseURL+"/subscriptions?userId="+UserID, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}

	resp, err := b.HTTPClient().Do(req)
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected a JSON content type, got %q", ct)
	}
	if !strings.Contains(string(body), "Authorization required") || resp.ContentLength != int64(len(body)) {
		t.Fatalf("unexpected body %q (content length %d)", body, resp.ContentLength)
	}
}

func TestSignup_ReplacesAccount(t *testing.T) {
	b := newTestBackend(t)
	client := newDemoClient(b, "")
	ctx := context.Background()

	res, err := client.Signup(ctx, domain.SignupInput{Name: "New User", Email: "New@Example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("expected signup to succeed, got %v", err)
	}
	if res.User.ID == UserID || res.User.ID != b.AccountID() {
		t.Fatalf("expected a new account id, got %q (backend has %q)", res.User.ID, b.AccountID())
	}
	if res.User.Email != "new@example.com" {
		t.Fatalf("expected a normalized email, got %q", res.User.Email)
	}

	fresh := subsentryclient.NewClient(BaseURL,
		subsentryclient.WithHTTPClient(b.HTTPClient()),
		subsentryclient.WithSession(&staticSession{token: res.Token, userID: res.User.ID}),
	)
	subs, err := fresh.ListSubscriptions(ctx, subsentryclient.ListParams{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("expected a new account to start empty, got %d subscriptions", len(subs))
	}
}

func TestSandboxes_OnePerSession(t *testing.T) {
	s := NewSandboxes(slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour,
		WithClock(func() time.Time { return fixedNow }))

	a, err := s.Get("session-a")
	if err != nil {
		t.Fatalf("failed to seed sandbox: %v", err)
	}
	again, _ := s.Get("session-a")
	if again != a {
		t.Fatal("expected the same sandbox for the same session")
	}
	b, _ := s.Get("session-b")
	if b == a || b.AccountID() == a.AccountID() {
		t.Fatalf("expected distinct sandboxes and accounts, got %q twice", a.AccountID())
	}

	ctx := context.Background()
	clientA := subsentryclient.NewClient(BaseURL,
		subsentryclient.WithHTTPClient(a.HTTPClient()),
		subsentryclient.WithSession(&staticSession{token: Token, userID: a.AccountID()}),
	)
	if err := clientA.DeleteSubscription(ctx, "", "demo-sub-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	clientB := subsentryclient.NewClient(BaseURL,
		subsentryclient.WithHTTPClient(b.HTTPClient()),
		subsentryclient.WithSession(&staticSession{token: Token, userID: b.AccountID()}),
	)
	if _, err := clientB.GetSubscription(ctx, "", "demo-sub-1"); err != nil {
		t.Fatalf("expected the other sandbox untouched, got %v", err)
	}

	fresh, err := s.Fresh("session-a")
	if err != nil {
		t.Fatalf("failed to reseed sandbox: %v", err)
	}
	if fresh == a {
		t.Fatal("expected Fresh to replace the sandbox")
	}
	s.Drop("session-b")
	if s.Len() != 1 {
		t.Fatalf("expected one sandbox left, got %d", s.Len())
	}
}

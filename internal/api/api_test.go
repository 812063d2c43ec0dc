package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/subsentry/dashboard-service/internal/app"
	"github.com/subsentry/dashboard-service/internal/demo"
	"github.com/subsentry/dashboard-service/internal/metrics"
	"github.com/subsentry/dashboard-service/internal/query"
	"github.com/subsentry/dashboard-service/internal/session"
	"github.com/subsentry/dashboard-service/internal/store"
	"github.com/subsentry/dashboard-service/pkg/subsentryclient"
)

var fixedNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type testServer struct {
	*httptest.Server
	manager *app.Manager
	session string
}

func newTestServer(t *testing.T, rps float64, burst int) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := demo.NewBackend(logger, demo.WithClock(clock))
	require.NoError(t, err)
	client := subsentryclient.NewClient(demo.BaseURL,
		subsentryclient.WithHTTPClient(backend.HTTPClient()),
		subsentryclient.WithLogger(logger),
	)
	manager := app.NewManager(app.ManagerConfig{
		Client:       client,
		DemoClient:   subsentryclient.NewClient(demo.BaseURL, subsentryclient.WithLogger(logger)),
		Demo:         demo.NewSandboxes(logger, time.Hour, demo.WithClock(clock)),
		Sessions:     session.NewMemoryStore(time.Hour),
		Preferences:  store.NewMemoryRepository(),
		Cache:        query.NewCache(time.Minute, 10*time.Minute),
		Registry:     query.NewRegistry("api-test", logger),
		Logger:       logger,
		PollInterval: time.Hour,
		Lookahead:    7,
		Now:          clock,
	})
	srv := httptest.NewServer(NewRouter(Options{
		Manager:        manager,
		Metrics:        metrics.New(),
		Logger:         logger,
		AllowedOrigins: []string{"http://localhost:3000"},
		RateLimitRPS:   rps,
		RateLimitBurst: burst,
	}))
	t.Cleanup(func() {
		srv.Close()
		manager.Shutdown()
	})
	return &testServer{Server: srv, manager: manager, session: uuid.NewString()}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, gjson.Result) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SessionHeader, s.session)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, gjson.ParseBytes(raw)
}

func (s *testServer) login(t *testing.T) {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": demo.Email, "password": demo.Password})
	require.Equal(t, http.StatusOK, code, body.Raw)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, 100, 100)

	resp, err := http.Get(s.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(s.URL + "/metrics")
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(raw), "subsentry_")
}

func TestSessionIssuedWhenMissing(t *testing.T) {
	s := newTestServer(t, 100, 100)

	resp, err := http.Get(s.URL + "/api/auth/me")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	id := resp.Header.Get(SessionHeader)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "expected a fresh session id")

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, id, cookie.Value)
	assert.True(t, cookie.HttpOnly)
}

func TestLoginThenDashboard(t *testing.T) {
	s := newTestServer(t, 100, 100)

	code, body := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": demo.Email, "password": demo.Password})
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.True(t, body.Get("data.isAuthenticated").Bool())
	assert.Equal(t, demo.UserID, body.Get("data.user.id").String())
	assert.Equal(t, "Welcome back, Test User!", body.Get("toasts.0.message").String())

	code, body = s.do(t, http.MethodGet, "/api/views/dashboard", nil)
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.Len(t, body.Get("data.subscriptions").Array(), 6)
	assert.Equal(t, int64(3), body.Get("data.upcoming.total").Int())

	code, body = s.do(t, http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, demo.Email, body.Get("data.user.email").String())
}

func TestLogin_InvalidFormReturnsFields(t *testing.T) {
	s := newTestServer(t, 100, 100)

	code, body := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "nope"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.NotEmpty(t, body.Get("fields.email").String())
	assert.NotEmpty(t, body.Get("fields.password").String())
}

func TestViews_RequireSignIn(t *testing.T) {
	s := newTestServer(t, 100, 100)

	code, body := s.do(t, http.MethodGet, "/api/views/dashboard", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, loginRedirect, body.Get("redirect").String())

	code, _ = s.do(t, http.MethodGet, "/api/views/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCalendarViewParams(t *testing.T) {
	s := newTestServer(t, 100, 100)
	s.login(t)

	code, body := s.do(t, http.MethodGet, "/api/views/calendar?month=2025-03&category=Streaming", nil)
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.Equal(t, "2025-03", body.Get("data.month").String())
	assert.Equal(t, "Streaming", body.Get("data.filter.category").String())
}

func TestCreateSubscription(t *testing.T) {
	s := newTestServer(t, 100, 100)
	s.login(t)

	code, body := s.do(t, http.MethodPost, "/api/subscriptions", map[string]interface{}{"name": "No amount"})
	require.Equal(t, http.StatusUnprocessableEntity, code, body.Raw)
	assert.NotEmpty(t, body.Get("fields.amount").String())
	assert.False(t, body.Get("toasts").Exists(), "validation errors are shown inline")

	code, body = s.do(t, http.MethodPost, "/api/subscriptions", map[string]interface{}{
		"name":         "YouTube Premium",
		"amount":       11.99,
		"category":     "Streaming",
		"billingCycle": "monthly",
		"startDate":    "2025-03-01",
	})
	require.Equal(t, http.StatusCreated, code, body.Raw)
	assert.Equal(t, "YouTube Premium", body.Get("data.name").String())
	assert.Equal(t, "Subscription added successfully!", body.Get("toasts.0.message").String())

	_, body = s.do(t, http.MethodGet, "/api/views/dashboard", nil)
	assert.Len(t, body.Get("data.subscriptions").Array(), 7)
}

func TestNotifications_MarkReadAndFilter(t *testing.T) {
	s := newTestServer(t, 100, 100)
	s.login(t)
	ws, err := s.manager.Open(context.Background(), s.session)
	require.NoError(t, err)
	require.NoError(t, ws.Notifications.Fetch(context.Background()))

	code, body := s.do(t, http.MethodGet, "/api/notifications?filter=unread", nil)
	require.Equal(t, http.StatusOK, code, body.Raw)
	unread := body.Get("data.unreadCount").Int()
	require.Greater(t, unread, int64(0))
	id := body.Get("data.items.0.id").String()

	code, _ = s.do(t, http.MethodPut, "/api/notifications/"+id+"/read", nil)
	require.Equal(t, http.StatusOK, code)

	_, body = s.do(t, http.MethodGet, "/api/notifications", nil)
	assert.Equal(t, unread-1, body.Get("data.unreadCount").Int())
	assert.Equal(t, "all", body.Get("data.filter").String())
}

func TestWizard_RefusesEarlySubmit(t *testing.T) {
	s := newTestServer(t, 100, 100)
	s.login(t)

	code, _ := s.do(t, http.MethodPost, "/api/reports/wizard", wizardRequest{Action: "submit"})
	assert.Equal(t, http.StatusConflict, code, "no wizard open")

	code, body := s.do(t, http.MethodPost, "/api/reports/wizard", wizardRequest{Action: "open"})
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.Equal(t, int64(1), body.Get("data.step").Int())

	code, _ = s.do(t, http.MethodPost, "/api/reports/wizard", wizardRequest{Action: "submit"})
	assert.Equal(t, http.StatusConflict, code)
}

func TestOnboarding_GoalsGate(t *testing.T) {
	s := newTestServer(t, 100, 100)
	s.login(t)

	code, body := s.do(t, http.MethodPost, "/api/onboarding/next", nil)
	require.Equal(t, http.StatusOK, code, body.Raw)
	code, _ = s.do(t, http.MethodPost, "/api/onboarding/next", nil)
	assert.Equal(t, http.StatusBadRequest, code, "goals step needs a selection")

	code, _ = s.do(t, http.MethodPost, "/api/onboarding/toggle-goal", map[string]string{"goal": "save-money"})
	require.Equal(t, http.StatusOK, code)
	code, body = s.do(t, http.MethodPost, "/api/onboarding/next", nil)
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.Equal(t, int64(2), body.Get("data.step").Int())
}

func TestThemeToggle(t *testing.T) {
	s := newTestServer(t, 100, 100)
	s.login(t)

	_, first := s.do(t, http.MethodPut, "/api/theme", nil)
	_, second := s.do(t, http.MethodPut, "/api/theme", nil)
	assert.NotEqual(t, first.Get("data.theme").String(), second.Get("data.theme").String())
}

func TestExportDownloadsFile(t *testing.T) {
	s := newTestServer(t, 100, 100)
	s.login(t)

	req, err := http.NewRequest(http.MethodGet, s.URL+"/api/subscriptions/export?format=csv", nil)
	require.NoError(t, err)
	req.Header.Set(SessionHeader, s.session)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "Netflix")
}

func TestRateLimitPerClient(t *testing.T) {
	s := newTestServer(t, 0.001, 2)

	for i := 0; i < 2; i++ {
		code, _ := s.do(t, http.MethodGet, "/api/auth/me", nil)
		require.Equal(t, http.StatusUnauthorized, code)
	}
	code, body := s.do(t, http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.NotEmpty(t, body.Get("error").String())

	s.session = uuid.NewString()
	code, _ = s.do(t, http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusTooManyRequests, code, "a new session id must not reset the budget")
}

func TestRateLimit_CookielessRequestsShareClientBudget(t *testing.T) {
	s := newTestServer(t, 0.001, 2)

	limited := 0
	for i := 0; i < 50; i++ {
		resp, err := http.Get(s.URL + "/api/auth/me")
		require.NoError(t, err)
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 48, limited)
	assert.LessOrEqual(t, s.manager.Len(), 2)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.RemoteAddr = "10.0.0.1:52100"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.2")

	assert.Equal(t, "10.0.0.1", getClientIP(req, false))
	assert.Equal(t, "203.0.113.9", getClientIP(req, true))

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "198.51.100.4")
	assert.Equal(t, "198.51.100.4", getClientIP(req, true))
}

func TestDemoSetupAndReset(t *testing.T) {
	s := newTestServer(t, 100, 100)

	code, body := s.do(t, http.MethodPost, "/api/demo/setup", nil)
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.True(t, body.Get("data.auth.isAuthenticated").Bool())
	assert.True(t, body.Get("data.auth.demoMode").Bool())
	assert.Equal(t, "Demo mode enabled", body.Get("toasts.0.message").String())

	code, body = s.do(t, http.MethodGet, "/api/views/profile", nil)
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.Equal(t, demo.UserName, body.Get("data.user.name").String())

	code, body = s.do(t, http.MethodPost, "/api/demo/reset", nil)
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.False(t, body.Get("data.auth.isAuthenticated").Bool())
	assert.False(t, body.Get("data.active").Bool())
}

func readFrame(t *testing.T, conn *websocket.Conn, match func(gjson.Result) bool) gjson.Result {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		frame := gjson.ParseBytes(raw)
		if match(frame) {
			return frame
		}
	}
}

func TestSocket_PushesRefetchAfterMutation(t *testing.T) {
	s := newTestServer(t, 100, 100)
	s.login(t)

	header := http.Header{}
	header.Set(SessionHeader, s.session)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.URL, "http")+"/ws", header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(clientFrame{Action: "mount", View: "dashboard"}))
	frame := readFrame(t, conn, func(f gjson.Result) bool { return f.Get("type").String() == "view" })
	assert.Equal(t, "dashboard", frame.Get("view").String())
	assert.Len(t, frame.Get("data.subscriptions").Array(), 6)

	code, body := s.do(t, http.MethodPost, "/api/subscriptions", map[string]interface{}{
		"name":         "YouTube Premium",
		"amount":       11.99,
		"category":     "Streaming",
		"billingCycle": "monthly",
		"startDate":    "2025-03-01",
	})
	require.Equal(t, http.StatusCreated, code, body.Raw)

	frame = readFrame(t, conn, func(f gjson.Result) bool { return f.Get("type").String() == "view" })
	assert.Len(t, frame.Get("data.subscriptions").Array(), 7)
}

func TestSocket_RejectsUnknownView(t *testing.T) {
	s := newTestServer(t, 100, 100)

	header := http.Header{}
	header.Set(SessionHeader, s.session)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.URL, "http")+"/ws", header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(clientFrame{Action: "mount", View: "nowhere"}))
	frame := readFrame(t, conn, func(f gjson.Result) bool { return f.Get("type").String() == "error" })
	assert.Contains(t, frame.Get("error").String(), "unknown view")

	require.NoError(t, conn.WriteJSON(clientFrame{Action: "mount", View: "dashboard"}))
	frame = readFrame(t, conn, func(f gjson.Result) bool { return f.Get("type").String() == "error" })
	assert.Equal(t, loginRedirect, frame.Get("redirect").String())
}

func TestCheckOrigin(t *testing.T) {
	s := NewServer(Options{AllowedOrigins: []string{"http://localhost:3000"}})
	tests := []struct {
		origin string
		want   bool
	}{
		{origin: "", want: true},
		{origin: "http://localhost:3000", want: true},
		{origin: "http://api.example.com", want: true},
		{origin: "https://evil.example.com", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://api.example.com/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := s.checkOrigin(r); got != tt.want {
				t.Fatalf("expected %v for %q, got %v", tt.want, tt.origin, got)
			}
		})
	}
}

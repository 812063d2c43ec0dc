package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/subsentry/dashboard-service/internal/domain"
	"github.com/subsentry/dashboard-service/internal/query"
	"github.com/subsentry/dashboard-service/pkg/subsentryclient"
)

// ViewName identifies a composed page.
type ViewName string

const (
	ViewDashboard  ViewName = "dashboard"
	ViewCalendar   ViewName = "calendar"
	ViewAnalysis   ViewName = "analysis"
	ViewReports    ViewName = "reports"
	ViewSettings   ViewName = "settings"
	ViewProfile    ViewName = "profile"
	ViewOnboarding ViewName = "onboarding"
)

// ErrUnknownView is returned for a view name the workspace cannot render.
var ErrUnknownView = errors.New("unknown view")

// viewTopics lists the change topics each view refetches on.
var viewTopics = map[ViewName][]query.Topic{
	ViewDashboard: {query.TopicSubscriptionsChanged},
	ViewCalendar:  {query.TopicSubscriptionsChanged},
	ViewAnalysis:  {query.TopicSubscriptionsChanged},
	ViewReports:   {query.TopicReportsChanged},
	ViewSettings:  {query.TopicSettingsChanged},
	ViewProfile:   {query.TopicSettingsChanged, query.TopicSubscriptionsChanged},
}

// ParseViewName accepts only the views a client may mount.
func ParseViewName(s string) (ViewName, error) {
	v := ViewName(s)
	if _, ok := viewTopics[v]; ok || v == ViewOnboarding {
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
}

// ViewParams carries the per-view inputs a client controls.
type ViewParams struct {
	Month     string   `json:"month,omitempty"`
	Selected  string   `json:"selected,omitempty"`
	Category  string   `json:"category,omitempty"`
	Search    string   `json:"search,omitempty"`
	DateRange string   `json:"dateRange,omitempty"`
	Compare   []string `json:"compare,omitempty"`
}

// ViewUpdate is a rendered view pushed to a mount's sink.
type ViewUpdate struct {
	View ViewName    `json:"view"`
	Data interface{} `json:"data,omitempty"`
	Err  error       `json:"-"`
}

// Render composes one view model.
func (w *Workspace) Render(ctx context.Context, view ViewName, params ViewParams) (interface{}, error) {
	w.Touch()
	switch view {
	case ViewDashboard:
		return w.Dashboard(ctx)
	case ViewCalendar:
		return w.Calendar(ctx, params)
	case ViewAnalysis:
		return w.Analysis(ctx, params)
	case ViewReports:
		return w.Reports(ctx)
	case ViewSettings:
		return w.SettingsView(ctx)
	case ViewProfile:
		return w.Profile(ctx)
	case ViewOnboarding:
		return w.OnboardingView(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, view)
	}
}

// Mount is a view a client is currently displaying. It refetches once per relevant
// change event until closed.
type Mount struct {
	ws     *Workspace
	view   ViewName
	params ViewParams
	sink   func(ViewUpdate)

	mu       sync.Mutex
	subs     []*query.Subscription
	closed   bool
	inflight sync.WaitGroup
}

// Mount subscribes view to its topics and returns the initial render.
func (w *Workspace) Mount(ctx context.Context, view ViewName, params ViewParams, sink func(ViewUpdate)) (*Mount, interface{}, error) {
	w.mu.Lock()
	userID := w.activeUser
	if userID == "" || w.closed {
		w.mu.Unlock()
		return nil, nil, domain.ErrMissingUserID
	}
	m := &Mount{ws: w, view: view, params: params, sink: sink}
	w.mounts[m] = struct{}{}
	w.mu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, domain.ErrMissingUserID
	}
	for _, topic := range viewTopics[view] {
		m.subs = append(m.subs, w.registry.Subscribe(topic, userID, m.onEvent))
	}
	m.mu.Unlock()

	data, err := w.Render(ctx, view, params)
	if err != nil && IsFatal(err) {
		m.Close()
		return nil, nil, err
	}
	return m, data, err
}

func (m *Mount) View() ViewName { return m.view }

func (m *Mount) onEvent(_ context.Context, ev query.Event) {
	for _, prefix := range topicResources[ev.Topic] {
		m.ws.cache.Invalidate(query.Match{ResourcePrefix: prefix, UserID: ev.UserID})
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.inflight.Add(1)
	m.mu.Unlock()

	// The publisher's context ends with its request, so the refetch gets its own.
	go func() {
		defer m.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), subsentryclient.DefaultTimeout)
		defer cancel()
		data, err := m.ws.Render(ctx, m.view, m.params)
		if err != nil {
			m.ws.logger.Warn("view refetch failed", "view", m.view, "topic", ev.Topic, "error", err)
		}
		m.deliver(ViewUpdate{View: m.view, Data: data, Err: err})
	}()
}

// deliver drops results that arrive after the view was unmounted.
func (m *Mount) deliver(u ViewUpdate) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed || m.sink == nil {
		return
	}
	m.sink(u)
}

// Wait blocks until every refetch started so far has been delivered or dropped.
func (m *Mount) Wait() { m.inflight.Wait() }

// Close unsubscribes the mount. Closing twice is safe.
func (m *Mount) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	m.ws.mu.Lock()
	delete(m.ws.mounts, m)
	m.ws.mu.Unlock()
}

package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type pollRecorder struct {
	errs atomic.Int32
	runs atomic.Int32
}

func (r *pollRecorder) PollCompleted(err error) {
	r.runs.Add(1)
	if err != nil {
		r.errs.Add(1)
	}
}

func TestPoller_FetchesImmediatelyOnStart(t *testing.T) {
	called := make(chan struct{}, 4)
	p := NewPoller(time.Hour, func(ctx context.Context) error {
		called <- struct{}{}
		return nil
	}, discardLogger())

	p.Start()
	p.Start()
	defer p.Stop()

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("expected an immediate fetch on start")
	}
	if !p.Started() {
		t.Fatal("expected the poller to report started")
	}
	select {
	case <-called:
		t.Fatal("a second Start must not trigger another fetch")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPoller_StopWaitsForRunningFetch(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	p := NewPoller(time.Hour, func(ctx context.Context) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	}, discardLogger())

	p.Start()
	<-started
	p.Stop()

	if !finished.Load() {
		t.Fatal("expected Stop to wait for the fetch in progress")
	}
	if p.Started() {
		t.Fatal("expected the poller to report stopped")
	}
	p.Stop()
}

func TestPoller_ReportsOutcome(t *testing.T) {
	rec := &pollRecorder{}
	done := make(chan struct{})
	p := NewPoller(time.Hour, func(ctx context.Context) error {
		defer close(done)
		return errors.New("backend unavailable")
	}, discardLogger())
	p.SetObserver(rec)

	p.Start()
	<-done
	p.Stop()

	if rec.runs.Load() != 1 || rec.errs.Load() != 1 {
		t.Fatalf("expected one failed poll recorded, got runs=%d errs=%d", rec.runs.Load(), rec.errs.Load())
	}
}

func TestPoller_RunsOnInterval(t *testing.T) {
	var runs atomic.Int32
	p := NewPoller(time.Second, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, discardLogger())

	p.Start()
	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	p.Stop()

	if runs.Load() < 2 {
		t.Fatalf("expected a scheduled fetch after the immediate one, got %d runs", runs.Load())
	}
}

package query

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type relayStub struct {
	forwarded []Event
	err       error
}

func (r *relayStub) Forward(_ context.Context, ev Event) error {
	r.forwarded = append(r.forwarded, ev)
	return r.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_PublishIsSynchronousAndScoped(t *testing.T) {
	reg := NewRegistry("replica-a", testLogger())
	var got []string
	reg.Subscribe(TopicSubscriptionsChanged, "u1", func(_ context.Context, ev Event) {
		got = append(got, "dashboard:"+ev.UserID)
	})
	reg.Subscribe(TopicSubscriptionsChanged, "u2", func(_ context.Context, ev Event) {
		got = append(got, "other-user")
	})
	reg.Subscribe(TopicSettingsChanged, "u1", func(_ context.Context, ev Event) {
		got = append(got, "settings")
	})

	ev := reg.Publish(context.Background(), Event{Topic: TopicSubscriptionsChanged, UserID: "u1"})

	if len(got) != 1 || got[0] != "dashboard:u1" {
		t.Fatalf("expected exactly the u1 subscriber to run before Publish returned, got %v", got)
	}
	if ev.ID == "" || ev.Origin != "replica-a" || ev.At.IsZero() {
		t.Fatalf("expected event to be stamped, got %+v", ev)
	}
}

func TestRegistry_CloseUnsubscribes(t *testing.T) {
	reg := NewRegistry("", testLogger())
	calls := 0
	sub := reg.Subscribe(TopicReportsChanged, "u1", func(context.Context, Event) { calls++ })
	if reg.Subscribers(TopicReportsChanged, "u1") != 1 {
		t.Fatal("expected one subscriber")
	}
	sub.Close()
	sub.Close()
	reg.Publish(context.Background(), Event{Topic: TopicReportsChanged, UserID: "u1"})
	if calls != 0 {
		t.Fatalf("expected no calls after close, got %d", calls)
	}
	if reg.Subscribers(TopicReportsChanged, "u1") != 0 {
		t.Fatal("expected subscriber set to be empty")
	}
}

func TestRegistry_RelayForwardsAndDeliverSkipsOwnEvents(t *testing.T) {
	reg := NewRegistry("replica-a", testLogger())
	relay := &relayStub{err: errors.New("broker unavailable")}
	reg.SetRelay(relay)

	calls := 0
	reg.Subscribe(TopicNotificationsChanged, "u1", func(context.Context, Event) { calls++ })

	ev := reg.Publish(context.Background(), Event{Topic: TopicNotificationsChanged, UserID: "u1"})
	if len(relay.forwarded) != 1 {
		t.Fatalf("expected the event to be relayed, got %d", len(relay.forwarded))
	}
	if calls != 1 {
		t.Fatalf("expected local dispatch despite relay error, got %d", calls)
	}

	if reg.Deliver(context.Background(), ev) {
		t.Fatal("expected own event to be ignored")
	}
	remote := Event{ID: "e2", Topic: TopicNotificationsChanged, UserID: "u1", Origin: "replica-b"}
	if !reg.Deliver(context.Background(), remote) {
		t.Fatal("expected remote event to be delivered")
	}
	if calls != 2 {
		t.Fatalf("expected 2 dispatches, got %d", calls)
	}
	if len(relay.forwarded) != 1 {
		t.Fatal("delivered events must not be relayed again")
	}
}

// Package testbus runs a real EventBus in tests and records what it delivers.
package testbus

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/colonyops/taskrelay/internal/core/eventbus"
)

// DefaultWait bounds Await and AssertPublished.
const DefaultWait = time.Second

// Delivery is one event seen by the recorder.
type Delivery struct {
	Event   eventbus.Event
	Payload any
}

// Bus is a started EventBus plus a recorder subscribed to every event.
type Bus struct {
	*eventbus.EventBus

	mu         sync.Mutex
	deliveries []Delivery
	signal     chan struct{} // closed and replaced on every delivery
}

// New starts a bus that stops when t ends.
func New(t *testing.T) *Bus {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	tb := &Bus{
		EventBus: eventbus.New(64),
		signal:   make(chan struct{}),
	}

	tb.SubscribeInboxReceived(func(p eventbus.InboxReceivedPayload) {
		tb.record(eventbus.EventInboxReceived, p)
	})
	tb.SubscribeSnapshotApplied(func(p eventbus.SnapshotAppliedPayload) {
		tb.record(eventbus.EventSnapshotApplied, p)
	})

	go tb.Start(ctx)
	return tb
}

func (tb *Bus) record(event eventbus.Event, payload any) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.deliveries = append(tb.deliveries, Delivery{Event: event, Payload: payload})
	close(tb.signal)
	tb.signal = make(chan struct{})
}

// Deliveries returns a copy of everything recorded so far.
func (tb *Bus) Deliveries() []Delivery {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return slices.Clone(tb.deliveries)
}

// find returns the first delivery of event and a channel that closes on the
// next delivery.
func (tb *Bus) find(event eventbus.Event) (Delivery, bool, <-chan struct{}) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	for _, d := range tb.deliveries {
		if d.Event == event {
			return d, true, nil
		}
	}
	return Delivery{}, false, tb.signal
}

// Await blocks until event has been delivered or wait elapses.
func (tb *Bus) Await(event eventbus.Event, wait time.Duration) (Delivery, bool) {
	timeout := time.After(wait)
	for {
		d, ok, next := tb.find(event)
		if ok {
			return d, true
		}
		select {
		case <-next:
		case <-timeout:
			return Delivery{}, false
		}
	}
}

// AssertPublished fails t unless event is delivered within DefaultWait.
func (tb *Bus) AssertPublished(t *testing.T, event eventbus.Event) Delivery {
	t.Helper()
	d, ok := tb.Await(event, DefaultWait)
	if !ok {
		t.Errorf("event %q was not delivered within %s", event, DefaultWait)
	}
	return d
}

// AssertNotPublished fails t if event is delivered within wait.
func (tb *Bus) AssertNotPublished(t *testing.T, event eventbus.Event, wait time.Duration) {
	t.Helper()
	if _, ok := tb.Await(event, wait); ok {
		t.Errorf("event %q was delivered but should not have been", event)
	}
}

// Payload returns the payload of the first delivery of event as T.
func Payload[T any](t *testing.T, tb *Bus, event eventbus.Event) T {
	t.Helper()

	d := tb.AssertPublished(t, event)
	p, ok := d.Payload.(T)
	if !ok {
		var zero T
		t.Fatalf("event %q carries %T, not %T", event, d.Payload, zero)
	}
	return p
}

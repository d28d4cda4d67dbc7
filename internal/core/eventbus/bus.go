package eventbus

import (
	"context"
	"sync"
)

type envelope struct {
	event   Event
	payload any
}

// EventBus delivers events on a single dispatch goroutine. Publishing never
// blocks: when the buffer is full the event is dropped and OnDrop hooks fire.
type EventBus struct {
	ch chan envelope

	mu   sync.RWMutex
	subs map[Event][]func(any)

	hookMu    sync.RWMutex
	onPublish []func(Event, any)
	onDrop    []func(Event, any)
	onPanic   []func(Event, any, any)
}

// New creates a bus with the given buffer size.
func New(buffer int) *EventBus {
	return &EventBus{
		ch:   make(chan envelope, buffer),
		subs: make(map[Event][]func(any)),
	}
}

// Start dispatches events until ctx is cancelled.
func (bus *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-bus.ch:
			bus.dispatch(env)
		}
	}
}

// OnPublish registers a hook that fires after an event is enqueued.
func (bus *EventBus) OnPublish(fn func(Event, any)) {
	bus.hookMu.Lock()
	bus.onPublish = append(bus.onPublish, fn)
	bus.hookMu.Unlock()
}

// OnDrop registers a hook that fires when an event is dropped on a full buffer.
func (bus *EventBus) OnDrop(fn func(Event, any)) {
	bus.hookMu.Lock()
	bus.onDrop = append(bus.onDrop, fn)
	bus.hookMu.Unlock()
}

// OnPanic registers a hook that fires when a subscriber panics.
func (bus *EventBus) OnPanic(fn func(Event, any, any)) {
	bus.hookMu.Lock()
	bus.onPanic = append(bus.onPanic, fn)
	bus.hookMu.Unlock()
}

func (bus *EventBus) subscribe(event Event, fn func(any)) {
	bus.mu.Lock()
	bus.subs[event] = append(bus.subs[event], fn)
	bus.mu.Unlock()
}

func (bus *EventBus) send(event Event, payload any) {
	select {
	case bus.ch <- envelope{event: event, payload: payload}:
		bus.runHooks(bus.publishHooks(), event, payload)
	default:
		bus.runHooks(bus.dropHooks(), event, payload)
	}
}

func (bus *EventBus) dispatch(env envelope) {
	bus.mu.RLock()
	subs := append([]func(any){}, bus.subs[env.event]...)
	bus.mu.RUnlock()

	for _, fn := range subs {
		bus.call(env, fn)
	}
}

// call isolates a subscriber so one panic does not stop the dispatch loop.
func (bus *EventBus) call(env envelope, fn func(any)) {
	defer func() {
		if r := recover(); r != nil {
			bus.hookMu.RLock()
			hooks := append([]func(Event, any, any){}, bus.onPanic...)
			bus.hookMu.RUnlock()
			for _, h := range hooks {
				func() {
					defer func() { recover() }() //nolint:errcheck
					h(env.event, env.payload, r)
				}()
			}
		}
	}()
	fn(env.payload)
}

func (bus *EventBus) publishHooks() []func(Event, any) {
	bus.hookMu.RLock()
	defer bus.hookMu.RUnlock()
	return append([]func(Event, any){}, bus.onPublish...)
}

func (bus *EventBus) dropHooks() []func(Event, any) {
	bus.hookMu.RLock()
	defer bus.hookMu.RUnlock()
	return append([]func(Event, any){}, bus.onDrop...)
}

func (bus *EventBus) runHooks(hooks []func(Event, any), event Event, payload any) {
	for _, fn := range hooks {
		fn(event, payload)
	}
}

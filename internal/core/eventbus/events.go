// Package eventbus is an in-process publish/subscribe bus used to wake
// background loops as soon as new work arrives.
package eventbus

// Event names a topic on the bus.
type Event string

const (
	EventInboxReceived   Event = "inbox.received"
	EventSnapshotApplied Event = "snapshot.applied"
)

// InboxReceivedPayload is emitted after an inbound chat message is stored.
type InboxReceivedPayload struct {
	MessageID int64
}

// SnapshotAppliedPayload is emitted after the server replaces its task set
// with a pushed snapshot.
type SnapshotAppliedPayload struct {
	Count     int
	RequestID string
}

// PublishInboxReceived enqueues an inbox.received event. A nil bus drops it.
func (bus *EventBus) PublishInboxReceived(p InboxReceivedPayload) {
	if bus == nil {
		return
	}
	bus.send(EventInboxReceived, p)
}

// SubscribeInboxReceived registers fn for inbox.received events.
func (bus *EventBus) SubscribeInboxReceived(fn func(InboxReceivedPayload)) {
	bus.subscribe(EventInboxReceived, func(p any) { fn(p.(InboxReceivedPayload)) })
}

// PublishSnapshotApplied enqueues a snapshot.applied event. A nil bus drops it.
func (bus *EventBus) PublishSnapshotApplied(p SnapshotAppliedPayload) {
	if bus == nil {
		return
	}
	bus.send(EventSnapshotApplied, p)
}

// SubscribeSnapshotApplied registers fn for snapshot.applied events.
func (bus *EventBus) SubscribeSnapshotApplied(fn func(SnapshotAppliedPayload)) {
	bus.subscribe(EventSnapshotApplied, func(p any) { fn(p.(SnapshotAppliedPayload)) })
}

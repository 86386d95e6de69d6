// Package bus provides the async in-process event bus connecting the policy
// repository, the capture source, and the workers.
package bus

import (
	"context"
	"sync"
	"time"
)

// Well-known event kinds.
const (
	EventPolicyChanged   = "policy_changed"
	EventMessageCaptured = "message_captured"
	EventConnectivity    = "connectivity_restored"
)

// Event is a broadcast notification. Payload is event-kind specific.
type Event struct {
	Kind      string    `json:"kind"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus decouples the policy repository from the workers it re-arms. Workers
// communicate only through stored state and these notifications, never by
// calling each other.
type Bus struct {
	events chan Event
	subs   map[string][]func(Event)
	mu     sync.RWMutex
}

// New creates an event bus.
func New() *Bus {
	return &Bus{
		events: make(chan Event, 100),
		subs:   make(map[string][]func(Event)),
	}
}

// Publish broadcasts an event to subscribers of its kind.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.events <- evt
}

// Subscribe registers a callback for events of the given kind.
func (b *Bus) Subscribe(kind string, callback func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[kind] = append(b.subs[kind], callback)
}

// Dispatch runs the event dispatcher. This should be run as a goroutine.
func (b *Bus) Dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-b.events:
			b.mu.RLock()
			callbacks := b.subs[evt.Kind]
			b.mu.RUnlock()

			for _, cb := range callbacks {
				cb(evt)
			}
		}
	}
}

// Pending returns the number of undispatched events.
func (b *Bus) Pending() int {
	return len(b.events)
}

// Package broadcast implements the Change Broadcaster (spec.md §4.4,
// C4): a lossy multi-subscriber fan-out of "INSERT:<model>:<payload>"
// events. Grounded on the teacher's WebSocketEventBusBridge
// (pkg/core/eventbus_ws.go), which models subscribers as independent
// per-connection goroutines rather than callbacks on the writer path
// (spec.md §9: "Broadcast as message passing").
package broadcast

import (
	"fmt"
	"sync"
)

// DefaultCapacity is the default per-subscriber ring buffer size
// (spec.md §4.4 names 10000 as an example).
const DefaultCapacity = 10000

// Broadcaster fans out change events to any number of subscribers.
// Publishing never blocks: when a subscriber's channel is full, the
// oldest buffered message for that subscriber is dropped to make room
// (lossy delivery). Other subscribers are unaffected.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	capacity    int
}

type subscriber struct {
	ch chan string
}

// New creates a Broadcaster whose subscriber ring buffers hold capacity
// messages each.
func New(capacity int) *Broadcaster {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Broadcaster{
		subscribers: make(map[*subscriber]struct{}),
		capacity:    capacity,
	}
}

// Subscription is a handle a caller uses to receive events and later
// unsubscribe.
type Subscription struct {
	b  *Broadcaster
	ch chan string
	s  *subscriber
}

// Events returns the channel events are delivered on.
func (s *Subscription) Events() <-chan string { return s.ch }

// Close unsubscribes, releasing the ring buffer.
func (s *Subscription) Close() {
	s.b.mu.Lock()
	delete(s.b.subscribers, s.s)
	s.b.mu.Unlock()
}

// Subscribe registers a new subscriber and returns its Subscription.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &subscriber{ch: make(chan string, b.capacity)}
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()
	return &Subscription{b: b, ch: sub.ch, s: sub}
}

// PublishInsert publishes an INSERT event for model carrying payload as
// its JSON body (spec.md §4.4: "INSERT:<model>:<data-as-json>").
func (b *Broadcaster) PublishInsert(model string, payloadJSON []byte) {
	event := fmt.Sprintf("INSERT:%s:%s", model, payloadJSON)
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subscribers {
		select {
		case sub.ch <- event:
		default:
			// Ring full: drop the oldest queued message, then retry once.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- event:
			default:
				// Subscriber is being drained concurrently faster than we
				// can make room; skip rather than block the publisher.
			}
		}
	}
}

// SubscriberCount reports the number of currently attached subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

package observability

import (
	"sync"
	"time"
)

// EventType names a pipeline event.
type EventType string

const (
	EventSpanStarted    EventType = "span:started"
	EventSpanEnded      EventType = "span:ended"
	EventTraceCompleted EventType = "trace:completed"
	EventMetricRecorded EventType = "metric:recorded"
	EventLogRecorded    EventType = "log:recorded"
)

// Event is a pipeline notification. Data carries the subsystem payload:
// *trace.Span, *trace.Trace, MetricEvent or logging.Record.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Handler consumes pipeline events. Handlers run synchronously on the
// producer's goroutine and must not block for long.
type Handler func(Event)

// Bus fans pipeline events out to subscribers. Subscribing with no
// event types receives everything.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
}

type subscription struct {
	types   map[EventType]struct{} // nil means all types
	handler Handler
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]subscription)}
}

// Subscribe registers a handler for the given event types (or all when
// none are given) and returns a cancel function that detaches it.
func (b *Bus) Subscribe(h Handler, types ...EventType) (cancel func()) {
	var filter map[EventType]struct{}
	if len(types) > 0 {
		filter = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			filter[t] = struct{}{}
		}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{types: filter, handler: h}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers an event to all matching subscribers.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.types != nil {
			if _, ok := sub.types[e.Type]; !ok {
				continue
			}
		}
		handlers = append(handlers, sub.handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// Clear detaches all subscribers.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.subs = make(map[int]subscription)
	b.mu.Unlock()
}

// SubscriberCount returns the number of attached subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

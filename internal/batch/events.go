package batch

import (
	"sync"
	"time"
)

// EventType classifies messages emitted during batch execution.
type EventType string

const (
	EventTypeProgress      EventType = "progress"
	EventTypeFileCompleted EventType = "fileCompleted"
	EventTypeBatchFinished EventType = "batchFinished"
)

// Event is a sequenced payload consumed by progress observers.
type Event struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	BatchID   string    `json:"batchId"`
	Type      EventType `json:"type"`
	Message   string    `json:"message,omitempty"`
	Index     int       `json:"index,omitempty"`
	Total     int       `json:"total,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	Ok        bool      `json:"ok,omitempty"`
	Summary   string    `json:"summary,omitempty"`
}

// EventBus stores recent events, provides incremental reads, and fans
// events out to live subscribers.
type EventBus struct {
	mu          sync.RWMutex
	nextSeq     int64
	maxEvents   int
	events      []Event
	subscribers map[chan Event]struct{}
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents:   maxEvents,
		events:      make([]Event, 0, maxEvents),
		subscribers: make(map[chan Event]struct{}),
	}
}

// Publish appends one event, assigns sequence and timestamp, and notifies
// subscribers. Slow subscribers drop events rather than block the batch.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// Subscribe registers a live event channel. The returned cancel function
// must be called to release the subscription.
func (b *EventBus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 256)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subscribers, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

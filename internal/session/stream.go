package session

import (
	"context"
	"sync"
)

// Event is one record forwarded to subscribers of a session's stream.
type Event struct {
	Name string
	Data map[string]any
}

// DefaultQueueSize is the per-subscriber buffer depth (spec §6 setting
// subscriber_queue_size default 256).
const DefaultQueueSize = 256

// Subscriber is a registered listener on a StreamManager's event fan-out.
type Subscriber struct {
	id uint64
	ch chan Event
}

// Events returns the subscriber's channel. It is closed on Unsubscribe.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// StreamManager fans one session's events out to any number of
// subscribers, each with its own bounded queue, and implements
// hooks.StreamSink so the hook registry's streaming overlay can publish
// through it directly.
//
// Backpressure policy: when a subscriber's queue is full, the oldest
// queued event is dropped to make room for the new one, and a
// "stream:dropped" diagnostic is queued in its place once the drop streak
// ends, so a slow subscriber loses history rather than stalling the
// manager (spec §4.6 "bounded to avoid unbounded memory").
type StreamManager struct {
	sessionID string
	queueSize int

	mu          sync.Mutex
	subscribers map[uint64]*Subscriber
	nextID      uint64
	dropped     map[uint64]int

	execMu sync.Mutex
}

// NewStreamManager constructs a StreamManager for sessionID with the given
// per-subscriber queue depth (DefaultQueueSize if zero).
func NewStreamManager(sessionID string, queueSize int) *StreamManager {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &StreamManager{
		sessionID:   sessionID,
		queueSize:   queueSize,
		subscribers: make(map[uint64]*Subscriber),
		dropped:     make(map[uint64]int),
	}
}

// Subscribe registers a new subscriber and returns it.
func (m *StreamManager) Subscribe() *Subscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	sub := &Subscriber{id: m.nextID, ch: make(chan Event, m.queueSize)}
	m.subscribers[sub.id] = sub
	return sub
}

// Unsubscribe removes sub from the fan-out and closes its channel. Callers
// must stop reading from sub.Events() once this returns.
func (m *StreamManager) Unsubscribe(sub *Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscribers[sub.id]; !ok {
		return
	}
	delete(m.subscribers, sub.id)
	delete(m.dropped, sub.id)
	close(sub.ch)
}

// SubscriberCount reports the number of live subscribers; a manager with
// zero subscribers and no in-flight execution is a candidate for
// collection by the owning Manager.
func (m *StreamManager) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

// Emit publishes name/data to every current subscriber.
func (m *StreamManager) Emit(name string, data map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subscribers {
		m.deliver(sub, Event{Name: name, Data: data})
	}
}

// Publish implements hooks.StreamSink, letting the hook registry's
// streaming overlay publish "hook:<name>" / "hook:<name>:result" records
// straight through this manager.
func (m *StreamManager) Publish(ctx context.Context, eventName string, payload map[string]any) {
	m.Emit(eventName, payload)
}

// deliver enqueues ev for sub, dropping the oldest queued event (and
// surfacing a diagnostic) if the queue is full. Caller holds m.mu.
func (m *StreamManager) deliver(sub *Subscriber, ev Event) {
	select {
	case sub.ch <- ev:
		if n := m.dropped[sub.id]; n > 0 {
			m.dropped[sub.id] = 0
			select {
			case sub.ch <- Event{Name: "stream:dropped", Data: map[string]any{"count": n}}:
			default:
			}
		}
		return
	default:
	}

	select {
	case <-sub.ch:
	default:
	}
	m.dropped[sub.id]++
	select {
	case sub.ch <- ev:
	default:
	}
}

// TryBeginExecution acquires the single-writer lock preventing two
// background tasks from running concurrently against this session (spec
// §4.6 "single-writer lock"). Returns false if a turn is already running.
func (m *StreamManager) TryBeginExecution() bool {
	return m.execMu.TryLock()
}

// EndExecution releases the single-writer lock.
func (m *StreamManager) EndExecution() {
	m.execMu.Unlock()
}

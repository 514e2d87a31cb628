package httpapi

import "sync"

// globalEvent is one record published on the daemon-wide stream.
type globalEvent struct {
	Name string
	Data map[string]any
}

// globalSubscriber is a registered listener on the broker's fan-out.
type globalSubscriber struct {
	id uint64
	ch chan globalEvent
}

func (s *globalSubscriber) Events() <-chan globalEvent { return s.ch }

// globalBroker fans daemon-wide events (currently automation firings) out
// to C9's "subscribe to a global event stream" clients (spec §4.9). It is
// the daemon-wide analogue of session.StreamManager, adapted down to a
// single fan-out with no per-session key and no single-writer lock, since
// nothing here drives turn execution.
type globalBroker struct {
	mu          sync.Mutex
	nextID      uint64
	subscribers map[uint64]*globalSubscriber
	queueSize   int
}

func newGlobalBroker(queueSize int) *globalBroker {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &globalBroker{subscribers: make(map[uint64]*globalSubscriber), queueSize: queueSize}
}

func (b *globalBroker) subscribe() *globalSubscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &globalSubscriber{id: b.nextID, ch: make(chan globalEvent, b.queueSize)}
	b.subscribers[sub.id] = sub
	return sub
}

func (b *globalBroker) unsubscribe(sub *globalSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub.id]; !ok {
		return
	}
	delete(b.subscribers, sub.id)
	close(sub.ch)
}

// Publish implements automation.GlobalSink, fanning out eventName/data to
// every subscriber. A full subscriber queue drops the event rather than
// blocking the publisher (spec §5 "Backpressure").
func (b *globalBroker) Publish(eventName string, data map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ev := globalEvent{Name: eventName, Data: data}
	for _, sub := range b.subscribers {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

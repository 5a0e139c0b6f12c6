// Package events fans engine events out to protocol connections.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/shehryarbajwa/bluetooth-emulator/internal/bluetooth"
)

// Bus delivers every published event to all current subscribers. Publish
// never blocks: a subscriber whose queue is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID atomic.Uint64
	buffer int
	logger *slog.Logger
}

// Subscription is one subscriber's event queue.
type Subscription struct {
	id      uint64
	bus     *Bus
	ch      chan bluetooth.Event
	dropped atomic.Uint64
	once    sync.Once
}

// NewBus creates a bus whose subscriber queues hold buffer events.
func NewBus(buffer int, logger *slog.Logger) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		logger: logger,
	}
}

// Publish implements bluetooth.EventSink.
func (b *Bus) Publish(ev bluetooth.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			s.dropped.Add(1)
			b.logger.Warn("events: dropped event for slow subscriber",
				"subscriber", s.id, "method", ev.Method(), "context", ev.ContextID())
		}
	}
}

// Subscribe registers a new subscriber.
func (b *Bus) Subscribe() *Subscription {
	s := &Subscription{
		id:  b.nextID.Add(1),
		bus: b,
		ch:  make(chan bluetooth.Event, b.buffer),
	}
	b.mu.Lock()
	b.subs[s.id] = s
	b.mu.Unlock()
	return s
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// C returns the event channel. It is closed by Close.
func (s *Subscription) C() <-chan bluetooth.Event { return s.ch }

// Dropped returns how many events this subscriber missed.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

var _ bluetooth.EventSink = (*Bus)(nil)

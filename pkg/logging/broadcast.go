package logging

import (
	"sync"
	"sync/atomic"
)

// Broadcaster fans records out to live subscribers. A subscriber whose
// buffer is full misses events instead of blocking the writer.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// Subscription receives records on C until it or its broadcaster is closed.
type Subscription struct {
	C <-chan *Event

	ch      chan *Event
	id      uint64
	b       *Broadcaster
	dropped atomic.Uint64
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]*Subscription)}
}

func (b *Broadcaster) Name() string { return "broadcast" }

// Subscribe registers a subscriber with the given buffer size.
func (b *Broadcaster) Subscribe(buffer int) (*Subscription, error) {
	if buffer <= 0 {
		buffer = 64
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBroadcastClose
	}
	b.nextID++
	ch := make(chan *Event, buffer)
	sub := &Subscription{C: ch, ch: ch, id: b.nextID, b: b}
	b.subs[sub.id] = sub
	return sub, nil
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster) Write(event *Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			sub.dropped.Add(1)
		}
	}
	return nil
}

// Close ends every subscription.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
	return nil
}

// Close unsubscribes; C is closed afterwards.
func (s *Subscription) Close() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if _, ok := s.b.subs[s.id]; ok {
		delete(s.b.subs, s.id)
		close(s.ch)
	}
}

// Dropped is the number of events missed because the buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

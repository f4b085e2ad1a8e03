package realtime

import (
	"errors"
	"sync"
	"sync/atomic"

	"weighbridge/internal/weighment"
)

var (
	// ErrBusClosed is returned when subscribing to a closed bus.
	ErrBusClosed = errors.New("realtime: bus is closed")
)

// DefaultBuffer is the per-subscriber queue length. One pending event is
// enough: consumers re-read everything on each event, so a queued event
// already covers any change published after it.
const DefaultBuffer = 1

// Stats describes the bus since it was created.
type Stats struct {
	Published   uint64
	Delivered   uint64
	Dropped     uint64
	Subscribers int
}

// Bus fans change events out to subscribers without ever blocking the
// publisher. An event is dropped for a subscriber whose queue is full.
type Bus struct {
	mu        sync.RWMutex
	subs      map[uint64]*subscription
	nextID    uint64
	buffer    int
	closed    bool
	published uint64
	delivered uint64
	dropped   uint64
}

// NewBus creates a bus with the given per-subscriber buffer (DefaultBuffer when < 1).
func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Bus{
		subs:   make(map[uint64]*subscription),
		buffer: buffer,
	}
}

type subscription struct {
	bus   *Bus
	id    uint64
	table string
	ch    chan weighment.ChangeEvent
	once  sync.Once
}

func (s *subscription) Events() <-chan weighment.ChangeEvent { return s.ch }

func (s *subscription) Close() error {
	s.once.Do(func() { s.bus.unsubscribe(s.id) })
	return nil
}

func (s *subscription) wants(ev weighment.ChangeEvent) bool {
	return s.table == "" || ev.Op == weighment.OpResync || ev.Table == s.table
}

// Subscribe registers for events on table; "" receives every table.
// Resync events reach every subscriber.
func (b *Bus) Subscribe(table string) (weighment.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	b.nextID++
	s := &subscription{
		bus:   b,
		id:    b.nextID,
		table: table,
		ch:    make(chan weighment.ChangeEvent, b.buffer),
	}
	b.subs[s.id] = s
	return s, nil
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(s.ch)
	}
}

// Publish delivers ev to every interested subscriber.
func (b *Bus) Publish(ev weighment.ChangeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	atomic.AddUint64(&b.published, 1)
	for _, s := range b.subs {
		if !s.wants(ev) {
			continue
		}
		select {
		case s.ch <- ev:
			atomic.AddUint64(&b.delivered, 1)
		default:
			atomic.AddUint64(&b.dropped, 1)
		}
	}
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Stats{
		Published:   atomic.LoadUint64(&b.published),
		Delivered:   atomic.LoadUint64(&b.delivered),
		Dropped:     atomic.LoadUint64(&b.dropped),
		Subscribers: len(b.subs),
	}
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		close(s.ch)
		delete(b.subs, id)
	}
}

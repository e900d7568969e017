// Package stream provides the marketplace event plumbing: a dispatcher
// fanning decoded socket frames out to per-event subscriptions, and a
// subscription set for atomic teardown when a watcher reaches a terminal
// state.
package stream

import (
	"encoding/json"
	"log"
	"sync"
)

// subscriptionBuffer is the channel buffer per subscription. Events beyond
// a full buffer are dropped with a log line rather than blocking the
// socket read loop.
const subscriptionBuffer = 64

// Source is anything subscriptions can be taken from. Satisfied by both
// Dispatcher (used directly in tests) and Socket.
type Source interface {
	Subscribe(event string) *Subscription
}

// Subscription is a live listener on one event stream.
type Subscription struct {
	// C delivers the raw payload of each matching event.
	C <-chan json.RawMessage

	event  string
	id     int
	d      *Dispatcher
	cancel sync.Once
}

// Cancel detaches the subscription. Safe to call more than once; only the
// first call has an effect.
func (s *Subscription) Cancel() {
	s.cancel.Do(func() {
		s.d.unsubscribe(s.event, s.id)
	})
}

// Dispatcher routes named events to subscribers.
type Dispatcher struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan json.RawMessage
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[string]map[int]chan json.RawMessage)}
}

// Subscribe registers a listener for the named event.
func (d *Dispatcher) Subscribe(event string) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	ch := make(chan json.RawMessage, subscriptionBuffer)
	if d.subs[event] == nil {
		d.subs[event] = make(map[int]chan json.RawMessage)
	}
	d.subs[event][d.nextID] = ch

	return &Subscription{C: ch, event: event, id: d.nextID, d: d}
}

func (d *Dispatcher) unsubscribe(event string, id int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if chans, ok := d.subs[event]; ok {
		if ch, ok := chans[id]; ok {
			delete(chans, id)
			close(ch)
		}
	}
}

// Close cancels every subscription, closing their channels so watchers
// observe end of stream. Dispatching after Close finds no subscribers and
// is a no-op.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for event, chans := range d.subs {
		for id, ch := range chans {
			delete(chans, id)
			close(ch)
		}
		delete(d.subs, event)
	}
}

// Dispatch delivers an event payload to all current subscribers.
func (d *Dispatcher) Dispatch(event string, data json.RawMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, ch := range d.subs[event] {
		select {
		case ch <- data:
		default:
			log.Printf("[stream] Dropping %s event: subscriber buffer full", event)
		}
	}
}

// Set groups the subscriptions of one watch attempt so they can be torn
// down together exactly once.
type Set struct {
	mu   sync.Mutex
	subs []*Subscription
	once sync.Once
}

// NewSet creates an empty subscription set.
func NewSet() *Set {
	return &Set{}
}

// Add takes a subscription from src and tracks it in the set.
func (s *Set) Add(src Source, event string) *Subscription {
	sub := src.Subscribe(event)

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	return sub
}

// Cancel tears down every tracked subscription. Subsequent calls are
// no-ops.
func (s *Set) Cancel() {
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, sub := range s.subs {
			sub.Cancel()
		}
	})
}

package bus

import (
	"sync"
	"sync/atomic"
)

// Topic is a named category of events within the bus.
type Topic string

const (
	// TopicMessage carries new-message events, routed by recipient.
	TopicMessage Topic = "message"
	// TopicPresence carries presence changes, delivered to everyone.
	TopicPresence Topic = "presence"
)

// Event is a transient notification flowing through the bus. Recipient is
// routing metadata: the bus decides delivery from it alone, without
// additional lookups.
type Event struct {
	Topic     Topic
	Recipient int64 // 0 for broadcast events
	Payload   any
}

// FilterKind tags the filter variants a subscription can carry.
type FilterKind int

const (
	// FilterNone matches every event on the topic.
	FilterNone FilterKind = iota
	// FilterRecipient matches events addressed to one user.
	FilterRecipient
)

// Filter narrows which events on a topic reach a subscription.
type Filter struct {
	Kind      FilterKind
	Recipient int64
}

// Unfiltered returns a filter that matches everything.
func Unfiltered() Filter {
	return Filter{Kind: FilterNone}
}

// ByRecipient returns a filter matching only events addressed to id.
func ByRecipient(id int64) Filter {
	return Filter{Kind: FilterRecipient, Recipient: id}
}

// Match reports whether the event passes the filter.
func (f Filter) Match(ev Event) bool {
	switch f.Kind {
	case FilterRecipient:
		return ev.Recipient == f.Recipient
	default:
		return true
	}
}

// Subscription is a live, filtered registration on one topic. Events arrive
// on the channel returned by Events until Close.
type Subscription struct {
	topic  Topic
	filter Filter

	mu      sync.Mutex
	ch      chan Event
	closed  bool
	dropped atomic.Uint64

	bus *Bus
}

// Events returns the subscription's delivery channel. The channel is closed
// when the subscription is closed; it never replays events published before
// Subscribe.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Topic returns the topic the subscription is registered on.
func (s *Subscription) Topic() Topic {
	return s.topic
}

// Dropped returns how many events were evicted from the buffer because the
// consumer was too slow.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close deregisters the subscription and closes its channel. Idempotent.
func (s *Subscription) Close() {
	s.bus.Unsubscribe(s)
}

// send enqueues an event, evicting the oldest buffered event on overflow.
func (s *Subscription) send(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		// Buffer full: drop the oldest and retry. The consumer may
		// drain concurrently, so the retry is a loop.
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}

// Bus is an in-process publish/subscribe broker. It is an explicitly
// constructed instance with no package-level state, so each test can use a
// fresh one. Subscribe, Unsubscribe and Publish are safe for concurrent use.
type Bus struct {
	buffer int

	mu   sync.RWMutex
	subs map[Topic]map[*Subscription]struct{}
}

// DefaultBuffer is the per-subscriber buffer size used when New is given a
// non-positive value.
const DefaultBuffer = 16

// New creates a bus whose subscriptions buffer up to buffer events each.
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		buffer: buffer,
		subs:   make(map[Topic]map[*Subscription]struct{}),
	}
}

// Subscribe registers a filtered subscription on a topic. The stream starts
// fresh: only events published after this call are delivered.
func (b *Bus) Subscribe(topic Topic, filter Filter) *Subscription {
	sub := &Subscription{
		topic:  topic,
		filter: filter,
		ch:     make(chan Event, b.buffer),
		bus:    b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*Subscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	return sub
}

// Unsubscribe removes a subscription and closes its channel. Idempotent.
// The registry entry is removed before the channel closes, so a publish
// that starts afterwards cannot reach the torn-down subscription.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if set, ok := b.subs[sub.topic]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, sub.topic)
		}
	}
	b.mu.Unlock()

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
}

// Publish fans an event out to every matching subscription on its topic.
// It never blocks on slow consumers: each subscription has a bounded buffer
// and overflow evicts that subscriber's oldest event only.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[ev.Topic] {
		if sub.filter.Match(ev) {
			sub.send(ev)
		}
	}
}

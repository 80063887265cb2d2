package core

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/akarpov/murmur-server/internal/bus"
	"github.com/akarpov/murmur-server/internal/store"
)

// State tracks a session through its lifecycle. Transitions are one-way:
// Connecting -> Open -> Closing -> Closed.
type State int

const (
	// StateConnecting covers the handshake window, before the session is
	// registered and handed to the transport.
	StateConnecting State = iota
	// StateOpen means the handshake completed and subscriptions may be
	// created.
	StateOpen
	// StateClosing means teardown has begun; no new subscriptions are
	// accepted while existing ones drain.
	StateClosing
	// StateClosed means every subscription has been torn down and the
	// outbound channel is closed.
	StateClosed
)

// Session is one long-lived client connection as seen by the core. It owns
// the connection's subscriptions; none of them outlives it.
type Session struct {
	// ID uniquely identifies the connection.
	ID string
	// User is the identity resolved at handshake time, nil for an
	// anonymous connection.
	User *store.User

	bus      *bus.Bus
	log      *zerolog.Logger
	outbound chan bus.Event

	mu    sync.Mutex
	state State
	subs  map[bus.Topic]*bus.Subscription
	done  chan struct{}
	wg    sync.WaitGroup
}

// Outbound returns the channel the transport write loop drains. It is
// closed when the session closes.
func (s *Session) Outbound() <-chan bus.Event {
	return s.outbound
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe opens a live subscription on the given topic. The message
// topic is bound to the session's authenticated identity; an anonymous
// session gets ErrUnauthorized even though its handshake was allowed.
func (s *Session) Subscribe(topic bus.Topic) error {
	var filter bus.Filter
	switch topic {
	case bus.TopicMessage:
		if s.User == nil {
			return ErrUnauthorized
		}
		filter = bus.ByRecipient(s.User.ID)
	case bus.TopicPresence:
		filter = bus.Unfiltered()
	default:
		return ErrUnknownTopic
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return ErrSessionClosed
	}
	if _, exists := s.subs[topic]; exists {
		return ErrAlreadySubscribed
	}

	sub := s.bus.Subscribe(topic, filter)
	s.subs[topic] = sub

	s.wg.Add(1)
	go s.forward(sub)
	return nil
}

// Unsubscribe cancels the subscription on the topic. Idempotent: a topic
// that was never subscribed is a no-op.
func (s *Session) Unsubscribe(topic bus.Topic) {
	s.mu.Lock()
	sub, ok := s.subs[topic]
	delete(s.subs, topic)
	s.mu.Unlock()

	if ok {
		sub.Close()
		s.logDrops(sub)
	}
}

// Close tears the session down: every subscription is deregistered from
// the bus before the outbound channel closes, so a publish racing with
// teardown cannot deliver to this session. Safe to call from any exit
// path, any number of times.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	subs := s.subs
	s.subs = make(map[bus.Topic]*bus.Subscription)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
		s.logDrops(sub)
	}
	close(s.done)
	s.wg.Wait()
	close(s.outbound)

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
}

// logDrops surfaces the subscription's overflow count once it is closed.
// Drops never propagate to the publisher; this is where they become
// visible.
func (s *Session) logDrops(sub *bus.Subscription) {
	if n := sub.Dropped(); n > 0 {
		ev := s.log.Warn().
			Str("session_id", s.ID).
			Str("topic", string(sub.Topic())).
			Uint64("dropped", n)
		if s.User != nil {
			ev = ev.Int64("user_id", s.User.ID)
		}
		ev.Msg("slow consumer dropped events")
	}
}

// forward copies one subscription's events onto the session outbound
// channel until either side shuts down.
func (s *Session) forward(sub *bus.Subscription) {
	defer s.wg.Done()
	for ev := range sub.Events() {
		select {
		case s.outbound <- ev:
		case <-s.done:
			return
		}
	}
}

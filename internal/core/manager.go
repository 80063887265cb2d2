package core

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/akarpov/murmur-server/internal/bus"
	"github.com/akarpov/murmur-server/internal/store"
)

// Manager owns the set of live sessions. It holds an explicit bus
// instance; there is no ambient global, so tests get a fresh broker each.
type Manager struct {
	bus *bus.Bus
	log *zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager fanning out over the given bus.
func NewManager(b *bus.Bus, logger *zerolog.Logger) *Manager {
	return &Manager{
		bus:      b,
		log:      logger,
		sessions: make(map[string]*Session),
	}
}

// Open registers a new session for a connection whose handshake resolved
// the given identity (nil for anonymous).
func (m *Manager) Open(user *store.User) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		User:     user,
		bus:      m.bus,
		log:      m.log,
		state:    StateConnecting,
		outbound: make(chan bus.Event, 8),
		subs:     make(map[bus.Topic]*bus.Subscription),
		done:     make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	s.mu.Lock()
	s.state = StateOpen
	s.mu.Unlock()

	ev := m.log.Debug().Str("session_id", s.ID)
	if user != nil {
		ev = ev.Int64("user_id", user.ID)
	}
	ev.Msg("session opened")
	return s
}

// Close deregisters and tears down a session. Idempotent.
func (m *Manager) Close(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID)
	m.mu.Unlock()

	s.Close()
	m.log.Debug().Str("session_id", s.ID).Msg("session closed")
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

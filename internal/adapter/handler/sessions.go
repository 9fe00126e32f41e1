package handler

import (
	"sync"

	"github.com/google/uuid"

	"github.com/rl1809/pos-checkout/internal/adapter/notify"
	"github.com/rl1809/pos-checkout/internal/core/service"
	"github.com/rl1809/pos-checkout/internal/port"
)

// TerminalFactory builds the terminal for a new session. events receives
// the notifications meant for that session's client.
type TerminalFactory func(id string, events port.Notifier) *service.Terminal

// session serializes every request against one terminal.
type session struct {
	mu       sync.Mutex
	terminal *service.Terminal
	events   *notify.Recorder
}

type Sessions struct {
	factory TerminalFactory

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewSessions(factory TerminalFactory) *Sessions {
	return &Sessions{factory: factory, sessions: make(map[string]*session)}
}

func (s *Sessions) Create() string {
	id := uuid.NewString()
	events := notify.NewRecorder(50)
	sess := &session{terminal: s.factory(id, events), events: events}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	return id
}

func (s *Sessions) get(id string) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Delete forgets a session. Returns false when it did not exist.
func (s *Sessions) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

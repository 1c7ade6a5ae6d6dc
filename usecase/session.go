package usecase

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/synapse/domain"
	"github.com/satriahrh/synapse/utils/log"
	"go.uber.org/zap"
)

// Session is the explicit per-user state: a conversation and the selected
// model. It is never shared between users.
type Session struct {
	ID        string
	CreatedAt time.Time

	conversation domain.Conversation

	// send serializes requests so a session has one in-flight call at most.
	send sync.Mutex

	mu         sync.RWMutex
	model      string
	lastActive time.Time
	// attached counts live connections; attached sessions are never swept.
	attached int
}

func (s *Session) Conversation() domain.Conversation {
	return s.conversation
}

func (s *Session) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

func (s *Session) setModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = now
}

func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attached == 0 && s.lastActive.Before(cutoff)
}

func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// SessionManager owns the lifecycle of sessions: created on Start,
// destroyed on End or when idle for longer than the sweep TTL.
type SessionManager struct {
	mu              sync.RWMutex
	sessions        map[string]*Session
	newConversation func() domain.Conversation
	defaultModel    string
	now             func() time.Time
}

func NewSessionManager(newConversation func() domain.Conversation, defaultModel string) *SessionManager {
	return &SessionManager{
		sessions:        make(map[string]*Session),
		newConversation: newConversation,
		defaultModel:    defaultModel,
		now:             time.Now,
	}
}

func (m *SessionManager) Start() *Session {
	now := m.now()
	s := &Session{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		conversation: m.newConversation(),
		model:        m.defaultModel,
		lastActive:   now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	log.With(zap.String("session_id", s.ID)).Info("session started")
	return s
}

func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	s.touch(m.now())
	return s, nil
}

// End drops the session and its conversation. Ending an unknown session is
// a no-op.
func (m *SessionManager) End(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		log.With(zap.String("session_id", id)).Info("session ended")
	}
}

// Attach marks s as held by a live connection until the returned release
// func is called. Release is idempotent and refreshes the idle clock.
func (m *SessionManager) Attach(s *Session) (release func()) {
	s.mu.Lock()
	s.attached++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.attached--
			s.lastActive = m.now()
			s.mu.Unlock()
		})
	}
}

// Sweep ends every session idle for longer than ttl and returns how many
// were dropped. Sessions with an attached connection are kept.
func (m *SessionManager) Sweep(ttl time.Duration) int {
	cutoff := m.now().Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for id, s := range m.sessions {
		if s.idleSince(cutoff) {
			delete(m.sessions, id)
			dropped++
		}
	}
	if dropped > 0 {
		log.With(zap.Int("dropped", dropped)).Info("idle sessions swept")
	}
	return dropped
}

func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

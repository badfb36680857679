package assistant

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"voice-chatter/internal/conversation"
)

// Session owns one conversation. The mutex serializes turn processing so
// that no two HandleUtterance calls for the same session ever overlap.
// The idle timer has its own lock: s.mu is held across the whole upstream
// call, and the reaper must never wait on that.
type Session struct {
	ID string

	mu    sync.Mutex
	state *conversation.State

	seenMu   sync.Mutex
	lastSeen time.Time
}

// touch refreshes the idle timer.
func (s *Session) touch() {
	s.seenMu.Lock()
	s.lastSeen = time.Now()
	s.seenMu.Unlock()
}

// Turns returns a read-only snapshot of the conversation for rendering.
func (s *Session) Turns() []conversation.Turn { return s.state.Turns() }

// LastSeen reports when the session last processed an utterance.
func (s *Session) LastSeen() time.Time {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	return s.lastSeen
}

// Manager keeps the live sessions of the process, keyed by id. Each session
// gets a fresh ConversationState; sessions never share state and are
// discarded on removal or reaping, never persisted.
type Manager struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	systemPrompt string
}

func NewManager(systemPrompt string) *Manager {
	return &Manager{
		sessions:     make(map[string]*Session),
		systemPrompt: systemPrompt,
	}
}

// Create starts a new empty session and registers it.
func (m *Manager) Create() *Session {
	s := &Session{
		ID:       uuid.NewString(),
		state:    conversation.New(m.systemPrompt),
		lastSeen: time.Now(),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return s
}

// Get returns the session with the given id, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Remove discards a session and its conversation.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Reap discards sessions idle longer than maxIdle and returns how many were
// dropped.
func (m *Manager) Reap(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()
	var reaped int
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(m.sessions, id)
			reaped++
		}
	}
	if reaped > 0 {
		log.Printf("🧹 Reaped %d idle session(s), %d remaining", reaped, len(m.sessions))
	}
	return reaped
}

package conversation

import (
	"sync"

	"github.com/mamadbah2/relaybot/internal/domain/models"
)

// SessionStore holds the conversation state of every chat seen by the process.
// Each session has its own lock, so a slow update for one chat never blocks another.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	mu      sync.Mutex
	session models.Session
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*sessionEntry),
	}
}

// Get returns a snapshot of the session. Unknown ids report the initial state
// without creating a record.
func (s *SessionStore) Get(id string) models.Session {
	s.mu.Lock()
	entry, exists := s.sessions[id]
	s.mu.Unlock()

	if !exists {
		return models.Session{ID: id, State: models.StateAwaitingStart}
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session
}

// Update runs fn against a working copy of the session while holding that session's
// lock, creating the record on first use. The copy is committed only when fn succeeds,
// so concurrent readers never observe a half-applied transition.
func (s *SessionStore) Update(id string, fn func(*models.Session) error) (models.Session, error) {
	entry := s.entry(id)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	working := entry.session
	if err := fn(&working); err != nil {
		return entry.session, err
	}
	working.ID = id
	entry.session = working
	return working, nil
}

// Len returns the number of sessions created so far.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) entry(id string) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.sessions[id]
	if !exists {
		entry = &sessionEntry{session: models.Session{ID: id, State: models.StateAwaitingStart}}
		s.sessions[id] = entry
	}
	return entry
}

package session

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store manages operator sessions in memory
type Store struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	now      func() time.Time
}

// NewStore creates a new session store
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create starts a new session with a random ID
func (s *Store) Create() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := newSession(uuid.NewString(), s.now())
	s.sessions[session.ID] = session
	log.Printf("[SESSION] Created session: id=%s", session.ID)
	return session
}

// Get returns the session with id, or nil
func (s *Store) Get(id string) *Session {
	s.mu.RLock()
	session := s.sessions[id]
	s.mu.RUnlock()

	if session != nil {
		session.touch(s.now())
	}
	return session
}

// GetOrCreate returns the session with id, creating a fresh one when id is
// unknown. created reports whether a new session was made.
func (s *Store) GetOrCreate(id string) (session *Session, created bool) {
	if id != "" {
		if session := s.Get(id); session != nil {
			return session, false
		}
	}
	return s.Create(), true
}

// Delete removes the session with id
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	log.Printf("[SESSION] Deleted session: id=%s", id)
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Prune removes sessions idle for longer than maxIdle and returns how many were removed
func (s *Store) Prune(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if session.idleSince().Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("[SESSION] Pruned idle sessions: removed=%d remaining=%d", removed, len(s.sessions))
	}
	return removed
}

// Each calls fn for every live session
func (s *Store) Each(fn func(*Session)) {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.RUnlock()

	for _, session := range sessions {
		fn(session)
	}
}

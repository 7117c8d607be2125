package storage

import (
	"sync"
	"time"

	"github.com/blavejr/finadvisor/models"

	"github.com/google/uuid"
)

// SessionStore holds conversation sessions in memory, keyed by cookie id.
// Sessions do not survive a restart.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	defaults models.GenerationParams
}

func NewSessionStore(defaults models.GenerationParams) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*models.Session),
		defaults: defaults,
	}
}

func (s *SessionStore) Get(id string) (*models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// GetOrCreate returns the session for id, or a new session under a fresh id
// when id is empty or unknown.
func (s *SessionStore) GetOrCreate(id string) *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok && id != "" {
		sess.Touch(time.Now())
		return sess
	}

	sess := models.NewSession(uuid.NewString(), s.defaults)
	s.sessions[sess.ID] = sess
	return sess
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Prune drops sessions idle for longer than maxIdle and returns how many were removed.
func (s *SessionStore) Prune(now time.Time, maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastSeen()) > maxIdle {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

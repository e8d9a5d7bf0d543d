package http

import (
	"sync"

	"github.com/google/uuid"

	"mindtriage/internal/session"
)

// Store keeps live sessions in memory, keyed by id. Sessions do not survive
// a process restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*session.Session
	eng      session.Engine
	opts     session.Options
}

// NewStore creates sessions wired to eng with opts.
func NewStore(eng session.Engine, opts session.Options) *Store {
	return &Store{sessions: make(map[uuid.UUID]*session.Session), eng: eng, opts: opts}
}

// Create starts a new session under a fresh id.
func (s *Store) Create() *session.Session {
	id := uuid.New()
	sess := session.New(id.String(), s.eng, s.opts)
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	return sess
}

// Get looks a session up by its string id.
func (s *Store) Get(raw string) (*session.Session, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Len reports how many sessions are live.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

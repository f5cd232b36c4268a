package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const sessionCookie = "panel_session"

type Session struct {
	ID        string
	UserID    string
	Username  string
	ExpiresAt time.Time
}

// sessionStore keeps sessions in memory. A restart logs everyone out, which
// matches how the panel is deployed alongside its single bot process.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{sessions: make(map[string]Session), ttl: ttl}
}

func (s *sessionStore) Create(userID, username string) Session {
	session := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  username,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return session
}

func (s *sessionStore) Get(id string) (Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || time.Now().After(session.ExpiresAt) {
		return Session{}, false
	}
	return session, true
}

func (s *sessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// RunCleanup drops expired sessions periodically until the context ends.
func (s *sessionStore) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for id, session := range s.sessions {
				if now.After(session.ExpiresAt) {
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

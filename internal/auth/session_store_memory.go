package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// InMemorySessionStore keeps refresh sessions in process memory. Sessions are lost on restart,
// so it backs tests and single-process development setups only.
type InMemorySessionStore struct {
	mu      sync.RWMutex
	byToken map[string]Session
	byUser  map[string]map[string]struct{}
}

// NewInMemorySessionStore returns an empty store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		byToken: make(map[string]Session),
		byUser:  make(map[string]map[string]struct{}),
	}
}

func (s *InMemorySessionStore) Save(_ context.Context, session Session) error {
	if session.RefreshToken == "" || session.UserID == "" {
		return errors.New("session requires a refresh token and user id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byToken[session.RefreshToken] = session
	tokens, ok := s.byUser[session.UserID]
	if !ok {
		tokens = make(map[string]struct{})
		s.byUser[session.UserID] = tokens
	}
	tokens[session.RefreshToken] = struct{}{}
	return nil
}

func (s *InMemorySessionStore) Find(_ context.Context, refreshToken string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.byToken[refreshToken]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, refreshToken string) error {
	s.mu.Lock()
	s.remove(refreshToken)
	s.mu.Unlock()
	return nil
}

// DeleteExpired drops sessions that expired before now.
func (s *InMemorySessionStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for token, session := range s.byToken {
		if session.ExpiresAt.Before(now) {
			s.remove(token)
			removed++
		}
	}
	return removed, nil
}

// Has reports whether a refresh token is stored.
func (s *InMemorySessionStore) Has(refreshToken string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byToken[refreshToken]
	return ok
}

// ActiveFor counts the sessions held by a user.
func (s *InMemorySessionStore) ActiveFor(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser[userID])
}

// remove must be called with mu held.
func (s *InMemorySessionStore) remove(token string) {
	session, ok := s.byToken[token]
	if !ok {
		return
	}
	delete(s.byToken, token)
	if tokens := s.byUser[session.UserID]; tokens != nil {
		delete(tokens, token)
		if len(tokens) == 0 {
			delete(s.byUser, session.UserID)
		}
	}
}

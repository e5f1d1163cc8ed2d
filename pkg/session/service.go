package session

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when no session exists for an id.
var ErrNotFound = errors.New("session not found")

// Service manages session lifecycle and persistence.
type Service interface {
	// Get retrieves an existing session.
	Get(ctx context.Context, id string) (*Context, error)

	// GetOrCreate retrieves a session, creating it lazily on first use.
	GetOrCreate(ctx context.Context, id string) (*Context, error)

	// Save persists the session's current state.
	Save(ctx context.Context, sess *Context) error

	// Delete removes a session.
	Delete(ctx context.Context, id string) error

	// Close releases backing resources.
	Close() error
}

// InMemoryService returns a session service that keeps sessions for the
// process lifetime. Save is a no-op: callers hold live pointers.
func InMemoryService() Service {
	return &inMemoryService{
		sessions: make(map[string]*Context),
	}
}

type inMemoryService struct {
	mu       sync.RWMutex
	sessions map[string]*Context
}

func (s *inMemoryService) Get(ctx context.Context, id string) (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (s *inMemoryService) GetOrCreate(ctx context.Context, id string) (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}

	sess := NewContext(id)
	s.sessions[id] = sess
	return sess, nil
}

func (s *inMemoryService) Save(ctx context.Context, sess *Context) error {
	return nil
}

func (s *inMemoryService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

func (s *inMemoryService) Close() error { return nil }

package session

import (
	"context"
	"sync"
	"time"

	"github.com/vyrodovalexey/tenantgate/internal/observability"
)

// memoryRegistry is the in-memory session registry.
type memoryRegistry struct {
	logger observability.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// newMemoryRegistry creates an in-memory registry.
func newMemoryRegistry(logger observability.Logger) *memoryRegistry {
	return &memoryRegistry{
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for the given ID.
func (r *memoryRegistry) Get(_ context.Context, id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}

	if s.Expired(time.Now()) {
		r.mu.Lock()
		delete(r.sessions, id)
		r.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	return s, nil
}

// Put stores a session.
func (r *memoryRegistry) Put(_ context.Context, s *Session) error {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return nil
}

// Delete removes a session.
func (r *memoryRegistry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	return nil
}

// Sweep removes expired sessions.
func (r *memoryRegistry) Sweep(_ context.Context) (int, error) {
	now := time.Now()
	evicted := 0

	r.mu.Lock()
	for id, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, id)
			evicted++
		}
	}
	r.mu.Unlock()

	if evicted > 0 {
		r.logger.Debug("session sweep evicted expired sessions",
			observability.Int("evicted", evicted),
		)
	}

	return evicted, nil
}

// Close releases resources.
func (r *memoryRegistry) Close() error {
	r.mu.Lock()
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	return nil
}

// Ensure memoryRegistry implements Registry.
var _ Registry = (*memoryRegistry)(nil)

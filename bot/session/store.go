package session

import (
	"context"
	"sync"
)

// Key identifies a conversation. Telegram delivers private-chat updates with
// user and chat IDs that coincide, but group usage keeps them distinct.
type Key struct {
	UserID int64
	ChatID int64
}

// Store loads and persists conversation sessions.
type Store interface {
	// Get returns the stored session for the key, or a fresh idle session
	// if none exists. The returned value is owned by the caller.
	Get(ctx context.Context, key Key) (*Session, error)
	// Put persists the session for the key, replacing any previous value.
	Put(ctx context.Context, key Key, s *Session) error
	// Delete removes the session for the key. Missing keys are not an error.
	Delete(ctx context.Context, key Key) error
}

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[Key]*Session
}

// NewMemoryStore constructs an in-memory Store for tests and single-instance
// deployments without a database.
func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[Key]*Session)}
}

func (m *memoryStore) Get(_ context.Context, key Key) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.sessions[key]; ok {
		return s.Clone(), nil
	}
	return New(), nil
}

func (m *memoryStore) Put(_ context.Context, key Key, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[key] = s.Clone()
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, key)
	return nil
}

package state

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory. Sessions are never
// expired; an abandoned session stays in its last stage.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]Session
	locks    keyedMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]Session),
	}
}

func (m *MemoryStore) Get(_ context.Context, customerID int64) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[customerID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *MemoryStore) GetOrCreate(_ context.Context, customerID int64) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[customerID]
	if !ok {
		s = newSession(customerID)
		m.sessions[customerID] = s
	}
	return s, nil
}

func (m *MemoryStore) Update(_ context.Context, customerID int64, patch func(*Session)) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[customerID]
	if !ok {
		s = newSession(customerID)
	}
	s, err := applyPatch(customerID, s, patch)
	if err != nil {
		return Session{}, err
	}
	m.sessions[customerID] = s
	return s, nil
}

func (m *MemoryStore) Clear(_ context.Context, customerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[customerID] = newSession(customerID)
	return nil
}

func (m *MemoryStore) Lock(customerID int64) func() {
	return m.locks.Lock(customerID)
}

// keyedMutex hands out one mutex per customer and forgets it once nobody
// holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key int64) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[int64]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.Unlock()

			k.mu.Lock()
			m.refs--
			if m.refs == 0 {
				delete(k.locks, key)
			}
			k.mu.Unlock()
		})
	}
}

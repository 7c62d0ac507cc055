package store

import (
	"sync"

	"github.com/rickgao/position-relay/internal/position"
)

// Store maps connection endpoints to client position snapshots.
// All methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	clients map[string]*position.ClientPosition // endpoint → snapshot
}

// New creates an empty store.
func New() *Store {
	return &Store{
		clients: make(map[string]*position.ClientPosition),
	}
}

// Upsert registers clientID for key if key is unknown. The first handshake wins:
// repeat calls never change an existing client id. Returns true if an entry was created.
func (s *Store) Upsert(key, clientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[key]; ok {
		return false
	}
	s.clients[key] = position.NewClientPosition(clientID)
	return true
}

// Update merges pos into the snapshot for key and returns a copy of the result.
// An unknown key gets an entry with an empty client id.
func (s *Store) Update(key string, pos position.SymbolPosition) position.ClientPosition {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, ok := s.clients[key]
	if !ok {
		cp = position.NewClientPosition("")
		s.clients[key] = cp
	}
	cp.Set(pos)
	return cp.Clone()
}

// Get returns a copy of the snapshot for key.
func (s *Store) Get(key string) (position.ClientPosition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.clients[key]
	if !ok {
		return position.ClientPosition{}, false
	}
	return cp.Clone(), true
}

// Remove evicts key. Returns false if it was not present.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[key]; !ok {
		return false
	}
	delete(s.clients, key)
	return true
}

// Snapshot returns a deep copy of every entry.
func (s *Store) Snapshot() map[string]position.ClientPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]position.ClientPosition, len(s.clients))
	for key, cp := range s.clients {
		out[key] = cp.Clone()
	}
	return out
}

// Len returns the number of known endpoints.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

package errands

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("errand not found")

// Store exposes the slice of errand state the sync pass needs: whether the
// errand exists and who its assigned handler is.
type Store interface {
	Exists(ctx context.Context, namespace, municipalityID, errandID string) (bool, error)
	// AssignedHandler returns the identifier of the errand's current handler,
	// or an empty string when the errand is unassigned.
	AssignedHandler(ctx context.Context, namespace, municipalityID, errandID string) (string, error)
}

type errandKey struct {
	namespace      string
	municipalityID string
	errandID       string
}

// InMemoryStore is a threadsafe in-memory store for tests
type InMemoryStore struct {
	mu       sync.RWMutex
	handlers map[errandKey]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{handlers: make(map[errandKey]string)}
}

// Put registers an errand with its assigned handler (empty for unassigned)
func (s *InMemoryStore) Put(namespace, municipalityID, errandID, handler string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[errandKey{namespace, municipalityID, errandID}] = handler
}

func (s *InMemoryStore) Exists(ctx context.Context, namespace, municipalityID, errandID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.handlers[errandKey{namespace, municipalityID, errandID}]
	return ok, nil
}

func (s *InMemoryStore) AssignedHandler(ctx context.Context, namespace, municipalityID, errandID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	handler, ok := s.handlers[errandKey{namespace, municipalityID, errandID}]
	if !ok {
		return "", ErrNotFound
	}
	return handler, nil
}

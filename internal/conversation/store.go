package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("conversation not found")

	// ErrVersionConflict is returned by Save when the stored row moved under
	// the caller. The losing pass writes nothing; re-running it is safe
	// because the cursor only advances on full success.
	ErrVersionConflict = errors.New("conversation version conflict")
)

type Store interface {
	Get(ctx context.Context, id string) (*Conversation, error)
	GetByRemoteID(ctx context.Context, namespace, municipalityID, remoteID string) (*Conversation, error)
	Create(ctx context.Context, c *Conversation) error
	Save(ctx context.Context, c *Conversation) error
}

// InMemoryStore is a threadsafe in-memory store for tests
type InMemoryStore struct {
	mu   sync.RWMutex
	byID map[string]*Conversation
	now  func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID: make(map[string]*Conversation),
		now:  time.Now,
	}
}

func (s *InMemoryStore) Get(ctx context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneConversation(v), nil
}

func (s *InMemoryStore) GetByRemoteID(ctx context.Context, namespace, municipalityID, remoteID string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.byID {
		if v.Namespace == namespace && v.MunicipalityID == municipalityID && v.RemoteConversationID == remoteID {
			return cloneConversation(v), nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) Create(ctx context.Context, c *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Version = 0
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.byID[c.ID] = cloneConversation(c)
	return nil
}

func (s *InMemoryStore) Save(ctx context.Context, c *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.byID[c.ID]
	if !ok {
		return ErrNotFound
	}
	if old.Version != c.Version {
		return ErrVersionConflict
	}
	c.Version++
	c.CreatedAt = old.CreatedAt
	c.UpdatedAt = s.now()
	s.byID[c.ID] = cloneConversation(c)
	return nil
}

func cloneConversation(c *Conversation) *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	if c.RelationIDs != nil {
		cp.RelationIDs = append([]string(nil), c.RelationIDs...)
	}
	return &cp
}

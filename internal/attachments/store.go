package attachments

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrandAttachment is a file stored against an errand. Mirrored remote
// attachments land here; the store is append-only, nothing updates or
// deletes rows.
type ErrandAttachment struct {
	ID             string
	ErrandID       string
	Namespace      string
	MunicipalityID string
	FileName       string
	ContentType    string
	Content        []byte
	CreatedAt      time.Time
}

type Store interface {
	Add(ctx context.Context, a *ErrandAttachment) error
	ListByErrand(ctx context.Context, namespace, municipalityID, errandID string) ([]*ErrandAttachment, error)
}

// InMemoryStore is a threadsafe in-memory store for tests
type InMemoryStore struct {
	mu          sync.RWMutex
	attachments []*ErrandAttachment
	now         func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{now: time.Now}
}

func (s *InMemoryStore) Add(ctx context.Context, a *ErrandAttachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = s.now()
	cp := *a
	cp.Content = append([]byte(nil), a.Content...)
	s.attachments = append(s.attachments, &cp)
	return nil
}

func (s *InMemoryStore) ListByErrand(ctx context.Context, namespace, municipalityID, errandID string) ([]*ErrandAttachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ErrandAttachment
	for _, a := range s.attachments {
		if a.Namespace == namespace && a.MunicipalityID == municipalityID && a.ErrandID == errandID {
			cp := *a
			cp.Content = append([]byte(nil), a.Content...)
			out = append(out, &cp)
		}
	}
	return out, nil
}

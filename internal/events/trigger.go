package events

import (
	"context"
	"sync"
	"time"
)

// Event and notification classification written by the trigger.
const (
	EventTypeUpdate            = "UPDATE"
	NotificationSubtypeMessage = "MESSAGE"
)

// ErrandRef identifies the errand an event is recorded against.
type ErrandRef struct {
	Namespace      string
	MunicipalityID string
	ErrandID       string
}

// Trigger is the notification collaborator the sync engine drives. A call
// records one UPDATE event against the errand and marks it
// notification-worthy with the MESSAGE subtype; the engine supplies only the
// errand reference and the conversation topic.
type Trigger interface {
	ConversationUpdated(ctx context.Context, ref ErrandRef, topic string) error
}

// TriggerCall captures one invocation for assertions in tests.
type TriggerCall struct {
	Ref   ErrandRef
	Topic string
	At    time.Time
}

// MemoryTrigger is a threadsafe in-memory trigger for tests
type MemoryTrigger struct {
	mu    sync.Mutex
	calls []TriggerCall
}

func NewMemoryTrigger() *MemoryTrigger {
	return &MemoryTrigger{}
}

func (t *MemoryTrigger) ConversationUpdated(ctx context.Context, ref ErrandRef, topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, TriggerCall{Ref: ref, Topic: topic, At: time.Now()})
	return nil
}

func (t *MemoryTrigger) Calls() []TriggerCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TriggerCall(nil), t.calls...)
}

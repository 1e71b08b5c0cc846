package conversation

import (
	"errors"
	"fmt"
	"time"
)

// ConversationType classifies a conversation as internal (between handlers)
// or external (with the errand's stakeholders).
type ConversationType string

const (
	TypeInternal ConversationType = "INTERNAL"
	TypeExternal ConversationType = "EXTERNAL"
)

// ErrUnknownConversationType is returned when a remote type string does not
// map to a known ConversationType. The mapping fails closed: unknown input is
// never coerced to a default.
var ErrUnknownConversationType = errors.New("unknown conversation type")

// ParseConversationType maps the remote service's free-text type to the local
// enumeration.
func ParseConversationType(s string) (ConversationType, error) {
	switch ConversationType(s) {
	case TypeInternal:
		return TypeInternal, nil
	case TypeExternal:
		return TypeExternal, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownConversationType, s)
}

// Conversation links an errand to a conversation resource owned by the remote
// messaging service. Topic, Type and RelationIDs mirror the remote state and
// are overwritten on every sync; the identity and tenancy fields are set at
// creation and never change.
type Conversation struct {
	ID                   string
	RemoteConversationID string
	ErrandID             string
	Namespace            string
	MunicipalityID       string

	Topic            string
	Type             ConversationType
	RelationIDs      []string
	TargetRelationID string

	// LatestSyncedSequenceNumber is the highest remote message sequence
	// number already fully processed. It never decreases.
	LatestSyncedSequenceNumber int64

	// Version guards read-then-write cycles; Save rejects a stale version.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AdvanceCursor raises the sync cursor to the observed remote high-water
// mark. A stale or duplicate remote read can report a lower mark; the cursor
// keeps its current value in that case.
func (c *Conversation) AdvanceCursor(observed int64) {
	if observed > c.LatestSyncedSequenceNumber {
		c.LatestSyncedSequenceNumber = observed
	}
}

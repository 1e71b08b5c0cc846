package conversation

import (
	"fmt"

	"github.com/errandsync/internal/messaging"
)

// Merge produces a new Conversation with Topic, Type and RelationIDs taken
// from the remote view and everything else preserved from local. The sync
// cursor is untouched; the caller advances it separately once the pass
// completes. An unrecognized remote type fails the merge so the local record
// is never overwritten with invalid data.
func Merge(local *Conversation, remote *messaging.RemoteConversation) (*Conversation, error) {
	typ, err := ParseConversationType(remote.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to merge conversation %s: %w", local.ID, err)
	}

	merged := *local
	merged.Topic = remote.Topic
	merged.Type = typ
	merged.RelationIDs = remote.RelationIDs()
	return &merged, nil
}

// Package sync reconciles locally owned conversation records with the remote
// messaging service: it refreshes conversation metadata, pulls messages past
// the stored sequence-number cursor, mirrors their attachments into the
// errand's attachment store and decides whether the activity warrants a
// notification.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/errandsync/internal/attachments"
	"github.com/errandsync/internal/conversation"
	"github.com/errandsync/internal/errands"
	"github.com/errandsync/internal/events"
	"github.com/errandsync/internal/messaging"
)

// ErrRemoteContent marks an attachment fetch that succeeded at the transport
// level but returned an empty body or no content type. The pass fails;
// attachments already mirrored earlier in the pass stay persisted.
var ErrRemoteContent = errors.New("remote attachment content missing")

// Engine runs synchronization passes. It holds no per-conversation state;
// concurrent passes for the same conversation are serialized only by the
// registry's optimistic version check on save.
type Engine struct {
	conversations conversation.Store
	remote        messaging.Client
	attachments   attachments.Store
	errands       errands.Store
	trigger       events.Trigger
}

func NewEngine(
	conversations conversation.Store,
	remote messaging.Client,
	attachmentStore attachments.Store,
	errandStore errands.Store,
	trigger events.Trigger,
) *Engine {
	return &Engine{
		conversations: conversations,
		remote:        remote,
		attachments:   attachmentStore,
		errands:       errandStore,
		trigger:       trigger,
	}
}

// Result is the outcome of a full synchronization pass.
type Result struct {
	Conversation *conversation.Conversation
	Notified     bool
}

// SyncConversationMetadata merges the remote view into the local record and
// persists it. Message sync is separate because metadata sync runs on
// conversation create/update while message sync is driven by activity
// signals.
func (e *Engine) SyncConversationMetadata(ctx context.Context, local *conversation.Conversation, remote *messaging.RemoteConversation) (*conversation.Conversation, error) {
	merged, err := conversation.Merge(local, remote)
	if err != nil {
		return nil, err
	}

	if err := e.conversations.Save(ctx, merged); err != nil {
		return nil, fmt.Errorf("failed to save merged conversation %s: %w", merged.ID, err)
	}

	return merged, nil
}

// SyncMessages pulls every message past the conversation's cursor, mirrors
// all attachments and reports whether any message warrants a notification.
// The cursor is not advanced here; the caller advances it once the whole
// pass has succeeded.
func (e *Engine) SyncMessages(ctx context.Context, conv *conversation.Conversation, excludedAuthor string) (bool, error) {
	notify, _, err := e.pullMessages(ctx, conv, excludedAuthor)
	return notify, err
}

func (e *Engine) pullMessages(ctx context.Context, conv *conversation.Conversation, excludedAuthor string) (bool, int, error) {
	msgs, err := e.remote.GetMessages(ctx, conv.MunicipalityID, conv.Namespace, conv.RemoteConversationID, conv.LatestSyncedSequenceNumber)
	if err != nil {
		return false, 0, fmt.Errorf("failed to fetch messages for conversation %s: %w", conv.ID, err)
	}

	if len(msgs) == 0 {
		return false, 0, nil
	}

	notify := false
	for _, msg := range msgs {
		for _, ref := range msg.Attachments {
			if err := e.mirrorAttachment(ctx, conv, msg, ref); err != nil {
				return false, 0, err
			}
		}
		if notifiable(msg, excludedAuthor) {
			notify = true
		}
	}

	log.Debug().
		Str("conversation_id", conv.ID).
		Int("messages", len(msgs)).
		Bool("notify", notify).
		Msg("processed message window")

	return notify, len(msgs), nil
}

// notifiable reports whether a message should raise a notification. A message
// without an author is conservatively notification-worthy, and so is every
// message when the errand has no assigned handler.
func notifiable(msg messaging.Message, excludedAuthor string) bool {
	if msg.CreatedBy == nil || excludedAuthor == "" {
		return true
	}
	return msg.CreatedBy.Value != excludedAuthor
}

// mirrorAttachment copies one remote attachment into the errand's attachment
// store. Mirroring is append-only and at-least-once: a pass re-run over an
// overlapping message window may store the same attachment again.
func (e *Engine) mirrorAttachment(ctx context.Context, conv *conversation.Conversation, msg messaging.Message, ref messaging.AttachmentRef) error {
	data, err := e.remote.GetMessageAttachment(ctx, conv.MunicipalityID, conv.Namespace, conv.RemoteConversationID, msg.ID, ref.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch attachment %s of message %s: %w", ref.ID, msg.ID, err)
	}
	defer data.Content.Close()

	content, err := io.ReadAll(data.Content)
	if err != nil {
		return fmt.Errorf("failed to read attachment %s: %w", ref.ID, err)
	}

	if len(content) == 0 || data.ContentType == "" {
		return fmt.Errorf("%w: attachment %s of message %s", ErrRemoteContent, ref.ID, msg.ID)
	}

	err = e.attachments.Add(ctx, &attachments.ErrandAttachment{
		ErrandID:       conv.ErrandID,
		Namespace:      conv.Namespace,
		MunicipalityID: conv.MunicipalityID,
		FileName:       ref.FileName,
		ContentType:    data.ContentType,
		Content:        content,
	})
	if err != nil {
		return fmt.Errorf("failed to store attachment %s: %w", ref.ID, err)
	}

	return nil
}

// SyncConversation runs one full pass for the conversation: refresh metadata
// from the remote service, pull new messages, mirror attachments, fire the
// notification trigger when warranted and finally advance the cursor to the
// remote high-water mark. Nothing advances on failure, so re-running a
// failed pass is safe.
func (e *Engine) SyncConversation(ctx context.Context, conversationID string) (*Result, error) {
	local, err := e.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", conversationID, err)
	}

	view, err := e.remote.GetConversation(ctx, local.MunicipalityID, local.Namespace, local.RemoteConversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch remote conversation %s: %w", local.RemoteConversationID, err)
	}

	conv, err := e.SyncConversationMetadata(ctx, local, view)
	if err != nil {
		return nil, err
	}

	excludedAuthor, err := e.errands.AssignedHandler(ctx, conv.Namespace, conv.MunicipalityID, conv.ErrandID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assigned handler for errand %s: %w", conv.ErrandID, err)
	}

	notify, processed, err := e.pullMessages(ctx, conv, excludedAuthor)
	if err != nil {
		return nil, err
	}

	if notify {
		ref := events.ErrandRef{
			Namespace:      conv.Namespace,
			MunicipalityID: conv.MunicipalityID,
			ErrandID:       conv.ErrandID,
		}
		if err := e.trigger.ConversationUpdated(ctx, ref, conv.Topic); err != nil {
			return nil, fmt.Errorf("failed to record conversation update event: %w", err)
		}
	}

	if processed > 0 {
		// The remote view's high-water mark is authoritative; the cursor only
		// ever moves forward.
		conv.AdvanceCursor(view.LatestSequenceNumber)
		if err := e.conversations.Save(ctx, conv); err != nil {
			return nil, fmt.Errorf("failed to advance cursor for conversation %s: %w", conv.ID, err)
		}
	}

	log.Info().
		Str("conversation_id", conv.ID).
		Str("errand_id", conv.ErrandID).
		Int("messages", processed).
		Bool("notified", notify).
		Int64("cursor", conv.LatestSyncedSequenceNumber).
		Msg("conversation sync pass completed")

	return &Result{Conversation: conv, Notified: notify}, nil
}

package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/errandsync/internal/conversation"
	"github.com/errandsync/internal/jobqueue"
	"github.com/errandsync/internal/messaging"
	syncengine "github.com/errandsync/internal/sync"
)

// conversationResponse is the API shape of a conversation record
type conversationResponse struct {
	ID                         string   `json:"id"`
	RemoteConversationID       string   `json:"remoteConversationId"`
	ErrandID                   string   `json:"errandId"`
	Topic                      string   `json:"topic"`
	Type                       string   `json:"type"`
	RelationIDs                []string `json:"relationIds,omitempty"`
	TargetRelationID           string   `json:"targetRelationId,omitempty"`
	LatestSyncedSequenceNumber int64    `json:"latestSyncedSequenceNumber"`
}

func toConversationResponse(c *conversation.Conversation) conversationResponse {
	return conversationResponse{
		ID:                         c.ID,
		RemoteConversationID:       c.RemoteConversationID,
		ErrandID:                   c.ErrandID,
		Topic:                      c.Topic,
		Type:                       string(c.Type),
		RelationIDs:                c.RelationIDs,
		TargetRelationID:           c.TargetRelationID,
		LatestSyncedSequenceNumber: c.LatestSyncedSequenceNumber,
	}
}

// getConversation returns the local conversation record
func (s *Server) getConversation(c echo.Context) error {
	conv, err := s.conversations.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return syncErrorResponse(c, err)
	}
	if conv.ErrandID != c.Param("errandId") || conv.Namespace != c.Param("namespace") || conv.MunicipalityID != c.Param("municipalityId") {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "conversation not found"})
	}

	return c.JSON(http.StatusOK, toConversationResponse(conv))
}

// syncConversation runs a full sync pass inline
func (s *Server) syncConversation(c echo.Context) error {
	res, err := s.engine.SyncConversation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return syncErrorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"notified":                   res.Notified,
		"latestSyncedSequenceNumber": res.Conversation.LatestSyncedSequenceNumber,
	})
}

// messagingEvent is the activity callback the remote messaging service posts
type messagingEvent struct {
	RemoteConversationID string `json:"conversationId"`
}

// handleMessagingEvent queues an asynchronous sync pass for the conversation
// the remote service reports activity on
func (s *Server) handleMessagingEvent(c echo.Context) error {
	var event messagingEvent
	if err := c.Bind(&event); err != nil || event.RemoteConversationID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "conversationId is required"})
	}

	namespace := c.Param("namespace")
	municipalityID := c.Param("municipalityId")

	// Resolve up front so unknown conversations get a 404 instead of a
	// permanently failing job
	conv, err := s.conversations.GetByRemoteID(c.Request().Context(), namespace, municipalityID, event.RemoteConversationID)
	if err != nil {
		return syncErrorResponse(c, err)
	}

	err = s.queue.EnqueueConversationSync(c.Request().Context(), jobqueue.ConversationSyncArgs{
		ConversationID: conv.ID,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to queue sync"})
	}

	return c.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
}

// syncErrorResponse maps sync failures onto HTTP statuses
func syncErrorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "conversation not found"})
	case errors.Is(err, conversation.ErrVersionConflict):
		return c.JSON(http.StatusConflict, map[string]string{"error": "conversation was modified concurrently"})
	case errors.Is(err, messaging.ErrRemoteUnavailable),
		errors.Is(err, syncengine.ErrRemoteContent),
		errors.Is(err, conversation.ErrUnknownConversationType):
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "sync failed"})
	}
}

package messaging

import (
	"errors"
	"io"
	"time"
)

// ErrRemoteUnavailable marks transport-level failures against the remote
// messaging service: no response, a non-2xx status, or an undecodable body.
// A sync pass must treat it as fatal, never as "no new messages".
var ErrRemoteUnavailable = errors.New("remote messaging service unavailable")

// KeyValues is the remote service's generic key/multi-value pair.
type KeyValues struct {
	Key    string   `json:"key"`
	Values []string `json:"values"`
}

// Identifier names a message author.
type Identifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// AttachmentRef points at an attachment on a remote message.
type AttachmentRef struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
}

// Message is a remote conversation message. Messages are never persisted
// locally; they are only consumed during a sync pass.
type Message struct {
	ID             string          `json:"id"`
	SequenceNumber int64           `json:"sequenceNumber"`
	Created        time.Time       `json:"created"`
	CreatedBy      *Identifier     `json:"createdBy"`
	Content        string          `json:"content"`
	Attachments    []AttachmentRef `json:"attachments"`
}

// RemoteConversation is the remote service's view of a conversation.
type RemoteConversation struct {
	ID                   string       `json:"id"`
	Topic                string       `json:"topic"`
	Type                 string       `json:"type"`
	Participants         []Identifier `json:"participants"`
	ExternalReferences   []KeyValues  `json:"externalReferences"`
	Metadata             []KeyValues  `json:"metadata"`
	LatestSequenceNumber int64        `json:"latestSequenceNumber"`
}

// RelationIDs collects the relation identifiers the remote service carries in
// conversation metadata. The returned slice replaces the local list wholesale
// on every sync.
func (rc *RemoteConversation) RelationIDs() []string {
	for _, entry := range rc.Metadata {
		if entry.Key == "relationIds" {
			return append([]string(nil), entry.Values...)
		}
	}
	return nil
}

// AttachmentData is a fetched attachment byte stream with its declared
// content type. The caller owns closing Content.
type AttachmentData struct {
	ContentType string
	Content     io.ReadCloser
}

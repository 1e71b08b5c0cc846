package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *HTTPClient {
	c := NewHTTPClient(HTTPClientOptions{
		BaseURL:       baseURL,
		Token:         "test-token",
		PageSize:      2,
		RatePerSecond: 1000,
	})
	c.retryCfg.MaxRetries = 0
	return c
}

func TestGetConversation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2281/CONTACTCENTER/conversations/remote-1", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{
			"id": "remote-1",
			"topic": "Broken streetlight",
			"type": "EXTERNAL",
			"metadata": [{"key": "relationIds", "values": ["rel-1", "rel-2"]}],
			"latestSequenceNumber": 17
		}`)
	}))
	defer srv.Close()

	conv, err := testClient(srv.URL).GetConversation(context.Background(), "2281", "CONTACTCENTER", "remote-1")
	require.NoError(t, err)
	assert.Equal(t, "Broken streetlight", conv.Topic)
	assert.Equal(t, "EXTERNAL", conv.Type)
	assert.Equal(t, int64(17), conv.LatestSequenceNumber)
	assert.Equal(t, []string{"rel-1", "rel-2"}, conv.RelationIDs())
}

func TestGetMessagesDrainsAllPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sequenceNumber.id > 10", r.URL.Query().Get("filter"))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		switch page {
		case 0:
			fmt.Fprint(w, `{"content":[
				{"id":"m1","sequenceNumber":11,"createdBy":{"type":"adAccount","value":"agentA"}},
				{"id":"m2","sequenceNumber":12,"createdBy":{"type":"adAccount","value":"citizenB"}}
			],"number":0,"totalPages":2}`)
		case 1:
			fmt.Fprint(w, `{"content":[
				{"id":"m3","sequenceNumber":13}
			],"number":1,"totalPages":2}`)
		default:
			t.Errorf("unexpected page %d", page)
		}
	}))
	defer srv.Close()

	msgs, err := testClient(srv.URL).GetMessages(context.Background(), "2281", "CONTACTCENTER", "remote-1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, int64(11), msgs[0].SequenceNumber)
	assert.Equal(t, int64(13), msgs[2].SequenceNumber)
	assert.Nil(t, msgs[2].CreatedBy)
}

func TestGetMessagesEmptyWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":[],"number":0,"totalPages":0}`)
	}))
	defer srv.Close()

	msgs, err := testClient(srv.URL).GetMessages(context.Background(), "2281", "CONTACTCENTER", "remote-1", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestGetMessagesTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	_, err := testClient(srv.URL).GetMessages(context.Background(), "2281", "CONTACTCENTER", "remote-1", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemoteUnavailable), "got %v", err)
}

func TestGetMessagesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GetMessages(context.Background(), "2281", "CONTACTCENTER", "remote-1", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemoteUnavailable), "got %v", err)
}

func TestGetMessageAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2281/CONTACTCENTER/conversations/remote-1/messages/m1/attachments/a1", r.URL.Path)
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	data, err := testClient(srv.URL).GetMessageAttachment(context.Background(), "2281", "CONTACTCENTER", "remote-1", "m1", "a1")
	require.NoError(t, err)
	defer data.Content.Close()

	assert.Equal(t, "image/png", data.ContentType)
	body, err := io.ReadAll(data.Content)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/errandsync/internal/conversation"
	"github.com/errandsync/internal/jobqueue"
	"github.com/errandsync/internal/messaging"
	syncengine "github.com/errandsync/internal/sync"
)

const testSecret = "test-secret"

type stubRunner struct {
	result *syncengine.Result
	err    error
}

func (s *stubRunner) SyncConversation(ctx context.Context, conversationID string) (*syncengine.Result, error) {
	return s.result, s.err
}

type stubEnqueuer struct {
	enqueued []jobqueue.ConversationSyncArgs
	err      error
}

func (s *stubEnqueuer) EnqueueConversationSync(ctx context.Context, args jobqueue.ConversationSyncArgs) error {
	s.enqueued = append(s.enqueued, args)
	return s.err
}

func bearerToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "test-caller",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func testServer(t *testing.T, runner *stubRunner, enqueuer *stubEnqueuer) (*Server, *conversation.InMemoryStore, *conversation.Conversation) {
	t.Helper()

	store := conversation.NewInMemoryStore()
	conv := &conversation.Conversation{
		RemoteConversationID:       "remote-1",
		ErrandID:                   "errand-1",
		Namespace:                  "CONTACTCENTER",
		MunicipalityID:             "2281",
		Topic:                      "Broken streetlight",
		Type:                       conversation.TypeExternal,
		LatestSyncedSequenceNumber: 99,
	}
	require.NoError(t, store.Create(context.Background(), conv))

	return NewServer(0, runner, enqueuer, store, testSecret), store, conv
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsUnauthenticated(t *testing.T) {
	s, _, _ := testServer(t, &stubRunner{}, &stubEnqueuer{})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	s, _, conv := testServer(t, &stubRunner{}, &stubEnqueuer{})
	path := fmt.Sprintf("/2281/CONTACTCENTER/errands/errand-1/conversations/%s", conv.ID)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = doRequest(s, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetConversation(t *testing.T) {
	s, _, conv := testServer(t, &stubRunner{}, &stubEnqueuer{})

	path := fmt.Sprintf("/2281/CONTACTCENTER/errands/errand-1/conversations/%s", conv.ID)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", bearerToken(t))
	rec := doRequest(s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"topic":"Broken streetlight"`)
	assert.Contains(t, rec.Body.String(), `"latestSyncedSequenceNumber":99`)
}

func TestGetConversationWrongErrandIs404(t *testing.T) {
	s, _, conv := testServer(t, &stubRunner{}, &stubEnqueuer{})

	path := fmt.Sprintf("/2281/CONTACTCENTER/errands/other-errand/conversations/%s", conv.ID)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", bearerToken(t))
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSyncConversationInline(t *testing.T) {
	runner := &stubRunner{result: &syncengine.Result{
		Conversation: &conversation.Conversation{LatestSyncedSequenceNumber: 101},
		Notified:     true,
	}}
	s, _, conv := testServer(t, runner, &stubEnqueuer{})

	path := fmt.Sprintf("/2281/CONTACTCENTER/errands/errand-1/conversations/%s/sync", conv.ID)
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("Authorization", bearerToken(t))
	rec := doRequest(s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"notified":true`)
	assert.Contains(t, rec.Body.String(), `"latestSyncedSequenceNumber":101`)
}

func TestSyncConversationErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{conversation.ErrNotFound, http.StatusNotFound},
		{conversation.ErrVersionConflict, http.StatusConflict},
		{fmt.Errorf("fetch: %w", messaging.ErrRemoteUnavailable), http.StatusBadGateway},
		{fmt.Errorf("mirror: %w", syncengine.ErrRemoteContent), http.StatusBadGateway},
		{fmt.Errorf("merge: %w", conversation.ErrUnknownConversationType), http.StatusBadGateway},
	}

	for _, tc := range cases {
		s, _, conv := testServer(t, &stubRunner{err: tc.err}, &stubEnqueuer{})
		path := fmt.Sprintf("/2281/CONTACTCENTER/errands/errand-1/conversations/%s/sync", conv.ID)
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Authorization", bearerToken(t))
		rec := doRequest(s, req)

		assert.Equal(t, tc.code, rec.Code, "error %v", tc.err)
	}
}

func TestMessagingEventEnqueuesSync(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	s, _, conv := testServer(t, &stubRunner{}, enqueuer)

	body := strings.NewReader(`{"conversationId": "remote-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/2281/CONTACTCENTER/messaging/events", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t))
	rec := doRequest(s, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, enqueuer.enqueued, 1)
	assert.Equal(t, conv.ID, enqueuer.enqueued[0].ConversationID)
}

func TestMessagingEventUnknownConversation(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	s, _, _ := testServer(t, &stubRunner{}, enqueuer)

	body := strings.NewReader(`{"conversationId": "remote-unknown"}`)
	req := httptest.NewRequest(http.MethodPost, "/2281/CONTACTCENTER/messaging/events", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t))
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, enqueuer.enqueued)
}

func TestMessagingEventMissingBody(t *testing.T) {
	s, _, _ := testServer(t, &stubRunner{}, &stubEnqueuer{})

	body := strings.NewReader(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/2281/CONTACTCENTER/messaging/events", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t))
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

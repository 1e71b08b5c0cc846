package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/errandsync/internal/retry"
)

// Client is the consumed surface of the remote messaging service.
type Client interface {
	GetConversation(ctx context.Context, municipalityID, namespace, remoteID string) (*RemoteConversation, error)
	// GetMessages returns the full window of messages with sequence number
	// strictly greater than afterSequence, ascending. A transport failure is
	// an error, never an empty slice.
	GetMessages(ctx context.Context, municipalityID, namespace, remoteID string, afterSequence int64) ([]Message, error)
	GetMessageAttachment(ctx context.Context, municipalityID, namespace, remoteID, messageID, attachmentID string) (*AttachmentData, error)
}

// HTTPClient talks to the messaging service's REST API.
type HTTPClient struct {
	baseURL  string
	token    string
	pageSize int
	httpc    *http.Client
	limiter  *rate.Limiter
	retryCfg retry.Config
}

// HTTPClientOptions configures the HTTPClient.
type HTTPClientOptions struct {
	BaseURL        string
	Token          string
	RequestTimeout time.Duration
	PageSize       int
	RatePerSecond  float64
}

func NewHTTPClient(opts HTTPClientOptions) *HTTPClient {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	perSecond := opts.RatePerSecond
	if perSecond <= 0 {
		perSecond = 10
	}

	return &HTTPClient{
		baseURL:  opts.BaseURL,
		token:    opts.Token,
		pageSize: pageSize,
		httpc:    &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(perSecond), int(perSecond)),
		retryCfg: retry.DefaultConfig(),
	}
}

// messagePage mirrors the service's paged message response.
type messagePage struct {
	Content    []Message `json:"content"`
	Number     int       `json:"number"`
	TotalPages int       `json:"totalPages"`
}

func (c *HTTPClient) GetConversation(ctx context.Context, municipalityID, namespace, remoteID string) (*RemoteConversation, error) {
	endpoint := fmt.Sprintf("/%s/%s/conversations/%s",
		url.PathEscape(municipalityID), url.PathEscape(namespace), url.PathEscape(remoteID))

	var conv RemoteConversation
	if err := c.getJSON(ctx, endpoint, nil, &conv); err != nil {
		return nil, fmt.Errorf("failed to get conversation %s: %w", remoteID, err)
	}
	return &conv, nil
}

func (c *HTTPClient) GetMessages(ctx context.Context, municipalityID, namespace, remoteID string, afterSequence int64) ([]Message, error) {
	endpoint := fmt.Sprintf("/%s/%s/conversations/%s/messages",
		url.PathEscape(municipalityID), url.PathEscape(namespace), url.PathEscape(remoteID))

	var messages []Message
	for page := 0; ; page++ {
		query := url.Values{}
		query.Set("filter", fmt.Sprintf("sequenceNumber.id > %d", afterSequence))
		query.Set("page", fmt.Sprintf("%d", page))
		query.Set("size", fmt.Sprintf("%d", c.pageSize))

		var result messagePage
		if err := c.getJSON(ctx, endpoint, query, &result); err != nil {
			return nil, fmt.Errorf("failed to get messages for conversation %s: %w", remoteID, err)
		}

		messages = append(messages, result.Content...)
		if page+1 >= result.TotalPages {
			break
		}
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].SequenceNumber < messages[j].SequenceNumber
	})

	log.Debug().
		Str("remote_conversation_id", remoteID).
		Int64("after_sequence", afterSequence).
		Int("count", len(messages)).
		Msg("fetched remote messages")

	return messages, nil
}

func (c *HTTPClient) GetMessageAttachment(ctx context.Context, municipalityID, namespace, remoteID, messageID, attachmentID string) (*AttachmentData, error) {
	endpoint := fmt.Sprintf("/%s/%s/conversations/%s/messages/%s/attachments/%s",
		url.PathEscape(municipalityID), url.PathEscape(namespace), url.PathEscape(remoteID),
		url.PathEscape(messageID), url.PathEscape(attachmentID))

	resp, err := c.do(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment %s: %w", attachmentID, err)
	}

	return &AttachmentData{
		ContentType: resp.Header.Get("Content-Type"),
		Content:     resp.Body,
	}, nil
}

// getJSON performs a GET and decodes the JSON body into out.
func (c *HTTPClient) getJSON(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	resp, err := c.do(ctx, endpoint, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrRemoteUnavailable, err)
	}
	return nil
}

// do performs a GET with auth, rate limiting and transport-level retries.
// Any failure to obtain a 2xx response maps to ErrRemoteUnavailable.
func (c *HTTPClient) do(ctx context.Context, endpoint string, query url.Values) (*http.Response, error) {
	fullURL := c.baseURL + endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var resp *http.Response
	err := retry.Do(ctx, c.retryCfg, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		r, err := c.httpc.Do(req)
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}

		if r.StatusCode < 200 || r.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
			r.Body.Close()
			return fmt.Errorf("messaging API error (status %d): %s", r.StatusCode, string(body))
		}

		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	return resp, nil
}

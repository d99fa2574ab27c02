package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"whisperboard/pkg/auth"
	"whisperboard/pkg/models"
)

// Client talks to a board server over its /v1 API. Mutating calls are
// signed with the shared HMAC scheme.
type Client struct {
	baseURL    string
	httpc      *http.Client
	userID     string
	signingKey string
}

// New returns a Client for the server at baseURL acting as userID.
func New(baseURL, userID, signingKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpc:      &http.Client{Timeout: 30 * time.Second},
		userID:     userID,
		signingKey: signingKey,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", c.userID)
	req.Header.Set("X-User-Signature", auth.SignPrincipal(c.signingKey, c.userID))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if derr := json.NewDecoder(resp.Body).Decode(&apiErr); derr == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type createThreadReq struct {
	Topic       string              `json:"topic"`
	Text        string              `json:"text"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
	ClientToken string              `json:"client_token,omitempty"`
}

// CreateThread creates a root whisper under topic.
func (c *Client) CreateThread(ctx context.Context, topic, text string, attachments []models.Attachment, token string) (*models.Thread, error) {
	var t models.Thread
	err := c.do(ctx, http.MethodPost, "/v1/threads", createThreadReq{
		Topic: topic, Text: text, Attachments: attachments, ClientToken: token,
	}, &t)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type createReplyReq struct {
	ParentID    string              `json:"parent_id,omitempty"`
	Text        string              `json:"text"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
	ClientToken string              `json:"client_token,omitempty"`
}

// CreateReply appends a reply under parentID inside threadID.
func (c *Client) CreateReply(ctx context.Context, threadID, parentID, text string, attachments []models.Attachment, token string) (*models.Thread, error) {
	var t models.Thread
	err := c.do(ctx, http.MethodPost, "/v1/threads/"+url.PathEscape(threadID)+"/replies", createReplyReq{
		ParentID: parentID, Text: text, Attachments: attachments, ClientToken: token,
	}, &t)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ToggleReaction flips this user's reaction on a node.
func (c *Client) ToggleReaction(ctx context.Context, threadID, nodeID, kind string) (*models.Thread, error) {
	var t models.Thread
	path := "/v1/threads/" + url.PathEscape(threadID) + "/nodes/" + url.PathEscape(nodeID) + "/reactions"
	err := c.do(ctx, http.MethodPost, path, struct {
		Kind string `json:"kind"`
	}{Kind: kind}, &t)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// EditText replaces a node's text.
func (c *Client) EditText(ctx context.Context, threadID, nodeID, text string) (*models.Thread, error) {
	var t models.Thread
	path := "/v1/threads/" + url.PathEscape(threadID) + "/nodes/" + url.PathEscape(nodeID)
	err := c.do(ctx, http.MethodPatch, path, struct {
		Text string `json:"text"`
	}{Text: text}, &t)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteNode removes a node and its subtree.
func (c *Client) DeleteNode(ctx context.Context, threadID, nodeID string) error {
	path := "/v1/threads/" + url.PathEscape(threadID) + "/nodes/" + url.PathEscape(nodeID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ListTopic fetches the authoritative snapshot for a topic.
func (c *Client) ListTopic(ctx context.Context, topic string) ([]models.Thread, error) {
	var out struct {
		Threads []models.Thread `json:"threads"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/threads?topic="+url.QueryEscape(topic), nil, &out); err != nil {
		return nil, err
	}
	return out.Threads, nil
}

// GetThread fetches one aggregate.
func (c *Client) GetThread(ctx context.Context, threadID string) (*models.Thread, error) {
	var t models.Thread
	if err := c.do(ctx, http.MethodGet, "/v1/threads/"+url.PathEscape(threadID), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// TopicCounts fetches the topic to thread-count map.
func (c *Client) TopicCounts(ctx context.Context) (map[string]int, error) {
	var out struct {
		Counts map[string]int `json:"counts"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/topics/counts", nil, &out); err != nil {
		return nil, err
	}
	return out.Counts, nil
}

// Subscribe opens the topic event stream. Events arrive on the returned
// channel until ctx is cancelled or the connection drops, then the channel
// closes. The caller should re-fetch the snapshot after a close.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan models.Event, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/v1/topics/" + url.PathEscape(topic) + "/events"
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	ch := make(chan models.Event, 32)
	go func() {
		defer close(ch)
		defer conn.Close()
		for {
			var ev models.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	return ch, nil
}

package dingtalk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"translator-bot/internal/domain"
)

type textReply struct {
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
}

type webhookResult struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// WebhookError is a reply the webhook answered with a non-zero errcode.
type WebhookError struct {
	Code    int
	Message string
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("dingtalk: webhook errcode %d: %s", e.Code, e.Message)
}

// HTTPStatusError captures non-2xx webhook responses.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("dingtalk: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client posts text replies to session webhooks.
type Client struct {
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{httpClient: &http.Client{Timeout: 5 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reply sends text back to the conversation msg arrived on.
func (c *Client) Reply(ctx context.Context, msg domain.Message, text string) error {
	if msg.ReplyURL == "" {
		return errors.New("dingtalk: message has no session webhook")
	}

	var payload textReply
	payload.MsgType = "text"
	payload.Text.Content = text
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("dingtalk: marshal reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, msg.ReplyURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dingtalk: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dingtalk: post reply: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &HTTPStatusError{StatusCode: res.StatusCode, Body: string(raw)}
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var result webhookResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("dingtalk: decode webhook response: %w", err)
	}
	if result.ErrCode != 0 {
		return &WebhookError{Code: result.ErrCode, Message: result.ErrMsg}
	}
	return nil
}

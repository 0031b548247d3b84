// Package dingtalk decodes robot callbacks and posts replies to the
// conversation's session webhook.
package dingtalk

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"translator-bot/internal/domain"
)

// ErrMalformedCallback marks a callback body that cannot be turned into a message.
var ErrMalformedCallback = errors.New("dingtalk: malformed callback")

type callbackPayload struct {
	MsgID          string `json:"msgId"`
	MsgType        string `json:"msgtype"`
	SenderID       string `json:"senderId"`
	SenderStaffID  string `json:"senderStaffId"`
	SenderNick     string `json:"senderNick"`
	ConversationID string `json:"conversationId"`
	SessionWebhook string `json:"sessionWebhook"`
	CreateAt       int64  `json:"createAt"`
	Text           *struct {
		Content string `json:"content"`
	} `json:"text"`
}

// DecodeCallback turns a robot callback body into a domain.Message. now is
// used as the arrival time when the callback carries no createAt.
func DecodeCallback(body []byte, now time.Time) (domain.Message, error) {
	var p callbackPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %w", ErrMalformedCallback, err)
	}

	id := strings.TrimSpace(p.MsgID)
	if id == "" {
		return domain.Message{}, fmt.Errorf("%w: msgId is required", ErrMalformedCallback)
	}
	sender := strings.TrimSpace(p.SenderStaffID)
	if sender == "" {
		sender = strings.TrimSpace(p.SenderID)
	}
	if sender == "" {
		return domain.Message{}, fmt.Errorf("%w: sender is required", ErrMalformedCallback)
	}
	if p.MsgType != "" && p.MsgType != "text" {
		return domain.Message{}, fmt.Errorf("%w: unsupported msgtype %q", ErrMalformedCallback, p.MsgType)
	}
	if p.Text == nil {
		return domain.Message{}, fmt.Errorf("%w: text is required", ErrMalformedCallback)
	}

	arrived := now
	if p.CreateAt > 0 {
		arrived = time.UnixMilli(p.CreateAt)
	}

	return domain.Message{
		ID:             id,
		SenderID:       sender,
		Text:           p.Text.Content,
		ArrivedAt:      arrived,
		ConversationID: p.ConversationID,
		ReplyURL:       strings.TrimSpace(p.SessionWebhook),
	}, nil
}

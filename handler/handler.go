// Package handler adapts API Gateway proxy events carrying robot callbacks
// to the translation pipeline.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"translator-bot/internal/domain"
	"translator-bot/internal/integrations/dingtalk"
	"translator-bot/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type Dispatcher interface {
	Handle(ctx context.Context, msg domain.Message) (usecase.Result, error)
}

type ackResponse struct {
	Status  domain.Ack `json:"status"`
	Message string     `json:"message"`
	Code    string     `json:"code,omitempty"`
}

type Handler struct {
	dispatcher Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

func NewHandler(d Dispatcher, opts ...Option) (*Handler, error) {
	if d == nil {
		return nil, errors.New("handler: dispatcher must not be nil")
	}
	h := &Handler{dispatcher: d, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle acknowledges every decodable callback with 200, whatever the user
// ends up seeing. Only undecodable input is rejected.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(event.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = newUUID()
	}
	log := h.logger.With("correlation_id", correlationID)

	body, err := requestBody(event)
	if err == nil {
		var msg domain.Message
		msg, err = dingtalk.DecodeCallback(body, h.now())
		if err == nil {
			return h.dispatch(ctx, log, correlationID, msg), nil
		}
	}

	ucErr := usecase.NewMalformedInput(err)
	log.Warn("rejected callback", "code", string(ucErr.Code), "err", err)
	return respond(http.StatusBadRequest, correlationID, ackResponse{
		Status:  domain.AckRejected,
		Message: "malformed callback",
		Code:    string(ucErr.Code),
	}), nil
}

func (h *Handler) dispatch(ctx context.Context, log *slog.Logger, correlationID string, msg domain.Message) events.APIGatewayProxyResponse {
	res, err := h.dispatcher.Handle(ctx, msg)
	if err != nil {
		log.Error("dispatch failed", "msg_id", msg.ID, "err", err)
		return respond(http.StatusInternalServerError, correlationID, ackResponse{
			Status:  domain.AckRejected,
			Message: "internal error",
			Code:    string(usecase.ErrorInternal),
		})
	}

	log.Info("callback handled",
		"msg_id", msg.ID,
		"outcome", string(res.Outcome),
		"delivered", res.Delivered,
	)
	ack := ackResponse{Status: res.Ack, Message: res.Status}
	if ack.Status == "" {
		ack.Status = domain.AckAccepted
	}
	if res.Err != nil {
		ack.Code = string(res.Err.Code)
	}
	return respond(http.StatusOK, correlationID, ack)
}

func requestBody(event events.APIGatewayProxyRequest) ([]byte, error) {
	if !event.IsBase64Encoded {
		return []byte(event.Body), nil
	}
	body, err := base64.StdEncoding.DecodeString(event.Body)
	if err != nil {
		return nil, errors.New("handler: body is not valid base64")
	}
	return body, nil
}

func respond(status int, correlationID string, body ackResponse) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte(`{"status":"FAIL","message":"internal error"}`)
		status = http.StatusInternalServerError
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(raw),
	}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var newUUID = func() string {
	return uuid.NewString()
}

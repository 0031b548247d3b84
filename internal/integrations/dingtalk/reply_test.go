package dingtalk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"translator-bot/internal/domain"
)

func TestReply_PostsTextPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient()
	err := c.Reply(context.Background(), domain.Message{ID: "m1", ReplyURL: srv.URL}, "Xin chào")
	require.NoError(t, err)
	require.Equal(t, "text", got["msgtype"])
	require.Equal(t, map[string]any{"content": "Xin chào"}, got["text"])
}

func TestReply_EmptyBodyIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, NewClient().Reply(context.Background(), domain.Message{ReplyURL: srv.URL}, "ok"))
}

func TestReply_ErrCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errcode":300001,"errmsg":"session expired"}`))
	}))
	defer srv.Close()

	err := NewClient().Reply(context.Background(), domain.Message{ReplyURL: srv.URL}, "hi")
	var webhookErr *WebhookError
	require.ErrorAs(t, err, &webhookErr)
	require.Equal(t, 300001, webhookErr.Code)
	require.Contains(t, err.Error(), "session expired")
}

func TestReply_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream"))
	}))
	defer srv.Close()

	err := NewClient().Reply(context.Background(), domain.Message{ReplyURL: srv.URL}, "hi")
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.HTTPStatusCode())
}

func TestReply_MissingWebhook(t *testing.T) {
	err := NewClient().Reply(context.Background(), domain.Message{ID: "m1"}, "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "session webhook")
}

func TestReply_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	err := c.Reply(context.Background(), domain.Message{ReplyURL: srv.URL}, "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "post reply")
}

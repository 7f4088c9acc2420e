// ABOUTME: Tests for the visitor API: conversations, messages, SSE stream
// ABOUTME: Exercises real handlers against a temp SQLite store

package gateway

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chatd/internal/store"
)

func TestCreateConversation(t *testing.T) {
	_, srv := newTestGateway(t)

	conv := createConversation(t, srv, "Alice")
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, store.StatusActive, conv.Status)
	assert.Equal(t, "Alice", conv.UserName)
	assert.NotEmpty(t, conv.CreatedAt)
}

func TestCreateConversation_InvalidBody(t *testing.T) {
	_, srv := newTestGateway(t)

	resp, err := http.Post(srv.URL+"/api/conversations", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostAndListMessages(t *testing.T) {
	_, srv := newTestGateway(t)
	conv := createConversation(t, srv, "Alice")

	userMsg := postMessage(t, srv, conv.ID, "Bonjour", store.SenderUser)
	assert.False(t, userMsg.IsRead, "user messages start unread")

	adminMsg := postMessage(t, srv, conv.ID, "Salut !", store.SenderAdmin)
	assert.True(t, adminMsg.IsRead, "admin messages never count as unread")

	resp := getJSON(t, srv.URL+"/api/conversations/"+conv.ID+"/messages", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ConversationID string            `json:"conversation_id"`
		Messages       []MessageResponse `json:"messages"`
	}
	decodeBody(t, resp, &body)

	require.Len(t, body.Messages, 2)
	assert.Equal(t, "Bonjour", body.Messages[0].Content)
	assert.Equal(t, "Salut !", body.Messages[1].Content)
	assert.Equal(t, store.SenderUser, body.Messages[0].SenderType)
	assert.Equal(t, store.SenderAdmin, body.Messages[1].SenderType)
}

func TestPostMessage_DefaultsToUserSender(t *testing.T) {
	_, srv := newTestGateway(t)
	conv := createConversation(t, srv, "Alice")

	msg := postMessage(t, srv, conv.ID, "hello", "")
	assert.Equal(t, store.SenderUser, msg.SenderType)
}

func TestPostMessage_Validation(t *testing.T) {
	_, srv := newTestGateway(t)
	conv := createConversation(t, srv, "Alice")

	t.Run("empty content", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/conversations/"+conv.ID+"/messages",
			PostMessageRequest{Content: ""}, "")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad sender type", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/conversations/"+conv.ID+"/messages",
			PostMessageRequest{Content: "hi", SenderType: "bot"}, "")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/conversations/nonexistent/messages",
			PostMessageRequest{Content: "hi"}, "")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestListMessages_UnknownConversation(t *testing.T) {
	_, srv := newTestGateway(t)

	resp := getJSON(t, srv.URL+"/api/conversations/nonexistent/messages", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStream_DeliversPublishedMessages(t *testing.T) {
	g, srv := newTestGateway(t)
	conv := createConversation(t, srv, "Alice")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		srv.URL+"/api/conversations/"+conv.ID+"/stream", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	// First event confirms the subscription.
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	// Wait for the subscription to register before publishing.
	require.Eventually(t, func() bool {
		return g.broadcaster.SubscriberCount(conv.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	postMessage(t, srv, conv.ID, "streamed hello", store.SenderUser)

	var event, data string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
		if event == "message" && data != "" {
			break
		}
	}

	assert.Contains(t, data, "streamed hello")
}

func TestStream_UnknownConversation(t *testing.T) {
	_, srv := newTestGateway(t)

	resp := getJSON(t, srv.URL+"/api/conversations/nonexistent/stream", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestArchiveBeacon(t *testing.T) {
	g, srv := newTestGateway(t)
	conv := createConversation(t, srv, "Alice")
	postMessage(t, srv, conv.ID, "hello", store.SenderUser)

	assertBeaconSuccess := func(t *testing.T, url string) {
		t.Helper()
		resp := getJSON(t, url, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]bool
		decodeBody(t, resp, &body)
		assert.True(t, body["success"])
	}

	t.Run("archives the conversation", func(t *testing.T) {
		assertBeaconSuccess(t, srv.URL+"/api/archive-conversation?id="+conv.ID)

		stored, err := g.store.GetConversation(context.Background(), conv.ID)
		require.NoError(t, err)
		assert.Equal(t, store.StatusArchived, stored.Status)
	})

	t.Run("repeat beacon still succeeds", func(t *testing.T) {
		assertBeaconSuccess(t, srv.URL+"/api/archive-conversation?id="+conv.ID)
	})

	t.Run("unknown id still succeeds", func(t *testing.T) {
		assertBeaconSuccess(t, srv.URL+"/api/archive-conversation?id=nonexistent")
	})

	t.Run("missing id still succeeds", func(t *testing.T) {
		assertBeaconSuccess(t, srv.URL+"/api/archive-conversation")
	})
}

func TestClientConfig_ReportsPollInterval(t *testing.T) {
	_, srv := newTestGateway(t)

	resp := getJSON(t, srv.URL+"/api/config", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		PollIntervalMS int64 `json:"poll_interval_ms"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, int64(2000), body.PollIntervalMS)
}

func TestHealthz(t *testing.T) {
	_, srv := newTestGateway(t)

	resp := getJSON(t, srv.URL+"/healthz", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// ABOUTME: Tests for the admin triage API: login, unread counts, mark-read,
// ABOUTME: markdown rendering, and suggestion error mapping

package gateway

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chatd/internal/store"
	"github.com/2389/chatd/internal/suggest"
)

func TestAdminLogin(t *testing.T) {
	g, srv := newTestGateway(t)
	seedAdmin(t, g, "admin", "correct horse")

	t.Run("valid credentials", func(t *testing.T) {
		token := loginAdmin(t, srv, "admin", "correct horse")
		assert.NotEmpty(t, token)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/admin/login", LoginRequest{Username: "admin", Password: "wrong"}, "")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown user", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/admin/login", LoginRequest{Username: "nobody", Password: "pw"}, "")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAdminRoutes_RequireToken(t *testing.T) {
	_, srv := newTestGateway(t)

	resp := getJSON(t, srv.URL+"/admin/conversations", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminConversations_UnreadCounts(t *testing.T) {
	g, srv := newTestGateway(t)
	seedAdmin(t, g, "admin", "pw")
	token := loginAdmin(t, srv, "admin", "pw")

	first := createConversation(t, srv, "Alice")
	postMessage(t, srv, first.ID, "hi", store.SenderUser)
	postMessage(t, srv, first.ID, "anyone there?", store.SenderUser)
	postMessage(t, srv, first.ID, "hello!", store.SenderAdmin)

	second := createConversation(t, srv, "Bob")
	postMessage(t, srv, second.ID, "bonjour", store.SenderUser)

	resp := getJSON(t, srv.URL+"/admin/conversations", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Conversations []ConversationResponse `json:"conversations"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Conversations, 2)

	// Newest first: Bob's conversation was created last.
	assert.Equal(t, second.ID, body.Conversations[0].ID)
	assert.Equal(t, 1, body.Conversations[0].UnreadCount)
	assert.Equal(t, first.ID, body.Conversations[1].ID)
	assert.Equal(t, 2, body.Conversations[1].UnreadCount, "admin replies never count")
}

func TestAdminMessages_RendersMarkdown(t *testing.T) {
	g, srv := newTestGateway(t)
	seedAdmin(t, g, "admin", "pw")
	token := loginAdmin(t, srv, "admin", "pw")

	conv := createConversation(t, srv, "Alice")
	postMessage(t, srv, conv.ID, "this is **important**", store.SenderUser)

	resp := getJSON(t, srv.URL+"/admin/conversations/"+conv.ID+"/messages", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Messages []MessageResponse `json:"messages"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Messages, 1)

	assert.Equal(t, "this is **important**", body.Messages[0].Content)
	assert.Contains(t, body.Messages[0].ContentHTML, "<strong>important</strong>")
}

func TestAdminMarkRead(t *testing.T) {
	g, srv := newTestGateway(t)
	seedAdmin(t, g, "admin", "pw")
	token := loginAdmin(t, srv, "admin", "pw")

	conv := createConversation(t, srv, "Alice")
	postMessage(t, srv, conv.ID, "one", store.SenderUser)
	postMessage(t, srv, conv.ID, "two", store.SenderUser)

	resp := postJSON(t, srv.URL+"/admin/conversations/"+conv.ID+"/read", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Success bool `json:"success"`
		Updated int  `json:"updated"`
	}
	decodeBody(t, resp, &body)
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Updated)

	unread, err := g.store.CountUnreadMessages(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

// stubSuggester returns a canned suggestion or error.
type stubSuggester struct {
	suggestion string
	err        error
}

func (s *stubSuggester) SuggestReply(ctx context.Context, conversationID string) (string, error) {
	return s.suggestion, s.err
}

func TestAdminSuggest(t *testing.T) {
	g, srv := newTestGateway(t)
	seedAdmin(t, g, "admin", "pw")
	token := loginAdmin(t, srv, "admin", "pw")

	conv := createConversation(t, srv, "Alice")
	postMessage(t, srv, conv.ID, "où est ma commande ?", store.SenderUser)

	t.Run("disabled", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/admin/suggest", SuggestRequest{ConversationID: conv.ID}, token)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("returns suggestion", func(t *testing.T) {
		g.suggester = &stubSuggester{suggestion: "Je vérifie tout de suite."}

		resp := postJSON(t, srv.URL+"/admin/suggest", SuggestRequest{ConversationID: conv.ID}, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		decodeBody(t, resp, &body)
		assert.Equal(t, "Je vérifie tout de suite.", body["suggestion"])
	})

	t.Run("empty history maps to bad request", func(t *testing.T) {
		g.suggester = &stubSuggester{err: suggest.ErrEmptyHistory}

		resp := postJSON(t, srv.URL+"/admin/suggest", SuggestRequest{ConversationID: conv.ID}, token)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("upstream failure maps to bad gateway", func(t *testing.T) {
		g.suggester = &stubSuggester{err: errors.New("upstream down")}

		resp := postJSON(t, srv.URL+"/admin/suggest", SuggestRequest{ConversationID: conv.ID}, token)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("missing conversation_id", func(t *testing.T) {
		g.suggester = &stubSuggester{suggestion: "unused"}

		resp := postJSON(t, srv.URL+"/admin/suggest", SuggestRequest{}, token)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

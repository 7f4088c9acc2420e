// ABOUTME: Admin triage HTTP handlers: login, conversation list, mark-read,
// ABOUTME: markdown-rendered message history, and AI reply suggestions

package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/2389/chatd/internal/auth"
	"github.com/2389/chatd/internal/store"
	"github.com/2389/chatd/internal/suggest"
)

// LoginRequest is the JSON request body for POST /admin/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the JSON response for a successful login.
type LoginResponse struct {
	Token       string `json:"token"`
	DisplayName string `json:"display_name,omitempty"`
}

// SuggestRequest is the JSON request body for POST /admin/suggest.
type SuggestRequest struct {
	ConversationID string `json:"conversation_id"`
}

// handleLogin handles POST /admin/login. Credentials are verified against
// the admin_users table; success returns a short-lived bearer token.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := auth.VerifyCredentials(r.Context(), g.store, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			g.sendJSONError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		g.logger.Error("login failed", "username", req.Username, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	token, err := g.verifier.Generate(user.Username, g.tokenTTL)
	if err != nil {
		g.logger.Error("token generation failed", "username", user.Username, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.logger.Info("admin logged in", "username", user.Username)
	g.sendJSON(w, http.StatusOK, LoginResponse{Token: token, DisplayName: user.DisplayName})
}

// handleAdminConversations handles GET /admin/conversations.
// Returns the triage list newest-first, each with its unread count.
func (g *Gateway) handleAdminConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := g.store.ListConversations(r.Context())
	if err != nil {
		g.logger.Error("failed to list conversations", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]ConversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		resp := conversationResponse(conv)
		unread, err := g.store.CountUnreadMessages(r.Context(), conv.ID)
		if err != nil {
			g.logger.Warn("unread count failed", "conversation_id", conv.ID, "error", err)
		} else {
			resp.UnreadCount = unread
		}
		out = append(out, resp)
	}

	g.sendJSON(w, http.StatusOK, map[string]any{"conversations": out})
}

// handleAdminMessages handles GET /admin/conversations/{id}/messages.
// Each message carries content_html with the markdown-rendered content.
func (g *Gateway) handleAdminMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := g.store.GetConversation(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "conversation not found")
			return
		}
		g.logger.Error("failed to load conversation", "id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	messages, err := g.store.ListMessages(r.Context(), id)
	if err != nil {
		g.logger.Error("failed to list messages", "conversation_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		resp := messageResponse(msg)
		resp.ContentHTML = g.renderMarkdown(msg.Content)
		out = append(out, resp)
	}

	g.sendJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"messages":        out,
	})
}

// renderMarkdown converts message content to HTML, falling back to the raw
// text on conversion failure.
func (g *Gateway) renderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(content), &buf); err != nil {
		g.logger.Error("failed to convert markdown", "error", err)
		return content
	}
	return buf.String()
}

// handleMarkRead handles POST /admin/conversations/{id}/read.
// Bulk-marks every unread user message in the conversation as read.
func (g *Gateway) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := g.store.GetConversation(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "conversation not found")
			return
		}
		g.logger.Error("failed to load conversation", "id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	updated, err := g.store.MarkMessagesRead(r.Context(), id)
	if err != nil {
		g.logger.Error("failed to mark messages read", "conversation_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.sendJSON(w, http.StatusOK, map[string]any{"success": true, "updated": updated})
}

// handleSuggest handles POST /admin/suggest. Any failure maps to a non-200
// so the admin's draft input is left untouched.
func (g *Gateway) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if g.suggester == nil {
		g.sendJSONError(w, http.StatusServiceUnavailable, "suggestions are not enabled")
		return
	}

	var req SuggestRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ConversationID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}

	suggestion, err := g.suggester.SuggestReply(r.Context(), req.ConversationID)
	if err != nil {
		switch {
		case errors.Is(err, suggest.ErrEmptyHistory):
			g.sendJSONError(w, http.StatusBadRequest, "conversation has no messages")
		case errors.Is(err, store.ErrNotFound):
			g.sendJSONError(w, http.StatusNotFound, "conversation not found")
		default:
			g.logger.Error("suggestion failed", "conversation_id", req.ConversationID, "error", err)
			g.sendJSONError(w, http.StatusBadGateway, "suggestion unavailable")
		}
		return
	}

	g.sendJSON(w, http.StatusOK, map[string]string{"suggestion": suggestion})
}

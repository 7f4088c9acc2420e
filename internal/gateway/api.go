// ABOUTME: Visitor-facing HTTP handlers: conversations, messages, SSE stream
// ABOUTME: Includes the archive beacon which always reports success

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/2389/chatd/internal/store"
)

// CreateConversationRequest is the JSON request body for POST /api/conversations.
type CreateConversationRequest struct {
	UserName   string `json:"user_name"`
	UserAvatar string `json:"user_avatar,omitempty"`
}

// ConversationResponse is the JSON shape for a conversation.
type ConversationResponse struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	UserName       string `json:"user_name"`
	UserAvatar     string `json:"user_avatar,omitempty"`
	CreatedAt      string `json:"created_at"`
	LastActivityAt string `json:"last_activity_at"`
	UnreadCount    int    `json:"unread_count,omitempty"`
}

// PostMessageRequest is the JSON request body for POST /api/conversations/{id}/messages.
type PostMessageRequest struct {
	Content    string `json:"content"`
	SenderType string `json:"sender_type,omitempty"`
}

// MessageResponse is the JSON shape for a message.
type MessageResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	ContentHTML    string `json:"content_html,omitempty"`
	SenderType     string `json:"sender_type"`
	IsRead         bool   `json:"is_read"`
	CreatedAt      string `json:"created_at"`
}

func conversationResponse(conv *store.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:             conv.ID,
		Status:         conv.Status,
		UserName:       conv.UserName,
		UserAvatar:     conv.UserAvatar,
		CreatedAt:      conv.CreatedAt.Format(time.RFC3339Nano),
		LastActivityAt: conv.LastActivityAt.Format(time.RFC3339Nano),
	}
}

func messageResponse(msg *store.Message) MessageResponse {
	return MessageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Content:        msg.Content,
		SenderType:     msg.SenderType,
		IsRead:         msg.IsRead,
		CreatedAt:      msg.CreatedAt.Format(time.RFC3339Nano),
	}
}

// handleClientConfig handles GET /api/config. The widget reads its poll
// interval from here so server and client agree on the sync cadence.
func (g *Gateway) handleClientConfig(w http.ResponseWriter, r *http.Request) {
	g.sendJSON(w, http.StatusOK, map[string]any{
		"poll_interval_ms": g.pollInterval.Milliseconds(),
	})
}

// handleCreateConversation handles POST /api/conversations.
func (g *Gateway) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	conv, err := g.lifecycle.Create(r.Context(), req.UserName, req.UserAvatar)
	if err != nil {
		g.logger.Error("failed to create conversation", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.sendJSON(w, http.StatusCreated, conversationResponse(conv))
}

// handleListMessages handles GET /api/conversations/{id}/messages.
// Messages come back ordered by created_at ascending.
func (g *Gateway) handleListMessages(w http.ResponseWriter, r *http.Request) {
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
		out = append(out, messageResponse(msg))
	}
	g.sendJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"messages":        out,
	})
}

// handlePostMessage handles POST /api/conversations/{id}/messages.
// The message is written durably, then published to stream subscribers.
func (g *Gateway) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req PostMessageRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Content == "" {
		g.sendJSONError(w, http.StatusBadRequest, "content is required")
		return
	}

	senderType := req.SenderType
	if senderType == "" {
		senderType = store.SenderUser
	}
	if senderType != store.SenderUser && senderType != store.SenderAdmin {
		g.sendJSONError(w, http.StatusBadRequest, "sender_type must be user or admin")
		return
	}

	if _, err := g.store.GetConversation(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "conversation not found")
			return
		}
		g.logger.Error("failed to load conversation", "id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	msg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: id,
		Content:        req.Content,
		SenderType:     senderType,
		// Admin messages never count toward the visitor's unread badge.
		IsRead:    senderType == store.SenderAdmin,
		CreatedAt: time.Now().UTC(),
	}
	if err := g.store.SaveMessage(r.Context(), msg); err != nil {
		g.logger.Error("failed to save message", "conversation_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.broadcaster.Publish(id, msg)
	g.sendJSON(w, http.StatusCreated, messageResponse(msg))
}

// handleStream handles GET /api/conversations/{id}/stream.
// It serves new messages for one conversation as SSE until the client
// disconnects. Missed events are recovered by the client's poll.
func (g *Gateway) handleStream(w http.ResponseWriter, r *http.Request) {
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

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, subID := g.broadcaster.Subscribe(r.Context(), id)
	g.logger.Debug("stream opened", "conversation_id", id, "sub_id", subID)

	g.writeSSEEvent(w, "connected", map[string]string{"conversation_id": id})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			g.logger.Debug("stream closed", "conversation_id", id, "sub_id", subID)
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			g.writeSSEEvent(w, "message", messageResponse(msg))
			flusher.Flush()
		}
	}
}

// handleArchiveBeacon handles GET /api/archive-conversation?id=.
// Sent by the widget on page exit; the page is gone before any response
// arrives, so the reply is always success regardless of outcome.
func (g *Gateway) handleArchiveBeacon(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id != "" {
		if err := g.lifecycle.ArchiveOnExit(r.Context(), id); err != nil {
			g.logger.Warn("archive beacon failed", "conversation_id", id, "error", err)
		}
	}
	g.sendJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// writeSSEEvent writes a single SSE event to the response writer.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data interface{}) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

// sendJSON writes a JSON response with the given status.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

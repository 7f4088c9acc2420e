// ABOUTME: Shared test helpers for the gateway HTTP surface
// ABOUTME: Spins up a real gateway on a temp SQLite database behind httptest

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/2389/chatd/internal/auth"
	"github.com/2389/chatd/internal/config"
	"github.com/2389/chatd/internal/store"
)

func newTestGateway(t *testing.T) (*Gateway, *httptest.Server) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Database.Path = filepath.Join(t.TempDir(), "chatd.db")
	cfg.Auth.JWTSecret = "test-secret-key-for-jwt-signing"

	g, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })

	srv := httptest.NewServer(g.routes())
	t.Cleanup(srv.Close)

	return g, srv
}

func seedAdmin(t *testing.T, g *Gateway, username, password string) {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, g.store.CreateAdminUser(context.Background(), &store.AdminUser{
		ID:           "admin-" + username,
		Username:     username,
		PasswordHash: hash,
		DisplayName:  "Test Admin",
		CreatedAt:    time.Now(),
	}))
}

func postJSON(t *testing.T, url string, body any, token string) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func getJSON(t *testing.T, url, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out), "body: %s", raw)
}

func createConversation(t *testing.T, srv *httptest.Server, userName string) ConversationResponse {
	t.Helper()

	resp := postJSON(t, srv.URL+"/api/conversations", CreateConversationRequest{UserName: userName}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var conv ConversationResponse
	decodeBody(t, resp, &conv)
	return conv
}

func postMessage(t *testing.T, srv *httptest.Server, convID, content, senderType string) MessageResponse {
	t.Helper()

	resp := postJSON(t, srv.URL+"/api/conversations/"+convID+"/messages",
		PostMessageRequest{Content: content, SenderType: senderType}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var msg MessageResponse
	decodeBody(t, resp, &msg)
	return msg
}

func loginAdmin(t *testing.T, srv *httptest.Server, username, password string) string {
	t.Helper()

	resp := postJSON(t, srv.URL+"/admin/login", LoginRequest{Username: username, Password: password}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login LoginResponse
	decodeBody(t, resp, &login)
	require.NotEmpty(t, login.Token)
	return login.Token
}

// ABOUTME: Gateway wiring: store, broadcaster, lifecycle janitor, HTTP server
// ABOUTME: Owns startup, route registration, and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/chatd/internal/auth"
	"github.com/2389/chatd/internal/config"
	"github.com/2389/chatd/internal/lifecycle"
	"github.com/2389/chatd/internal/msgsync"
	"github.com/2389/chatd/internal/realtime"
	"github.com/2389/chatd/internal/store"
	"github.com/2389/chatd/internal/suggest"
)

const (
	defaultTokenTTL = 12 * time.Hour
	shutdownTimeout = 10 * time.Second
)

// Suggester produces one suggested admin reply for a conversation.
// Satisfied by *suggest.Generator; nil when suggestions are disabled.
type Suggester interface {
	SuggestReply(ctx context.Context, conversationID string) (string, error)
}

// Gateway hosts the chat HTTP surface and its background housekeeping.
type Gateway struct {
	store           store.Store
	broadcaster     *realtime.Broadcaster
	lifecycle       *lifecycle.Manager
	verifier        *auth.JWTVerifier
	suggester       Suggester
	logger          *slog.Logger
	httpServer      *http.Server
	janitorInterval time.Duration
	pollInterval    time.Duration
	tokenTTL        time.Duration
}

// New creates a gateway from configuration, opening the SQLite store and
// wiring all components. Call Run to serve and Close to release resources.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sqlStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	g := &Gateway{
		store:       sqlStore,
		broadcaster: realtime.NewBroadcaster(logger),
		lifecycle: lifecycle.New(sqlStore, lifecycle.Options{
			MaxActive:    cfg.Lifecycle.MaxActive,
			ArchiveAfter: cfg.Lifecycle.ArchiveAfter,
			PurgeAfter:   cfg.Lifecycle.PurgeAfter,
		}, logger),
		verifier:        auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)),
		logger:          logger.With("component", "gateway"),
		janitorInterval: cfg.Lifecycle.JanitorInterval,
		pollInterval:    cfg.Sync.PollInterval,
		tokenTTL:        cfg.Auth.TokenTTL,
	}
	if g.janitorInterval <= 0 {
		g.janitorInterval = lifecycle.DefaultJanitorInterval
	}
	if g.pollInterval <= 0 {
		g.pollInterval = msgsync.DefaultPollInterval
	}
	if g.tokenTTL <= 0 {
		g.tokenTTL = defaultTokenTTL
	}

	if cfg.Suggest.Enabled {
		client, err := suggest.NewClient(cfg.Suggest.BaseURL, cfg.Suggest.APIKey, cfg.Suggest.Model)
		if err != nil {
			sqlStore.Close()
			return nil, fmt.Errorf("creating suggestion client: %w", err)
		}
		g.suggester = suggest.NewGenerator(sqlStore, client, logger)
	}

	g.httpServer = &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: g.routes(),
	}

	return g, nil
}

// routes builds the HTTP mux: public visitor API plus JWT-protected admin API.
func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()

	// Visitor API
	mux.HandleFunc("GET /api/config", g.handleClientConfig)
	mux.HandleFunc("POST /api/conversations", g.handleCreateConversation)
	mux.HandleFunc("GET /api/conversations/{id}/messages", g.handleListMessages)
	mux.HandleFunc("POST /api/conversations/{id}/messages", g.handlePostMessage)
	mux.HandleFunc("GET /api/conversations/{id}/stream", g.handleStream)
	mux.HandleFunc("GET /api/archive-conversation", g.handleArchiveBeacon)

	// Admin API
	mux.HandleFunc("POST /admin/login", g.handleLogin)
	protect := auth.Middleware(g.verifier)
	mux.Handle("GET /admin/conversations", protect(http.HandlerFunc(g.handleAdminConversations)))
	mux.Handle("GET /admin/conversations/{id}/messages", protect(http.HandlerFunc(g.handleAdminMessages)))
	mux.Handle("POST /admin/conversations/{id}/read", protect(http.HandlerFunc(g.handleMarkRead)))
	mux.Handle("POST /admin/suggest", protect(http.HandlerFunc(g.handleSuggest)))

	mux.HandleFunc("GET /healthz", g.handleHealthz)

	return mux
}

// Run serves HTTP and the lifecycle janitor until ctx is cancelled, then
// shuts down gracefully.
func (g *Gateway) Run(ctx context.Context) error {
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go g.lifecycle.RunJanitor(janitorCtx, g.janitorInterval)

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("http server listening", "addr", g.httpServer.Addr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		g.logger.Info("shutdown signal received")
	case serveErr = <-errCh:
		g.logger.Error("http server failed", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
		g.logger.Error("http shutdown failed", "error", err)
	}

	if err := g.Close(); err != nil {
		g.logger.Error("close failed", "error", err)
	}

	return serveErr
}

// Close releases the broadcaster and the store. Safe after Run returns.
func (g *Gateway) Close() error {
	g.broadcaster.Close()
	if err := g.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}

func (g *Gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

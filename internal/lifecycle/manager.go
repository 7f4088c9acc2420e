// ABOUTME: Conversation lifecycle manager - creation, capping, archival, purge
// ABOUTME: Runs the periodic janitor that keeps the conversation table bounded

package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/chatd/internal/store"
)

// Defaults match the admin dashboard's housekeeping cadence.
const (
	DefaultMaxActive       = 3
	DefaultArchiveAfter    = 10 * time.Minute
	DefaultPurgeAfter      = 10 * time.Minute
	DefaultJanitorInterval = 30 * time.Second
)

// ConversationStore defines what the manager needs from storage
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *store.Conversation) error
	CountActiveConversations(ctx context.Context) (int, error)
	ArchiveConversation(ctx context.Context, id string) error
	CleanupEmptyConversations(ctx context.Context) (int, error)
	ArchiveInactiveConversations(ctx context.Context, before time.Time) (int, error)
	ListArchivedBefore(ctx context.Context, before time.Time) ([]string, error)
	DeleteConversation(ctx context.Context, id string) error
}

// Manager creates, caps, archives, and deletes conversations.
// Status only ever moves forward: active -> archived -> deleted.
type Manager struct {
	store        ConversationStore
	logger       *slog.Logger
	maxActive    int
	archiveAfter time.Duration
	purgeAfter   time.Duration
}

// Options tunes the manager's lifecycle windows. Zero values take defaults.
type Options struct {
	MaxActive    int
	ArchiveAfter time.Duration
	PurgeAfter   time.Duration
}

// New creates a lifecycle manager. Pass nil logger for default.
func New(st ConversationStore, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxActive <= 0 {
		opts.MaxActive = DefaultMaxActive
	}
	if opts.ArchiveAfter <= 0 {
		opts.ArchiveAfter = DefaultArchiveAfter
	}
	if opts.PurgeAfter <= 0 {
		opts.PurgeAfter = DefaultPurgeAfter
	}
	return &Manager{
		store:        st,
		logger:       logger.With("component", "lifecycle"),
		maxActive:    opts.MaxActive,
		archiveAfter: opts.ArchiveAfter,
		purgeAfter:   opts.PurgeAfter,
	}
}

// Create inserts a new active conversation for a visitor.
//
// Empty conversations are cleaned up first to reclaim capacity. The active
// cap is advisory: when it is already reached the conversation is still
// created, with a warning, since no hard admission control exists.
func (m *Manager) Create(ctx context.Context, userName, userAvatar string) (*store.Conversation, error) {
	if _, err := m.store.CleanupEmptyConversations(ctx); err != nil {
		// Non-fatal: creation proceeds, the janitor retries next tick.
		m.logger.Warn("pre-create cleanup failed", "error", err)
	}

	active, err := m.store.CountActiveConversations(ctx)
	if err != nil {
		m.logger.Warn("active count check failed", "error", err)
	} else if active >= m.maxActive {
		m.logger.Warn("active conversation cap exceeded",
			"active", active,
			"max", m.maxActive)
	}

	now := time.Now()
	conv := &store.Conversation{
		ID:             uuid.New().String(),
		Status:         store.StatusActive,
		UserName:       userName,
		UserAvatar:     userAvatar,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := m.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	m.logger.Info("conversation created", "id", conv.ID, "user_name", userName)
	return conv, nil
}

// CleanupEmpty deletes conversations that received zero messages.
func (m *Manager) CleanupEmpty(ctx context.Context) (int, error) {
	return m.store.CleanupEmptyConversations(ctx)
}

// ArchiveInactive archives every active conversation whose last activity is
// older than the threshold. Idempotent by filter.
func (m *Manager) ArchiveInactive(ctx context.Context, threshold time.Duration) (int, error) {
	return m.store.ArchiveInactiveConversations(ctx, time.Now().Add(-threshold))
}

// PurgeArchived deletes archived conversations (messages first, then the
// conversation) whose last activity is older than the retention window.
// Deleting twice is a no-op.
func (m *Manager) PurgeArchived(ctx context.Context, retention time.Duration) (int, error) {
	ids, err := m.store.ListArchivedBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, id := range ids {
		if err := m.store.DeleteConversation(ctx, id); err != nil {
			m.logger.Error("failed to purge conversation", "id", id, "error", err)
			continue
		}
		purged++
	}

	if purged > 0 {
		m.logger.Info("purged archived conversations", "count", purged)
	}
	return purged, nil
}

// ArchiveOnExit archives a conversation when the visitor's session ends.
// The transition is idempotent so the exit beacon and the in-page attempt
// may race; whichever lands first wins and the other is harmless.
func (m *Manager) ArchiveOnExit(ctx context.Context, conversationID string) error {
	return m.store.ArchiveConversation(ctx, conversationID)
}

// RunJanitor runs the periodic housekeeping tick until ctx is cancelled:
// empty-conversation cleanup, inactivity archival, retention purge.
// Failures are logged and retried on the next tick.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("janitor started",
		"interval", interval,
		"archive_after", m.archiveAfter,
		"purge_after", m.purgeAfter)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("janitor stopped")
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick runs one housekeeping pass.
func (m *Manager) tick(ctx context.Context) {
	if _, err := m.CleanupEmpty(ctx); err != nil {
		m.logger.Error("cleanup failed", "error", err)
	}
	if _, err := m.ArchiveInactive(ctx, m.archiveAfter); err != nil {
		m.logger.Error("archive pass failed", "error", err)
	}
	if _, err := m.PurgeArchived(ctx, m.purgeAfter); err != nil {
		m.logger.Error("purge pass failed", "error", err)
	}
}

// ABOUTME: Per-open-conversation sync session reconciling poll and push feeds
// ABOUTME: Drives the composing flag, optimistic echo, and unread accounting

package msgsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/chatd/internal/store"
)

// DefaultPollInterval is the fixed poll cadence while a conversation is open.
const DefaultPollInterval = 2 * time.Second

// Side identifies which end of the conversation a session serves.
type Side string

const (
	SideVisitor Side = "visitor"
	SideAdmin   Side = "admin"
)

// MessageStore defines what a session needs from storage
type MessageStore interface {
	ListMessages(ctx context.Context, conversationID string) ([]*store.Message, error)
	SaveMessage(ctx context.Context, msg *store.Message) error
	MarkMessagesRead(ctx context.Context, conversationID string) (int, error)
}

// Channel defines what a session needs from the realtime bus
type Channel interface {
	Subscribe(ctx context.Context, conversationID string) (<-chan *store.Message, string)
	Unsubscribe(conversationID, subID string)
	Publish(conversationID string, msg *store.Message)
}

// Config configures a session. Store and Channel are required.
type Config struct {
	ConversationID string
	Side           Side
	Store          MessageStore
	Channel        Channel
	PollInterval   time.Duration
	Logger         *slog.Logger
}

// Session presents one side of an open conversation with a single,
// deduplicated, chronologically ordered message list, reconciled from an
// initial bulk load, a push subscription, and a fixed-interval poll.
//
// Close tears down both feeds. A closed session never mutates its list
// again; a dangling subscription that keeps writing into a dead view is the
// bug class this type exists to prevent.
type Session struct {
	conversationID string
	side           Side
	store          MessageStore
	channel        Channel
	logger         *slog.Logger

	mu        sync.Mutex
	messages  []*store.Message
	composing bool
	closed    bool

	cancel context.CancelFunc
	done   chan struct{}
}

// Open loads the conversation's history and starts the push subscription and
// the poll loop. The session lives until Close is called or ctx is cancelled.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Store == nil || cfg.Channel == nil {
		return nil, fmt.Errorf("msgsync: store and channel are required")
	}
	if cfg.Side == "" {
		cfg.Side = SideVisitor
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		conversationID: cfg.ConversationID,
		side:           cfg.Side,
		store:          cfg.Store,
		channel:        cfg.Channel,
		logger: logger.With(
			"component", "msgsync",
			"conversation_id", cfg.ConversationID,
			"side", string(cfg.Side)),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	// Initial bulk load. Failing here fails the open; later read failures
	// are tolerated and retried by the next poll tick.
	initial, err := s.store.ListMessages(sctx, s.conversationID)
	if err != nil {
		cancel()
		close(s.done)
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	s.messages = Merge(nil, initial)

	// Admin opens a conversation: everything unread becomes read.
	if s.side == SideAdmin {
		s.markRead()
	}

	go s.run(sctx, cfg.PollInterval)
	return s, nil
}

// run consumes the push subscription and the poll ticker until the session
// context is cancelled. Both feeds funnel through apply, so deduplication,
// the composing flag, and unread accounting behave the same regardless of
// which source observes a message first.
func (s *Session) run(ctx context.Context, pollInterval time.Duration) {
	defer close(s.done)

	ch, subID := s.channel.Subscribe(ctx, s.conversationID)
	defer s.channel.Unsubscribe(s.conversationID, subID)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.apply([]*store.Message{msg})

		case <-ticker.C:
			batch, err := s.store.ListMessages(ctx, s.conversationID)
			if err != nil {
				// Transient read failure: next tick retries.
				s.logger.Debug("poll failed", "error", err)
				continue
			}
			s.apply(batch)
		}
	}
}

// apply merges a batch from either feed into the session's list.
func (s *Session) apply(batch []*store.Message) {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return
	}

	seen := make(map[string]struct{}, len(s.messages))
	for _, m := range s.messages {
		seen[m.ID] = struct{}{}
	}

	var freshAdmin, freshUser bool
	for _, m := range batch {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		if m.SenderType == store.SenderAdmin {
			freshAdmin = true
		}
		if m.SenderType == store.SenderUser {
			freshUser = true
		}
	}

	s.messages = Merge(s.messages, batch)

	// The visitor stops waiting the instant an admin reply is observed,
	// through whichever source delivered it first.
	if s.side == SideVisitor && freshAdmin && s.composing {
		s.composing = false
		s.logger.Debug("admin reply observed, composing cleared")
	}
	s.mu.Unlock()

	if s.side == SideAdmin && freshUser {
		s.markRead()
	}
}

// Send persists an outgoing message and announces it on the realtime bus.
//
// Visitor side: the composing flag turns on once the write is durable and
// stays on until an admin reply is observed.
//
// Admin side: an optimistic local echo is appended before the durable write
// so the operator sees no latency; the echo reuses the durable id so the next
// poll deduplicates it. If the write fails the echo is not rolled back.
func (s *Session) Send(ctx context.Context, content string) (*store.Message, error) {
	msg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: s.conversationID,
		Content:        content,
		SenderType:     store.SenderUser,
		CreatedAt:      time.Now(),
	}
	if s.side == SideAdmin {
		msg.SenderType = store.SenderAdmin
		msg.IsRead = true

		// Optimistic echo before the durable write.
		s.apply([]*store.Message{msg})
	}

	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}

	s.channel.Publish(s.conversationID, msg)

	if s.side == SideVisitor {
		s.apply([]*store.Message{msg})
		s.mu.Lock()
		s.composing = true
		s.mu.Unlock()
	}

	return msg, nil
}

// markRead bulk-marks unread user messages with a detached timeout context,
// so it completes even if the triggering request context is cancelled.
func (s *Session) markRead() {
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.store.MarkMessagesRead(saveCtx, s.conversationID); err != nil {
		s.logger.Error("failed to mark messages read", "error", err)
	}
}

// Messages returns a snapshot of the current ordered message list.
func (s *Session) Messages() []*store.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*store.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Composing reports whether the visitor is still waiting for an admin reply.
func (s *Session) Composing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.composing
}

// Close cancels the poll loop and tears down the push subscription. It is
// safe to call more than once and blocks until the background loop exits.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
	s.logger.Debug("session closed")
}

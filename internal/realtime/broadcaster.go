// ABOUTME: In-memory fan-out broadcaster for message insert events
// ABOUTME: Publishes persisted messages to all subscribers of a conversation id

package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/chatd/internal/store"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// Broadcaster provides in-memory pub/sub for message insert events.
// Subscribers register for a conversation id and receive each message as it
// is persisted. This is the push half of the dual poll+push sync protocol;
// the poll loop covers anything dropped here.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *store.Message // conversationID -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan *store.Message),
		logger:      logger.With("component", "realtime"),
	}
}

// Subscribe registers a subscriber for insert events on the given
// conversation id. Returns a channel that receives messages and a
// subscription ID for later unsubscription. The subscription is
// automatically cleaned up when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, conversationID string) (<-chan *store.Message, string) {
	subID := uuid.New().String()
	ch := make(chan *store.Message, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[conversationID]; !ok {
		b.subscribers[conversationID] = make(map[string]chan *store.Message)
	}
	b.subscribers[conversationID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added",
		"conversation_id", conversationID,
		"sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(conversationID, subID)
	}()

	return ch, subID
}

// Publish sends a message to all subscribers of its conversation id.
// Non-blocking: events are dropped for subscribers whose channels are full;
// the subscriber's next poll picks the message up instead.
func (b *Broadcaster) Publish(conversationID string, msg *store.Message) {
	b.mu.RLock()
	subs, ok := b.subscribers[conversationID]
	if !ok || len(subs) == 0 {
		b.mu.RUnlock()
		return
	}

	// Copy subscriber channels under read lock to avoid holding lock during sends
	targets := make([]chan *store.Message, 0, len(subs))
	for _, ch := range subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- msg:
			// Sent
		default:
			b.logger.Debug("dropped event for slow subscriber",
				"conversation_id", conversationID,
				"message_id", msg.ID)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
// Unsubscribing twice, or from an unknown conversation, is a no-op.
func (b *Broadcaster) Unsubscribe(conversationID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[conversationID]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	// Clean up empty conversation entries
	if len(subs) == 0 {
		delete(b.subscribers, conversationID)
	}

	b.logger.Debug("subscriber removed",
		"conversation_id", conversationID,
		"sub_id", subID)
}

// SubscriberCount returns the number of live subscriptions for a conversation.
func (b *Broadcaster) SubscriberCount(conversationID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[conversationID])
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for convID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, convID)
	}

	b.logger.Debug("broadcaster closed")
}

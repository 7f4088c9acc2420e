// ABOUTME: Builds a labeled transcript from conversation history and asks the
// ABOUTME: completion endpoint for one suggested admin reply

package suggest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/chatd/internal/store"
)

// ErrEmptyHistory is returned when a conversation has no messages to
// suggest a reply for.
var ErrEmptyHistory = errors.New("conversation has no messages")

// replyPrompt is the fixed behavioral prompt. The transcript is appended
// with each line labeled by sender role.
const replyPrompt = `You are a support assistant helping an admin respond to a visitor's message.

Here's the conversation so far:
%s

Generate a suggested response for the admin to send to the visitor. The response should be:
- Helpful and address the visitor's last message
- Professional but with personality
- In French if the visitor is speaking French, otherwise match their language
- Keep it concise (2-3 sentences max)

Only provide the suggested response text, nothing else.`

// MessageLister defines what the generator needs from storage
type MessageLister interface {
	ListMessages(ctx context.Context, conversationID string) ([]*store.Message, error)
}

// Completer produces one completion for a prompt. Satisfied by *Client.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator turns a conversation's history into one suggested admin reply.
type Generator struct {
	store  MessageLister
	client Completer
	logger *slog.Logger
}

// NewGenerator creates a suggestion generator. Pass nil logger for default.
func NewGenerator(st MessageLister, client Completer, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		store:  st,
		client: client,
		logger: logger.With("component", "suggest"),
	}
}

// SuggestReply loads the full message history, serializes it into a
// role-labeled transcript, and returns the endpoint's suggested reply text
// verbatim for the admin to edit or send. Failures surface as errors; the
// caller treats them as a no-op and leaves the admin's input unchanged.
func (g *Generator) SuggestReply(ctx context.Context, conversationID string) (string, error) {
	messages, err := g.store.ListMessages(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("loading history: %w", err)
	}
	if len(messages) == 0 {
		return "", ErrEmptyHistory
	}

	suggestion, err := g.client.Complete(ctx, fmt.Sprintf(replyPrompt, Transcript(messages)))
	if err != nil {
		g.logger.Warn("suggestion failed",
			"conversation_id", conversationID,
			"error", err)
		return "", err
	}

	g.logger.Debug("suggestion generated",
		"conversation_id", conversationID,
		"length", len(suggestion))
	return suggestion, nil
}

// Transcript serializes messages into one line per message, labeled by
// sender role.
func Transcript(messages []*store.Message) string {
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		label := "Admin"
		if msg.SenderType == store.SenderUser {
			label = "User"
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(msg.Content)
	}
	return b.String()
}

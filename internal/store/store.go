// ABOUTME: Store interface and data types for chatd persistence
// ABOUTME: Defines Conversation, Message structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Conversation status values. Transitions only move forward:
// active -> archived -> deleted.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Sender types for messages
const (
	SenderUser  = "user"
	SenderAdmin = "admin"
)

// Conversation represents one visitor's support session
type Conversation struct {
	ID             string
	Status         string
	UserName       string
	UserAvatar     string
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// Message represents a single chat line owned by a conversation.
// Messages are append-only; created_at is the sole sort key.
type Message struct {
	ID             string
	ConversationID string
	Content        string
	SenderType     string
	IsRead         bool
	CreatedAt      time.Time
}

// AdminUser represents a human operator of the triage view
type AdminUser struct {
	ID           string
	Username     string
	PasswordHash string // bcrypt hash
	DisplayName  string
	CreatedAt    time.Time
}

// Store defines the interface for conversation and message persistence
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context) ([]*Conversation, error)
	CountActiveConversations(ctx context.Context) (int, error)
	ArchiveConversation(ctx context.Context, id string) error
	CleanupEmptyConversations(ctx context.Context) (int, error)
	ArchiveInactiveConversations(ctx context.Context, before time.Time) (int, error)
	ListArchivedBefore(ctx context.Context, before time.Time) ([]string, error)
	DeleteConversation(ctx context.Context, id string) error

	// Messages
	SaveMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)
	CountUnreadMessages(ctx context.Context, conversationID string) (int, error)
	MarkMessagesRead(ctx context.Context, conversationID string) (int, error)

	// Admin users
	CreateAdminUser(ctx context.Context, user *AdminUser) error
	GetAdminUserByUsername(ctx context.Context, username string) (*AdminUser, error)

	// Close releases any resources held by the store
	Close() error
}

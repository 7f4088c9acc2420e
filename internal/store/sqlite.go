// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides conversation/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeFormat is the storage layout for timestamps. Nanosecond precision keeps
// created_at a strict sort key even for messages written in the same second.
const timeFormat = time.RFC3339Nano

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id               TEXT PRIMARY KEY,
			status           TEXT NOT NULL DEFAULT 'active',
			user_name        TEXT,
			user_avatar      TEXT,
			created_at       TEXT NOT NULL,
			last_activity_at TEXT NOT NULL,

			CHECK (status IN ('active', 'archived'))
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_status
			ON conversations(status, last_activity_at);

		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			content         TEXT NOT NULL,
			sender_type     TEXT NOT NULL,
			is_read         INTEGER NOT NULL DEFAULT 0,
			created_at      TEXT NOT NULL,

			CHECK (sender_type IN ('user', 'admin'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages(conversation_id, created_at);

		CREATE INDEX IF NOT EXISTS idx_messages_unread
			ON messages(conversation_id, sender_type, is_read);

		-- Admin users (humans who answer conversations via the triage view)
		CREATE TABLE IF NOT EXISTS admin_users (
			id            TEXT PRIMARY KEY,
			username      TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			display_name  TEXT NOT NULL,
			created_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_admin_users_username ON admin_users(username);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// CreateConversation inserts a new conversation row.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	query := `
		INSERT INTO conversations (id, status, user_name, user_avatar, created_at, last_activity_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		conv.Status,
		nullString(conv.UserName),
		nullString(conv.UserAvatar),
		conv.CreatedAt.UTC().Format(timeFormat),
		conv.LastActivityAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "user_name", conv.UserName)
	return nil
}

// nullString returns nil for empty strings, otherwise the string value
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetConversation retrieves a conversation by ID.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `
		SELECT id, status, user_name, user_avatar, created_at, last_activity_at
		FROM conversations
		WHERE id = ?
	`

	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	return conv, nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var conv Conversation
	var userName, userAvatar sql.NullString
	var createdAtStr, lastActivityStr string

	err := row.Scan(&conv.ID, &conv.Status, &userName, &userAvatar, &createdAtStr, &lastActivityStr)
	if err != nil {
		return nil, err
	}

	if userName.Valid {
		conv.UserName = userName.String
	}
	if userAvatar.Valid {
		conv.UserAvatar = userAvatar.String
	}

	conv.CreatedAt, err = time.Parse(timeFormat, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	conv.LastActivityAt, err = time.Parse(timeFormat, lastActivityStr)
	if err != nil {
		return nil, fmt.Errorf("parsing last_activity_at: %w", err)
	}

	return &conv, nil
}

// ListConversations returns all conversations, newest first.
func (s *SQLiteStore) ListConversations(ctx context.Context) ([]*Conversation, error) {
	query := `
		SELECT id, status, user_name, user_avatar, created_at, last_activity_at
		FROM conversations
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}
		conversations = append(conversations, conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}
	return conversations, nil
}

// CountActiveConversations returns the number of conversations with status 'active'.
func (s *SQLiteStore) CountActiveConversations(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE status = ?`, StatusActive,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting active conversations: %w", err)
	}
	return count, nil
}

// ArchiveConversation sets a conversation's status to archived.
// Archiving an already-archived or missing conversation is a no-op,
// which makes the exit beacon and the in-page attempt safe to race.
func (s *SQLiteStore) ArchiveConversation(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET status = ? WHERE id = ? AND status = ?`,
		StatusArchived, id, StatusActive,
	)
	if err != nil {
		return fmt.Errorf("archiving conversation: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		s.logger.Debug("archived conversation", "id", id)
	}
	return nil
}

// CleanupEmptyConversations deletes conversations that have no messages.
// Returns the number of conversations removed.
func (s *SQLiteStore) CleanupEmptyConversations(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM conversations
		WHERE id NOT IN (SELECT DISTINCT conversation_id FROM messages)
	`)
	if err != nil {
		return 0, fmt.Errorf("cleaning up empty conversations: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		s.logger.Debug("cleaned up empty conversations", "count", rowsAffected)
	}
	return int(rowsAffected), nil
}

// ArchiveInactiveConversations archives every active conversation whose
// last activity is older than the given cutoff. Idempotent by filter.
func (s *SQLiteStore) ArchiveInactiveConversations(ctx context.Context, before time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET status = ? WHERE status = ? AND last_activity_at < ?`,
		StatusArchived, StatusActive, before.UTC().Format(timeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("archiving inactive conversations: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		s.logger.Debug("archived inactive conversations", "count", rowsAffected)
	}
	return int(rowsAffected), nil
}

// ListArchivedBefore returns IDs of archived conversations whose last activity
// is older than the given cutoff. Used by the purge pass.
func (s *SQLiteStore) ListArchivedBefore(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM conversations WHERE status = ? AND last_activity_at < ?`,
		StatusArchived, before.UTC().Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("querying archived conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteConversation removes a conversation and all of its messages.
// Messages are deleted first to respect the foreign key constraint.
// Deleting a conversation that no longer exists is a no-op.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete transaction: %w", err)
	}

	s.logger.Debug("deleted conversation", "id", id)
	return nil
}

// SaveMessage inserts a message and advances the owning conversation's
// last_activity_at in the same transaction.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning message transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := msg.CreatedAt.UTC().Format(timeFormat)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, content, sender_type, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		msg.ID,
		msg.ConversationID,
		msg.Content,
		msg.SenderType,
		boolToInt(msg.IsRead),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET last_activity_at = ? WHERE id = ?`,
		createdAt, msg.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("updating last activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message transaction: %w", err)
	}

	s.logger.Debug("saved message",
		"id", msg.ID,
		"conversation_id", msg.ConversationID,
		"sender_type", msg.SenderType)
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ListMessages retrieves every message for a conversation in chronological
// order (created_at ascending).
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	query := `
		SELECT id, conversation_id, content, sender_type, is_read, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var isRead int
		var createdAtStr string

		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Content, &msg.SenderType, &isRead, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		msg.IsRead = isRead != 0
		msg.CreatedAt, err = time.Parse(timeFormat, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing message created_at: %w", err)
		}

		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}
	return messages, nil
}

// CountUnreadMessages returns the number of unread user messages in a
// conversation. Admin messages never count toward the unread badge.
func (s *SQLiteStore) CountUnreadMessages(ctx context.Context, conversationID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE conversation_id = ? AND sender_type = ? AND is_read = 0
	`, conversationID, SenderUser).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread messages: %w", err)
	}
	return count, nil
}

// MarkMessagesRead bulk-marks all unread user messages in a conversation as
// read. Returns the number of messages updated.
func (s *SQLiteStore) MarkMessagesRead(ctx context.Context, conversationID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE messages SET is_read = 1
		WHERE conversation_id = ? AND sender_type = ? AND is_read = 0
	`, conversationID, SenderUser)
	if err != nil {
		return 0, fmt.Errorf("marking messages read: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		s.logger.Debug("marked messages read", "conversation_id", conversationID, "count", rowsAffected)
	}
	return int(rowsAffected), nil
}

// CreateAdminUser inserts a new admin user.
func (s *SQLiteStore) CreateAdminUser(ctx context.Context, user *AdminUser) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_users (id, username, password_hash, display_name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.DisplayName,
		user.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting admin user: %w", err)
	}

	s.logger.Info("created admin user", "username", user.Username)
	return nil
}

// GetAdminUserByUsername retrieves an admin user by username.
// Returns ErrNotFound if no such user exists.
func (s *SQLiteStore) GetAdminUserByUsername(ctx context.Context, username string) (*AdminUser, error) {
	var user AdminUser
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, display_name, created_at
		FROM admin_users
		WHERE username = ?
	`, username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.DisplayName, &createdAtStr)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying admin user: %w", err)
	}

	user.CreatedAt, err = time.Parse(timeFormat, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &user, nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)

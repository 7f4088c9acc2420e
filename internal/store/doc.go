// Package store provides SQLite-backed persistence for conversations,
// messages, and admin users.
//
// # Data Model
//
// Two core tables back the chat widget:
//
//   - conversations: id, status (active|archived), optional visitor display
//     metadata, created_at, last_activity_at
//   - messages: id, conversation_id, content, sender_type (user|admin),
//     is_read, created_at
//
// A conversation exclusively owns its messages; DeleteConversation removes
// messages first so no message outlives its conversation. Messages are
// append-only and created_at (stored at nanosecond precision) is the sole
// sort key.
//
// # Lifecycle Queries
//
// The store exposes the bulk operations the lifecycle janitor runs each tick:
//
//   - CleanupEmptyConversations: drop conversations that never received a message
//   - ArchiveInactiveConversations: active -> archived past an activity cutoff
//   - ListArchivedBefore + DeleteConversation: retention purge with cascade
//
// All three are idempotent by filter, so overlapping callers (the creation
// path, the janitor, the exit beacon) can run them concurrently.
package store

// Package gateway hosts the chat HTTP surface.
//
// # Overview
//
// The gateway wires the SQLite store, the realtime broadcaster, and the
// lifecycle janitor behind one HTTP server. Two audiences are served:
//
//   - Visitors: create conversations, exchange messages, follow an SSE
//     stream of inserts, and fire the archive beacon on page exit.
//   - Admins: log in with username/password for a bearer token, then triage
//     conversations, read markdown-rendered histories, bulk mark messages as
//     read, and request AI reply suggestions.
//
// Writes are durable-first: a message is persisted before it is published to
// stream subscribers, so a poll always recovers anything the stream drops.
//
// The archive beacon is the one endpoint that always reports success; the
// page that sent it is gone before any response arrives, so an error body
// would have no reader.
package gateway

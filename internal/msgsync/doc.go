// Package msgsync reconciles a conversation's message list from three
// independent update sources: an initial bulk load, a realtime push
// subscription, and a fixed-interval poll.
//
// # Merge Protocol
//
// The poll and push feeds are redundancy, not a true merge protocol: the
// requirement is "never miss a message, never show duplicates". Incoming
// data is treated as a set keyed by message id, merged with union semantics,
// and ordered only by created_at after the union. Arrival order is never
// trusted, so the two overlapping feeds cannot corrupt state.
//
// # Sessions
//
// A Session serves one open conversation view, visitor- or admin-side.
// Opening a session starts both feeds; closing it cancels the poll ticker
// and tears down the subscription before returning. Within one client,
// message order is guaranteed only by the created_at sort after merge.
// Across clients the guarantee is eventual: a message is visible to every
// observer no later than one poll interval after its durable write.
//
// The visitor session owns the composing flag ("waiting for a reply"),
// set after the visitor's own durable send and cleared the instant an admin
// message is observed through either feed. The admin session performs the
// optimistic local echo and bulk-marks user messages as read on open and
// whenever new user messages are observed.
package msgsync

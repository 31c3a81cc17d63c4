// Package state keeps per-chat dialog sessions in memory. Each chat owns one
// Session holding the active flow, the state inside it, and typed scratch data.
// Entries expire after an idle TTL and handlers for one chat are serialized
// through a per-chat lock.
package state

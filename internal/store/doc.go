// Package store provides the ticket ledger for envision-bot.
//
// # Overview
//
// The ledger is an append-only record of what users asked for: opening a
// ticket, prioritizing it, reporting a problem, asking for a human agent,
// returning from a hand-off, and closing the conversation. Human staff read
// it to follow up. The bot writes to it and never reads it back, so live
// conversation state stays in memory (see package session).
//
// # Implementations
//
//   - SQLiteStore: modernc.org/sqlite, created on first open, WAL mode
//   - MockStore: in-memory, for tests
//
// # Schema
//
//	ticket_events(event_id, kind, user_id, ticket, display_name, text, created_at)
//
// created_at is a fixed-width UTC timestamp so lexical order is time order.
package store

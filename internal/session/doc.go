// Package session holds the per-user conversation state of the bot.
//
// # Overview
//
// A single Table owns one record per user identifier. Each record carries a
// tagged State instead of membership in several independent collections, so
// a user can never be suspended and capturing a problem report at the same
// time:
//
//	Unknown ──greeting──▶ AwaitingTicket ──5 digits──▶ MenuActive
//	                                                     │  ▲
//	                                  "2" ───────────────┤  ├── capture consumed / "voltar"
//	                                                     ▼  │
//	                                                 ProblemCapture
//
//	MenuActive ──"3"──▶ Suspended ──"menu" | "voltar" | 5 digits──▶ MenuActive
//	MenuActive ──"6"──▶ AwaitingTicket (ticket data dropped)
//
// # Operations
//
// Session store:
//
//   - Get(user): copy of the record, or a zero Unknown record
//   - Create(user, ticket, name): first writer wins, ErrSessionExists after
//   - SetProblem(user, text): store the report, consuming a pending capture
//   - Delete(user): forget the user entirely
//
// Suspension:
//
//   - Suspend(user), IsSuspended(user), Resume(user): idempotent
//
// Problem capture:
//
//   - BeginCapture(user): false when a capture is already pending
//   - EndCapture(user): leave capture without storing anything
//
// # Eviction
//
// Records idle for longer than the table's idle timeout are dropped by Sweep,
// which Run calls on a ticker. A zero timeout disables eviction.
package session

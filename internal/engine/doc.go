// Package engine implements the conversation state machine of envision-bot.
//
// # Overview
//
// The Engine receives one Inbound message at a time per user, looks up the
// user's record in the session table, and decides what to reply:
//
//	Unknown         greeting          -> welcome + fallback contact
//	                5 digits          -> "type iniciar" prompt
//	                anything else     -> nothing
//	AwaitingTicket  greeting          -> welcome + fallback contact
//	                5 digits          -> ticket session, main menu
//	                anything else     -> "type iniciar" prompt
//	MenuActive      menu/voltar/0     -> back notice + main menu
//	                1                 -> three prioritization messages
//	                2                 -> problem prompt, capture pending
//	                3                 -> hand-off notice, suspended
//	                4, 5              -> finance / sales links
//	                6                 -> two closing messages, ticket dropped
//	                anything else     -> nothing
//	ProblemCapture  menu/voltar/0     -> back notice + main menu
//	                2                 -> nothing, capture still pending
//	                anything else     -> stored as the problem, acknowledgment
//	Suspended       menu/voltar/5 digits -> resume notice + main menu
//	                anything else     -> nothing
//
// # Delivery
//
// Each transition is committed to the session table before its replies are
// sent, so a transport failure aborts only the rest of that reply. Replies go
// through a Pacer that shows a typing indicator and pauses around every send.
//
// # Ordering
//
// The Dispatcher keeps one FIFO queue and one worker per active user, so two
// quick messages from the same user can never interleave their replies.
package engine

// Package matrix connects envision-bot to a Matrix homeserver.
//
// The Bridge logs in (stored access token or password), runs the sync loop,
// and turns direct text messages into engine.Inbound values for a
// Submitter. It also implements engine.Transport, so the conversation engine
// replies through the same client.
//
// Inbound filtering drops the bot's own messages, non-text messages, events
// older than the start of the sync, redelivered events, and senders outside
// matrix.allowed_users. Rooms with more than two joined members are flagged
// as groups and left to the engine to ignore.
//
// SetupCrypto attaches the mautrix crypto helper so encrypted direct chats
// work. Its SQLite store is keyed per account.
package matrix

// Package dedupe remembers recently seen inbound event IDs so a message
// redelivered by the transport after a reconnect is handled only once.
//
// Entries expire after a TTL and the set is bounded: when full, the oldest
// entry is forgotten first.
package dedupe

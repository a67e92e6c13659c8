// Package state keeps the per-user pending task of a conversation.
//
// Entries live in process memory only and expire after a configurable TTL,
// so a prompt that was never answered cannot capture an unrelated message
// hours later. Lock serializes transitions for one user while other users
// proceed independently.
package state

// Copyright 2025-2026 Hexavox

// Package bridge implements the core of the game-to-chat relay: the stateful
// logic that reconciles the game server's event stream and the chat
// platform's event stream into one consistent cross-platform chat session.
//
// # Core Types
//
// [Bridge] owns all shared bridge state (presence set, identity cache,
// relay throttle, active delivery hooks) behind one mutex. The game protocol
// client drives it through [GameHandler]; the chat platform adapter drives
// it through [Bridge.HandleChatMessage] and replies through [Responder].
//
// [PresenceTracker] maintains the current-player set as a state machine over
// the session lifecycle, so that the post-reconnect backfill never floods
// the chat platform with spurious join messages.
//
// [IdentityCache] is a bidirectional display-name/persistent-identity map
// with lazy lookups against an external profile service. Lookups degrade to
// an "unknown" outcome instead of failing the relay.
//
// [Lifecycle] drives the connect/active/disconnected/reconnect state machine
// for the game-side session, probing server liveness before each attempt.
//
// # Echo Prevention
//
// Messages the bridge itself injects into game chat come back on the game
// event stream under the bridge's own account, and webhook posts come back
// on the chat platform's event stream. Both directions filter the bridge's
// own identity before relaying, otherwise every relayed message would loop
// forever.
//
// # Locking
//
// Handlers mutate shared state and compose outbound payloads while holding
// the bridge mutex, then release it before any network I/O. Webhook posts,
// identity lookups and game transmissions never run under the lock.
package bridge

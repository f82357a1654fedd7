// Copyright 2025-2026 Hexavox

package bridge

import (
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionState is the lifecycle state of the game-side session.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateBackfilling
	StateActive
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateBackfilling:
		return "backfilling"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// PlayerListActionKind tags a presence action within a server batch.
type PlayerListActionKind int

const (
	PlayerAdd PlayerListActionKind = iota
	PlayerRemove
)

// PlayerListAction is one entry of a server-sent player list batch.
type PlayerListAction struct {
	Kind PlayerListActionKind
	ID   uuid.UUID
	// Name is only set for adds.
	Name string
}

// PresenceEventKind classifies a presence notification.
type PresenceEventKind int

const (
	// PresenceJoin is a genuine join observed while active.
	PresenceJoin PresenceEventKind = iota
	// PresenceLeave is a departure, observed live or computed from the
	// pre-reconnect snapshot once backfill completes.
	PresenceLeave
	// PresenceSeen is a silent backfill add, recorded for analytics only.
	PresenceSeen
	// PresenceBackfillDone marks the bridge's own identity appearing,
	// which ends the backfill phase.
	PresenceBackfillDone
)

// PresenceEvent is a notification produced by the tracker. The caller
// delivers them after releasing the bridge lock.
type PresenceEvent struct {
	Kind   PresenceEventKind
	ID     uuid.UUID
	Name   string
	Online int
}

// PresenceTracker maintains the set of players currently connected to the
// game server. It is not internally synchronized; the bridge mutex guards
// all access.
type PresenceTracker struct {
	log   zerolog.Logger
	cache *IdentityCache
	self  string

	state    SessionState
	players  map[uuid.UUID]string
	previous map[uuid.UUID]string
}

// NewPresenceTracker creates a tracker in the Connecting state. self is the
// bridge's own in-game name; its appearance in a backfill ends the phase.
func NewPresenceTracker(self string, cache *IdentityCache, log zerolog.Logger) *PresenceTracker {
	return &PresenceTracker{
		log:      log.With().Str("component", "presence").Logger(),
		cache:    cache,
		self:     self,
		state:    StateConnecting,
		players:  make(map[uuid.UUID]string),
		previous: make(map[uuid.UUID]string),
	}
}

// State returns the current session state.
func (t *PresenceTracker) State() SessionState {
	return t.state
}

// Online returns the current player count.
func (t *PresenceTracker) Online() int {
	return len(t.players)
}

// PlayerNames returns the current display names in sorted order.
func (t *PresenceTracker) PlayerNames() []string {
	names := make([]string, 0, len(t.players))
	for _, name := range t.players {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SessionEstablished begins a new session: the current presence set becomes
// the previous snapshot, the live set is cleared, and the tracker enters the
// backfill phase.
func (t *PresenceTracker) SessionEstablished() {
	t.previous = t.players
	t.players = make(map[uuid.UUID]string)
	t.state = StateBackfilling
}

// MarkDisconnected records the loss of the game session. The presence set
// is left intact so the next backfill can diff against it.
func (t *PresenceTracker) MarkDisconnected() {
	t.state = StateDisconnected
}

// Apply processes one server-sent batch of presence actions and returns the
// notifications it produced. Duplicate adds and removes of absent players
// are ignored without aborting the rest of the batch.
func (t *PresenceTracker) Apply(actions []PlayerListAction) []PresenceEvent {
	var events []PresenceEvent
	for _, action := range actions {
		switch action.Kind {
		case PlayerAdd:
			events = append(events, t.addPlayer(action.ID, action.Name)...)
		case PlayerRemove:
			events = append(events, t.removePlayer(action.ID)...)
		}
	}
	return events
}

func (t *PresenceTracker) addPlayer(id uuid.UUID, name string) []PresenceEvent {
	if _, ok := t.players[id]; ok {
		// Servers occasionally send a duplicate add on join.
		t.log.Debug().Str("uuid", id.String()).Str("name", name).Msg("Ignoring duplicate presence add")
		return nil
	}
	t.players[id] = name
	t.cache.Put(id, name)

	if t.state == StateActive {
		if name == t.self {
			return nil
		}
		return []PresenceEvent{{Kind: PresenceJoin, ID: id, Name: name, Online: len(t.players)}}
	}

	if t.state != StateBackfilling {
		return nil
	}
	if name != t.self {
		// Silent backfill: the player was already present before we joined.
		return []PresenceEvent{{Kind: PresenceSeen, ID: id, Name: name}}
	}

	// The server streams the bridge's own entry last; the backfill is done.
	t.state = StateActive
	events := t.departedSinceSnapshot()
	events = append(events, PresenceEvent{
		Kind:   PresenceBackfillDone,
		ID:     id,
		Name:   name,
		Online: len(t.players),
	})
	return events
}

// departedSinceSnapshot emits one leave per player who was present before
// the reconnect but is absent from the completed backfill.
func (t *PresenceTracker) departedSinceSnapshot() []PresenceEvent {
	var departed []PresenceEvent
	// Sorted for deterministic notification order.
	ids := make([]uuid.UUID, 0, len(t.previous))
	for id := range t.previous {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		if _, still := t.players[id]; still {
			continue
		}
		departed = append(departed, PresenceEvent{
			Kind:   PresenceLeave,
			ID:     id,
			Name:   t.previous[id],
			Online: len(t.players),
		})
		t.cache.Forget(id)
	}
	t.previous = make(map[uuid.UUID]string)
	return departed
}

func (t *PresenceTracker) removePlayer(id uuid.UUID) []PresenceEvent {
	name, ok := t.players[id]
	if !ok {
		t.log.Debug().Str("uuid", id.String()).Msg("Ignoring presence remove for absent player")
		return nil
	}
	delete(t.players, id)
	t.cache.Forget(id)
	if t.state != StateActive || name == t.self {
		return nil
	}
	return []PresenceEvent{{Kind: PresenceLeave, ID: id, Name: name, Online: len(t.players)}}
}

// Copyright 2025-2026 Hexavox

package bridge

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	selfID  = uuid.MustParse("00000000-0000-0000-0000-0000000000ff")
	aliceID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	bobID   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	carolID = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

func newTestTracker() *PresenceTracker {
	cache := NewIdentityCache(newFakeLookup(), zerolog.Nop())
	return NewPresenceTracker("BridgeBot", cache, zerolog.Nop())
}

func add(id uuid.UUID, name string) PlayerListAction {
	return PlayerListAction{Kind: PlayerAdd, ID: id, Name: name}
}

func remove(id uuid.UUID) PlayerListAction {
	return PlayerListAction{Kind: PlayerRemove, ID: id}
}

func kinds(events []PresenceEvent) []PresenceEventKind {
	out := make([]PresenceEventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestBackfillIsSilent(t *testing.T) {
	t.Parallel()
	tr := newTestTracker()
	tr.SessionEstablished()
	events := tr.Apply([]PlayerListAction{add(aliceID, "Alice"), add(bobID, "Bob")})
	for _, ev := range events {
		if ev.Kind == PresenceJoin {
			t.Errorf("backfill add produced a join for %q", ev.Name)
		}
	}
	if tr.State() != StateBackfilling {
		t.Errorf("state: got %v, want %v", tr.State(), StateBackfilling)
	}
}

func TestOwnIdentityEndsBackfill(t *testing.T) {
	t.Parallel()
	tr := newTestTracker()
	tr.SessionEstablished()
	tr.Apply([]PlayerListAction{add(aliceID, "Alice")})
	events := tr.Apply([]PlayerListAction{add(selfID, "BridgeBot")})
	if tr.State() != StateActive {
		t.Fatalf("state after own identity: got %v, want %v", tr.State(), StateActive)
	}
	if len(events) != 1 || events[0].Kind != PresenceBackfillDone {
		t.Errorf("events: got %v, want single backfill-done", kinds(events))
	}
	if events[0].Online != 2 {
		t.Errorf("online count: got %d, want 2", events[0].Online)
	}
}

func TestJoinWhileActive(t *testing.T) {
	t.Parallel()
	tr := newTestTracker()
	tr.SessionEstablished()
	tr.Apply([]PlayerListAction{add(selfID, "BridgeBot")})

	events := tr.Apply([]PlayerListAction{add(aliceID, "Alice")})
	if len(events) != 1 || events[0].Kind != PresenceJoin {
		t.Fatalf("events: got %v, want single join", kinds(events))
	}
	if events[0].Name != "Alice" {
		t.Errorf("join name: got %q, want %q", events[0].Name, "Alice")
	}
	if events[0].Online != 2 {
		t.Errorf("online count: got %d, want 2", events[0].Online)
	}
}

func TestLeaveWhileActive(t *testing.T) {
	t.Parallel()
	tr := newTestTracker()
	tr.SessionEstablished()
	tr.Apply([]PlayerListAction{add(aliceID, "Alice"), add(selfID, "BridgeBot")})

	events := tr.Apply([]PlayerListAction{remove(aliceID)})
	if len(events) != 1 || events[0].Kind != PresenceLeave {
		t.Fatalf("events: got %v, want single leave", kinds(events))
	}
	if events[0].Name != "Alice" {
		t.Errorf("leave name: got %q, want %q", events[0].Name, "Alice")
	}
}

func TestOwnPresenceChangesAreSilent(t *testing.T) {
	t.Parallel()
	tr := newTestTracker()
	tr.SessionEstablished()
	tr.Apply([]PlayerListAction{add(selfID, "BridgeBot")})

	events := tr.Apply([]PlayerListAction{remove(selfID), add(selfID, "BridgeBot")})
	if len(events) != 0 {
		t.Errorf("own presence changes produced notifications: %v", kinds(events))
	}
	if tr.Online() != 1 {
		t.Errorf("online: got %d, want 1", tr.Online())
	}
}

func TestDuplicateAddContinuesBatch(t *testing.T) {
	t.Parallel()
	tr := newTestTracker()
	tr.SessionEstablished()
	tr.Apply([]PlayerListAction{add(selfID, "BridgeBot"), add(aliceID, "Alice")})

	// The duplicate is ignored but Bob's join must still be processed.
	events := tr.Apply([]PlayerListAction{add(aliceID, "Alice"), add(bobID, "Bob")})
	if len(events) != 1 || events[0].Kind != PresenceJoin || events[0].Name != "Bob" {
		t.Fatalf("events: got %+v, want single join for Bob", events)
	}
	if tr.Online() != 3 {
		t.Errorf("online: got %d, want 3", tr.Online())
	}
}

func TestRemoveAbsentIsIgnored(t *testing.T) {
	t.Parallel()
	tr := newTestTracker()
	tr.SessionEstablished()
	tr.Apply([]PlayerListAction{add(selfID, "BridgeBot")})

	events := tr.Apply([]PlayerListAction{remove(aliceID)})
	if len(events) != 0 {
		t.Errorf("events: got %v, want none", kinds(events))
	}
}

func TestReconnectEmitsOneLeavePerDeparted(t *testing.T) {
	t.Parallel()
	tr := newTestTracker()
	tr.SessionEstablished()
	tr.Apply([]PlayerListAction{
		add(aliceID, "Alice"), add(bobID, "Bob"), add(carolID, "Carol"),
		add(selfID, "BridgeBot"),
	})

	// Alice and Carol leave while the bridge is disconnected.
	tr.MarkDisconnected()
	tr.SessionEstablished()
	events := tr.Apply([]PlayerListAction{
		add(bobID, "Bob"),
		add(selfID, "BridgeBot"),
	})

	leaves := make(map[string]int)
	var done int
	for _, ev := range events {
		switch ev.Kind {
		case PresenceLeave:
			leaves[ev.Name]++
		case PresenceBackfillDone:
			done++
		case PresenceJoin:
			t.Errorf("unexpected join for %q during reconnect backfill", ev.Name)
		}
	}
	if done != 1 {
		t.Errorf("backfill-done events: got %d, want 1", done)
	}
	if leaves["Alice"] != 1 || leaves["Carol"] != 1 {
		t.Errorf("departed leaves: got %v, want exactly one each for Alice and Carol", leaves)
	}
	if leaves["Bob"] != 0 {
		t.Errorf("Bob stayed online but got %d leave events", leaves["Bob"])
	}
}

func TestReconnectSurvivorGetsNoEvents(t *testing.T) {
	t.Parallel()
	tr := newTestTracker()
	tr.SessionEstablished()
	tr.Apply([]PlayerListAction{add(aliceID, "Alice"), add(selfID, "BridgeBot")})

	tr.MarkDisconnected()
	tr.SessionEstablished()
	events := tr.Apply([]PlayerListAction{add(aliceID, "Alice"), add(selfID, "BridgeBot")})
	for _, ev := range events {
		if ev.Kind == PresenceJoin || ev.Kind == PresenceLeave {
			t.Errorf("survivor produced %v for %q", ev.Kind, ev.Name)
		}
	}
}

func TestPlayerNamesSorted(t *testing.T) {
	t.Parallel()
	tr := newTestTracker()
	tr.SessionEstablished()
	tr.Apply([]PlayerListAction{
		add(carolID, "Carol"), add(aliceID, "Alice"), add(bobID, "Bob"),
	})
	names := tr.PlayerNames()
	want := []string{"Alice", "Bob", "Carol"}
	if len(names) != len(want) {
		t.Fatalf("names: got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d]: got %q, want %q", i, names[i], want[i])
		}
	}
}

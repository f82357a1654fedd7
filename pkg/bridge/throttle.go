// Copyright 2025-2026 Hexavox

package bridge

import "time"

// throttleState is the global chat-to-game gate. A successful relay opens a
// cooldown window; while it is open every further relay is blocked, which
// also covers repeats: an identical message is only relayed again once the
// window has closed. Guarded by the bridge mutex.
type throttleState struct {
	nextAllowed time.Time
}

func (t *throttleState) blocked(now time.Time) bool {
	return now.Before(t.nextAllowed)
}

func (t *throttleState) record(now time.Time, delay time.Duration) {
	t.nextAllowed = now.Add(delay)
}

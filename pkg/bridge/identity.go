// Copyright 2025-2026 Hexavox

package bridge

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IdentityCache is a bidirectional map between persistent game identities
// and their current display names. Entries are created lazily on the first
// lookup miss, overwritten in place on rename, and removed only when a
// player leaves; the cache is never evicted by size.
//
// Lookup failures degrade to an "unknown" outcome so presence and chat
// relay keep working without a resolved identity.
type IdentityCache struct {
	log    zerolog.Logger
	lookup ProfileLookup

	mu     sync.Mutex
	byID   map[uuid.UUID]string
	byName map[string]uuid.UUID
}

// NewIdentityCache creates an empty cache backed by the given lookup service.
func NewIdentityCache(lookup ProfileLookup, log zerolog.Logger) *IdentityCache {
	return &IdentityCache{
		log:    log.With().Str("component", "identity_cache").Logger(),
		lookup: lookup,
		byID:   make(map[uuid.UUID]string),
		byName: make(map[string]uuid.UUID),
	}
}

// ResolveName returns the display name for id, consulting the external
// profile service on a miss. The second return is false when the identity
// is unknown.
func (c *IdentityCache) ResolveName(ctx context.Context, id uuid.UUID) (string, bool) {
	c.mu.Lock()
	if name, ok := c.byID[id]; ok {
		c.mu.Unlock()
		return name, true
	}
	c.mu.Unlock()

	if c.lookup == nil {
		return "", false
	}
	name, err := c.lookup.NameByID(ctx, id)
	if err != nil {
		c.log.Error().Err(err).Str("uuid", id.String()).
			Msg("Failed to look up display name with the profile service")
		return "", false
	}
	c.Put(id, name)
	return name, true
}

// ResolveID returns the persistent identity for name, consulting the
// external profile service on a miss. The second return is false when the
// name is unknown.
func (c *IdentityCache) ResolveID(ctx context.Context, name string) (uuid.UUID, bool) {
	c.mu.Lock()
	if id, ok := c.byName[name]; ok {
		c.mu.Unlock()
		return id, true
	}
	c.mu.Unlock()

	if c.lookup == nil {
		return uuid.Nil, false
	}
	id, err := c.lookup.IDByName(ctx, name)
	if err != nil {
		c.log.Error().Err(err).Str("name", name).
			Msg("Failed to look up persistent identity with the profile service")
		return uuid.Nil, false
	}
	c.Put(id, name)
	return id, true
}

// Put inserts or overwrites the pairing for id, enforcing uniqueness in both
// directions: a rename displaces the identity's previous name, and a name
// stolen from another identity displaces that identity's entry.
func (c *IdentityCache) Put(id uuid.UUID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prevName, ok := c.byID[id]; ok && prevName != name {
		delete(c.byName, prevName)
	}
	if prevID, ok := c.byName[name]; ok && prevID != id {
		delete(c.byID, prevID)
	}
	c.byID[id] = name
	c.byName[name] = id
}

// Forget removes the entry for id, if any.
func (c *IdentityCache) Forget(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name, ok := c.byID[id]; ok {
		delete(c.byName, name)
		delete(c.byID, id)
	}
}

// Len returns the number of cached pairings.
func (c *IdentityCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}

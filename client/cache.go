// Package client is the app-side half of the swipe flow: an optimistic local
// cache and an HTTP client that keeps it reconciled with the server.
package client

import (
	"sort"
	"sync"

	"github.com/kbcarlson3/meal-match/models"
)

// Key identifies a swipe or a match on the client, same as on the server
type Key struct {
	GroupID string
	ItemID  string
}

// SwipeState tracks whether the server has accepted a local swipe
type SwipeState int

// Swipe states
const (
	SwipePending SwipeState = iota
	SwipeConfirmed
)

// Swipe is the cached view of this actor's preference on one item
type Swipe struct {
	Key
	Direction models.Direction
	State     SwipeState
	EventID   string // empty until confirmed with a server event
}

// Cache holds one actor's swipes and their groups' matches. Optimistic
// entries are never treated as authoritative: the server decides uniqueness
// and Reconcile replaces whatever the cache believes.
type Cache struct {
	mu      sync.RWMutex
	swipes  map[Key]Swipe
	matches map[Key]models.MatchRecord
}

// NewCache returns an empty cache
func NewCache() *Cache {
	return &Cache{swipes: map[Key]Swipe{}, matches: map[Key]models.MatchRecord{}}
}

// ApplyOptimistic records a swipe before the server answers. It reports
// false when the item already has a swipe, pending or confirmed.
func (c *Cache) ApplyOptimistic(groupID, itemID string, dir models.Direction) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := Key{groupID, itemID}
	if _, ok := c.swipes[k]; ok {
		return false
	}
	c.swipes[k] = Swipe{Key: k, Direction: dir, State: SwipePending}
	return true
}

// Confirm marks the swipe as accepted. A zero event confirms without an id,
// which is how a duplicate rejection is absorbed.
func (c *Cache) Confirm(groupID, itemID string, event models.PreferenceEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := Key{groupID, itemID}
	s, ok := c.swipes[k]
	if !ok {
		s = Swipe{Key: k, Direction: event.Direction}
	}
	s.State = SwipeConfirmed
	if event.EventID != "" {
		s.EventID = event.EventID
		s.Direction = event.Direction
	}
	c.swipes[k] = s
}

// Rollback drops a pending swipe. Confirmed swipes are left alone.
func (c *Cache) Rollback(groupID, itemID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := Key{groupID, itemID}
	if s, ok := c.swipes[k]; ok && s.State == SwipePending {
		delete(c.swipes, k)
	}
}

// ApplyMatchEvent adds a match announced over the realtime channel. An
// existing entry for the same (group, item) wins, so a replayed or
// duplicated event never produces a second match.
func (c *Cache) ApplyMatchEvent(evt models.MatchEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := Key{evt.GroupID, evt.ItemID}
	if _, ok := c.matches[k]; ok {
		return false
	}
	c.matches[k] = models.MatchRecord{
		MatchID:   evt.MatchID,
		GroupID:   evt.GroupID,
		ItemID:    evt.ItemID,
		MatchedAt: evt.MatchedAt,
	}
	return true
}

// PutMatch stores a server-provided record, replacing the cached one
func (c *Cache) PutMatch(rec models.MatchRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matches[Key{rec.GroupID, rec.ItemID}] = rec
}

// Reconcile replaces the cached state of groupID with an authoritative
// fetch. Pending swipes the server has not seen yet survive.
func (c *Cache) Reconcile(groupID string, matches []models.MatchRecord, prefs []models.PreferenceEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.matches {
		if k.GroupID == groupID {
			delete(c.matches, k)
		}
	}
	for _, m := range matches {
		c.matches[Key{m.GroupID, m.ItemID}] = m
	}

	for k, s := range c.swipes {
		if k.GroupID == groupID && s.State == SwipeConfirmed {
			delete(c.swipes, k)
		}
	}
	for _, p := range prefs {
		k := Key{p.GroupID, p.ItemID}
		c.swipes[k] = Swipe{Key: k, Direction: p.Direction, State: SwipeConfirmed, EventID: p.EventID}
	}
}

// Swiped returns the cached swipe for an item
func (c *Cache) Swiped(groupID, itemID string) (Swipe, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.swipes[Key{groupID, itemID}]
	return s, ok
}

// Matches lists the cached matches of groupID, oldest first
func (c *Cache) Matches(groupID string) []models.MatchRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := []models.MatchRecord{}
	for k, m := range c.matches {
		if k.GroupID == groupID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MatchedAt.Equal(out[j].MatchedAt) {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].MatchedAt.Before(out[j].MatchedAt)
	})
	return out
}

// Package throttle implements the three independent bounded tables of C10:
// interaction history, attack tracker, and blacklist (§4.10).
package throttle

import (
	"time"

	"github.com/corvid-labs/harvestd/internal/core/domain"
	"github.com/corvid-labs/harvestd/internal/core/services/container"
)

// TableCapacity is the ≤64-entry cap shared by all three tables (§4.10).
const TableCapacity = 64

// Tracker bundles the interaction-history, attack-tracker, and blacklist
// tables behind the operations the orchestrator and loop need.
type Tracker struct {
	interactions *container.BoundedTable[domain.InteractionRecord]
	attacks      *container.BoundedTable[*domain.AttackTracker]
	blacklist    *container.BoundedTable[domain.BlacklistEntry]
}

// New constructs the three tables at their spec'd capacity.
func New() *Tracker {
	return &Tracker{
		interactions: container.NewBoundedTable[domain.InteractionRecord](TableCapacity),
		attacks:      container.NewBoundedTable[*domain.AttackTracker](TableCapacity),
		blacklist:    container.NewBoundedTable[domain.BlacklistEntry](TableCapacity),
	}
}

// ShouldInteract reports false if mac's interaction TTL has not expired
// (§4.10: should_interact).
func (t *Tracker) ShouldInteract(mac string, now time.Time) bool {
	rec, ok := t.interactions.Get(mac)
	if !ok {
		return true
	}
	return rec.Expired(now)
}

// RecordInteraction stamps mac's last-interaction time, evicting the oldest
// entry by insertion order if the table is full and mac is new. Because the
// table is swap-with-last, "oldest" is approximated by the first key found;
// this matches the spec's array-backed swap-eviction semantics rather than
// true LRU.
func (t *Tracker) RecordInteraction(mac string, now time.Time) {
	if !t.interactions.Set(mac, domain.InteractionRecord{MAC: mac, LastInteraction: now}) {
		t.evictOneInteraction()
		t.interactions.Set(mac, domain.InteractionRecord{MAC: mac, LastInteraction: now})
	}
}

func (t *Tracker) evictOneInteraction() {
	keys := t.interactions.Keys()
	if len(keys) > 0 {
		t.interactions.Delete(keys[0])
	}
}

// PruneInteractions removes every expired interaction record (§4.12 step 14
// "prune interaction history").
func (t *Tracker) PruneInteractions(now time.Time) int {
	var expired []string
	t.interactions.ForEach(func(key string, rec domain.InteractionRecord) {
		if rec.Expired(now) {
			expired = append(expired, key)
		}
	})
	for _, k := range expired {
		t.interactions.Delete(k)
	}
	return len(expired)
}

// TrackDeauth implements §4.10 track_deauth: increments the AP's deauth
// counter and, once the threshold is crossed without a handshake, moves it
// into the blacklist.
func (t *Tracker) TrackDeauth(mac string, now time.Time) {
	tr, ok := t.attacks.Get(mac)
	if !ok {
		tr = &domain.AttackTracker{MAC: mac, FirstAttack: now}
		if !t.attacks.Set(mac, tr) {
			return // table full; attempt is still counted nowhere, matches "fixed capacity" semantics
		}
	}
	tr.DeauthCount++
	if tr.ShouldBlacklist() {
		t.Blacklist(mac, now)
	}
}

// MarkHandshake records that mac produced a handshake, per AttackTracker.
func (t *Tracker) MarkHandshake(mac string) {
	if tr, ok := t.attacks.Get(mac); ok {
		tr.GotHandshake = true
	}
}

// AttackTracker exposes the tracker entry for mac, if any.
func (t *Tracker) AttackTracker(mac string) (*domain.AttackTracker, bool) {
	return t.attacks.Get(mac)
}

// SetLastPhase records the most recent phase attempted against mac.
func (t *Tracker) SetLastPhase(mac string, phase int) {
	if tr, ok := t.attacks.Get(mac); ok {
		tr.LastPhase = phase
	}
}

// Blacklist inserts mac into the blacklist table (§4.10).
func (t *Tracker) Blacklist(mac string, now time.Time) {
	if !t.blacklist.Set(mac, domain.BlacklistEntry{MAC: mac, BlacklistedAt: now}) {
		t.evictOneBlacklist()
		t.blacklist.Set(mac, domain.BlacklistEntry{MAC: mac, BlacklistedAt: now})
	}
}

func (t *Tracker) evictOneBlacklist() {
	keys := t.blacklist.Keys()
	if len(keys) > 0 {
		t.blacklist.Delete(keys[0])
	}
}

// IsBlacklisted implements §4.10 is_blacklisted: true within
// BlacklistDuration of blacklisting, evicting expired entries by
// swap-with-last as it goes (§4.10, §8 law 7).
func (t *Tracker) IsBlacklisted(mac string, now time.Time) bool {
	entry, ok := t.blacklist.Get(mac)
	if !ok {
		return false
	}
	if entry.IsActive(now) {
		return true
	}
	t.blacklist.Delete(mac)
	return false
}

package domain

import "time"

// AttackTracker is the per-AP deauth/handshake bookkeeping described in §3
// and §4.10. DeauthCountForBlacklist is the threshold at which the tracker
// asks the blacklist table to take over for a while.
const DeauthCountForBlacklist = 20

// BlacklistDuration is how long an AP stays blacklisted after crossing the
// deauth threshold without producing a handshake (§4.10, §8 law 7).
const BlacklistDuration = 3600 * time.Second

// InteractionTTL gates how often a station may be re-engaged (§4.10).
const InteractionTTL = 60 * time.Second

type AttackTracker struct {
	MAC          string
	DeauthCount  int
	GotHandshake bool
	FirstAttack  time.Time
	LastPhase    int
}

// ShouldBlacklist reports whether this tracker has crossed the threshold
// that moves its AP into the blacklist table.
func (t *AttackTracker) ShouldBlacklist() bool {
	return t.DeauthCount >= DeauthCountForBlacklist && !t.GotHandshake
}

// BlacklistEntry records when an AP was blacklisted (§4.10).
type BlacklistEntry struct {
	MAC           string
	BlacklistedAt time.Time
}

// IsActive reports whether the entry is still within BlacklistDuration of now.
func (b BlacklistEntry) IsActive(now time.Time) bool {
	return now.Sub(b.BlacklistedAt) < BlacklistDuration
}

// InteractionRecord is the per-STA throttle entry (§4.10).
type InteractionRecord struct {
	MAC            string
	LastInteraction time.Time
}

// Expired reports whether InteractionTTL has elapsed since LastInteraction.
func (r InteractionRecord) Expired(now time.Time) bool {
	return now.Sub(r.LastInteraction) >= InteractionTTL
}

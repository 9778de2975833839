// Package registry implements the fixed-capacity AP/STA table with
// lifecycle management and soft-identity drift detection (C6, §4.6).
package registry

import (
	"time"

	"github.com/corvid-labs/harvestd/internal/core/domain"
	"github.com/corvid-labs/harvestd/internal/core/services/container"
)

// Capacity is the registry's hard cap (§4.6, §8 law 8).
const Capacity = 200

const (
	staleDays    = 7
	archivedDays = 30
	evictedDays  = 90

	archivedPullAlpha = 0.3
	archivedPullBeta  = 0.7
)

// Registry is the C6 entity table.
type Registry struct {
	table *container.BoundedTable[*domain.Entity]
}

// New constructs an empty registry at the spec'd capacity.
func New() *Registry {
	return &Registry{table: container.NewBoundedTable[*domain.Entity](Capacity)}
}

// Len reports the current entity count.
func (r *Registry) Len() int { return r.table.Len() }

// Get returns the entity for mac (case-insensitive), if present.
func (r *Registry) Get(mac string) (*domain.Entity, bool) {
	canon, ok := domain.CanonicalMAC(mac)
	if !ok {
		canon = mac
	}
	return r.table.Get(canon)
}

// GetOrCreate implements §4.6 get_or_create: returns an existing slot
// (case-insensitive MAC match) or initializes a new one with neutral
// priors. Returns (nil, false) if the registry is full and mac is new.
func (r *Registry) GetOrCreate(mac string, kind domain.EntityKind, now time.Time) (*domain.Entity, bool) {
	canon, ok := domain.CanonicalMAC(mac)
	if !ok {
		canon = mac
	}
	if e, found := r.table.Get(canon); found {
		return e, true
	}
	e := domain.NewEntity(canon, kind, now)
	if !r.table.Set(canon, e) {
		return nil, false
	}
	return e, true
}

// ForEach visits every entity currently in the registry.
func (r *Registry) ForEach(fn func(*domain.Entity)) {
	r.table.ForEach(func(_ string, e *domain.Entity) { fn(e) })
}

// DriftResult is returned by CheckIdentityDrift.
type DriftResult struct {
	Drifted     bool
	HexPosDiff  int
	NewIdentity string
}

// CheckIdentityDrift recomputes the soft identity from a fresh observation
// and reports drift if it differs from the stored one in more than 4 hex
// positions (§4.6). The caller decides whether to treat this as a new
// entity.
func (r *Registry) CheckIdentityDrift(e *domain.Entity, vendorOUI string, beaconIntervalMS, channel int, encryption string) DriftResult {
	fresh := domain.ComputeSoftIdentity(vendorOUI, beaconIntervalMS, channel, encryption)
	if e.SoftIdentity == "" {
		return DriftResult{Drifted: false, NewIdentity: fresh}
	}
	diff := domain.SoftIdentityDrift(e.SoftIdentity, fresh)
	return DriftResult{Drifted: diff > 4, HexPosDiff: diff, NewIdentity: fresh}
}

// GC runs one garbage-collection pass per §4.6: frees slots whose entities
// are dormant past evictedDays from both first and last observation; else
// decays entities dormant past archivedDays or staleDays toward neutral
// priors and marks their lifecycle status.
func (r *Registry) GC(now time.Time) (evicted int) {
	var toDelete []string
	r.table.ForEach(func(key string, e *domain.Entity) {
		dormantFirst := now.Sub(e.FirstSeen) > evictedDays*24*time.Hour
		dormantLast := now.Sub(e.LastSeen) > evictedDays*24*time.Hour
		if dormantFirst && dormantLast {
			toDelete = append(toDelete, key)
			return
		}
		decay(e, now)
	})
	for _, key := range toDelete {
		r.table.Delete(key)
	}
	return len(toDelete)
}

// decay pulls an entity's Beta posteriors toward neutral the longer it has
// gone unobserved, per §4.6.
func decay(e *domain.Entity, now time.Time) {
	dormant := now.Sub(e.LastSeen)

	switch {
	case dormant > archivedDays*24*time.Hour:
		e.Alpha = archivedPullAlpha*e.Alpha + archivedPullBeta
		e.Beta = archivedPullAlpha*e.Beta + archivedPullBeta
		e.Status = domain.StatusArchived
	case dormant > staleDays*24*time.Hour:
		weight := 0.3 * (dormant.Hours() / 24 / staleDays)
		if weight > 1 {
			weight = 1
		}
		e.Alpha = e.Alpha + weight*(1-e.Alpha)
		e.Beta = e.Beta + weight*(1-e.Beta)
		e.Status = domain.StatusStale
	default:
		if e.Status == domain.StatusStale || e.Status == domain.StatusArchived {
			// Reactivation happens via Touch on fresh observation, not here;
			// GC never re-activates on its own.
		}
	}
	e.ClampPriors()
}

// Touch marks an entity as freshly observed, reactivating it from stale
// back to active; archived entities stay archived (§3 invariant: "status
// transitions are monotone except active<->stale (reactivation on fresh
// observation)").
func Touch(e *domain.Entity, now time.Time) {
	e.LastSeen = now
	if e.Status == domain.StatusStale {
		e.Status = domain.StatusActive
	}
}

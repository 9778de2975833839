package bandit

import (
	"time"

	"github.com/corvid-labs/harvestd/internal/core/ports"
)

// Mode bandit arms, per §4.5.
type Mode int

const (
	ModePassive Mode = iota
	ModeActive
	ModeCooldown
	ModeSync

	numModes = 4
)

func (m Mode) String() string {
	switch m {
	case ModePassive:
		return "passive"
	case ModeActive:
		return "active"
	case ModeCooldown:
		return "cooldown"
	case ModeSync:
		return "sync"
	default:
		return "unknown"
	}
}

const (
	modeTieThreshold  = 0.1
	modeMaxDuration   = 120 * time.Second
	modeHandshakeQuota = 3
)

// ModeBandit selects among {passive, active, cooldown, sync}, structurally
// identical to the channel bandit (§4.5).
type ModeBandit struct {
	sampler *Sampler
	rng     ports.RandSource
	alpha   [numModes]float64
	beta    [numModes]float64

	current        Mode
	since          time.Time
	handshakesSeen int
}

// NewModeBandit constructs a ModeBandit starting in passive mode.
func NewModeBandit(sampler *Sampler, rng ports.RandSource, now time.Time) *ModeBandit {
	mb := &ModeBandit{sampler: sampler, rng: rng, current: ModePassive, since: now}
	for i := 0; i < numModes; i++ {
		mb.alpha[i] = 1.0
		mb.beta[i] = 1.0
	}
	return mb
}

// Current returns the active mode.
func (mb *ModeBandit) Current() Mode { return mb.current }

// ShouldReevaluate implements §4.5's re-evaluation trigger.
func (mb *ModeBandit) ShouldReevaluate(now time.Time) bool {
	return now.Sub(mb.since) > modeMaxDuration || mb.handshakesSeen >= modeHandshakeQuota
}

// NoteHandshake accumulates toward the re-evaluation quota.
func (mb *ModeBandit) NoteHandshake() { mb.handshakesSeen++ }

// Select draws a Beta sample per arm and switches to the arg-max mode,
// breaking (max-min < 0.1) ties uniformly at random (§4.5).
func (mb *ModeBandit) Select(now time.Time) Mode {
	scores := [numModes]float64{}
	maxScore, minScore := -1.0, 2.0
	for i := 0; i < numModes; i++ {
		scores[i] = mb.sampler.Sample(mb.alpha[i], mb.beta[i])
		if scores[i] > maxScore {
			maxScore = scores[i]
		}
		if scores[i] < minScore {
			minScore = scores[i]
		}
	}

	var candidates []Mode
	if maxScore-minScore < modeTieThreshold {
		for i := 0; i < numModes; i++ {
			candidates = append(candidates, Mode(i))
		}
	} else {
		best := -1.0
		var bestMode Mode
		for i := 0; i < numModes; i++ {
			if scores[i] > best {
				best = scores[i]
				bestMode = Mode(i)
			}
		}
		candidates = []Mode{bestMode}
	}

	chosen := candidates[0]
	if len(candidates) > 1 {
		chosen = candidates[int(mb.rng.Uint64()%uint64(len(candidates)))]
	}

	mb.current = chosen
	mb.since = now
	mb.handshakesSeen = 0
	return chosen
}

// Observe rewards/penalizes the given mode's Beta posterior.
func (mb *ModeBandit) Observe(m Mode, success bool) {
	if success {
		mb.alpha[m] += 1.0
	} else {
		mb.beta[m] += 0.2
	}
	mb.alpha[m] = Clamp(mb.alpha[m])
	mb.beta[m] = Clamp(mb.beta[m])
}

// Snapshot returns the raw alpha/beta arrays for persistence.
func (mb *ModeBandit) Snapshot() (alpha, beta [numModes]float64) {
	return mb.alpha, mb.beta
}

// Restore loads persisted alpha/beta arrays.
func (mb *ModeBandit) Restore(alpha, beta [numModes]float64) {
	mb.alpha = alpha
	mb.beta = beta
}

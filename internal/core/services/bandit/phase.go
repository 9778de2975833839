package bandit

import "github.com/corvid-labs/harvestd/internal/core/domain"

// Attack phases, per §4.3.
const (
	PhasePMKID         = 0
	PhaseCSA           = 1
	PhaseTargetedDeauth = 2
	PhasePMFBypass     = 3
	PhaseDisassoc      = 4
	PhaseRogueM2       = 5
	PhaseProbe         = 6
	PhasePassive       = 7

	NumPhases = 8
)

// wpa3Multiplier holds the §4.3 step 2 re-weighting: phases 2 and 4 are
// suppressed, phases 3 and 5 are boosted, on WPA3/SAE targets.
var wpa3Multiplier = [NumPhases]float64{
	PhasePMKID:          1.0,
	PhaseCSA:            1.0,
	PhaseTargetedDeauth: 0.05,
	PhasePMFBypass:      2.0,
	PhaseDisassoc:       0.05,
	PhaseRogueM2:        2.0,
	PhaseProbe:          1.0,
	PhasePassive:        1.0,
}

// onSuccessDelta/onFailureDelta are the per-observation Beta updates (§4.3).
const (
	onSuccessDelta = 1.0
	onFailureDelta = 0.3

	decayThreshold = 50.0
	decayFactor    = 0.8
)

// PhaseBandit selects among the eight attack phases for one entity (C3).
type PhaseBandit struct {
	sampler *Sampler
}

// NewPhaseBandit constructs a PhaseBandit over the shared Sampler.
func NewPhaseBandit(sampler *Sampler) *PhaseBandit {
	return &PhaseBandit{sampler: sampler}
}

// SelectPhase implements §4.3 select_phase: draws a Beta sample per enabled
// phase, applies the WPA3 re-weighting, and returns the arg-max phase index.
// enabledMask[i] gates phase i globally (config attack_phase_enabled[8]).
func (b *PhaseBandit) SelectPhase(e *domain.Entity, isWPA3 bool, enabledMask [NumPhases]bool) int {
	best := -1
	bestScore := -1.0

	for i := 0; i < NumPhases; i++ {
		if !enabledMask[i] {
			continue
		}
		score := b.sampler.Sample(e.AtkAlpha[i], e.AtkBeta[i])
		if isWPA3 {
			score *= wpa3Multiplier[i]
		}
		if score > bestScore {
			bestScore = score
			best = i
		}
	}

	if best == -1 {
		// Nothing enabled: fall back to passive listen, always safe.
		return PhasePassive
	}
	return best
}

// Observe implements §4.3 observe: reward or penalize the chosen phase, then
// apply bounded-memory decay once alpha exceeds the threshold.
func (b *PhaseBandit) Observe(e *domain.Entity, phase int, success bool) {
	b.ObserveWeighted(e, phase, success, 1.0)
}

// ObserveWeighted scales the usual Beta update by weight, used by the
// orchestrator's per-attempt "observe_outcome(entity, false, priority·k)"
// bookkeeping (§4.8) which records a provisional miss with a phase-dependent
// small weight, later overwritten by a full-weight success at end-of-epoch.
func (b *PhaseBandit) ObserveWeighted(e *domain.Entity, phase int, success bool, weight float64) {
	if phase < 0 || phase >= NumPhases {
		return
	}
	if success {
		e.AtkAlpha[phase] += onSuccessDelta * weight
	} else {
		e.AtkBeta[phase] += onFailureDelta * weight
	}

	if e.AtkAlpha[phase] > decayThreshold {
		e.AtkAlpha[phase] *= decayFactor
		e.AtkBeta[phase] *= decayFactor
	}

	e.ClampPriors()
}

// Package mood implements the C11 mood FSM (§4.11): a simplified decision
// tree evaluated once per epoch over the epoch's consecutive counters.
package mood

import (
	"time"

	"github.com/corvid-labs/harvestd/internal/core/domain"
)

// Thresholds bundles the mood configuration knobs (§6 configuration:
// bored_num_epochs, sad_num_epochs, excited_num_epochs,
// max_misses_for_recon). The decision tree reads ExcitedNumEpochs and
// MaxMissesForRecon; BoredNumEpochs and SadNumEpochs are carried but not read.
type Thresholds struct {
	BoredNumEpochs     int
	SadNumEpochs       int
	ExcitedNumEpochs   int
	MaxMissesForRecon  int
}

// HulkRepeatEvery is how often (in epochs) HULK re-fires while mood stays
// ANGRY (§4.11).
const HulkRepeatEvery = 5

// FSM holds the mood state machine's current state.
type FSM struct {
	thresholds Thresholds

	current     domain.Mood
	reason      domain.FrustrationReason
	sinceEpoch  int
	lastChanged time.Time
	angryFactor int
	hulkAtEpoch int // -1 if HULK has not fired since ANGRY was last entered

	// SupportNetworkFactor models the "support-network factor (unused here,
	// always false)" called out in §4.11; left at its zero value it keeps
	// the ANGRY branches of the decision tree unreachable via natural
	// transitions, matching the spec precisely. Tests that need ANGRY use
	// Force.
	SupportNetworkFactor int
}

// New constructs an FSM in the STARTING mood.
func New(th Thresholds) *FSM {
	return &FSM{thresholds: th, current: domain.MoodStarting, hulkAtEpoch: -1}
}

// Current returns the active mood.
func (f *FSM) Current() domain.Mood { return f.current }

// Reason returns the last-assigned frustration reason (meaningful only in
// SAD/ANGRY).
func (f *FSM) Reason() domain.FrustrationReason { return f.reason }

// Snapshot returns the copy-under-mutex view exposed to UI/renderer
// collaborators (§5).
func (f *FSM) Snapshot(epochNum int) domain.MoodSnapshot {
	return domain.MoodSnapshot{
		Mood:        f.current,
		Reason:      f.reason,
		EpochNum:    epochNum,
		SinceEpoch:  f.sinceEpoch,
		LastChanged: f.lastChanged,
		AngryFactor: f.angryFactor,
		HulkAtEpoch: f.hulkAtEpoch,
	}
}

// FrustrationInputs carries what the diagnosis needs to compute a
// FrustrationReason on entry to SAD/ANGRY (§4.11).
type FrustrationInputs struct {
	UncapturedEligibleAPs int
	ZeroClientAPs         int
	WPA3APs               int
	WeakSignalAPs         int
	DeauthsWithoutShakes  bool
}

// Diagnose implements the §4.11 frustration-reason labeling.
func (in FrustrationInputs) Diagnose() domain.FrustrationReason {
	switch {
	case in.UncapturedEligibleAPs == 0:
		return domain.FrustrationGeneric
	case in.ZeroClientAPs == in.UncapturedEligibleAPs:
		return domain.FrustrationNoClients
	case in.WPA3APs == in.UncapturedEligibleAPs:
		return domain.FrustrationWPA3PMF
	case in.WeakSignalAPs == in.UncapturedEligibleAPs:
		return domain.FrustrationWeakSignal
	case in.DeauthsWithoutShakes:
		return domain.FrustrationDeauthsIgnored
	default:
		return domain.FrustrationGeneric
	}
}

// Result carries the outcome of one Evaluate call: the (possibly new) mood,
// and whether HULK should fire this epoch.
type Result struct {
	Mood       domain.Mood
	Reason     domain.FrustrationReason
	FireHulk   bool
}

// Evaluate implements §4.11's decision tree, applied in order. epoch's
// consecutive trackers are updated in place to reflect the new sad_for/
// bored_for mood-sticky counters before the tree is applied.
func (f *FSM) Evaluate(epoch *domain.Epoch, now time.Time, allVisibleCaptured bool, fi FrustrationInputs) Result {
	// Mood-sticky counters: accumulate while the prior mood matches, reset
	// otherwise.
	if f.current == domain.MoodSad {
		epoch.Consecutive.SadFor++
	} else {
		epoch.Consecutive.SadFor = 0
	}
	if f.current == domain.MoodBored {
		epoch.Consecutive.BoredFor++
	} else {
		epoch.Consecutive.BoredFor = 0
	}

	next := domain.MoodNormal
	reason := domain.FrustrationReason("")
	fireHulk := false

	switch {
	case epoch.Consecutive.BlindFor > 0:
		// §4.12 step 4: no APs visible this epoch forces LONELY directly;
		// the loop itself short-circuits before reaching this Evaluate call
		// in that case, but the branch stays here so the mapping holds for
		// any caller driving the FSM straight from epoch state.
		next = domain.MoodLonely

	case epoch.Counters.NumMissed > f.thresholds.MaxMissesForRecon:
		if f.SupportNetworkFactor >= 2 {
			next = domain.MoodAngry
			reason = fi.Diagnose()
		} else {
			next = domain.MoodLonely
		}
		if allVisibleCaptured {
			next = domain.MoodBored
		}

	case epoch.Consecutive.SadFor > 0:
		if f.SupportNetworkFactor >= 2 {
			next = domain.MoodAngry
		} else {
			next = domain.MoodSad
		}
		reason = fi.Diagnose()
		if allVisibleCaptured {
			next = domain.MoodBored
		}

	case epoch.Consecutive.BoredFor > 0:
		if allVisibleCaptured {
			next = domain.MoodBored
		} else {
			next = domain.MoodNormal
		}

	case epoch.Consecutive.ActiveFor >= f.thresholds.ExcitedNumEpochs:
		next = domain.MoodExcited

	default:
		next = domain.MoodNormal
	}

	f.transitionTo(next, reason, epoch.Num, now)

	if f.current == domain.MoodAngry {
		if f.hulkAtEpoch == -1 || epoch.Num-f.hulkAtEpoch >= HulkRepeatEvery {
			fireHulk = true
			f.hulkAtEpoch = epoch.Num
		}
	}

	return Result{Mood: f.current, Reason: f.reason, FireHulk: fireHulk}
}

func (f *FSM) transitionTo(next domain.Mood, reason domain.FrustrationReason, epochNum int, now time.Time) {
	if next != f.current {
		f.current = next
		f.sinceEpoch = epochNum
		f.lastChanged = now
		if next != domain.MoodAngry {
			f.hulkAtEpoch = -1
		}
	}
	f.reason = reason
}

// Force directly sets the mood, bypassing the decision tree. Used by tests
// that need to drive ANGRY/HULK behavior deterministically (§8 scenario
// S5), and by the loop for STARTING->READY bootstrap.
func (f *FSM) Force(m domain.Mood, epochNum int, now time.Time) {
	f.transitionTo(m, f.reason, epochNum, now)
}

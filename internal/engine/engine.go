// Package engine is the composition root (C14): it wires every component
// built from the registry up through the mood FSM into one Engine handle,
// replacing the teacher's global Application facade with explicit
// dependency injection.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/corvid-labs/harvestd/internal/adapters/sniffer/handshake"
	"github.com/corvid-labs/harvestd/internal/adapters/storage"
	"github.com/corvid-labs/harvestd/internal/adapters/sync"
	"github.com/corvid-labs/harvestd/internal/config"
	"github.com/corvid-labs/harvestd/internal/core/domain"
	"github.com/corvid-labs/harvestd/internal/core/ports"
	"github.com/corvid-labs/harvestd/internal/core/services/bandit"
	"github.com/corvid-labs/harvestd/internal/core/services/crack"
	"github.com/corvid-labs/harvestd/internal/core/services/mood"
	"github.com/corvid-labs/harvestd/internal/core/services/orchestrator"
	"github.com/corvid-labs/harvestd/internal/core/services/persistence"
	"github.com/corvid-labs/harvestd/internal/core/services/registry"
	"github.com/corvid-labs/harvestd/internal/core/services/throttle"
	"github.com/corvid-labs/harvestd/internal/geo"
)

// Engine bundles every long-lived collaborator the control loop touches.
// Exported fields let cmd/harvestd and the status/web layer read snapshots
// under the Engine's own mutex (§5 "copy under a single mutex").
type Engine struct {
	cfg *config.Config

	mu      sync.Mutex
	epoch   *domain.Epoch
	mood    *mood.FSM
	manual  bool

	Registry     *registry.Registry
	Throttle     *throttle.Tracker
	Sampler      *bandit.Sampler
	PhaseBandit  *bandit.PhaseBandit
	ChannelBandit *bandit.ChannelBandit
	ModeBandit   *bandit.ModeBandit
	Classifier   *handshake.Classifier
	Crack        *crack.Manager
	Orchestrator *orchestrator.Orchestrator
	GeoProvider  geo.Provider

	Session  ports.SessionSource
	Injector ports.FrameInjector
	RNG      ports.RandSource
	Clock    ports.Clock

	// SyncClient is the out-of-scope hash-upload/sync collaborator (§1, §6).
	// Nil when no collector URL is configured: the home/hotspot gate then
	// skips the sync leg and only runs the cracker, matching the §7
	// propagation policy that this collaborator is best-effort, not fatal.
	SyncClient ports.SyncClient

	// Events is the supplemental durable event log (§6 "durable reporting").
	// Nil is valid: logging becomes a no-op rather than a startup fatal
	// condition, since it isn't one of the two collaborators §7 names as
	// fatal-on-open.
	Events *storage.EventStore

	totalHandshakeBytes uint64

	firmwareBlindAttempts int
}

// Deps bundles the constructed adapters the engine wires together; callers
// (cmd/harvestd, or tests) build these and hand them to New.
type Deps struct {
	Session  ports.SessionSource
	Injector ports.FrameInjector
	RNG      ports.RandSource
	Clock    ports.Clock
}

// New constructs an Engine from configuration and adapters, restoring
// persisted bandit state if present (§4.12 startup).
func New(cfg *config.Config, deps Deps) (*Engine, error) {
	if deps.RNG == nil {
		return nil, errNilRNG
	}
	if deps.Clock == nil {
		deps.Clock = ports.RealClock
	}

	sampler := bandit.NewSampler(deps.RNG)
	now := deps.Clock.Now()

	e := &Engine{
		cfg:           cfg,
		epoch:         domain.NewEpoch(),
		mood:          mood.New(mood.Thresholds{BoredNumEpochs: cfg.BoredNumEpochs, SadNumEpochs: cfg.SadNumEpochs, ExcitedNumEpochs: cfg.ExcitedNumEpochs, MaxMissesForRecon: cfg.MaxMissesForRecon}),
		Registry:      registry.New(),
		Throttle:      throttle.New(),
		Sampler:       sampler,
		PhaseBandit:   bandit.NewPhaseBandit(sampler),
		ChannelBandit: bandit.NewChannelBandit(sampler),
		ModeBandit:    bandit.NewModeBandit(sampler, deps.RNG, now),
		Classifier:    handshake.NewClassifier(cfg.PcapDir, "hcxpcapngtool"),
		GeoProvider:   geo.NewStaticProvider(cfg.GeoFenceLat, cfg.GeoFenceLon),
		Session:       deps.Session,
		Injector:      deps.Injector,
		RNG:           deps.RNG,
		Clock:         deps.Clock,
	}

	crackMgr, err := crack.New(crack.Config{
		PcapDir:         cfg.PcapDir,
		WordlistDir:     cfg.WordlistDir,
		StateFilePath:   cfg.CrackStateFile,
		CrackerPath:     cfg.CrackerPath,
		LearnedDictPath: cfg.WordlistDir + "/learned.txt",
	})
	if err != nil {
		return nil, err
	}
	e.Crack = crackMgr

	e.Orchestrator = orchestrator.New(orchestrator.Config{
		ThrottleA:     cfg.ThrottleA,
		ThrottleD:     cfg.ThrottleD,
		TXPowerMin:    cfg.TXPowerMin,
		TXPowerMax:    cfg.TXPowerMax,
		EnabledPhases: cfg.AttackPhaseEnabled,
	}, orchestrator.Deps{
		Injector: deps.Injector,
		Session:  deps.Session,
		Phase:    e.PhaseBandit,
		Throttle: e.Throttle,
		RNG:      deps.RNG,
		Clock:    deps.Clock,
	})

	if events, err := storage.NewEventStore(cfg.DBPath); err != nil {
		log.Printf("engine: event log unavailable, continuing without it: %v", err)
	} else {
		e.Events = events
	}

	if cfg.SyncURL != "" {
		e.SyncClient = sync.NewHTTPClient(cfg.SyncURL)
	}

	e.restoreState()
	return e, nil
}

var errNilRNG = &engineError{"engine: RNG must not be nil"}

type engineError struct{ msg string }

func (e *engineError) Error() string { return e.msg }

// restoreState loads persisted bandit state from cfg.BanditStateFile if it
// exists, logging (not failing) on error, matching the teacher's
// best-effort startup restore convention.
func (e *Engine) restoreState() {
	snap, err := persistence.Load(e.cfg.BanditStateFile)
	if err != nil {
		log.Printf("engine: no persisted bandit state loaded: %v", err)
		return
	}
	e.epoch.Num = int(snap.Totals.EpochNum)
	e.totalHandshakeBytes = snap.Totals.TotalHandshakeBytes
	e.ModeBandit.Restore(snap.Mode.Alpha, snap.Mode.Beta)
	for _, rec := range snap.Entities {
		ent := persistence.RecordToEntity(rec)
		e.Registry.GetOrCreate(ent.ID, ent.Kind, ent.FirstSeen)
		if got, ok := e.Registry.Get(ent.ID); ok {
			*got = *ent
		}
	}
}

// PersistState snapshots all bandit posteriors to cfg.BanditStateFile
// (§4.12 step 13: "persist every N epochs").
func (e *Engine) PersistState() error {
	alpha, beta := e.ModeBandit.Snapshot()
	snap := persistence.Snapshot{
		Totals: persistence.Totals{EpochNum: uint32(e.epoch.Num), TotalHandshakeBytes: e.totalHandshakeBytes},
		Mode:   persistence.ModeArrays{Alpha: alpha, Beta: beta},
	}
	e.Registry.ForEach(func(ent *domain.Entity) {
		snap.Entities = append(snap.Entities, persistence.EntityToRecord(ent))
	})
	return persistence.Save(e.cfg.BanditStateFile, snap)
}

// SetManual toggles manual mode (§4.12 step 1). Nothing in this module
// calls it; the status surface has no pause control.
func (e *Engine) SetManual(manual bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.manual = manual
}

func (e *Engine) isManual() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manual
}

// MoodSnapshot exposes the copy-under-mutex mood/epoch view for UI/renderer
// collaborators (§5).
func (e *Engine) MoodSnapshot() domain.MoodSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mood.Snapshot(e.epoch.Num)
}

// Close releases the engine's owned OS resources (injection socket, session
// connection).
func (e *Engine) Close() error {
	if e.Injector != nil {
		_ = e.Injector.Close()
	}
	if e.Session != nil {
		_ = e.Session.Close()
	}
	if e.Events != nil {
		_ = e.Events.Close()
	}
	return nil
}

// Run drives the §4.12 epoch/control loop until ctx is cancelled. It is the
// sole owner of the raw injection socket and session-source connection
// while running.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		e.runOneEpoch(ctx)
	}
}

package ports

import (
	"context"
	"time"

	"github.com/corvid-labs/harvestd/internal/core/domain"
)

// SessionSource is the out-of-process Wi-Fi session daemon contract (§6).
// It exposes the AP/STA tables, accepts high-level text commands, and
// surfaces event-driven deltas on Poll.
type SessionSource interface {
	// Command sends one text command verbatim, e.g. "wifi.deauth <mac>",
	// "set wifi.txpower N". Returns an error if the daemon rejected it.
	Command(ctx context.Context, cmd string) error

	APCount(ctx context.Context) (int, error)
	AP(ctx context.Context, i int) (domain.APObservation, error)
	STACount(ctx context.Context) (int, error)
	STA(ctx context.Context, i int) (domain.STAObservation, error)

	// Poll returns event-driven deltas observed since the last call,
	// bounded by the given deadline (§4.12 step 3: 100ms non-blocking poll).
	Poll(ctx context.Context, deadline time.Duration) ([]domain.SessionEvent, error)

	// NeedsSync reports whether a full table re-sync is due (§4.12 step 3:
	// ~60s ticker).
	NeedsSync() bool

	// Pause/Resume/Close implement the clean IPC lifecycle called for by
	// design note "session-source global and subprocess control": manual
	// mode suspends/resumes the daemon instead of sending it a raw signal.
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Close() error
}

// FrameInjector writes a complete radiotap-prefixed 802.11 frame to the
// monitor-mode interface (§6 "Raw injection socket").
type FrameInjector interface {
	Inject(frame []byte) error
	Close() error
}

// SyncClient models the out-of-scope hash-upload/sync service (§1) as a
// small plain-HTTP client, invoked from the home/hotspot gate when
// internet is reachable (§4.12 step 5).
type SyncClient interface {
	Reachable(ctx context.Context) bool
	Sync(ctx context.Context, capturesDir string) error
}

// GPSProvider wraps the out-of-scope GPS listener/refinement store (§1, §6).
type GPSProvider interface {
	Location() (lat, lng float64, ok bool)
}

// FirmwareRecovery models the out-of-scope firmware-recovery collaborator
// triggered on persistent blindness (§4.12 step 4, §7).
type FirmwareRecovery interface {
	Attempt(ctx context.Context) error
	MaxAttemptsReached() bool
}

// RandSource is the injectable PRNG behind jitter and rogue MAC generation
// (design note "PRNG for jitter and rogue MACs"). Centralizing it behind an
// interface lets tests seed deterministically.
type RandSource interface {
	// Uint64 returns the next pseudo-random 64-bit value.
	Uint64() uint64
	// Float64 returns a value in [0, 1).
	Float64() float64
}

// Clock is the injectable time source, defaulting to the real wall clock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock is the process wall-clock Clock implementation.
var RealClock Clock = realClock{}

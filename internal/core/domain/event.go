package domain

import "time"

// EventKind enumerates the event-log record categories persisted by the
// event-log store (SPEC_FULL.md §3 "Event-log record"). This supplements
// the spec's mandated binary bandit-persistence file and text crack-state
// file; it is not a replacement for either.
type EventKind string

const (
	EventChannelHop     EventKind = "channel_hop"
	EventAttackAttempt  EventKind = "attack_attempt"
	EventHandshake      EventKind = "handshake"
	EventMoodTransition EventKind = "mood_transition"
	EventHulk           EventKind = "hulk"
	EventCrackResult    EventKind = "crack_result"
)

// Event is one row of the event log.
type Event struct {
	ID        string
	Kind      EventKind
	At        time.Time
	EpochNum  int
	TargetMAC string
	Detail    string
}

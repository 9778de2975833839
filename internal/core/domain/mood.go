package domain

import "time"

// Mood is one state of the mood FSM (C11, §4.11).
type Mood string

const (
	MoodStarting Mood = "starting"
	MoodReady    Mood = "ready"
	MoodNormal   Mood = "normal"
	MoodBored    Mood = "bored"
	MoodSad      Mood = "sad"
	MoodAngry    Mood = "angry"
	MoodLonely   Mood = "lonely"
	MoodExcited  Mood = "excited"
	MoodGrateful Mood = "grateful"
	MoodSleeping Mood = "sleeping"
)

// FrustrationReason is attached when entering SAD/ANGRY (§4.11).
type FrustrationReason string

const (
	FrustrationGeneric        FrustrationReason = "generic"
	FrustrationNoClients      FrustrationReason = "no_clients"
	FrustrationWPA3PMF        FrustrationReason = "wpa3_pmf"
	FrustrationWeakSignal     FrustrationReason = "weak_signal"
	FrustrationDeauthsIgnored FrustrationReason = "deauths_ignored"
)

// MoodSnapshot is the copy-under-mutex view exposed to UI/renderer
// collaborators (§5). It must remain a plain value type so a single
// assignment copies every field.
type MoodSnapshot struct {
	Mood         Mood
	Reason       FrustrationReason
	EpochNum     int
	SinceEpoch   int
	LastChanged  time.Time
	AngryFactor  int
	HulkAtEpoch  int // last epoch HULK fired, -1 if not since ANGRY was last entered
}

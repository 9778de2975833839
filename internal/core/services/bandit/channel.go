package bandit

import "time"

// Standard5GHzChannels are the 5 GHz channels the channel bandit tracks
// alongside 1-14, per §4.4 ("the standard 5 GHz set").
var Standard5GHzChannels = []int{36, 40, 44, 48, 52, 56, 60, 64, 100, 104, 108, 112, 116, 120, 124, 128, 132, 136, 140, 144, 149, 153, 157, 161, 165}

const (
	channelFailurePenalty = 0.2
	channelExplorationCap = 0.2
	channelDensityWeight  = 0.1
)

// ChannelState is the Beta-posterior and recency bookkeeping for one
// channel (§3, §4.4).
type ChannelState struct {
	Alpha       float64
	Beta        float64
	Visits      int
	LastVisited time.Time
	APsSeen     int
	Handshakes  int
}

// ChannelBandit selects among observed channels with a recency bonus and an
// AP-density multiplier (C4).
type ChannelBandit struct {
	sampler *Sampler
	states  map[int]*ChannelState
}

// NewChannelBandit constructs a ChannelBandit over the given sampler. All
// 1-14 and standard 5 GHz channels start with neutral priors.
func NewChannelBandit(sampler *Sampler) *ChannelBandit {
	cb := &ChannelBandit{sampler: sampler, states: make(map[int]*ChannelState)}
	for ch := 1; ch <= 14; ch++ {
		cb.states[ch] = &ChannelState{Alpha: 1.0, Beta: 1.0}
	}
	for _, ch := range Standard5GHzChannels {
		cb.states[ch] = &ChannelState{Alpha: 1.0, Beta: 1.0}
	}
	return cb
}

func (cb *ChannelBandit) stateFor(ch int) *ChannelState {
	st, ok := cb.states[ch]
	if !ok {
		st = &ChannelState{Alpha: 1.0, Beta: 1.0}
		cb.states[ch] = st
	}
	return st
}

// State exposes a channel's current bookkeeping (used by persistence and
// the status surface).
func (cb *ChannelBandit) State(ch int) ChannelState {
	return *cb.stateFor(ch)
}

// SelectChannel ranks visibleChannels by the §4.4 select_channel scoring and
// returns them ordered best-first.
func (cb *ChannelBandit) SelectChannel(now time.Time, visibleChannels []int, apCounts map[int]int) []int {
	type scored struct {
		channel int
		score   float64
	}
	scores := make([]scored, 0, len(visibleChannels))

	for _, ch := range visibleChannels {
		st := cb.stateFor(ch)
		s := cb.sampler.Sample(st.Alpha, st.Beta)

		var bonus float64
		if st.LastVisited.IsZero() {
			bonus = channelExplorationCap
		} else {
			hoursSince := now.Sub(st.LastVisited).Hours()
			ratio := hoursSince / 2
			if ratio > 1 {
				ratio = 1
			}
			bonus = channelExplorationCap * ratio
		}
		s += bonus

		density := 1 + channelDensityWeight*float64(apCounts[ch])
		s *= density

		scores = append(scores, scored{ch, s})
	}

	// Selection sort (best-first; ties keep no defined order); dataset is tiny (<=14+25 channels).
	for i := 0; i < len(scores); i++ {
		maxIdx := i
		for j := i + 1; j < len(scores); j++ {
			if scores[j].score > scores[maxIdx].score {
				maxIdx = j
			}
		}
		scores[i], scores[maxIdx] = scores[maxIdx], scores[i]
	}

	ordered := make([]int, len(scores))
	for i, sc := range scores {
		ordered[i] = sc.channel
	}
	return ordered
}

// Visit records that a channel was hopped to, updating recency and AP
// density bookkeeping ahead of the next SelectChannel call.
func (cb *ChannelBandit) Visit(ch int, now time.Time, apsSeen int) {
	st := cb.stateFor(ch)
	st.Visits++
	st.LastVisited = now
	st.APsSeen = apsSeen
}

// Observe implements §4.4 observe: on success alpha += 1, on failure
// beta += channelFailurePenalty.
func (cb *ChannelBandit) Observe(ch int, success bool) {
	st := cb.stateFor(ch)
	if success {
		st.Alpha += 1.0
		st.Handshakes++
	} else {
		st.Beta += channelFailurePenalty
	}
	st.Alpha = Clamp(st.Alpha)
	st.Beta = Clamp(st.Beta)
}

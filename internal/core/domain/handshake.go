package domain

import "time"

// HandshakeQuality classifies a captured pcap per §4.9.
type HandshakeQuality string

const (
	QualityNone    HandshakeQuality = "NONE"
	QualityPartial HandshakeQuality = "PARTIAL"
	QualityPMKID   HandshakeQuality = "PMKID"
	QualityFull    HandshakeQuality = "FULL"
)

// HandshakeCacheEntry is one scanned pcap's classification result (§3).
type HandshakeCacheEntry struct {
	BSSID      string
	SSID       string
	PcapPath   string
	Quality    HandshakeQuality
	AnalyzedAt time.Time
}

// EAPOLMessages summarizes which of the four 4-way-handshake messages were
// observed for a given BSSID/STA pair while walking a pcap (§4.9).
type EAPOLMessages struct {
	HasM1 bool
	HasM2 bool
	HasM3 bool
	HasM4 bool

	M1HasPMKID bool

	// Replay-counter consistency: M1<->M2 and M3<->M4 must match exactly.
	ReplayM1M2Match bool
	ReplayM3M4Match bool

	// Temporal proximity between messages, and ANonce reuse across attempts.
	TemporallyClose bool
	ANonceReused    bool
}

// Classify implements the §4.9 classification rule.
func (m EAPOLMessages) Classify() HandshakeQuality {
	allPresent := m.HasM1 && m.HasM2 && m.HasM3 && m.HasM4
	validated := m.ReplayM1M2Match && m.ReplayM3M4Match && m.TemporallyClose && !m.ANonceReused

	switch {
	case allPresent && validated:
		return QualityFull
	case m.HasM1 && m.M1HasPMKID:
		return QualityPMKID
	case m.HasM1 || m.HasM2 || m.HasM3 || m.HasM4:
		return QualityPartial
	default:
		return QualityNone
	}
}

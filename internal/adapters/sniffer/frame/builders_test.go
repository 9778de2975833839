package frame

import (
	"testing"

	"github.com/corvid-labs/harvestd/internal/core/services/prng"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testAP  = MAC{0xAA, 0xBB, 0xCC, 0x00, 0x11, 0x22}
	testSTA = MAC{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
)

func TestRadiotapHeaderFixed(t *testing.T) {
	h := radiotapHeader()
	assert.Equal(t, []byte{0x00, 0x00, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00}, h)
}

func TestDeauthBroadcastStructure(t *testing.T) {
	rng := prng.NewSeeded(42)
	var seq SeqCounters

	f := DeauthBroadcast(testAP, rng, &seq)
	b := f.Bytes

	require.GreaterOrEqual(t, len(b), 8+24+2)
	assert.Equal(t, radiotapHeader(), b[:8])

	mac := b[8:32]
	assert.Equal(t, byte(subDeauth<<4), mac[0], "frame control byte should encode management/deauth subtype")
	assert.Equal(t, Broadcast[:], mac[4:10], "DA must be broadcast")
	assert.Equal(t, testAP[:], mac[10:16], "SA must be the AP")
	assert.Equal(t, testAP[:], mac[16:22], "BSSID must be the AP")

	reason := uint16(b[32]) | uint16(b[33])<<8
	assert.Contains(t, apReasons, reason)
}

func TestDeauthBroadcastDeterministic(t *testing.T) {
	rng1 := prng.NewSeeded(7)
	rng2 := prng.NewSeeded(7)
	var seq1, seq2 SeqCounters

	f1 := DeauthBroadcast(testAP, rng1, &seq1)
	f2 := DeauthBroadcast(testAP, rng2, &seq2)

	assert.Equal(t, f1.Bytes, f2.Bytes, "same seed must reproduce identical bytes")
}

func TestCSABeaconSixFramesCountingDown(t *testing.T) {
	var seq SeqCounters
	frames := CSABeacon(testAP, "target-net", &seq)
	require.Len(t, frames, 6)

	for i, f := range frames {
		expectCount := byte(5 - i)
		// CSA IE starts after radiotap(8)+mac(24)+fixed beacon fields(12)+SSID IE(2+len).
		ssidIELen := 2 + len("target-net")
		ieStart := 8 + 24 + 12 + ssidIELen
		assert.Equal(t, byte(37), f.Bytes[ieStart], "tag 37 = CSA")
		assert.Equal(t, byte(3), f.Bytes[ieStart+1], "CSA IE length is always 3")
		assert.Equal(t, byte(14), f.Bytes[ieStart+3], "CSA always points at channel 14")
		assert.Equal(t, expectCount, f.Bytes[ieStart+4])
	}
}

func TestPowerSaveSpoofPMBitSequence(t *testing.T) {
	rng := prng.NewSeeded(99)
	var seq SeqCounters
	frames := PowerSaveSpoof(testAP, testSTA, rng, &seq)
	require.Len(t, frames, 2)

	flagsOn := frames[0].Bytes[9]
	flagsOff := frames[1].Bytes[9]
	assert.NotZero(t, flagsOn&flagPwrMgt, "first null frame must set PM=1")
	assert.Zero(t, flagsOff&flagPwrMgt, "second null frame must clear PM")
	assert.Greater(t, frames[0].SleepAfter.Milliseconds(), int64(6))
	assert.Less(t, frames[0].SleepAfter.Milliseconds(), int64(14))
}

func TestEAPOLM1MalformedHasInvalidMICAndCorruptedReplay(t *testing.T) {
	rng := prng.NewSeeded(3)
	var seq SeqCounters
	f := EAPOLM1Malformed(testAP, testSTA, rng, &seq)

	// radiotap(8) + mac(24) + llc/snap(8) + eapol header(4) -> key body starts here.
	keyBodyStart := 8 + 24 + 8 + 4
	replayBytes := f.Bytes[keyBodyStart+5 : keyBodyStart+13]
	for _, bb := range replayBytes {
		assert.Equal(t, byte(0xFF), bb)
	}

	micStart := keyBodyStart + 5 + 8 + 32 + 16 + 8 + 8
	mic := f.Bytes[micStart : micStart+16]
	for _, bb := range mic {
		assert.Zero(t, bb, "a zeroed MIC is never valid")
	}
}

func TestAnonReassocAddressing(t *testing.T) {
	var seq SeqCounters
	f := AnonReassoc(testAP, "victim-net", &seq)
	mac := f.Bytes[8:32]
	assert.Equal(t, testAP[:], mac[4:10], "DA is the target AP")
	assert.Equal(t, Broadcast[:], mac[10:16], "SA is broadcast, the addressing trick")
}

func TestRogueM2FourFramesWithJitter(t *testing.T) {
	rng := prng.NewSeeded(123)
	var seq SeqCounters
	frames := RogueM2(testAP, testSTA, "evil-twin", rng, &seq)
	require.Len(t, frames, 4)
	for _, f := range frames[:3] {
		assert.GreaterOrEqual(t, f.SleepAfter.Microseconds(), int64(3500))
	}
	assert.Zero(t, frames[3].SleepAfter, "final frame carries no trailing sleep")
}

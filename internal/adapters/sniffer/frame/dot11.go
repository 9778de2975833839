package frame

import (
	"encoding/binary"

	"github.com/corvid-labs/harvestd/internal/core/ports"
)

// 802.11 frame types.
const (
	typeMgmt = 0
	typeCtrl = 1
	typeData = 2
)

// Management/control/data subtypes used by the catalogue (§4.7).
const (
	subAssocReq   = 0x0
	subReassocReq = 0x2
	subProbeReq   = 0x4
	subProbeResp  = 0x5
	subBeacon     = 0x8
	subDisassoc   = 0xA
	subAuth       = 0xB
	subDeauth     = 0xC
	subAction     = 0xD

	subNullData = 0x4 // data, subtype 0100 = Null (no data)
)

// Flags byte bit positions (second octet of frame control).
const (
	flagToDS   = 0x01
	flagFromDS = 0x02
	flagPwrMgt = 0x10
)

// apReasons/staReasons are the two §4.7 reason-code pools randomized per
// frame to frustrate WIDS fingerprinting.
var apReasons = []uint16{7, 4, 13, 14, 15, 72}
var staReasons = []uint16{8, 4, 25}

// PickAPReason/PickSTAReason draw a random reason code from the
// corresponding pool.
func PickAPReason(rng ports.RandSource) uint16 {
	return apReasons[rng.Uint64()%uint64(len(apReasons))]
}

func PickSTAReason(rng ports.RandSource) uint16 {
	return staReasons[rng.Uint64()%uint64(len(staReasons))]
}

// SeqCounters holds the three independent 12-bit sequence counters (§4.7:
// "AP-spoofed, STA-spoofed, probe").
type SeqCounters struct {
	ap, sta, probe uint16
}

func (c *SeqCounters) NextAP() uint16 {
	c.ap = (c.ap + 1) & 0x0FFF
	return c.ap
}

func (c *SeqCounters) NextSTA() uint16 {
	c.sta = (c.sta + 1) & 0x0FFF
	return c.sta
}

func (c *SeqCounters) NextProbe() uint16 {
	c.probe = (c.probe + 1) & 0x0FFF
	return c.probe
}

// seqControl packs a 12-bit sequence number into the sequence-control field
// (fragment number 0, §4.7: "shifted left 4 bits into the sequence-control
// field").
func seqControl(seq uint16) uint16 {
	return (seq & 0x0FFF) << 4
}

// header writes a full 24-byte 3-address 802.11 MAC header.
func header(typ, subtype int, flags byte, addr1, addr2, addr3 MAC, durationID, seq uint16) []byte {
	b := make([]byte, 24)
	b[0] = byte((subtype << 4) | (typ << 2))
	b[1] = flags
	binary.LittleEndian.PutUint16(b[2:4], durationID)
	copy(b[4:10], addr1[:])
	copy(b[10:16], addr2[:])
	copy(b[16:22], addr3[:])
	binary.LittleEndian.PutUint16(b[22:24], seqControl(seq))
	return b
}

// appendIE appends one information element: tag, length byte, payload.
func appendIE(dst []byte, tag byte, payload []byte) []byte {
	dst = append(dst, tag, byte(len(payload)))
	dst = append(dst, payload...)
	return dst
}

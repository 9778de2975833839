// Package frame builds complete radiotap-prefixed 802.11 frames byte-for-byte
// (C7, §4.7). Builders write directly to a byte buffer instead of going
// through gopacket/layers serialization: the golden-byte determinism law
// (§8 law 9) requires every bit to be exactly reproducible from a fixed
// seed, which a hand-rolled writer guarantees far more easily than a
// general-purpose layer serializer tuned for parsing round-trips.
package frame

import (
	"encoding/binary"
)

// radiotapHeader returns the fixed 8-byte minimal radiotap header required
// by every builder: version 0, pad 0, length 8, empty present bitmap
// (§4.7: "begins with an 8-byte radiotap header (version 0, length 8,
// empty present bitmap)").
func radiotapHeader() []byte {
	h := make([]byte, 8)
	h[0] = 0 // version
	h[1] = 0 // pad
	binary.LittleEndian.PutUint16(h[2:4], 8)
	binary.LittleEndian.PutUint32(h[4:8], 0) // present bitmap
	return h
}

// MAC is a 6-byte hardware address.
type MAC [6]byte

// Broadcast is the all-ones MAC.
var Broadcast = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ParseMAC parses a colon-separated MAC string into a MAC, per the same
// canonical form domain.CanonicalMAC produces.
func ParseMAC(s string) (MAC, error) {
	var m MAC
	var vals [6]int
	n, err := fieldScan(s, vals[:])
	if err != nil || n != 6 {
		return m, errInvalidMAC
	}
	for i := 0; i < 6; i++ {
		m[i] = byte(vals[i])
	}
	return m, nil
}

var errInvalidMAC = &macError{}

type macError struct{}

func (*macError) Error() string { return "frame: invalid MAC address" }

// fieldScan parses "xx:xx:xx:xx:xx:xx" into 6 integers without pulling in
// fmt.Sscanf's reflection overhead on a per-frame hot path.
func fieldScan(s string, out []int) (int, error) {
	i, field := 0, 0
	val, have := 0, false
	flush := func() error {
		if !have {
			return errInvalidMAC
		}
		if field >= len(out) {
			return errInvalidMAC
		}
		out[field] = val
		field++
		val, have = 0, false
		return nil
	}
	for ; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ':' || c == '-':
			if err := flush(); err != nil {
				return 0, err
			}
		case c >= '0' && c <= '9':
			val = val*16 + int(c-'0')
			have = true
		case c >= 'a' && c <= 'f':
			val = val*16 + int(c-'a'+10)
			have = true
		case c >= 'A' && c <= 'F':
			val = val*16 + int(c-'A'+10)
			have = true
		default:
			return 0, errInvalidMAC
		}
	}
	if err := flush(); err != nil {
		return 0, err
	}
	return field, nil
}

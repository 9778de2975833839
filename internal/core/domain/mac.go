package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// CanonicalMAC lowercases and colon-normalizes a MAC address given in either
// colon, dash, or bare-hex form. Returns ("", false) if the input cannot be
// parsed as 12 hex digits.
func CanonicalMAC(s string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ':', '-', '.':
			return -1
		}
		return r
	}, s)
	if len(cleaned) != 12 {
		return "", false
	}
	cleaned = strings.ToLower(cleaned)
	for _, c := range cleaned {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", false
		}
	}
	var b strings.Builder
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(cleaned[i : i+2])
	}
	return b.String(), true
}

// beaconBucketMS is the bucket width applied to beacon_interval before
// hashing into the soft-identity fingerprint (§3).
const beaconBucketMS = 50

// ComputeSoftIdentity derives the 16-hex-digit behavioral fingerprint used
// to recognize an AP across MAC rotations (§3, "Soft identity"), from
// (vendor_oui, beacon_interval bucketed to 50ms, channel, encryption_string).
func ComputeSoftIdentity(vendorOUI string, beaconIntervalMS, channel int, encryption string) string {
	bucket := (beaconIntervalMS / beaconBucketMS) * beaconBucketMS
	input := fmt.Sprintf("%s|%d|%d|%s", strings.ToLower(vendorOUI), bucket, channel, strings.ToUpper(encryption))
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:8])
}

// SoftIdentityDrift counts the number of differing hex positions between
// two soft-identity strings, used by the registry's drift test (§4.6). A
// mismatched length counts every position as differing.
func SoftIdentityDrift(a, b string) int {
	if len(a) != len(b) {
		n := len(a)
		if len(b) > n {
			n = len(b)
		}
		return n
	}
	diff := 0
	for i := range a {
		if a[i] != b[i] {
			diff++
		}
	}
	return diff
}

// ParseVendorOUIChannel is a tiny helper that turns a "XX:XX:XX" OUI prefix
// into its 24-bit integer form.
func ParseVendorOUIChannel(oui string) (uint32, error) {
	clean, ok := CanonicalMAC(oui + "00:00:00")
	if !ok {
		return 0, fmt.Errorf("invalid OUI %q", oui)
	}
	parts := strings.Split(clean, ":")[:3]
	v, err := strconv.ParseUint(strings.Join(parts, ""), 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

package handshake

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBSSIDFromFilenameHex(t *testing.T) {
	got, ok := ExtractBSSIDFromFilename("HomeNet_aabbccddeeff.pcap")
	assert.True(t, ok)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", got)
}

func TestExtractBSSIDFromFilenameDashed(t *testing.T) {
	got, ok := ExtractBSSIDFromFilename("Some_SSID_AA-BB-CC-DD-EE-FF.pcap")
	assert.True(t, ok)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", got)
}

func TestExtractBSSIDFromFilenameRejectsGarbage(t *testing.T) {
	_, ok := ExtractBSSIDFromFilename("no_underscore_or_mac.pcap")
	assert.False(t, ok)
}

func TestSSIDFromFilename(t *testing.T) {
	assert.Equal(t, "HomeNet", ssidFromFilename("HomeNet_aabbccddeeff.pcap"))
}

func TestHasPMKIDKDE(t *testing.T) {
	kde := []byte{0xDD, 0x04, 0x00, 0x0F, 0xAC, 0x04}
	assert.True(t, hasPMKIDKDE(kde))
	assert.False(t, hasPMKIDKDE([]byte{0xDD, 0x04, 0x00, 0x0F, 0xAC, 0x01}))
}

package crack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMutateIncludesSuffixesAndCasing(t *testing.T) {
	variants := mutate("Summer2020")
	assert.Contains(t, variants, "Summer2020")
	assert.Contains(t, variants, "SUMMER2020")
	assert.Contains(t, variants, "summer2020")
	assert.Contains(t, variants, "Summer2020!")
	assert.Contains(t, variants, "Summer2020123")
	assert.Contains(t, variants, "Summer202069")
}

func TestParseRecordLineRoundTrip(t *testing.T) {
	rec, ok := parseRecordLine("HomeNet_aabbccddeeff|wordlists/rockyou.txt|CRACKED|hunter2")
	assert.True(t, ok)
	assert.Equal(t, "HomeNet_aabbccddeeff", rec.PcapBasename)
	assert.True(t, rec.Cracked)
	assert.Equal(t, "hunter2", rec.Key)
}

func TestParseRecordLineNoKey(t *testing.T) {
	rec, ok := parseRecordLine("Net_aabbccddeeff|wordlists/small.txt|NOKEY|")
	assert.True(t, ok)
	assert.False(t, rec.Cracked)
	assert.Equal(t, "", rec.Key)
}

func TestParseRecordLineRejectsGarbage(t *testing.T) {
	_, ok := parseRecordLine("not a valid record")
	assert.False(t, ok)
}

package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/corvid-labs/harvestd/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bandit_state.bin")

	now := time.Now().Truncate(time.Second).UTC()
	entity := domain.NewEntity("aa:bb:cc:dd:ee:ff", domain.KindAP, now)
	entity.SSID = "TestNet"
	entity.Channel = 6
	entity.AtkAlpha[2] = 3.5

	snap := Snapshot{
		Totals:   Totals{EpochNum: 42, TotalHandshakeBytes: 1024},
		Mode:     ModeArrays{Alpha: [4]float64{1, 2, 3, 4}, Beta: [4]float64{1, 1, 1, 1}},
		Entities: []EntityRecord{EntityToRecord(entity)},
	}

	require.NoError(t, Save(path, snap))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint32(42), loaded.Totals.EpochNum)
	require.Len(t, loaded.Entities, 1)
	require.Equal(t, "aa:bb:cc:dd:ee:ff", loaded.Entities[0].ID)
	require.Equal(t, "TestNet", loaded.Entities[0].SSID)
	require.InDelta(t, 3.5, loaded.Entities[0].AtkAlpha[2], 1e-9)

	restored := RecordToEntity(loaded.Entities[0])
	require.Equal(t, entity.ID, restored.ID)
	require.Equal(t, entity.FirstSeen.Unix(), restored.FirstSeen.Unix())
}

func TestLoadRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.bin")
	require.NoError(t, os.WriteFile(path, []byte("NOPE1234"), 0644))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrBadMagic)
}

// Package persistence implements the §6 binary bandit-persistence format:
// magic "TSBR", version 1, totals, the mode-bandit's arrays, an entity
// count, then a packed sequence of entity records.
package persistence

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/corvid-labs/harvestd/internal/core/domain"
)

var magic = [4]byte{'T', 'S', 'B', 'R'}

const formatVersion uint32 = 1

// ErrBadMagic/ErrBadVersion are returned by Load on a corrupt or
// incompatible file; per §7 the caller discards and restarts with neutral
// priors rather than propagating these.
var (
	ErrBadMagic   = errors.New("persistence: bad magic")
	ErrBadVersion = errors.New("persistence: unsupported version")
)

// Totals are the scalar epoch/handshake counters saved alongside the
// bandit arrays.
type Totals struct {
	EpochNum            uint32
	TotalHandshakeBytes uint64
}

// ModeArrays is the C5 mode bandit's raw alpha/beta state.
type ModeArrays struct {
	Alpha [4]float64
	Beta  [4]float64
}

// EntityRecord is one packed entity in the file.
type EntityRecord struct {
	ID             string
	Kind           domain.EntityKind
	SoftIdentity   string
	SSID           string
	VendorOUI      string
	Channel        int32
	BeaconInterval int32
	Encryption     string
	ClientsCount   int32
	Alpha, Beta    float64
	AtkAlpha       [8]float64
	AtkBeta        [8]float64
	Level          float64
	RSSIWindow     [10]int32
	RSSICount      int32
	RSSIHead       int32
	LastRSSI       int32
	ClientBoost    float64
	Status         domain.EntityStatus
	FirstSeen      time.Time
	LastSeen       time.Time
	LastAttacked   time.Time
}

// Snapshot is everything Save persists.
type Snapshot struct {
	Totals   Totals
	Mode     ModeArrays
	Entities []EntityRecord
}

// Save writes snapshot to path atomically (write to a temp file, rename).
func Save(path string, snap Snapshot) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("persistence: create temp file: %w", err)
	}
	w := bufio.NewWriter(f)

	if err := writeAll(w, snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeAll(w io.Writer, snap Snapshot) error {
	if err := binary.Write(w, binary.LittleEndian, magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, formatVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, snap.Totals); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, snap.Mode); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(snap.Entities))); err != nil {
		return err
	}
	for _, e := range snap.Entities {
		if err := writeEntity(w, e); err != nil {
			return err
		}
	}
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeEntity(w io.Writer, e EntityRecord) error {
	if err := writeString(w, e.ID); err != nil {
		return err
	}
	kindByte := byte(0)
	if e.Kind == domain.KindSTA {
		kindByte = 1
	}
	if err := binary.Write(w, binary.LittleEndian, kindByte); err != nil {
		return err
	}
	if err := writeString(w, e.SoftIdentity); err != nil {
		return err
	}
	if err := writeString(w, e.SSID); err != nil {
		return err
	}
	if err := writeString(w, e.VendorOUI); err != nil {
		return err
	}
	if err := writeString(w, e.Encryption); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.Channel); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.BeaconInterval); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.ClientsCount); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.Alpha); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.Beta); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.AtkAlpha); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.AtkBeta); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.Level); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.RSSIWindow); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.RSSICount); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.RSSIHead); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.LastRSSI); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.ClientBoost); err != nil {
		return err
	}
	statusByte := statusToByte(e.Status)
	if err := binary.Write(w, binary.LittleEndian, statusByte); err != nil {
		return err
	}
	for _, ts := range []time.Time{e.FirstSeen, e.LastSeen, e.LastAttacked} {
		if err := binary.Write(w, binary.LittleEndian, ts.Unix()); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a snapshot from path. Per §7, callers treat any returned
// error (including ErrBadMagic/ErrBadVersion) as "discard and restart with
// neutral priors" rather than a fatal condition.
func Load(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var gotMagic [4]byte
	if err := binary.Read(r, binary.LittleEndian, &gotMagic); err != nil {
		return Snapshot{}, err
	}
	if gotMagic != magic {
		return Snapshot{}, ErrBadMagic
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return Snapshot{}, err
	}
	if version != formatVersion {
		return Snapshot{}, ErrBadVersion
	}

	var snap Snapshot
	if err := binary.Read(r, binary.LittleEndian, &snap.Totals); err != nil {
		return Snapshot{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &snap.Mode); err != nil {
		return Snapshot{}, err
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return Snapshot{}, err
	}
	snap.Entities = make([]EntityRecord, 0, count)
	for i := uint32(0); i < count; i++ {
		e, err := readEntity(r)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Entities = append(snap.Entities, e)
	}
	return snap, nil
}

func readEntity(r io.Reader) (EntityRecord, error) {
	var e EntityRecord
	var err error
	if e.ID, err = readString(r); err != nil {
		return e, err
	}
	var kindByte byte
	if err := binary.Read(r, binary.LittleEndian, &kindByte); err != nil {
		return e, err
	}
	e.Kind = domain.KindAP
	if kindByte == 1 {
		e.Kind = domain.KindSTA
	}
	if e.SoftIdentity, err = readString(r); err != nil {
		return e, err
	}
	if e.SSID, err = readString(r); err != nil {
		return e, err
	}
	if e.VendorOUI, err = readString(r); err != nil {
		return e, err
	}
	if e.Encryption, err = readString(r); err != nil {
		return e, err
	}
	for _, field := range []*int32{&e.Channel, &e.BeaconInterval, &e.ClientsCount} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return e, err
		}
	}
	for _, field := range []*float64{&e.Alpha, &e.Beta} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return e, err
		}
	}
	if err := binary.Read(r, binary.LittleEndian, &e.AtkAlpha); err != nil {
		return e, err
	}
	if err := binary.Read(r, binary.LittleEndian, &e.AtkBeta); err != nil {
		return e, err
	}
	if err := binary.Read(r, binary.LittleEndian, &e.Level); err != nil {
		return e, err
	}
	if err := binary.Read(r, binary.LittleEndian, &e.RSSIWindow); err != nil {
		return e, err
	}
	for _, field := range []*int32{&e.RSSICount, &e.RSSIHead, &e.LastRSSI} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return e, err
		}
	}
	if err := binary.Read(r, binary.LittleEndian, &e.ClientBoost); err != nil {
		return e, err
	}
	var statusByte byte
	if err := binary.Read(r, binary.LittleEndian, &statusByte); err != nil {
		return e, err
	}
	e.Status = byteToStatus(statusByte)

	var firstSeen, lastSeen, lastAttacked int64
	for _, field := range []*int64{&firstSeen, &lastSeen, &lastAttacked} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return e, err
		}
	}
	e.FirstSeen = time.Unix(firstSeen, 0).UTC()
	e.LastSeen = time.Unix(lastSeen, 0).UTC()
	e.LastAttacked = time.Unix(lastAttacked, 0).UTC()

	return e, nil
}

func statusToByte(s domain.EntityStatus) byte {
	switch s {
	case domain.StatusStale:
		return 1
	case domain.StatusArchived:
		return 2
	case domain.StatusFlagged:
		return 3
	case domain.StatusEvicted:
		return 4
	default:
		return 0
	}
}

func byteToStatus(b byte) domain.EntityStatus {
	switch b {
	case 1:
		return domain.StatusStale
	case 2:
		return domain.StatusArchived
	case 3:
		return domain.StatusFlagged
	case 4:
		return domain.StatusEvicted
	default:
		return domain.StatusActive
	}
}

// EntityToRecord/RecordToEntity convert between the registry's live Entity
// and the packed on-disk form.
func EntityToRecord(e *domain.Entity) EntityRecord {
	return EntityRecord{
		ID: e.ID, Kind: e.Kind, SoftIdentity: e.SoftIdentity,
		SSID: e.SSID, VendorOUI: e.VendorOUI, Channel: int32(e.Channel),
		BeaconInterval: int32(e.BeaconInterval), Encryption: e.Encryption,
		ClientsCount: int32(e.ClientsCount), Alpha: e.Alpha, Beta: e.Beta,
		AtkAlpha: e.AtkAlpha, AtkBeta: e.AtkBeta, Level: e.Level,
		RSSIWindow: int32Window(e.RSSIWindow), RSSICount: int32(e.RSSICount),
		RSSIHead: int32(e.RSSIHead), LastRSSI: int32(e.LastRSSI),
		ClientBoost: e.ClientBoost, Status: e.Status,
		FirstSeen: e.FirstSeen, LastSeen: e.LastSeen, LastAttacked: e.LastAttacked,
	}
}

func int32Window(w [10]int) [10]int32 {
	var out [10]int32
	for i, v := range w {
		out[i] = int32(v)
	}
	return out
}

// RecordToEntity reconstructs a live Entity from its packed record.
func RecordToEntity(r EntityRecord) *domain.Entity {
	e := &domain.Entity{
		ID: r.ID, Kind: r.Kind, SoftIdentity: r.SoftIdentity,
		SSID: r.SSID, VendorOUI: r.VendorOUI, Channel: int(r.Channel),
		BeaconInterval: int(r.BeaconInterval), Encryption: r.Encryption,
		ClientsCount: int(r.ClientsCount), Alpha: r.Alpha, Beta: r.Beta,
		AtkAlpha: r.AtkAlpha, AtkBeta: r.AtkBeta, Level: r.Level,
		RSSICount: int(r.RSSICount), RSSIHead: int(r.RSSIHead), LastRSSI: int(r.LastRSSI),
		ClientBoost: r.ClientBoost, Status: r.Status,
		FirstSeen: r.FirstSeen, LastSeen: r.LastSeen, LastAttacked: r.LastAttacked,
	}
	for i, v := range r.RSSIWindow {
		e.RSSIWindow[i] = int(v)
	}
	return e
}

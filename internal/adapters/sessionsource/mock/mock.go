// Package mock implements ports.SessionSource over an in-memory simulated
// Wi-Fi environment, grounded on the teacher's internal/mock data generator
// (SSID/vendor/device pools), but driving the generalized session-source
// contract (§6) instead of the teacher's websocket demo feed.
package mock

import (
	"context"
	"fmt"
	"time"

	"github.com/corvid-labs/harvestd/internal/core/domain"
	"github.com/corvid-labs/harvestd/internal/core/ports"
)

var sampleSSIDs = []string{"HomeNetwork", "NETGEAR-5G", "CoffeeShop_Free", "Office-Network", "Guest-WiFi"}
var sampleVendors = []string{"00:17:F2", "A0:63:91", "50:C7:BF", "00:1E:BD"}
var sampleEncryptions = []string{"WPA2-PSK", "WPA3-SAE", "OPEN", "WPA2/WPA3-Mixed"}

// Source is a deterministic simulated session source serving a fixed AP/STA
// table, for tests and demo runs without real monitor-mode hardware. The
// injected RandSource is stored but not used.
type Source struct {
	rng     ports.RandSource
	aps     []domain.APObservation
	stas    []domain.STAObservation
	paused  bool
	lastSync time.Time
}

// New constructs a Source with a handful of simulated APs/STAs.
func New(rng ports.RandSource) *Source {
	s := &Source{rng: rng}
	s.seed()
	return s
}

func (s *Source) seed() {
	for i, ssid := range sampleSSIDs {
		ch := 1 + i*2
		s.aps = append(s.aps, domain.APObservation{
			BSSID:          fmt.Sprintf("aa:bb:cc:dd:ee:%02x", i),
			SSID:           ssid,
			Encryption:     sampleEncryptions[i%len(sampleEncryptions)],
			Vendor:         sampleVendors[i%len(sampleVendors)],
			Channel:        ch,
			RSSI:           -40 - i*8,
			ClientsCount:   i % 3,
			BeaconInterval: 100,
		})
		for c := 0; c < i%3; c++ {
			s.stas = append(s.stas, domain.STAObservation{
				MAC:        fmt.Sprintf("11:22:33:44:55:%02x", i*10+c),
				APBSSID:    s.aps[i].BSSID,
				Associated: true,
				RSSI:       -50 - c*5,
			})
		}
	}
}

func (s *Source) Command(ctx context.Context, cmd string) error {
	switch cmd {
	case "wifi.recon on":
		s.paused = false
	}
	return nil
}

func (s *Source) APCount(ctx context.Context) (int, error) { return len(s.aps), nil }

func (s *Source) AP(ctx context.Context, i int) (domain.APObservation, error) {
	if i < 0 || i >= len(s.aps) {
		return domain.APObservation{}, fmt.Errorf("mock: AP index %d out of range", i)
	}
	return s.aps[i], nil
}

func (s *Source) STACount(ctx context.Context) (int, error) { return len(s.stas), nil }

func (s *Source) STA(ctx context.Context, i int) (domain.STAObservation, error) {
	if i < 0 || i >= len(s.stas) {
		return domain.STAObservation{}, fmt.Errorf("mock: STA index %d out of range", i)
	}
	return s.stas[i], nil
}

// Poll returns no deltas; the simulated table is stable between syncs.
func (s *Source) Poll(ctx context.Context, deadline time.Duration) ([]domain.SessionEvent, error) {
	return nil, nil
}

func (s *Source) NeedsSync() bool {
	if time.Since(s.lastSync) > 60*time.Second {
		s.lastSync = time.Now()
		return true
	}
	return false
}

func (s *Source) Pause(ctx context.Context) error  { s.paused = true; return nil }
func (s *Source) Resume(ctx context.Context) error { s.paused = false; return nil }
func (s *Source) Close() error                     { return nil }

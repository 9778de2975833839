// Package config loads the harvester's configuration from flags and
// environment variables, flags taking precedence, in the same style as the
// teacher's agent config loader.
package config

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds every option enumerated in §6.
type Config struct {
	Interface string
	Addr      string
	MockMode  bool
	DBPath    string
	PcapDir   string
	Debug     bool

	ReconTime     float64
	MinReconTime  float64
	MaxReconTime  float64
	HopReconTime  float64

	APTTL  int
	STATTL int

	ThrottleA float64
	ThrottleD float64

	BoredNumEpochs      int
	SadNumEpochs        int
	ExcitedNumEpochs    int
	MaxMissesForRecon   int
	MonMaxBlindEpochs   int

	Associate bool
	Deauth    bool

	FilterWeak bool
	MinRSSI    int

	Channels []int

	HomeSSID      string
	HomePSK       string
	HomeMinRSSI   int
	Home2SSID     string
	Home2PSK      string
	Home2MinRSSI  int

	SyncURL string

	MACRotationEnabled  bool
	MACRotationInterval int

	TXPowerMin int
	TXPowerMax int

	GeoFenceEnabled bool
	GeoFenceLat     float64
	GeoFenceLon     float64
	GeoFenceRadiusM float64

	AttackPhaseEnabled [8]bool

	WordlistDir   string
	CrackStateFile string
	BanditStateFile string

	ReaverPath   string
	CrackerPath  string
}

// Load parses flags/env into a Config, flags winning ties, matching the
// teacher's Load() structure.
func Load() *Config {
	cfg := &Config{}

	cfg.Interface = getEnv("HARVEST_INTERFACE", "wlan0mon")
	cfg.Addr = getEnv("HARVEST_ADDR", ":8080")
	cfg.MockMode = getEnvBool("HARVEST_MOCK", false)
	cfg.DBPath = getEnv("HARVEST_DB", getDefaultPath("events.db"))
	cfg.PcapDir = getEnv("HARVEST_PCAP_DIR", getDefaultPath("captures"))

	cfg.ReconTime = getEnvFloat("HARVEST_RECON_TIME", 5)
	cfg.MinReconTime = getEnvFloat("HARVEST_MIN_RECON_TIME", 2)
	cfg.MaxReconTime = getEnvFloat("HARVEST_MAX_RECON_TIME", 10)
	cfg.HopReconTime = getEnvFloat("HARVEST_HOP_RECON_TIME", 1)

	cfg.APTTL = int(getEnvFloat("HARVEST_AP_TTL", 120))
	cfg.STATTL = int(getEnvFloat("HARVEST_STA_TTL", 120))

	cfg.ThrottleA = getEnvFloat("HARVEST_THROTTLE_A", 1)
	cfg.ThrottleD = getEnvFloat("HARVEST_THROTTLE_D", 2)

	cfg.BoredNumEpochs = int(getEnvFloat("HARVEST_BORED_NUM_EPOCHS", 10))
	cfg.SadNumEpochs = int(getEnvFloat("HARVEST_SAD_NUM_EPOCHS", 5))
	cfg.ExcitedNumEpochs = int(getEnvFloat("HARVEST_EXCITED_NUM_EPOCHS", 3))
	cfg.MaxMissesForRecon = int(getEnvFloat("HARVEST_MAX_MISSES_FOR_RECON", 5))
	cfg.MonMaxBlindEpochs = int(getEnvFloat("HARVEST_MON_MAX_BLIND_EPOCHS", 20))

	cfg.Associate = getEnvBool("HARVEST_ASSOCIATE", true)
	cfg.Deauth = getEnvBool("HARVEST_DEAUTH", true)

	cfg.FilterWeak = getEnvBool("HARVEST_FILTER_WEAK", true)
	cfg.MinRSSI = int(getEnvFloat("HARVEST_MIN_RSSI", -80))

	cfg.HomeSSID = getEnv("HARVEST_HOME_SSID", "")
	cfg.HomePSK = getEnv("HARVEST_HOME_PSK", "")
	cfg.HomeMinRSSI = int(getEnvFloat("HARVEST_HOME_MIN_RSSI", -70))
	cfg.Home2SSID = getEnv("HARVEST_HOME2_SSID", "")
	cfg.Home2PSK = getEnv("HARVEST_HOME2_PSK", "")
	cfg.Home2MinRSSI = int(getEnvFloat("HARVEST_HOME2_MIN_RSSI", -70))

	cfg.SyncURL = getEnv("HARVEST_SYNC_URL", "")

	cfg.MACRotationEnabled = getEnvBool("HARVEST_MAC_ROTATION_ENABLED", false)
	cfg.MACRotationInterval = int(getEnvFloat("HARVEST_MAC_ROTATION_INTERVAL", 1800))

	cfg.TXPowerMin = int(getEnvFloat("HARVEST_TX_POWER_MIN", 10))
	cfg.TXPowerMax = int(getEnvFloat("HARVEST_TX_POWER_MAX", 20))

	cfg.GeoFenceEnabled = getEnvBool("HARVEST_GEO_FENCE_ENABLED", false)
	cfg.GeoFenceLat = getEnvFloat("HARVEST_GEO_FENCE_LAT", 0)
	cfg.GeoFenceLon = getEnvFloat("HARVEST_GEO_FENCE_LON", 0)
	cfg.GeoFenceRadiusM = getEnvFloat("HARVEST_GEO_FENCE_RADIUS_M", 500)

	for i := range cfg.AttackPhaseEnabled {
		cfg.AttackPhaseEnabled[i] = true
	}

	cfg.WordlistDir = getEnv("HARVEST_WORDLIST_DIR", getDefaultPath("wordlists"))
	cfg.CrackStateFile = getEnv("HARVEST_CRACK_STATE", getDefaultPath("crack_state.txt"))
	cfg.BanditStateFile = getEnv("HARVEST_BANDIT_STATE", getDefaultPath("bandit_state.bin"))
	cfg.CrackerPath = getEnv("HARVEST_CRACKER_PATH", "aircrack-ng")

	channelsStr := getEnv("HARVEST_CHANNELS", "")

	flag.StringVar(&cfg.Interface, "i", cfg.Interface, "Monitor-mode interface")
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP status/websocket address")
	flag.BoolVar(&cfg.MockMode, "mock", cfg.MockMode, "Run against the mock session source")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the event-log SQLite database")
	flag.StringVar(&cfg.PcapDir, "pcap-dir", cfg.PcapDir, "Capture directory")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable verbose debug logging")
	flag.StringVar(&channelsStr, "channels", channelsStr, "Restrict to a comma-separated channel list")
	flag.StringVar(&cfg.HomeSSID, "home-ssid", cfg.HomeSSID, "Home network SSID (pauses attacks when visible)")
	flag.StringVar(&cfg.CrackerPath, "cracker-path", cfg.CrackerPath, "Path to the external dictionary-cracking binary")

	flag.Parse()

	cfg.Channels = parseChannels(channelsStr)

	return cfg
}

func parseChannels(s string) []int {
	var out []int
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getDefaultPath returns name nested under ~/.harvestd, creating the
// directory if needed (mirrors the teacher's getDefaultDBPath).
func getDefaultPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("warning: could not get user home directory, using current dir: %v", err)
		return name
	}
	dir := filepath.Join(home, ".harvestd")
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("warning: could not create %s: %v", dir, err)
		return name
	}
	return filepath.Join(dir, name)
}

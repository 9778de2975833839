package domain

// CrackTarget is one candidate pcap for the dictionary-attack subprocess
// scheduler (C13), per §3.
type CrackTarget struct {
	PcapFilename string
	SSID         string
	BSSID        string
	Cracked      bool
	Key          string
}

// CrackRecord is one line of the append-only crack state file (§6):
// "<pcap_basename>|<wordlist_path>|<CRACKED|NOKEY>|<key>".
type CrackRecord struct {
	PcapBasename string
	WordlistPath string
	Cracked      bool
	Key          string
}

// MutationSuffixes are appended to cracked keys when expanding the learned
// dictionary (§4.13, §8 scenario S6).
var MutationSuffixes = []string{"1", "!", "123", "2024", "2025", "01", "69", "99"}

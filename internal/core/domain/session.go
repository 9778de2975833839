package domain

// APObservation and STAObservation mirror the session source's query
// surface (§6: get_ap(i), get_sta(i)) as plain Go values. They are the
// shape the loop (C12) receives on each poll/full-sync before merging into
// the entity registry (C6).
type APObservation struct {
	BSSID          string
	SSID           string
	Encryption     string
	Vendor         string
	Channel        int
	RSSI           int
	ClientsCount   int
	BeaconInterval int
}

type STAObservation struct {
	MAC         string
	APBSSID     string
	Associated  bool
	RSSI        int
}

// SessionEvent is one item returned by the session source's non-blocking
// poll (§4.12 step 3): a delta rather than a full table.
type SessionEvent struct {
	AP  *APObservation
	STA *STAObservation
}

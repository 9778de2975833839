// Package injector implements ports.FrameInjector as a libpcap live handle
// bound to a monitor-mode interface, adapted from the teacher's
// injection.PcapInjector to the complete-frame (radiotap included) contract
// used by the frame builders.
package injector

import (
	"fmt"

	"github.com/google/gopacket/pcap"
)

// PcapInjector writes pre-built radiotap+802.11 frames to a monitor-mode
// interface via a live pcap handle.
type PcapInjector struct {
	handle *pcap.Handle
}

// Open binds a pcap live handle to iface. The interface must already be in
// monitor mode; this adapter does not set it (§1: out of scope).
func Open(iface string) (*PcapInjector, error) {
	handle, err := pcap.OpenLive(iface, 2048, false, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("injector: open %s: %w", iface, err)
	}
	return &PcapInjector{handle: handle}, nil
}

// Inject writes one complete frame (radiotap header + 802.11 + payload)
// verbatim.
func (p *PcapInjector) Inject(frame []byte) error {
	if err := p.handle.WritePacketData(frame); err != nil {
		return fmt.Errorf("injector: write: %w", err)
	}
	return nil
}

func (p *PcapInjector) Close() error {
	p.handle.Close()
	return nil
}

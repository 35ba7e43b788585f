// Package core defines core types with zero external dependencies.
package core

import (
	"fmt"
	"net/netip"
)

// EthernetHeader represents L2 Ethernet frame header.
type EthernetHeader struct {
	SrcMAC    [6]byte
	DstMAC    [6]byte
	EtherType uint16   // First EtherType after the VLAN stack (0xF1C1 for R-TAG frames)
	VLANs     []uint16 // 0~2 VLAN IDs, outermost first (QinQ scenarios have 2)
	Priority  uint8    // PCP of the outermost VLAN tag, 0 when untagged
}

// OuterVLAN returns the outermost VLAN id and whether the frame is VLAN tagged.
func (h EthernetHeader) OuterVLAN() (uint16, bool) {
	if len(h.VLANs) == 0 {
		return 0, false
	}
	return h.VLANs[0], true
}

// Flow is the IPv4 five-tuple carried behind an R-TAG or a plain VLAN tag.
type Flow struct {
	SrcIP    netip.Addr
	DstIP    netip.Addr
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8 // IANA protocol number (17 for UDP)
}

// IsValid reports whether the flow carries an address pair.
func (f Flow) IsValid() bool {
	return f.SrcIP.IsValid() && f.DstIP.IsValid()
}

func (f Flow) String() string {
	return fmt.Sprintf("%d/%s:%d>%s:%d", f.Protocol, f.SrcIP, f.SrcPort, f.DstIP, f.DstPort)
}

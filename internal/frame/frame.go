// Package frame builds the Ethernet frames the sender puts on the wire:
// Ethernet, 802.1Q, an optional R-TAG, IPv4, UDP and a payload.
package frame

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/frer/internal/rtag"
)

// ErrInvalidSpec is returned when a Spec cannot be serialized.
var ErrInvalidSpec = errors.New("frame: invalid spec")

// Spec describes one frame.
type Spec struct {
	SrcMAC   net.HardwareAddr
	DstMAC   net.HardwareAddr
	VLAN     uint16
	Priority uint8

	// Tagged inserts an R-TAG between the VLAN tag and the network header.
	Tagged   bool
	Sequence uint16
	Reserved uint16

	// NextProtocol is the EtherType after the R-TAG or VLAN tag.
	// Zero means IPv4. Any other value is followed by Payload directly.
	NextProtocol uint16

	SrcIP   netip.Addr
	DstIP   netip.Addr
	SrcPort uint16
	DstPort uint16
	IPID    uint16

	Payload []byte
}

var serializeOptions = gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

// Build serializes s.
func Build(s Spec) ([]byte, error) {
	if len(s.SrcMAC) != 6 || len(s.DstMAC) != 6 {
		return nil, fmt.Errorf("%w: MAC addresses must be 6 bytes", ErrInvalidSpec)
	}
	if s.VLAN > 0x0FFF || s.Priority > 7 {
		return nil, fmt.Errorf("%w: vlan %d priority %d", ErrInvalidSpec, s.VLAN, s.Priority)
	}

	next := layers.EthernetType(s.NextProtocol)
	if next == 0 {
		next = layers.EthernetTypeIPv4
	}

	eth := &layers.Ethernet{
		SrcMAC:       s.SrcMAC,
		DstMAC:       s.DstMAC,
		EthernetType: layers.EthernetTypeDot1Q,
	}
	dot1q := &layers.Dot1Q{
		Priority:       s.Priority,
		VLANIdentifier: s.VLAN,
		Type:           next,
	}
	stack := []gopacket.SerializableLayer{eth, dot1q}

	if s.Tagged {
		dot1q.Type = layers.EthernetType(rtag.EtherType)
		stack = append(stack, &rtag.Layer{
			Reserved:     s.Reserved,
			Sequence:     s.Sequence,
			NextProtocol: next,
		})
	}

	if next == layers.EthernetTypeIPv4 {
		if !s.SrcIP.Is4() || !s.DstIP.Is4() {
			return nil, fmt.Errorf("%w: IPv4 addresses required, got %s > %s", ErrInvalidSpec, s.SrcIP, s.DstIP)
		}
		ip := &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Id:       s.IPID,
			Flags:    layers.IPv4DontFragment,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    s.SrcIP.AsSlice(),
			DstIP:    s.DstIP.AsSlice(),
		}
		udp := &layers.UDP{
			SrcPort: layers.UDPPort(s.SrcPort),
			DstPort: layers.UDPPort(s.DstPort),
		}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		stack = append(stack, ip, udp)
	}
	stack = append(stack, gopacket.Payload(s.Payload))

	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, serializeOptions, stack...); err != nil {
		return nil, fmt.Errorf("frame: serialize: %w", err)
	}
	return buf.Bytes(), nil
}

// Payload returns text padded with 'X' or truncated to size bytes.
// A size of zero or less returns text unchanged.
func Payload(text string, size int) []byte {
	if size <= 0 {
		return []byte(text)
	}
	out := make([]byte, size)
	n := copy(out, text)
	for i := n; i < size; i++ {
		out[i] = 'X'
	}
	return out
}

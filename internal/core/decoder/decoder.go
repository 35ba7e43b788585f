// Package decoder turns captured frames into the L2 view, the R-TAG and,
// when the tag carries IPv4, the flow behind it.
package decoder

import (
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/frer/internal/core"
	"firestige.xyz/frer/internal/rtag"
)

// Frame is one decoded capture.
type Frame struct {
	Raw      core.RawPacket
	Ethernet core.EthernetHeader
	Tag      rtag.Header
	Tagged   bool
	Flow     core.Flow
}

// Decoder decodes raw packets. It reuses its layer buffers and is not safe
// for concurrent use; give every goroutine its own Decoder.
type Decoder struct {
	ip4     layers.IPv4
	udp     layers.UDP
	tcp     layers.TCP
	payload gopacket.Payload
	parser  *gopacket.DecodingLayerParser
	decoded []gopacket.LayerType
}

// New creates a Decoder.
func New() *Decoder {
	d := &Decoder{decoded: make([]gopacket.LayerType, 0, 4)}
	d.parser = gopacket.NewDecodingLayerParser(layers.LayerTypeIPv4, &d.ip4, &d.udp, &d.tcp, &d.payload)
	return d
}

// Decode decodes the Ethernet header, then scans the frame for an R-TAG,
// starting at the EtherType when the header carries 0xF1C1.
// A frame without a tag is not an error: Frame.Tagged is false.
// Only a frame too short for an Ethernet header fails.
func (d *Decoder) Decode(raw core.RawPacket) (Frame, error) {
	f := Frame{Raw: raw}

	eth, payload, err := decodeEthernet(raw.Data)
	if err != nil {
		return f, err
	}
	f.Ethernet = eth

	next := eth.EtherType
	// A structural R-TAG starts at the EtherType field; scanning from there
	// keeps a MAC address holding F1 C1 from being read as the tag.
	start := 0
	if eth.EtherType == rtag.EtherType {
		start = len(raw.Data) - len(payload) - 2
	}
	if hdr, err := rtag.Decode(raw.Data[start:]); err == nil {
		hdr.Offset += start
		f.Tag = hdr
		f.Tagged = true
		if eth.EtherType == rtag.EtherType {
			next = hdr.NextProtocol
			payload = raw.Data[hdr.Offset+rtag.Len:]
		}
	}

	if next == etherTypeIPv4 {
		f.Flow = d.decodeFlow(payload)
	}
	return f, nil
}

// decodeFlow returns the zero Flow when the IPv4 header does not decode.
func (d *Decoder) decodeFlow(data []byte) core.Flow {
	d.decoded = d.decoded[:0]
	if err := d.parser.DecodeLayers(data, &d.decoded); err != nil {
		if _, ok := err.(gopacket.UnsupportedLayerType); !ok {
			return core.Flow{}
		}
	}

	var flow core.Flow
	for _, lt := range d.decoded {
		switch lt {
		case layers.LayerTypeIPv4:
			flow.SrcIP, _ = netip.AddrFromSlice(d.ip4.SrcIP.To4())
			flow.DstIP, _ = netip.AddrFromSlice(d.ip4.DstIP.To4())
			flow.Protocol = uint8(d.ip4.Protocol)
		case layers.LayerTypeUDP:
			flow.SrcPort = uint16(d.udp.SrcPort)
			flow.DstPort = uint16(d.udp.DstPort)
		case layers.LayerTypeTCP:
			flow.SrcPort = uint16(d.tcp.SrcPort)
			flow.DstPort = uint16(d.tcp.DstPort)
		}
	}
	return flow
}

package decoder

import (
	"encoding/binary"

	"firestige.xyz/frer/internal/core"
)

const (
	ethernetHeaderLen = 14
	vlanHeaderLen     = 4

	etherTypeIPv4 = 0x0800
	etherTypeVLAN = 0x8100
	etherTypeQinQ = 0x88A8
)

// decodeEthernet decodes the Ethernet header and its VLAN stack.
// It returns the header and the bytes after the first non-VLAN EtherType.
// For R-TAG frames that EtherType is 0xF1C1 and the payload starts with the
// tag body.
func decodeEthernet(data []byte) (core.EthernetHeader, []byte, error) {
	if len(data) < ethernetHeaderLen {
		return core.EthernetHeader{}, nil, core.ErrPacketTooShort
	}

	eth := core.EthernetHeader{}
	copy(eth.DstMAC[:], data[0:6])
	copy(eth.SrcMAC[:], data[6:12])

	etherType := binary.BigEndian.Uint16(data[12:14])
	offset := ethernetHeaderLen

	// QinQ nests 802.1ad outside 802.1Q.
	var vlans []uint16
	for etherType == etherTypeVLAN || etherType == etherTypeQinQ {
		if len(data) < offset+vlanHeaderLen {
			return eth, nil, core.ErrPacketTooShort
		}

		tci := binary.BigEndian.Uint16(data[offset : offset+2])
		if len(vlans) == 0 {
			eth.Priority = uint8(tci >> 13)
		}
		vlans = append(vlans, tci&0x0FFF)

		etherType = binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += vlanHeaderLen
	}

	eth.EtherType = etherType
	eth.VLANs = vlans
	return eth, data[offset:], nil
}

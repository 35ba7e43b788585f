package rtag

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// LayerTypeRTag is the gopacket layer type of an R-TAG.
var LayerTypeRTag = gopacket.RegisterLayerType(8021, gopacket.LayerTypeMetadata{
	Name:    "RTag",
	Decoder: gopacket.DecodeFunc(decodeRTag),
})

func init() {
	// Lets Ethernet and Dot1Q hand 0xF1C1 payloads to the R-TAG decoder.
	layers.EthernetTypeMetadata[layers.EthernetType(EtherType)] = layers.EnumMetadata{
		DecodeWith: gopacket.DecodeFunc(decodeRTag),
		Name:       "RTag",
		LayerType:  LayerTypeRTag,
	}
}

// Layer is the gopacket view of an R-TAG. The 0xF1C1 EtherType belongs to the
// enclosing Ethernet or Dot1Q layer, so the layer itself is 6 bytes long.
type Layer struct {
	layers.BaseLayer
	Reserved     uint16
	Sequence     uint16
	NextProtocol layers.EthernetType
}

// LayerType returns LayerTypeRTag.
func (r *Layer) LayerType() gopacket.LayerType { return LayerTypeRTag }

// CanDecode returns LayerTypeRTag.
func (r *Layer) CanDecode() gopacket.LayerClass { return LayerTypeRTag }

// NextLayerType returns the layer type of the encapsulated protocol.
func (r *Layer) NextLayerType() gopacket.LayerType { return r.NextProtocol.LayerType() }

// DecodeFromBytes decodes the tag body (reserved, sequence, next protocol).
func (r *Layer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < bodyLen {
		df.SetTruncated()
		return fmt.Errorf("rtag: layer needs %d bytes, got %d", bodyLen, len(data))
	}
	r.Reserved = binary.BigEndian.Uint16(data[0:2])
	r.Sequence = binary.BigEndian.Uint16(data[2:4])
	r.NextProtocol = layers.EthernetType(binary.BigEndian.Uint16(data[4:6]))
	r.BaseLayer = layers.BaseLayer{Contents: data[:bodyLen], Payload: data[bodyLen:]}
	return nil
}

// SerializeTo prepends the tag body to b.
func (r *Layer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	buf, err := b.PrependBytes(bodyLen)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(buf[0:2], r.Reserved)
	binary.BigEndian.PutUint16(buf[2:4], r.Sequence)
	binary.BigEndian.PutUint16(buf[4:6], uint16(r.NextProtocol))
	return nil
}

// Header converts the layer into a codec Header.
func (r *Layer) Header() Header {
	return Header{
		EtherType:    EtherType,
		Reserved:     r.Reserved,
		Sequence:     r.Sequence,
		NextProtocol: uint16(r.NextProtocol),
	}
}

func decodeRTag(data []byte, p gopacket.PacketBuilder) error {
	r := &Layer{}
	if err := r.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(r)
	return p.NextDecoder(r.NextProtocol)
}

// Package rtag implements the IEEE 802.1CB redundancy tag (R-TAG) codec.
//
// Wire layout, big-endian, as placed directly after the Ethernet header or the
// VLAN tag:
//
//	0      2          4          6               8
//	+------+----------+----------+---------------+
//	|F1 C1 | reserved | sequence | next protocol |
//	+------+----------+----------+---------------+
package rtag

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// EtherType identifies an R-TAG.
	EtherType uint16 = 0xF1C1

	// Len is the size of an encoded R-TAG including its EtherType.
	Len = 8

	// bodyLen is the size of the tag after the EtherType.
	bodyLen = Len - 2
)

var (
	// ErrNotFound means the buffer holds no 0xF1C1 pattern followed by a complete tag.
	ErrNotFound = errors.New("rtag: no R-TAG in buffer")

	// ErrMalformedReserved is advisory: the tag decoded but its reserved field is not zero.
	ErrMalformedReserved = errors.New("rtag: reserved field is not zero")
)

var marker = []byte{0xF1, 0xC1}

// Header is a decoded R-TAG. It is a value type and never mutated after decode.
type Header struct {
	EtherType    uint16
	Reserved     uint16
	Sequence     uint16
	NextProtocol uint16

	// Offset of the tag from the start of the decoded buffer.
	Offset int
}

// MalformedReserved reports whether the reserved field carries a non-zero value.
func (h Header) MalformedReserved() bool {
	return h.Reserved != 0
}

// Anomaly returns ErrMalformedReserved for a non-standard tag and nil otherwise.
func (h Header) Anomaly() error {
	if h.MalformedReserved() {
		return fmt.Errorf("%w: 0x%04x at offset %d", ErrMalformedReserved, h.Reserved, h.Offset)
	}
	return nil
}

func (h Header) String() string {
	return fmt.Sprintf("R-TAG{seq=%d next=0x%04x reserved=0x%04x offset=%d}",
		h.Sequence, h.NextProtocol, h.Reserved, h.Offset)
}

// Decode returns the first R-TAG found scanning buf left to right.
//
// The tag is located by pattern, not by offset: behind a VLAN tag the R-TAG takes
// the place of the EtherType, so its position depends on the frame shape.
// A non-zero reserved field does not fail the decode; see Header.Anomaly.
func Decode(buf []byte) (Header, error) {
	i := bytes.Index(buf, marker)
	if i < 0 {
		return Header{}, ErrNotFound
	}
	// Any later match has fewer trailing bytes than this one.
	if len(buf)-i < Len {
		return Header{}, ErrNotFound
	}
	tag := buf[i : i+Len]
	return Header{
		EtherType:    binary.BigEndian.Uint16(tag[0:2]),
		Reserved:     binary.BigEndian.Uint16(tag[2:4]),
		Sequence:     binary.BigEndian.Uint16(tag[4:6]),
		NextProtocol: binary.BigEndian.Uint16(tag[6:8]),
		Offset:       i,
	}, nil
}

// Encode returns the 8-byte R-TAG for seq with a zero reserved field.
func Encode(seq, nextProtocol uint16) []byte {
	return Append(make([]byte, 0, Len), Header{Sequence: seq, NextProtocol: nextProtocol})
}

// Append appends the encoded tag h to dst. The EtherType is always 0xF1C1;
// h.Reserved is written as given.
func Append(dst []byte, h Header) []byte {
	dst = binary.BigEndian.AppendUint16(dst, EtherType)
	dst = binary.BigEndian.AppendUint16(dst, h.Reserved)
	dst = binary.BigEndian.AppendUint16(dst, h.Sequence)
	return binary.BigEndian.AppendUint16(dst, h.NextProtocol)
}

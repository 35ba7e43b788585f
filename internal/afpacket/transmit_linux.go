//go:build linux

package afpacket

import (
	"fmt"

	"github.com/google/gopacket/afpacket"
)

// Transmitter writes raw frames to one interface.
type Transmitter struct {
	iface  string
	handle *afpacket.TPacket
}

// OpenTransmitter opens a raw socket bound to iface.
func OpenTransmitter(iface string) (*Transmitter, error) {
	handle, err := afpacket.NewTPacket(afpacket.OptInterface(iface))
	if err != nil {
		return nil, fmt.Errorf("afpacket: open %s for transmit: %w", iface, err)
	}
	return &Transmitter{iface: iface, handle: handle}, nil
}

// WritePacketData transmits one complete Ethernet frame.
func (t *Transmitter) WritePacketData(data []byte) error {
	if err := t.handle.WritePacketData(data); err != nil {
		return fmt.Errorf("afpacket: send on %s: %w", t.iface, err)
	}
	return nil
}

// Close releases the socket.
func (t *Transmitter) Close() error {
	t.handle.Close()
	return nil
}

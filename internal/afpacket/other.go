//go:build !linux

package afpacket

import (
	"context"

	"firestige.xyz/frer/internal/core"
)

// Capturer is unavailable outside Linux.
type Capturer struct{}

// NewCapturer returns core.ErrUnsupportedOS.
func NewCapturer(Config) (*Capturer, error) {
	return nil, core.ErrUnsupportedOS
}

func (c *Capturer) Name() string { return "" }

func (c *Capturer) Stats() CaptureStats { return CaptureStats{} }

func (c *Capturer) Capture(context.Context, chan<- core.RawPacket) error {
	return core.ErrUnsupportedOS
}

// Transmitter is unavailable outside Linux.
type Transmitter struct{}

// OpenTransmitter returns core.ErrUnsupportedOS.
func OpenTransmitter(string) (*Transmitter, error) {
	return nil, core.ErrUnsupportedOS
}

func (t *Transmitter) WritePacketData([]byte) error { return core.ErrUnsupportedOS }

func (t *Transmitter) Close() error { return nil }

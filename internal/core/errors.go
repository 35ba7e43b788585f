// Package core defines sentinel errors.
package core

import "errors"

var (
	// Packet decoding errors
	ErrPacketTooShort   = errors.New("frer: packet too short")
	ErrUnsupportedProto = errors.New("frer: unsupported protocol")

	// Configuration errors
	ErrConfigInvalid = errors.New("frer: invalid configuration")

	// Capture / transmit errors
	ErrCaptureStopped = errors.New("frer: capture stopped")
	ErrUnsupportedOS  = errors.New("frer: raw sockets not supported on this platform")
)

// Package core defines core data structures with zero external dependencies.
package core

import "time"

// RawPacket is a complete frame handed over by a capturer, in arrival order.
type RawPacket struct {
	Data           []byte    // Raw frame data, owned by the receiver
	Timestamp      time.Time // Capture timestamp (kernel timestamp preferred)
	CaptureLen     uint32    // Actual captured length
	OrigLen        uint32    // Original frame length
	Interface      string    // Capturer name: interface name or pcap path
	InterfaceIndex int       // Network interface index, 0 for replayed frames
}

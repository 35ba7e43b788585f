package pcapfile

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const snapLen = 65535

// Writer records frames into a pcap file. It is safe for concurrent use so
// several sender lanes can share one recording.
type Writer struct {
	mu      sync.Mutex
	f       *os.File
	w       *pcapgo.Writer
	packets uint64
}

// Create truncates path and writes the pcap file header.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("pcapfile: create %s: %w", path, err)
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, fmt.Errorf("pcapfile: write header: %w", err)
	}
	return &Writer{f: f, w: w}, nil
}

// WritePacketData appends data stamped with the current time.
func (w *Writer) WritePacketData(data []byte) error {
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(data),
		Length:        len(data),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return os.ErrClosed
	}
	if err := w.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("pcapfile: write packet: %w", err)
	}
	w.packets++
	return nil
}

// Packets returns the number of recorded frames.
func (w *Writer) Packets() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.packets
}

// Close closes the file. Closing twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

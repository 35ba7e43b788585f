// Package pcapfile replays capture files into an analysis session and records
// generated frames into capture files.
package pcapfile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/frer/internal/core"
)

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Reader replays a pcap or pcapng file. It implements analyzer.Capturer.
type Reader struct {
	path  string
	iface string

	packets atomic.Uint64
}

// NewReader creates a Reader for path. Frames are labelled with iface, or with
// the file name when iface is empty.
func NewReader(path, iface string) *Reader {
	if iface == "" {
		iface = filepath.Base(path)
	}
	return &Reader{path: path, iface: iface}
}

// Name returns the capture label.
func (r *Reader) Name() string {
	return r.iface
}

// Packets returns the number of frames delivered so far.
func (r *Reader) Packets() uint64 {
	return r.packets.Load()
}

// Capture reads the file in order and blocks on out, so no frame is dropped.
// It returns nil at end of file or when ctx is cancelled.
func (r *Reader) Capture(ctx context.Context, out chan<- core.RawPacket) error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("pcapfile: open %s: %w", r.path, err)
	}
	defer f.Close()

	pr, err := open(f)
	if err != nil {
		return fmt.Errorf("pcapfile: %s: %w", r.path, err)
	}
	if lt := pr.LinkType(); lt != layers.LinkTypeEthernet {
		return fmt.Errorf("pcapfile: %s: link type %s: %w", r.path, lt, core.ErrUnsupportedProto)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("pcapfile: read %s: %w", r.path, err)
		}

		raw := core.RawPacket{
			Data:           data,
			Timestamp:      ci.Timestamp,
			CaptureLen:     uint32(ci.CaptureLength),
			OrigLen:        uint32(ci.Length),
			Interface:      r.iface,
			InterfaceIndex: ci.InterfaceIndex,
		}
		select {
		case out <- raw:
			r.packets.Add(1)
		case <-ctx.Done():
			return nil
		}
	}
}

// open detects the file format. pcapng files start with a section header
// block, everything else is handed to the classic pcap reader.
func open(f *os.File) (packetReader, error) {
	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, err
	}
	if magic[0] == 0x0A && magic[1] == 0x0D && magic[2] == 0x0D && magic[3] == 0x0A {
		return pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(br)
}

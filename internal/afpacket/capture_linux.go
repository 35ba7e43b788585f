//go:build linux

// Package afpacket captures and transmits frames on Linux network interfaces
// through AF_PACKET sockets.
package afpacket

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/afpacket"

	"firestige.xyz/frer/internal/core"
	"firestige.xyz/frer/internal/log"
	"firestige.xyz/frer/internal/metrics"
)

const pollTimeout = 100 * time.Millisecond

// Capturer reads frames from one interface. It implements analyzer.Capturer.
type Capturer struct {
	cfg Config

	frameSize int
	blockSize int
	numBlocks int

	received atomic.Uint64
	dropped  atomic.Uint64
}

// NewCapturer validates cfg and sizes the TPACKET_V3 ring.
// The socket is opened by Capture.
func NewCapturer(cfg Config) (*Capturer, error) {
	cfg = cfg.withDefaults()
	if cfg.Interface == "" {
		return nil, fmt.Errorf("%w: afpacket interface is required", core.ErrConfigInvalid)
	}
	frameSize, blockSize, numBlocks, err := recomputeSize(cfg.BufferSizeMB, cfg.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}
	return &Capturer{
		cfg:       cfg,
		frameSize: frameSize,
		blockSize: blockSize,
		numBlocks: numBlocks,
	}, nil
}

// Name returns the interface name.
func (c *Capturer) Name() string {
	return c.cfg.Interface
}

// Stats returns capture counters.
func (c *Capturer) Stats() CaptureStats {
	return CaptureStats{
		Received: c.received.Load(),
		Dropped:  c.dropped.Load(),
	}
}

// tpacketOptions configures the ring. VLAN offload moves the 802.1Q tag into
// packet metadata; the tag is written back into each frame so the R-TAG and
// VLAN id are found where the decoder expects them.
func (c *Capturer) tpacketOptions() []interface{} {
	return []interface{}{
		afpacket.OptInterface(c.cfg.Interface),
		afpacket.OptFrameSize(c.frameSize),
		afpacket.OptBlockSize(c.blockSize),
		afpacket.OptNumBlocks(c.numBlocks),
		afpacket.OptAddVLANHeader(true),
		afpacket.OptPollTimeout(pollTimeout),
		afpacket.OptTPacketVersion(afpacket.TPacketVersion3),
	}
}

// Capture reads until ctx is cancelled. When out is full the frame is dropped
// and counted rather than stalling the ring.
func (c *Capturer) Capture(ctx context.Context, out chan<- core.RawPacket) error {
	handle, err := afpacket.NewTPacket(c.tpacketOptions()...)
	if err != nil {
		return fmt.Errorf("afpacket: open %s: %w", c.cfg.Interface, err)
	}
	// The handle is owned by this function; closing it elsewhere would race
	// with the read below.
	defer handle.Close()

	if c.cfg.BPFFilter != "" {
		insns, err := compileFilter(c.cfg.BPFFilter, c.cfg.SnapLen)
		if err != nil {
			return err
		}
		if err := handle.SetBPF(insns); err != nil {
			return fmt.Errorf("afpacket: set BPF on %s: %w", c.cfg.Interface, err)
		}
	}

	logger := log.GetLogger().WithField("interface", c.cfg.Interface)
	logger.WithField("filter", c.cfg.BPFFilter).Info("capture started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("capture stopped")
			return nil
		default:
		}

		// ReadPacketData copies: frames outlive this iteration once they
		// cross the channel.
		data, ci, err := handle.ReadPacketData()
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("capture stopped")
				return nil
			}
			// Poll timeouts and EINTR.
			continue
		}
		c.received.Add(1)

		raw := core.RawPacket{
			Data:           data,
			Timestamp:      ci.Timestamp,
			CaptureLen:     uint32(ci.CaptureLength),
			OrigLen:        uint32(ci.Length),
			Interface:      c.cfg.Interface,
			InterfaceIndex: ci.InterfaceIndex,
		}
		select {
		case out <- raw:
		case <-ctx.Done():
			logger.Info("capture stopped")
			return nil
		default:
			c.dropped.Add(1)
			metrics.CaptureDropsTotal.WithLabelValues(c.cfg.Interface).Inc()
			logger.Debug("output channel full, dropping frame")
		}
	}
}

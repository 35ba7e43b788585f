// Package frer implements the duplicate elimination decision procedure applied
// to IEEE 802.1CB replicated streams: the first copy of a sequence number is
// accepted, every later copy on the same stream is eliminated.
//
// This is plain set membership, not the sliding-window recovery function of
// the standard. A new frame that reuses a sequence number already seen on its
// stream is reported as a duplicate for the rest of the session unless a
// history limit evicts the older number first.
package frer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"firestige.xyz/frer/internal/rtag"
)

// StreamID identifies a logical stream. Its value comes from the caller.
type StreamID string

// DefaultStream is the implicit stream of single-stream analysis.
const DefaultStream StreamID = "1"

// ErrRejected is returned by Examine and Account when a frame is refused
// before classification.
var ErrRejected = errors.New("frer: frame rejected")

// Classification is the outcome of one observation.
type Classification uint8

const (
	// Original is the first observed copy of a sequence number.
	Original Classification = iota + 1
	// Duplicate is any later copy.
	Duplicate
)

func (c Classification) String() string {
	switch c {
	case Original:
		return "ORIGINAL"
	case Duplicate:
		return "DUPLICATE"
	default:
		return "UNKNOWN"
	}
}

// Action is the elimination decision for the classification.
func (c Classification) Action() string {
	switch c {
	case Original:
		return "ACCEPTED"
	case Duplicate:
		return "ELIMINATED"
	default:
		return "NONE"
	}
}

// MarshalText encodes the classification by name.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Config tunes an Engine.
type Config struct {
	// HistoryLimit caps the sequence numbers retained per stream.
	// Zero keeps every number for the whole session.
	HistoryLimit int

	// RejectMalformedReserved refuses tags whose reserved field is not zero
	// instead of classifying them with an anomaly flag.
	RejectMalformedReserved bool
}

// Result describes one examined R-TAG frame.
type Result struct {
	Stream         StreamID
	Header         rtag.Header
	Classification Classification
	// Anomaly wraps rtag.ErrMalformedReserved when the reserved field is not zero.
	Anomaly error
}

// Engine owns per-stream history and session statistics. One Engine is one
// analysis session. All methods are safe for concurrent use, but callers must
// feed each stream in arrival order: the engine does no reordering.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	started time.Time
	streams map[StreamID]*history

	totalFrames uint64
	rtagFrames  uint64
	unique      uint64
	duplicate   uint64
	malformed   uint64
	rejected    uint64
	histogram   map[uint16]uint64
}

// New creates an Engine with an empty session.
func New(cfg Config) *Engine {
	if cfg.HistoryLimit < 0 {
		cfg.HistoryLimit = 0
	}
	return &Engine{
		cfg:       cfg,
		started:   time.Now(),
		streams:   make(map[StreamID]*history),
		histogram: make(map[uint16]uint64),
	}
}

// Observe classifies seq on stream and updates the statistics.
func (e *Engine) Observe(stream StreamID, seq uint16) Classification {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.observeLocked(stream, seq)
}

// Examine counts frame, decodes its R-TAG and classifies it on stream.
// Frames without an R-TAG return rtag.ErrNotFound and are only counted.
func (e *Engine) Examine(stream StreamID, frame []byte) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.totalFrames++
	hdr, err := rtag.Decode(frame)
	if err != nil {
		return Result{}, err
	}
	return e.accountLocked(stream, hdr)
}

// Account counts a frame whose R-TAG the caller already decoded and classifies it.
func (e *Engine) Account(stream StreamID, hdr rtag.Header) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.totalFrames++
	return e.accountLocked(stream, hdr)
}

// CountUntagged counts an examined frame that carries no R-TAG.
func (e *Engine) CountUntagged() {
	e.mu.Lock()
	e.totalFrames++
	e.mu.Unlock()
}

func (e *Engine) accountLocked(stream StreamID, hdr rtag.Header) (Result, error) {
	res := Result{Stream: stream, Header: hdr}
	if hdr.MalformedReserved() {
		e.malformed++
		res.Anomaly = hdr.Anomaly()
		if e.cfg.RejectMalformedReserved {
			e.rtagFrames++
			e.rejected++
			return res, fmt.Errorf("%w: %w", ErrRejected, res.Anomaly)
		}
	}
	res.Classification = e.observeLocked(stream, hdr.Sequence)
	return res, nil
}

func (e *Engine) observeLocked(stream StreamID, seq uint16) Classification {
	h, ok := e.streams[stream]
	if !ok {
		h = newHistory(e.cfg.HistoryLimit)
		e.streams[stream] = h
	}

	e.rtagFrames++
	e.histogram[seq]++

	if h.insert(seq) {
		h.unique++
		e.unique++
		return Original
	}
	h.duplicate++
	e.duplicate++
	return Duplicate
}

// Snapshot returns a copy of the session statistics.
func (e *Engine) Snapshot() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Statistics{
		Started:           e.started,
		Taken:             time.Now(),
		TotalFrames:       e.totalFrames,
		RTagFrames:        e.rtagFrames,
		Unique:            e.unique,
		Duplicate:         e.duplicate,
		MalformedReserved: e.malformed,
		Rejected:          e.rejected,
		Histogram:         make(map[uint16]uint64, len(e.histogram)),
		Streams:           make(map[StreamID]StreamStatistics, len(e.streams)),
	}
	for seq, n := range e.histogram {
		s.Histogram[seq] = n
	}
	for id, h := range e.streams {
		s.Streams[id] = StreamStatistics{
			Unique:    h.unique,
			Duplicate: h.duplicate,
			Retained:  h.count,
			Evicted:   h.evicted,
		}
	}
	return s
}

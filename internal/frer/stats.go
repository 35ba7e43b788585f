package frer

import (
	"sort"
	"time"
)

// Statistics is an immutable copy of the session counters.
type Statistics struct {
	Started           time.Time                     `json:"started" yaml:"started"`
	Taken             time.Time                     `json:"taken" yaml:"taken"`
	TotalFrames       uint64                        `json:"total_frames" yaml:"total_frames"`
	RTagFrames        uint64                        `json:"rtag_frames" yaml:"rtag_frames"`
	Unique            uint64                        `json:"unique" yaml:"unique"`
	Duplicate         uint64                        `json:"duplicate" yaml:"duplicate"`
	MalformedReserved uint64                        `json:"malformed_reserved" yaml:"malformed_reserved"`
	Rejected          uint64                        `json:"rejected" yaml:"rejected"`
	Histogram         map[uint16]uint64             `json:"histogram" yaml:"histogram"`
	Streams           map[StreamID]StreamStatistics `json:"streams" yaml:"streams"`
}

// StreamStatistics holds the counters of one stream.
type StreamStatistics struct {
	Unique    uint64 `json:"unique" yaml:"unique"`
	Duplicate uint64 `json:"duplicate" yaml:"duplicate"`
	Retained  int    `json:"retained" yaml:"retained"`
	Evicted   uint64 `json:"evicted" yaml:"evicted"`
}

// SequenceCount is one histogram row.
type SequenceCount struct {
	Sequence uint16 `json:"sequence" yaml:"sequence"`
	Count    uint64 `json:"count" yaml:"count"`
}

// Runtime is the session age when the snapshot was taken.
func (s Statistics) Runtime() time.Duration {
	return s.Taken.Sub(s.Started)
}

// EliminationRate is the percentage of R-TAG frames eliminated as duplicates,
// 0 before any R-TAG frame was seen.
func (s Statistics) EliminationRate() float64 {
	if s.RTagFrames == 0 {
		return 0
	}
	return float64(s.Duplicate) / float64(s.RTagFrames) * 100
}

// Distribution returns the histogram ordered by sequence number.
func (s Statistics) Distribution() []SequenceCount {
	rows := make([]SequenceCount, 0, len(s.Histogram))
	for seq, n := range s.Histogram {
		rows = append(rows, SequenceCount{Sequence: seq, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Sequence < rows[j].Sequence })
	return rows
}

// Unexpected returns the rows whose count differs from expected copies.
func (s Statistics) Unexpected(expected uint64) []SequenceCount {
	var rows []SequenceCount
	for _, row := range s.Distribution() {
		if row.Count != expected {
			rows = append(rows, row)
		}
	}
	return rows
}

// Perfect reports whether every sequence number was seen exactly expected
// times and at least one duplicate was eliminated.
func (s Statistics) Perfect(expected uint64) bool {
	return s.Duplicate > 0 && len(s.Unexpected(expected)) == 0
}

// StreamIDs returns the known streams in lexical order.
func (s Statistics) StreamIDs() []StreamID {
	ids := make([]StreamID, 0, len(s.Streams))
	for id := range s.Streams {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

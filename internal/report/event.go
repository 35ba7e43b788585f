package report

import (
	"time"

	"firestige.xyz/frer/internal/frer"
)

// Kind tells what an Event carries.
type Kind string

const (
	// KindFrame carries one examined R-TAG frame.
	KindFrame Kind = "frame"
	// KindSnapshot carries periodic statistics.
	KindSnapshot Kind = "snapshot"
	// KindFinal carries the statistics at session end.
	KindFinal Kind = "final"
)

// Event is one reporter input.
type Event struct {
	Kind     Kind             `json:"kind" yaml:"kind"`
	Time     time.Time        `json:"time" yaml:"time"`
	Frame    *Frame           `json:"frame,omitempty" yaml:"frame,omitempty"`
	Stats    *frer.Statistics `json:"stats,omitempty" yaml:"stats,omitempty"`
	Expected uint64           `json:"expected_copies,omitempty" yaml:"expected_copies,omitempty"`
}

// Frame describes one R-TAG frame and the decision taken on it.
// Classification is zero for a rejected frame.
type Frame struct {
	Index          uint64              `json:"index" yaml:"index"`
	Interface      string              `json:"interface" yaml:"interface"`
	Stream         frer.StreamID       `json:"stream" yaml:"stream"`
	Sequence       uint16              `json:"sequence" yaml:"sequence"`
	NextProtocol   uint16              `json:"next_protocol" yaml:"next_protocol"`
	Reserved       uint16              `json:"reserved" yaml:"reserved"`
	Classification frer.Classification `json:"classification" yaml:"classification"`
	Action         string              `json:"action" yaml:"action"`
	Rejected       bool                `json:"rejected,omitempty" yaml:"rejected,omitempty"`
	Anomaly        string              `json:"anomaly,omitempty" yaml:"anomaly,omitempty"`
	VLAN           uint16              `json:"vlan,omitempty" yaml:"vlan,omitempty"`
	Priority       uint8               `json:"priority,omitempty" yaml:"priority,omitempty"`
	Flow           string              `json:"flow,omitempty" yaml:"flow,omitempty"`
}

// Verdict summarizes how closely a session matched the expected copy count.
type Verdict struct {
	Perfect         bool                 `json:"perfect" yaml:"perfect"`
	ExpectedCopies  uint64               `json:"expected_copies" yaml:"expected_copies"`
	UniqueSequences int                  `json:"unique_sequences" yaml:"unique_sequences"`
	Unexpected      []frer.SequenceCount `json:"unexpected,omitempty" yaml:"unexpected,omitempty"`
}

// Judge computes the verdict for s.
func Judge(s frer.Statistics, expected uint64) Verdict {
	return Verdict{
		Perfect:         s.Perfect(expected),
		ExpectedCopies:  expected,
		UniqueSequences: len(s.Histogram),
		Unexpected:      s.Unexpected(expected),
	}
}

package analyzer

import "sync/atomic"

// counters are the pipeline counters of one Analyzer.
type counters struct {
	Received     atomic.Uint64
	Decoded      atomic.Uint64
	DecodeErrors atomic.Uint64
	NotTagged    atomic.Uint64
	Rejected     atomic.Uint64
	Classified   atomic.Uint64
	Reported     atomic.Uint64
	ReportErrors atomic.Uint64
}

// Stats represents analyzer pipeline statistics.
type Stats struct {
	Received     uint64 `json:"received"`
	Decoded      uint64 `json:"decoded"`
	DecodeErrors uint64 `json:"decode_errors"`
	NotTagged    uint64 `json:"not_tagged"`
	Rejected     uint64 `json:"rejected"`
	Classified   uint64 `json:"classified"`
	Reported     uint64 `json:"reported"`
	ReportErrors uint64 `json:"report_errors"`
}

func (c *counters) snapshot() Stats {
	return Stats{
		Received:     c.Received.Load(),
		Decoded:      c.Decoded.Load(),
		DecodeErrors: c.DecodeErrors.Load(),
		NotTagged:    c.NotTagged.Load(),
		Rejected:     c.Rejected.Load(),
		Classified:   c.Classified.Load(),
		Reported:     c.Reported.Load(),
		ReportErrors: c.ReportErrors.Load(),
	}
}

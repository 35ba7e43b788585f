// Package console implements the console reporter: one line per examined
// frame, a statistics block per snapshot and a verdict at session end.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"firestige.xyz/frer/internal/frer"
	"firestige.xyz/frer/internal/log"
	"firestige.xyz/frer/internal/report"
)

const Name = "console"

const rule = "============================================================"

// Config represents console reporter configuration.
type Config struct {
	Format string `mapstructure:"format"` // "json" or "text", default "text"
	Output string `mapstructure:"output"` // "stdout" or "stderr", default "stdout"
	Frames *bool  `mapstructure:"frames"` // print frame events, default true
}

// Reporter writes events to a terminal stream.
type Reporter struct {
	mu       sync.Mutex
	out      io.Writer
	format   string
	frames   bool
	reported atomic.Uint64
}

// New creates a console reporter writing to stdout.
func New() report.Reporter {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a console reporter writing to w.
func NewWithWriter(w io.Writer) *Reporter {
	return &Reporter{out: w, format: "text", frames: true}
}

// Name returns the reporter name.
func (r *Reporter) Name() string {
	return Name
}

// Init applies cfg. A nil cfg keeps the defaults.
func (r *Reporter) Init(cfg map[string]any) error {
	var c Config
	if err := report.DecodeConfig(cfg, &c); err != nil {
		return fmt.Errorf("console reporter: %w", err)
	}

	switch c.Format {
	case "":
	case "json", "text":
		r.format = c.Format
	default:
		return fmt.Errorf("console reporter: invalid format %q, must be json or text", c.Format)
	}

	switch c.Output {
	case "", "stdout":
	case "stderr":
		r.out = os.Stderr
	default:
		return fmt.Errorf("console reporter: invalid output %q, must be stdout or stderr", c.Output)
	}

	if c.Frames != nil {
		r.frames = *c.Frames
	}
	return nil
}

// Start prints the legend in text mode.
func (r *Reporter) Start(ctx context.Context) error {
	log.GetLogger().WithField("format", r.format).Debug("console reporter started")
	if r.format == "text" && r.frames {
		r.mu.Lock()
		defer r.mu.Unlock()
		fmt.Fprintln(r.out, "Legend:")
		fmt.Fprintln(r.out, "  ORIGINAL  = First time seeing this sequence (ACCEPTED)")
		fmt.Fprintln(r.out, "  DUPLICATE = Already seen this sequence (ELIMINATED)")
		fmt.Fprintln(r.out)
	}
	return nil
}

// Stop logs the number of reported events.
func (r *Reporter) Stop(ctx context.Context) error {
	log.GetLogger().WithField("total_reported", r.reported.Load()).Debug("console reporter stopped")
	return nil
}

// Report writes ev.
func (r *Reporter) Report(ctx context.Context, ev *report.Event) error {
	if ev == nil {
		return fmt.Errorf("console reporter: nil event")
	}
	if ev.Kind == report.KindFrame && !r.frames {
		return nil
	}
	r.reported.Add(1)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.format == "json" {
		return json.NewEncoder(r.out).Encode(ev)
	}
	switch ev.Kind {
	case report.KindFrame:
		return r.writeFrame(ev.Frame)
	case report.KindSnapshot:
		return r.writeStats(ev.Stats, ev.Expected)
	case report.KindFinal:
		if err := r.writeStats(ev.Stats, ev.Expected); err != nil {
			return err
		}
		return r.writeVerdict(ev.Stats, ev.Expected)
	default:
		return fmt.Errorf("console reporter: unknown event kind %q", ev.Kind)
	}
}

// Flush is a no-op: every write goes straight to the stream.
func (r *Reporter) Flush(ctx context.Context) error {
	return nil
}

func (r *Reporter) writeFrame(f *report.Frame) error {
	if f == nil {
		return fmt.Errorf("console reporter: frame event without frame")
	}
	status, action := f.Classification.String(), f.Action
	if f.Rejected {
		status, action = "MALFORMED", "REJECTED"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%3d] Seq:%5d | %-9s | %-10s | stream=%s if=%s", f.Index, f.Sequence, status, action, f.Stream, f.Interface)
	if f.Anomaly != "" {
		fmt.Fprintf(&b, " | %s", f.Anomaly)
	}
	b.WriteByte('\n')
	_, err := io.WriteString(r.out, b.String())
	return err
}

func (r *Reporter) writeStats(s *frer.Statistics, expected uint64) error {
	if s == nil {
		return fmt.Errorf("console reporter: statistics event without statistics")
	}

	var b strings.Builder
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "FRER ANALYSIS STATISTICS")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Runtime: %.1f seconds\n", s.Runtime().Seconds())
	fmt.Fprintf(&b, "Total packets analyzed: %d\n", s.TotalFrames)
	fmt.Fprintf(&b, "R-TAG packets found: %d\n", s.RTagFrames)
	fmt.Fprintf(&b, "Unique frames accepted: %d\n", s.Unique)
	fmt.Fprintf(&b, "Duplicate frames eliminated: %d\n", s.Duplicate)
	if s.MalformedReserved > 0 {
		fmt.Fprintf(&b, "Malformed reserved fields: %d (rejected %d)\n", s.MalformedReserved, s.Rejected)
	}
	if s.RTagFrames > 0 {
		fmt.Fprintf(&b, "Elimination rate: %.1f%%\n", s.EliminationRate())
	}

	fmt.Fprintln(&b, "\nSequence number distribution:")
	for _, row := range s.Distribution() {
		status := "Expected"
		if row.Count != expected {
			status = fmt.Sprintf("Unexpected (%d)", row.Count)
		}
		fmt.Fprintf(&b, "  Seq %5d: %2d packets | %s\n", row.Sequence, row.Count, status)
	}

	if len(s.Streams) > 1 {
		fmt.Fprintln(&b, "\nStreams:")
		for _, id := range s.StreamIDs() {
			st := s.Streams[id]
			fmt.Fprintf(&b, "  %s: unique %d, duplicate %d, retained %d, evicted %d\n",
				id, st.Unique, st.Duplicate, st.Retained, st.Evicted)
		}
	}
	fmt.Fprintln(&b, rule)

	_, err := io.WriteString(r.out, b.String())
	return err
}

func (r *Reporter) writeVerdict(s *frer.Statistics, expected uint64) error {
	v := report.Judge(*s, expected)

	var b strings.Builder
	fmt.Fprintln(&b, "\nFRER TEST SUMMARY:")
	fmt.Fprintf(&b, "Expected behavior: Each sequence should appear exactly %d times\n", expected)
	fmt.Fprintf(&b, "FRER effectiveness: %d unique sequences identified\n", v.UniqueSequences)
	if v.Perfect {
		fmt.Fprintln(&b, "Perfect FRER behavior detected!")
		fmt.Fprintln(&b, "   - All duplicates correctly identified")
		fmt.Fprintf(&b, "   - Exactly %d copies of each sequence\n", expected)
	} else {
		fmt.Fprintf(&b, "Non-standard behavior detected: %d sequence numbers with unexpected copy counts\n", len(v.Unexpected))
	}

	_, err := io.WriteString(r.out, b.String())
	return err
}

// Package analyzer runs an analysis session: capturers fan frames into one
// channel and a single loop decodes, keys and classifies them, so the engine
// sees every stream in arrival order.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"firestige.xyz/frer/internal/core"
	"firestige.xyz/frer/internal/core/decoder"
	"firestige.xyz/frer/internal/frer"
	"firestige.xyz/frer/internal/log"
	"firestige.xyz/frer/internal/metrics"
	"firestige.xyz/frer/internal/report"
)

const (
	defaultBufferSize  = 1024
	defaultReportEvery = 10
	defaultExpected    = 2

	anomalyLogsPerWindow = 5
	anomalyLogWindow     = 10 * time.Second
)

// Capturer produces raw frames. Capture writes to out until its source is
// exhausted or ctx is cancelled, and must not close out.
type Capturer interface {
	Name() string
	Capture(ctx context.Context, out chan<- core.RawPacket) error
}

// Config contains analyzer configuration.
type Config struct {
	Engine    *frer.Engine
	Capturers []Capturer
	Keyer     Keyer
	Reporters []report.Reporter

	// ReportEvery is the number of R-TAG frames between snapshot events.
	ReportEvery int
	// Expected is the copy count every sequence number should reach.
	Expected uint64
	// BufferSize is the capacity of the shared frame channel.
	BufferSize int
}

// Analyzer is one analysis session.
type Analyzer struct {
	engine      *frer.Engine
	capturers   []Capturer
	keyer       Keyer
	reporters   []report.Reporter
	reportEvery uint64
	expected    uint64
	bufferSize  int

	decoder  *decoder.Decoder
	limiter  *logLimiter
	counters counters
	tagged   uint64
}

// New validates cfg and creates an Analyzer.
func New(cfg Config) (*Analyzer, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("analyzer: engine is required")
	}
	if len(cfg.Capturers) == 0 {
		return nil, fmt.Errorf("analyzer: at least one capturer is required")
	}
	if cfg.Keyer == nil {
		return nil, fmt.Errorf("analyzer: keyer is required")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.ReportEvery <= 0 {
		cfg.ReportEvery = defaultReportEvery
	}
	if cfg.Expected == 0 {
		cfg.Expected = defaultExpected
	}

	return &Analyzer{
		engine:      cfg.Engine,
		capturers:   cfg.Capturers,
		keyer:       cfg.Keyer,
		reporters:   cfg.Reporters,
		reportEvery: uint64(cfg.ReportEvery),
		expected:    cfg.Expected,
		bufferSize:  cfg.BufferSize,
		decoder:     decoder.New(),
		limiter:     newLogLimiter(anomalyLogsPerWindow, anomalyLogWindow),
	}, nil
}

// Run analyzes frames until every capturer has finished or ctx is cancelled.
// The final snapshot is reported and reporters are flushed either way.
// Capturer failures are returned joined; per-frame errors never end the run.
func (a *Analyzer) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	packets := make(chan core.RawPacket, a.bufferSize)

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		captured []error
	)
	for _, c := range a.capturers {
		wg.Add(1)
		go func(c Capturer) {
			defer wg.Done()
			logger := log.GetLogger().WithField("capturer", c.Name())
			logger.Debug("capturer starting")
			if err := c.Capture(runCtx, packets); err != nil && runCtx.Err() == nil {
				logger.WithError(err).Error("capture failed")
				errMu.Lock()
				captured = append(captured, fmt.Errorf("%s: %w", c.Name(), err))
				errMu.Unlock()
			}
			logger.Debug("capturer finished")
		}(c)
	}
	go func() {
		wg.Wait()
		close(packets)
	}()

	log.GetLogger().WithFields(map[string]interface{}{
		"capturers":    len(a.capturers),
		"report_every": a.reportEvery,
		"expected":     a.expected,
	}).Info("analysis started")

	a.processLoop(runCtx, packets)

	// Unblock capturers still sending, then wait for them.
	cancel()
	for range packets {
	}

	// Reporting outlives the run context so the final event is delivered
	// after an interrupt.
	final := context.WithoutCancel(ctx)
	a.report(final, &report.Event{
		Kind:     report.KindFinal,
		Time:     time.Now(),
		Stats:    a.snapshot(),
		Expected: a.expected,
	})
	for _, r := range a.reporters {
		if err := r.Flush(final); err != nil {
			a.reporterFailed(r, err)
		}
	}

	st := a.Stats()
	log.GetLogger().WithFields(map[string]interface{}{
		"received":   st.Received,
		"classified": st.Classified,
		"not_tagged": st.NotTagged,
		"rejected":   st.Rejected,
		"suppressed": a.limiter.Suppressed(),
	}).Info("analysis finished")

	return errors.Join(captured...)
}

// Stats returns pipeline statistics.
func (a *Analyzer) Stats() Stats {
	return a.counters.snapshot()
}

func (a *Analyzer) processLoop(ctx context.Context, packets <-chan core.RawPacket) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-packets:
			if !ok {
				return
			}
			a.counters.Received.Add(1)
			if err := a.processPacket(ctx, raw); err != nil {
				log.GetLogger().WithError(err).Debug("frame skipped")
			}
		}
	}
}

// processPacket examines one frame. The returned error only describes why
// the frame was not classified.
func (a *Analyzer) processPacket(ctx context.Context, raw core.RawPacket) error {
	metrics.FramesTotal.WithLabelValues(raw.Interface).Inc()

	f, err := a.decoder.Decode(raw)
	if err != nil {
		a.counters.DecodeErrors.Add(1)
		a.engine.CountUntagged()
		return fmt.Errorf("decode failed: %w", err)
	}
	a.counters.Decoded.Add(1)

	if !f.Tagged {
		a.counters.NotTagged.Add(1)
		a.engine.CountUntagged()
		return nil
	}
	metrics.RTagFramesTotal.WithLabelValues(raw.Interface).Inc()

	stream := a.keyer.Key(&f)
	res, err := a.engine.Account(stream, f.Tag)
	if res.Anomaly != nil {
		metrics.ReservedAnomaliesTotal.Inc()
		if a.limiter.Allow(stream, time.Now()) {
			log.GetLogger().WithFields(map[string]interface{}{
				"stream":   stream,
				"seq":      f.Tag.Sequence,
				"reserved": fmt.Sprintf("0x%04X", f.Tag.Reserved),
			}).Warn("non-zero R-TAG reserved field")
		}
	}

	a.tagged++
	ev := &report.Event{
		Kind:  report.KindFrame,
		Time:  raw.Timestamp,
		Frame: a.describe(&f, res),
	}
	if err != nil {
		a.counters.Rejected.Add(1)
		metrics.RejectedTotal.Inc()
		ev.Frame.Rejected = true
	} else {
		a.counters.Classified.Add(1)
		metrics.ClassifiedTotal.WithLabelValues(string(stream), res.Classification.String()).Inc()
	}
	a.report(ctx, ev)

	if a.tagged%a.reportEvery == 0 {
		a.report(ctx, &report.Event{
			Kind:     report.KindSnapshot,
			Time:     time.Now(),
			Stats:    a.snapshot(),
			Expected: a.expected,
		})
	}
	return err
}

func (a *Analyzer) describe(f *decoder.Frame, res frer.Result) *report.Frame {
	fr := &report.Frame{
		Index:          a.tagged,
		Interface:      f.Raw.Interface,
		Stream:         res.Stream,
		Sequence:       f.Tag.Sequence,
		NextProtocol:   f.Tag.NextProtocol,
		Reserved:       f.Tag.Reserved,
		Classification: res.Classification,
		Action:         res.Classification.Action(),
		Priority:       f.Ethernet.Priority,
	}
	if res.Anomaly != nil {
		fr.Anomaly = res.Anomaly.Error()
	}
	if vlan, ok := f.Ethernet.OuterVLAN(); ok {
		fr.VLAN = vlan
	}
	if f.Flow.IsValid() {
		fr.Flow = f.Flow.String()
	}
	return fr
}

// snapshot takes engine statistics and mirrors them into the gauges.
func (a *Analyzer) snapshot() *frer.Statistics {
	s := a.engine.Snapshot()
	metrics.EliminationRatio.Set(s.EliminationRate())
	for id, st := range s.Streams {
		metrics.HistoryRetained.WithLabelValues(string(id)).Set(float64(st.Retained))
	}
	return &s
}

func (a *Analyzer) report(ctx context.Context, ev *report.Event) {
	failed := false
	for _, r := range a.reporters {
		if err := r.Report(ctx, ev); err != nil {
			a.reporterFailed(r, err)
			failed = true
		}
	}
	if !failed {
		a.counters.Reported.Add(1)
	}
}

func (a *Analyzer) reporterFailed(r report.Reporter, err error) {
	a.counters.ReportErrors.Add(1)
	metrics.ReporterErrorsTotal.WithLabelValues(r.Name()).Inc()
	log.GetLogger().WithError(err).WithField("reporter", r.Name()).Error("reporter failed")
}

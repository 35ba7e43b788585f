package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/frer/internal/analyzer"
	"firestige.xyz/frer/internal/config"
	"firestige.xyz/frer/internal/frer"
	"firestige.xyz/frer/internal/log"
	"firestige.xyz/frer/internal/metrics"
	"firestige.xyz/frer/internal/report"
	"firestige.xyz/frer/internal/report/builtin"
	"firestige.xyz/frer/internal/report/console"
)

// analysisFlags override the analyzer section for one run.
type analysisFlags struct {
	streamKey       string
	historyLimit    int
	reportEvery     int
	expected        int
	rejectMalformed bool
	quiet           bool
}

func (f *analysisFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.streamKey, "stream-key", "k", "", "stream keying: single, vlan, src-mac, flow")
	fs.IntVar(&f.historyLimit, "history-limit", 0, "sequence numbers retained per stream (0 = unbounded)")
	fs.IntVar(&f.reportEvery, "report-every", 0, "R-TAG frames between statistics reports")
	fs.IntVarP(&f.expected, "expected", "e", 0, "expected copies per sequence number")
	fs.BoolVar(&f.rejectMalformed, "reject-malformed", false, "reject R-TAGs with a non-zero reserved field")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "console: statistics only, no per-frame lines")
}

// apply copies the flags the user set into cfg and validates the result.
func (f *analysisFlags) apply(cmd *cobra.Command, cfg *config.GlobalConfig) error {
	fs := cmd.Flags()
	a := &cfg.Analyzer
	if fs.Changed("stream-key") {
		a.StreamKey = f.streamKey
	}
	if fs.Changed("history-limit") {
		a.HistoryLimit = f.historyLimit
	}
	if fs.Changed("report-every") {
		a.ReportEvery = f.reportEvery
	}
	if fs.Changed("expected") {
		a.ExpectedCopies = f.expected
	}
	if fs.Changed("reject-malformed") {
		a.RejectMalformedReserved = f.rejectMalformed
	}
	if f.quiet {
		for i := range cfg.Reporters {
			if cfg.Reporters[i].Name == console.Name {
				if cfg.Reporters[i].Config == nil {
					cfg.Reporters[i].Config = map[string]any{}
				}
				cfg.Reporters[i].Config["frames"] = false
			}
		}
		if len(cfg.Reporters) == 0 {
			cfg.Reporters = []config.ReporterConfig{{Name: console.Name, Config: map[string]any{"frames": false}}}
		}
	}
	return cfg.ValidateAndApplyDefaults()
}

// signalContext is cancelled on SIGINT or SIGTERM, and after d when d > 0.
func signalContext(d time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if d <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	return tctx, func() {
		cancel()
		stop()
	}
}

// buildReporters creates and initializes the configured reporters. The console
// reporter writes to out. No configuration means a text console reporter.
func buildReporters(cfgs []config.ReporterConfig, out io.Writer) ([]report.Reporter, error) {
	builtin.Register()

	if len(cfgs) == 0 {
		cfgs = []config.ReporterConfig{{Name: console.Name}}
	}
	reporters := make([]report.Reporter, 0, len(cfgs))
	for _, rc := range cfgs {
		var (
			r   report.Reporter
			err error
		)
		if rc.Name == console.Name && out != nil {
			r = console.NewWithWriter(out)
		} else if r, err = report.New(rc.Name); err != nil {
			return nil, err
		}
		if err := r.Init(rc.Config); err != nil {
			return nil, fmt.Errorf("reporter %s: %w", rc.Name, err)
		}
		reporters = append(reporters, r)
	}
	return reporters, nil
}

// runAnalysis runs one analysis session over capturers with the reporters and
// the metrics server of cfg.
func runAnalysis(ctx context.Context, cfg *config.GlobalConfig, capturers []analyzer.Capturer, out io.Writer) (analyzer.Stats, error) {
	reporters, err := buildReporters(cfg.Reporters, out)
	if err != nil {
		return analyzer.Stats{}, err
	}
	for i, r := range reporters {
		if err := r.Start(ctx); err != nil {
			stopReporters(reporters[:i])
			return analyzer.Stats{}, fmt.Errorf("reporter %s: start: %w", r.Name(), err)
		}
	}
	defer stopReporters(reporters)

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return analyzer.Stats{}, err
		}
		defer func() {
			if err := srv.Stop(context.Background()); err != nil {
				log.GetLogger().WithError(err).Warn("metrics server stop failed")
			}
		}()
	}

	keyer, err := analyzer.NewKeyer(cfg.Analyzer.StreamKey)
	if err != nil {
		return analyzer.Stats{}, err
	}
	engine := frer.New(frer.Config{
		HistoryLimit:            cfg.Analyzer.HistoryLimit,
		RejectMalformedReserved: cfg.Analyzer.RejectMalformedReserved,
	})

	a, err := analyzer.New(analyzer.Config{
		Engine:      engine,
		Capturers:   capturers,
		Keyer:       keyer,
		Reporters:   reporters,
		ReportEvery: cfg.Analyzer.ReportEvery,
		Expected:    uint64(cfg.Analyzer.ExpectedCopies),
		BufferSize:  cfg.Analyzer.BufferSize,
	})
	if err != nil {
		return analyzer.Stats{}, err
	}

	err = a.Run(ctx)
	return a.Stats(), err
}

func stopReporters(reporters []report.Reporter) {
	for _, r := range reporters {
		if err := r.Stop(context.Background()); err != nil {
			log.GetLogger().WithError(err).WithField("reporter", r.Name()).Warn("reporter stop failed")
		}
	}
}

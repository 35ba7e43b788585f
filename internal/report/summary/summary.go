// Package summary implements the summary reporter: it keeps the latest
// statistics and writes them, with the verdict, to a YAML or JSON file.
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"firestige.xyz/frer/internal/frer"
	"firestige.xyz/frer/internal/log"
	"firestige.xyz/frer/internal/report"
)

const Name = "summary"

// Config represents summary reporter configuration.
type Config struct {
	Path   string `mapstructure:"path"`   // required
	Format string `mapstructure:"format"` // yaml | json, default from the file extension
}

// Document is the content of the summary file.
type Document struct {
	Generated time.Time       `json:"generated" yaml:"generated"`
	Final     bool            `json:"final" yaml:"final"`
	Verdict   report.Verdict  `json:"verdict" yaml:"verdict"`
	Stats     frer.Statistics `json:"stats" yaml:"stats"`
}

// Reporter writes the session summary file.
type Reporter struct {
	path   string
	format string

	latest  *report.Event
	final   bool
	dirty   bool
	nowFunc func() time.Time
}

// New creates an uninitialized summary reporter.
func New() report.Reporter {
	return &Reporter{nowFunc: time.Now}
}

// Name returns the reporter name.
func (r *Reporter) Name() string {
	return Name
}

// Init validates cfg.
func (r *Reporter) Init(cfg map[string]any) error {
	var c Config
	if err := report.DecodeConfig(cfg, &c); err != nil {
		return fmt.Errorf("summary reporter: %w", err)
	}
	if c.Path == "" {
		return fmt.Errorf("summary reporter: path is required")
	}

	format := strings.ToLower(c.Format)
	if format == "" {
		format = "yaml"
		if strings.EqualFold(filepath.Ext(c.Path), ".json") {
			format = "json"
		}
	}
	if format != "yaml" && format != "json" {
		return fmt.Errorf("summary reporter: invalid format %q, must be yaml or json", c.Format)
	}

	r.path, r.format = c.Path, format
	return nil
}

// Start is a no-op.
func (r *Reporter) Start(ctx context.Context) error {
	return nil
}

// Stop writes any statistics not yet on disk.
func (r *Reporter) Stop(ctx context.Context) error {
	return r.Flush(ctx)
}

// Report keeps statistics events. The final event is written at once.
func (r *Reporter) Report(ctx context.Context, ev *report.Event) error {
	if ev == nil {
		return fmt.Errorf("summary reporter: nil event")
	}
	if ev.Kind == report.KindFrame || ev.Stats == nil {
		return nil
	}
	r.latest = ev
	r.final = ev.Kind == report.KindFinal
	r.dirty = true

	if r.final {
		return r.Flush(ctx)
	}
	return nil
}

// Flush writes the latest statistics when they changed since the last write.
func (r *Reporter) Flush(ctx context.Context) error {
	if !r.dirty {
		return nil
	}

	doc := Document{
		Generated: r.nowFunc(),
		Final:     r.final,
		Verdict:   report.Judge(*r.latest.Stats, r.latest.Expected),
		Stats:     *r.latest.Stats,
	}

	var (
		data []byte
		err  error
	)
	if r.format == "json" {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = yaml.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("summary reporter: encode: %w", err)
	}

	// Write then rename so readers never see a partial file.
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("summary reporter: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("summary reporter: rename %s: %w", tmp, err)
	}
	r.dirty = false

	log.GetLogger().WithFields(map[string]interface{}{"path": r.path, "final": r.final}).Debug("summary written")
	return nil
}

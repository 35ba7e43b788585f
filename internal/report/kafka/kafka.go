// Package kafka implements the Kafka reporter. Events are serialized to JSON
// and written with segmentio/kafka-go; frame events are batched, snapshots
// and the final statistics are written immediately.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"firestige.xyz/frer/internal/log"
	"firestige.xyz/frer/internal/report"
)

const Name = "kafka"

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultCompression  = "snappy"
	defaultMaxAttempts  = 3
)

// Config represents Kafka reporter configuration.
type Config struct {
	Brokers      []string      `mapstructure:"brokers"`       // required
	Topic        string        `mapstructure:"topic"`         // required
	BatchSize    int           `mapstructure:"batch_size"`    // optional, default 100
	BatchTimeout time.Duration `mapstructure:"batch_timeout"` // optional, default 100ms
	Compression  string        `mapstructure:"compression"`   // optional: none|gzip|snappy|lz4|zstd, default snappy
	MaxAttempts  int           `mapstructure:"max_attempts"`  // optional, default 3
	Frames       *bool         `mapstructure:"frames"`        // optional, publish frame events, default true
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Reporter publishes events to a Kafka topic.
type Reporter struct {
	config  Config
	writer  messageWriter
	frames  bool
	pending []kafka.Message

	reported atomic.Uint64
	errors   atomic.Uint64
}

// New creates an uninitialized Kafka reporter.
func New() report.Reporter {
	return &Reporter{frames: true}
}

// Name returns the reporter name.
func (r *Reporter) Name() string {
	return Name
}

// Init validates cfg and creates the writer.
func (r *Reporter) Init(cfg map[string]any) error {
	if cfg == nil {
		return fmt.Errorf("kafka reporter requires configuration")
	}

	c := Config{
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		Compression:  defaultCompression,
		MaxAttempts:  defaultMaxAttempts,
	}
	if err := report.DecodeConfig(cfg, &c); err != nil {
		return fmt.Errorf("kafka reporter: %w", err)
	}
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka reporter: brokers is required")
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka reporter: topic is required")
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	codec, err := parseCompression(c.Compression)
	if err != nil {
		return err
	}

	r.config = c
	if c.Frames != nil {
		r.frames = *c.Frames
	}
	r.pending = make([]kafka.Message, 0, c.BatchSize)
	r.writer = &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        c.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    c.BatchSize,
		BatchTimeout: c.BatchTimeout,
		MaxAttempts:  c.MaxAttempts,
		Compression:  codec,
		RequiredAcks: kafka.RequireOne,
	}
	return nil
}

func parseCompression(name string) (kafka.Compression, error) {
	switch strings.ToLower(name) {
	case "none", "":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	default:
		return 0, fmt.Errorf("kafka reporter: invalid compression type: %s", name)
	}
}

// Start logs the writer settings.
func (r *Reporter) Start(ctx context.Context) error {
	log.GetLogger().WithFields(map[string]interface{}{
		"brokers":     strings.Join(r.config.Brokers, ","),
		"topic":       r.config.Topic,
		"batch_size":  r.config.BatchSize,
		"compression": r.config.Compression,
	}).Info("kafka reporter started")
	return nil
}

// Stop flushes pending frames and closes the writer.
func (r *Reporter) Stop(ctx context.Context) error {
	if r.writer == nil {
		return nil
	}
	flushErr := r.Flush(ctx)
	if err := r.writer.Close(); err != nil {
		log.GetLogger().WithError(err).Error("error closing kafka writer")
		return err
	}
	log.GetLogger().WithFields(map[string]interface{}{
		"total_reported": r.reported.Load(),
		"total_errors":   r.errors.Load(),
	}).Info("kafka reporter stopped")
	return flushErr
}

// Report queues frame events and writes statistics events at once.
func (r *Reporter) Report(ctx context.Context, ev *report.Event) error {
	if ev == nil {
		return fmt.Errorf("kafka reporter: nil event")
	}
	if ev.Kind == report.KindFrame && !r.frames {
		return nil
	}

	msg, err := message(ev)
	if err != nil {
		r.errors.Add(1)
		return fmt.Errorf("kafka reporter: serialize event failed: %w", err)
	}
	r.pending = append(r.pending, msg)

	if ev.Kind != report.KindFrame || len(r.pending) >= r.config.BatchSize {
		return r.Flush(ctx)
	}
	return nil
}

// Flush writes the queued messages.
func (r *Reporter) Flush(ctx context.Context) error {
	if len(r.pending) == 0 {
		return nil
	}
	batch := r.pending
	r.pending = r.pending[:0:0]

	if err := r.writer.WriteMessages(ctx, batch...); err != nil {
		r.errors.Add(uint64(len(batch)))
		return fmt.Errorf("kafka write failed: %w", err)
	}
	r.reported.Add(uint64(len(batch)))
	return nil
}

// message keys frame events by stream so one stream stays on one partition.
func message(ev *report.Event) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}

	key := string(ev.Kind)
	if ev.Kind == report.KindFrame && ev.Frame != nil {
		key = string(ev.Frame.Stream)
	}
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  ts,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(ev.Kind)},
		},
	}, nil
}

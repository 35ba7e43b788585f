// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/frer/internal/core"
)

// GlobalConfig is the top-level configuration. It maps to the `frer:` root
// key in YAML.
type GlobalConfig struct {
	Log       LogConfig        `mapstructure:"log"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Analyzer  AnalyzerConfig   `mapstructure:"analyzer"`
	Sender    SenderConfig     `mapstructure:"sender"`
	Reporters []ReporterConfig `mapstructure:"reporters"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string           `mapstructure:"level"`       // trace / debug / info / warn / error
	Pattern    string           `mapstructure:"pattern"`     // %time %level %field %msg %caller
	TimeFormat string           `mapstructure:"time_format"` // Go reference layout
	File       FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures the rotating log file.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Analyzer ───

// AnalyzerConfig configures capture and duplicate elimination.
type AnalyzerConfig struct {
	Interfaces              []string `mapstructure:"interfaces"`
	BPFFilter               string   `mapstructure:"bpf_filter"`
	SnapLen                 int      `mapstructure:"snap_len"`
	RingSizeMB              int      `mapstructure:"ring_size_mb"`
	StreamKey               string   `mapstructure:"stream_key"` // single / vlan / src-mac / flow
	HistoryLimit            int      `mapstructure:"history_limit"`
	ReportEvery             int      `mapstructure:"report_every"`
	ExpectedCopies          int      `mapstructure:"expected_copies"`
	RejectMalformedReserved bool     `mapstructure:"reject_malformed_reserved"`
	BufferSize              int      `mapstructure:"buffer_size"`
}

// ─── Sender ───

// SenderConfig configures frame generation.
type SenderConfig struct {
	Interfaces    []string      `mapstructure:"interfaces"`
	SrcMAC        string        `mapstructure:"src_mac"`
	DstMAC        string        `mapstructure:"dst_mac"`
	VLANID        int           `mapstructure:"vlan_id"`
	Priority      int           `mapstructure:"priority"`
	NextProtocol  int           `mapstructure:"next_protocol"`
	SrcIP         string        `mapstructure:"src_ip"`
	DstIP         string        `mapstructure:"dst_ip"`
	SrcPort       int           `mapstructure:"src_port"`
	DstPort       int           `mapstructure:"dst_port"`
	PayloadSize   int           `mapstructure:"payload_size"`
	Copies        int           `mapstructure:"copies"`
	DuplicateGap  time.Duration `mapstructure:"duplicate_gap"`
	ScenarioPause time.Duration `mapstructure:"scenario_pause"`
}

// ─── Reporters ───

// ReporterConfig selects a reporter and carries its own settings, decoded by
// the reporter itself.
type ReporterConfig struct {
	Name   string         `mapstructure:"name"`
	Config map[string]any `mapstructure:"config"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `frer: ...`.
type configRoot struct {
	Frer GlobalConfig `mapstructure:"frer"`
}

// Load loads configuration from path. An empty path yields the defaults.
// Env vars override file values through the key replacer, e.g. key
// "frer.analyzer.stream_key" is read from FRER_ANALYZER_STREAM_KEY.
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Frer

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values. All keys use the "frer." prefix to match
// the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("frer.log.level", "info")
	v.SetDefault("frer.log.pattern", "%time [%level] %field %msg")
	v.SetDefault("frer.log.time_format", "2006-01-02 15:04:05.000")
	v.SetDefault("frer.log.file.enabled", false)
	v.SetDefault("frer.log.file.path", "/var/log/frer/frer.log")
	v.SetDefault("frer.log.file.rotation.max_size_mb", 100)
	v.SetDefault("frer.log.file.rotation.max_age_days", 30)
	v.SetDefault("frer.log.file.rotation.max_backups", 5)
	v.SetDefault("frer.log.file.rotation.compress", true)

	v.SetDefault("frer.metrics.enabled", false)
	v.SetDefault("frer.metrics.listen", ":9091")
	v.SetDefault("frer.metrics.path", "/metrics")

	v.SetDefault("frer.analyzer.interfaces", []string{"enp2s0"})
	v.SetDefault("frer.analyzer.bpf_filter", "")
	v.SetDefault("frer.analyzer.snap_len", 65535)
	v.SetDefault("frer.analyzer.ring_size_mb", 8)
	v.SetDefault("frer.analyzer.stream_key", "single")
	v.SetDefault("frer.analyzer.history_limit", 0)
	v.SetDefault("frer.analyzer.report_every", 10)
	v.SetDefault("frer.analyzer.expected_copies", 2)
	v.SetDefault("frer.analyzer.reject_malformed_reserved", false)
	v.SetDefault("frer.analyzer.buffer_size", 1024)

	v.SetDefault("frer.sender.interfaces", []string{"enp2s0", "enp11s0"})
	v.SetDefault("frer.sender.src_mac", "02:00:00:00:00:01")
	v.SetDefault("frer.sender.dst_mac", "ff:ff:ff:ff:ff:ff")
	v.SetDefault("frer.sender.vlan_id", 100)
	v.SetDefault("frer.sender.priority", 3)
	v.SetDefault("frer.sender.next_protocol", 0x0800)
	v.SetDefault("frer.sender.src_ip", "192.168.100.1")
	v.SetDefault("frer.sender.dst_ip", "192.168.100.2")
	v.SetDefault("frer.sender.src_port", 12345)
	v.SetDefault("frer.sender.dst_port", 54321)
	v.SetDefault("frer.sender.payload_size", 64)
	v.SetDefault("frer.sender.copies", 2)
	v.SetDefault("frer.sender.duplicate_gap", "1ms")
	v.SetDefault("frer.sender.scenario_pause", "2s")
}

// StreamKeys lists the accepted analyzer.stream_key values.
var StreamKeys = []string{"single", "vlan", "src-mac", "flow"}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !validLevels[cfg.Log.Level] {
		return invalid("invalid log level: %s (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return invalid("log.file.path is required when log.file.enabled=true")
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			return invalid("invalid metrics.listen %q: %v", cfg.Metrics.Listen, err)
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return invalid("metrics.path must start with '/', got %q", cfg.Metrics.Path)
		}
	}

	// ── Analyzer ──
	a := &cfg.Analyzer
	a.StreamKey = strings.ToLower(a.StreamKey)
	if !validStreamKey(a.StreamKey) {
		return invalid("invalid analyzer.stream_key: %s (must be one of %s)", a.StreamKey, strings.Join(StreamKeys, "/"))
	}
	if a.HistoryLimit < 0 || a.HistoryLimit > 1<<16 {
		return invalid("analyzer.history_limit must be within [0, 65536], got %d", a.HistoryLimit)
	}
	if a.ReportEvery < 0 {
		return invalid("analyzer.report_every must not be negative, got %d", a.ReportEvery)
	}
	if a.ExpectedCopies < 1 {
		return invalid("analyzer.expected_copies must be at least 1, got %d", a.ExpectedCopies)
	}
	if a.BufferSize <= 0 {
		a.BufferSize = 1024
	}

	// ── Sender ──
	s := &cfg.Sender
	if s.SrcMAC != "" {
		if _, err := net.ParseMAC(s.SrcMAC); err != nil {
			return invalid("invalid sender.src_mac: %v", err)
		}
	}
	if _, err := net.ParseMAC(s.DstMAC); err != nil {
		return invalid("invalid sender.dst_mac: %v", err)
	}
	if s.VLANID < 0 || s.VLANID > 4095 {
		return invalid("sender.vlan_id must be within [0, 4095], got %d", s.VLANID)
	}
	if s.Priority < 0 || s.Priority > 7 {
		return invalid("sender.priority must be within [0, 7], got %d", s.Priority)
	}
	if s.NextProtocol < 0 || s.NextProtocol > 0xFFFF {
		return invalid("sender.next_protocol must fit in 16 bits, got %d", s.NextProtocol)
	}
	for _, ip := range []string{s.SrcIP, s.DstIP} {
		addr, err := netip.ParseAddr(ip)
		if err != nil || !addr.Is4() {
			return invalid("sender addresses must be IPv4, got %q", ip)
		}
	}
	for _, port := range []int{s.SrcPort, s.DstPort} {
		if port < 0 || port > 0xFFFF {
			return invalid("sender ports must fit in 16 bits, got %d", port)
		}
	}
	if s.Copies < 1 {
		return invalid("sender.copies must be at least 1, got %d", s.Copies)
	}
	if s.PayloadSize < 0 {
		return invalid("sender.payload_size must not be negative, got %d", s.PayloadSize)
	}
	if s.DuplicateGap < 0 || s.ScenarioPause < 0 {
		return invalid("sender durations must not be negative")
	}

	// ── Reporters ──
	for i, r := range cfg.Reporters {
		if r.Name == "" {
			return invalid("reporters[%d].name is required", i)
		}
	}
	return nil
}

func validStreamKey(key string) bool {
	for _, k := range StreamKeys {
		if k == key {
			return true
		}
	}
	return false
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrConfigInvalid, fmt.Sprintf(format, args...))
}

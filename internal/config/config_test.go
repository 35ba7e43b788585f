package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"firestige.xyz/frer/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frer.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Expected log level info, got %s", cfg.Log.Level)
	}
	if cfg.Analyzer.BPFFilter != "" {
		t.Errorf("Expected empty BPF filter, got %q", cfg.Analyzer.BPFFilter)
	}
	if cfg.Analyzer.StreamKey != "single" {
		t.Errorf("Expected stream key single, got %s", cfg.Analyzer.StreamKey)
	}
	if cfg.Analyzer.ReportEvery != 10 || cfg.Analyzer.ExpectedCopies != 2 {
		t.Errorf("Expected report_every 10 and expected_copies 2, got %d/%d",
			cfg.Analyzer.ReportEvery, cfg.Analyzer.ExpectedCopies)
	}
	if cfg.Analyzer.HistoryLimit != 0 {
		t.Errorf("Expected unbounded history, got %d", cfg.Analyzer.HistoryLimit)
	}
	if cfg.Sender.VLANID != 100 || cfg.Sender.Priority != 3 {
		t.Errorf("Expected VLAN 100 priority 3, got %d/%d", cfg.Sender.VLANID, cfg.Sender.Priority)
	}
	if cfg.Sender.DuplicateGap != time.Millisecond {
		t.Errorf("Expected duplicate gap 1ms, got %v", cfg.Sender.DuplicateGap)
	}
	if cfg.Sender.NextProtocol != 0x0800 {
		t.Errorf("Expected next protocol 0x0800, got 0x%04x", cfg.Sender.NextProtocol)
	}
	if len(cfg.Sender.Interfaces) != 2 {
		t.Errorf("Expected two sender interfaces, got %v", cfg.Sender.Interfaces)
	}
	if cfg.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
frer:
  log:
    level: "DEBUG"
  metrics:
    enabled: true
    listen: "127.0.0.1:9100"
    path: "/metrics"
  analyzer:
    interfaces: ["eth1", "eth2"]
    stream_key: "flow"
    history_limit: 4096
    reject_malformed_reserved: true
  sender:
    duplicate_gap: "5ms"
    copies: 3
  reporters:
    - name: console
      config:
        format: json
    - name: summary
      config:
        path: /tmp/frer-summary.yaml
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Log.Level)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Listen != "127.0.0.1:9100" {
		t.Errorf("Unexpected metrics config: %+v", cfg.Metrics)
	}
	if len(cfg.Analyzer.Interfaces) != 2 || cfg.Analyzer.Interfaces[1] != "eth2" {
		t.Errorf("Expected interfaces [eth1 eth2], got %v", cfg.Analyzer.Interfaces)
	}
	if cfg.Analyzer.StreamKey != "flow" || cfg.Analyzer.HistoryLimit != 4096 {
		t.Errorf("Unexpected analyzer config: %+v", cfg.Analyzer)
	}
	if !cfg.Analyzer.RejectMalformedReserved {
		t.Error("Expected reject_malformed_reserved true")
	}
	if cfg.Analyzer.ReportEvery != 10 {
		t.Errorf("Expected default report_every 10, got %d", cfg.Analyzer.ReportEvery)
	}
	if cfg.Sender.DuplicateGap != 5*time.Millisecond || cfg.Sender.Copies != 3 {
		t.Errorf("Unexpected sender config: %+v", cfg.Sender)
	}
	if len(cfg.Reporters) != 2 {
		t.Fatalf("Expected 2 reporters, got %d", len(cfg.Reporters))
	}
	if cfg.Reporters[0].Name != "console" || cfg.Reporters[0].Config["format"] != "json" {
		t.Errorf("Unexpected console reporter: %+v", cfg.Reporters[0])
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FRER_ANALYZER_STREAM_KEY", "vlan")
	t.Setenv("FRER_SENDER_COPIES", "4")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Analyzer.StreamKey != "vlan" {
		t.Errorf("Expected env stream key vlan, got %s", cfg.Analyzer.StreamKey)
	}
	if cfg.Sender.Copies != 4 {
		t.Errorf("Expected env copies 4, got %d", cfg.Sender.Copies)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"log level", "frer:\n  log:\n    level: loud\n"},
		{"stream key", "frer:\n  analyzer:\n    stream_key: port\n"},
		{"history limit", "frer:\n  analyzer:\n    history_limit: 70000\n"},
		{"expected copies", "frer:\n  analyzer:\n    expected_copies: 0\n"},
		{"vlan", "frer:\n  sender:\n    vlan_id: 5000\n"},
		{"priority", "frer:\n  sender:\n    priority: 9\n"},
		{"dst mac", "frer:\n  sender:\n    dst_mac: nope\n"},
		{"ipv6 source", "frer:\n  sender:\n    src_ip: \"::1\"\n"},
		{"copies", "frer:\n  sender:\n    copies: 0\n"},
		{"metrics listen", "frer:\n  metrics:\n    enabled: true\n    listen: nope\n"},
		{"reporter name", "frer:\n  reporters:\n    - config: {}\n"},
		{"log file path", "frer:\n  log:\n    file:\n      enabled: true\n      path: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !errors.Is(err, core.ErrConfigInvalid) {
				t.Errorf("Expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestLoadShippedExample(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "frer.yml"))
	if err != nil {
		t.Fatalf("Failed to load configs/frer.yml: %v", err)
	}
	if cfg.Sender.NextProtocol != 0x0800 {
		t.Errorf("Expected next protocol 0x0800, got 0x%04x", cfg.Sender.NextProtocol)
	}
	if cfg.Sender.ScenarioPause != 2*time.Second {
		t.Errorf("Expected scenario pause 2s, got %v", cfg.Sender.ScenarioPause)
	}
	if len(cfg.Reporters) != 2 || cfg.Reporters[1].Name != "summary" {
		t.Errorf("Expected console and summary reporters, got %+v", cfg.Reporters)
	}
}

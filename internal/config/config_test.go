package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.yaml", `
logging:
  level: DEBUG
  console: true
tick:
  rate: 25ms
scheduler:
  seed: 42
sim:
  agents: 100
  cadences: [1, 2, 4]
  late_share: 0.25
storage:
  driver: sqlite
  path: ./data/tickd.db
reporter:
  enabled: true
  spec: "@every 30s"
`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Tick.Rate != "25ms" {
		t.Fatalf("tick.rate = %q", cfg.Tick.Rate)
	}
	if cfg.Scheduler.Seed != 42 {
		t.Fatalf("scheduler.seed = %d", cfg.Scheduler.Seed)
	}
	if cfg.Sim.Agents != 100 || len(cfg.Sim.Cadences) != 3 {
		t.Fatalf("sim = %+v", cfg.Sim)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if !cfg.Reporter.Enabled || cfg.Reporter.Spec != "@every 30s" {
		t.Fatalf("reporter = %+v", cfg.Reporter)
	}
	if !cfg.SimEnabled() {
		t.Fatal("omitted sim.enabled should default to true")
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get should return the committed snapshot")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.yaml", `
logging:
  console: true
frobnicator: 7
`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.json", `{"logging":{"console":true},"sim":{"enabled":false}}`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.SimEnabled() {
		t.Fatal("explicit sim.enabled=false should win")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("tick.rate", "", 50*time.Millisecond)
	if err != nil || d != 50*time.Millisecond {
		t.Fatalf("default: d=%v err=%v", d, err)
	}
	d, err = ParseDurationField("tick.rate", "25ms")
	if err != nil || d != 25*time.Millisecond {
		t.Fatalf("parse: d=%v err=%v", d, err)
	}
	if _, err := ParseDurationField("tick.rate", "bogus"); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Tick: TickConfig{Rate: "50ms"}}
	newCfg := &Config{
		Tick:     TickConfig{Rate: "25ms"},
		Reporter: ReporterConfig{Enabled: true, Spec: "@every 1m"},
	}
	changed, _ := SummarizeChange(oldCfg, newCfg)
	want := map[string]bool{"tick": true, "reporter": true}
	if len(changed) != len(want) {
		t.Fatalf("changed = %v, want sections %v", changed, want)
	}
	for _, section := range changed {
		if !want[section] {
			t.Fatalf("unexpected changed section %q (full: %v)", section, changed)
		}
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"procpool/internal/chaos"
	"procpool/internal/logger"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return path
}

func TestLoadFileYAML(t *testing.T) {
	content := `
dispatcher:
  workers: 5
  mode: goroutine
  compute_delay: 250ms
  seed: 99
chaos:
  enabled: true
  attack_types:
    - fragment
    - interrupt
  max_fragment: 2
  interrupt_rate: 0.5
server:
  metrics_addr: ":9100"
log:
  level: debug
events:
  path: events.jsonl
`
	cfg, err := LoadFile(writeTemp(t, "config.yaml", content))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Dispatcher.Workers != 5 {
		t.Errorf("expected workers 5, got %d", cfg.Dispatcher.Workers)
	}
	if cfg.Mode() != ModeGoroutine {
		t.Errorf("expected mode goroutine, got %s", cfg.Mode())
	}
	if !cfg.Chaos.Enabled {
		t.Error("expected chaos to be enabled")
	}
	if cfg.Server.MetricsAddr != ":9100" {
		t.Errorf("expected metrics_addr ':9100', got '%s'", cfg.Server.MetricsAddr)
	}
	if cfg.Events.Path != "events.jsonl" {
		t.Errorf("expected events path 'events.jsonl', got '%s'", cfg.Events.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestLoadFileJSON(t *testing.T) {
	content := `{
  "dispatcher": {
    "workers": 2,
    "compute_delay": "1s"
  },
  "log": {"level": "warn"}
}`
	cfg, err := LoadFile(writeTemp(t, "config.json", content))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Dispatcher.Workers != 2 {
		t.Errorf("expected workers 2, got %d", cfg.Dispatcher.Workers)
	}
	if cfg.Mode() != ModeProcess {
		t.Errorf("expected default mode process, got %s", cfg.Mode())
	}
	level, err := cfg.LogLevel()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if level != logger.LevelWarn {
		t.Errorf("expected WARN, got %v", level)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFile("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFileUnsupportedFormat(t *testing.T) {
	_, err := LoadFile(writeTemp(t, "config.toml", "workers = 3"))
	if err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	_, err := LoadFile(writeTemp(t, "config.yaml", "dispatcher: [unclosed"))
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestToEngineConfig(t *testing.T) {
	cfg := &FileConfig{
		Dispatcher: DispatcherConfig{
			Workers:      4,
			ComputeDelay: "100ms",
			Seed:         7,
		},
		Chaos: ChaosConfig{
			Enabled:       true,
			AttackTypes:   []string{"interrupt"},
			MaxFragment:   8,
			InterruptRate: 0.1,
		},
	}

	config, err := cfg.ToEngineConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}

	if config.Workers != 4 {
		t.Errorf("expected workers 4, got %d", config.Workers)
	}
	if config.ComputeDelay != 100*time.Millisecond {
		t.Errorf("expected compute delay 100ms, got %v", config.ComputeDelay)
	}
	if config.Seed != 7 {
		t.Errorf("expected seed 7, got %d", config.Seed)
	}
	if !config.EnableChaos {
		t.Error("expected chaos to be enabled")
	}
	if len(config.Chaos.AttackTypes) != 1 || config.Chaos.AttackTypes[0] != chaos.AttackInterrupt {
		t.Errorf("expected [interrupt], got %v", config.Chaos.AttackTypes)
	}
	if config.Chaos.MaxFragment != 8 {
		t.Errorf("expected max fragment 8, got %d", config.Chaos.MaxFragment)
	}
	if config.Chaos.InterruptRate != 0.1 {
		t.Errorf("expected interrupt rate 0.1, got %v", config.Chaos.InterruptRate)
	}
}

func TestToEngineConfigDefaults(t *testing.T) {
	cfg := &FileConfig{}

	config, err := cfg.ToEngineConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}

	if config.Workers != 3 {
		t.Errorf("expected default workers 3, got %d", config.Workers)
	}
	if config.ComputeDelay != time.Second {
		t.Errorf("expected default compute delay 1s, got %v", config.ComputeDelay)
	}
	if config.EnableChaos {
		t.Error("expected chaos to be disabled")
	}
}

func TestToEngineConfigInvalidDelay(t *testing.T) {
	cfg := &FileConfig{Dispatcher: DispatcherConfig{ComputeDelay: "soon"}}

	if _, err := cfg.ToEngineConfig(); err == nil {
		t.Error("expected error for invalid compute_delay")
	}
}

func TestToEngineConfigInvalidAttackType(t *testing.T) {
	cfg := &FileConfig{Chaos: ChaosConfig{AttackTypes: []string{"kill"}}}

	if _, err := cfg.ToEngineConfig(); err == nil {
		t.Error("expected error for unknown attack type")
	}
}

func TestParseAttackTypes(t *testing.T) {
	attacks, err := parseAttackTypes([]string{"fragment", "INTERRUPT"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attacks) != 2 {
		t.Fatalf("expected 2 attacks, got %d", len(attacks))
	}
	if attacks[0] != chaos.AttackFragment || attacks[1] != chaos.AttackInterrupt {
		t.Errorf("unexpected attacks: %v", attacks)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  FileConfig
		wantErr bool
	}{
		{"empty", FileConfig{}, false},
		{"negative workers", FileConfig{Dispatcher: DispatcherConfig{Workers: -1}}, true},
		{"unknown mode", FileConfig{Dispatcher: DispatcherConfig{Mode: "thread"}}, true},
		{"upper case mode", FileConfig{Dispatcher: DispatcherConfig{Mode: "Goroutine"}}, false},
		{"negative fragment", FileConfig{Chaos: ChaosConfig{MaxFragment: -2}}, true},
		{"interrupt rate above one", FileConfig{Chaos: ChaosConfig{InterruptRate: 1.5}}, true},
		{"interrupt rate of one", FileConfig{Chaos: ChaosConfig{InterruptRate: 1.0}}, true},
		{"interrupt rate just below one", FileConfig{Chaos: ChaosConfig{InterruptRate: 0.99}}, false},
		{"unknown log level", FileConfig{Log: LogConfig{Level: "loud"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

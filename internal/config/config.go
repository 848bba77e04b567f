package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"procpool/internal/chaos"
	"procpool/internal/dispatcher"
	"procpool/internal/logger"

	"gopkg.in/yaml.v3"
)

// 起動モード
const (
	ModeProcess   = "process"
	ModeGoroutine = "goroutine"
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Dispatcher DispatcherConfig `yaml:"dispatcher" json:"dispatcher"`
	Chaos      ChaosConfig      `yaml:"chaos" json:"chaos"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Log        LogConfig        `yaml:"log" json:"log"`
	Events     EventsConfig     `yaml:"events" json:"events"`
}

// DispatcherConfig はディスパッチャ設定
type DispatcherConfig struct {
	Workers      int    `yaml:"workers" json:"workers"`
	Mode         string `yaml:"mode" json:"mode"`
	ComputeDelay string `yaml:"compute_delay" json:"compute_delay"`
	Seed         uint64 `yaml:"seed" json:"seed"`
}

// ChaosConfig は障害注入設定
type ChaosConfig struct {
	Enabled       bool     `yaml:"enabled" json:"enabled"`
	AttackTypes   []string `yaml:"attack_types" json:"attack_types"`
	MaxFragment   int      `yaml:"max_fragment" json:"max_fragment"`
	InterruptRate float64  `yaml:"interrupt_rate" json:"interrupt_rate"`
	Seed          uint64   `yaml:"seed" json:"seed"`
}

// ServerConfig はステータスサーバー設定
type ServerConfig struct {
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// LogConfig はログ設定
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// EventsConfig はイベントログ設定
type EventsConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// Mode は起動モードを返す（未指定なら process）
func (f *FileConfig) Mode() string {
	if f.Dispatcher.Mode == "" {
		return ModeProcess
	}
	return strings.ToLower(f.Dispatcher.Mode)
}

// ToEngineConfig はFileConfigをdispatcher.Configに変換する
// タスク数とビット幅はコマンドライン引数で与えるため設定しない
func (f *FileConfig) ToEngineConfig() (dispatcher.Config, error) {
	dc := f.Dispatcher

	// デフォルト値の設定
	config := dispatcher.DefaultConfig()

	if dc.Workers > 0 {
		config.Workers = dc.Workers
	}
	if dc.ComputeDelay != "" {
		d, err := time.ParseDuration(dc.ComputeDelay)
		if err != nil {
			return config, fmt.Errorf("invalid compute_delay: %w", err)
		}
		config.ComputeDelay = d
	}
	config.Seed = dc.Seed

	// Chaos設定
	cc := f.Chaos
	config.EnableChaos = cc.Enabled
	if len(cc.AttackTypes) > 0 {
		attacks, err := parseAttackTypes(cc.AttackTypes)
		if err != nil {
			return config, err
		}
		config.Chaos.AttackTypes = attacks
	}
	if cc.MaxFragment > 0 {
		config.Chaos.MaxFragment = cc.MaxFragment
	}
	if cc.InterruptRate > 0 {
		config.Chaos.InterruptRate = cc.InterruptRate
	}
	if cc.Seed != 0 {
		config.Chaos.Seed = cc.Seed
	}

	return config, nil
}

// LogLevel はログレベルを返す（未指定なら INFO）
func (f *FileConfig) LogLevel() (logger.Level, error) {
	if f.Log.Level == "" {
		return logger.LevelInfo, nil
	}
	return logger.ParseLevel(f.Log.Level)
}

// parseAttackTypes は文字列の攻撃タイプをパースする
func parseAttackTypes(types []string) ([]chaos.AttackType, error) {
	attacks := make([]chaos.AttackType, 0, len(types))

	for _, t := range types {
		a, err := chaos.ParseAttackType(t)
		if err != nil {
			return nil, err
		}
		attacks = append(attacks, a)
	}

	return attacks, nil
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	dc := f.Dispatcher

	if dc.Workers < 0 {
		return fmt.Errorf("dispatcher.workers must be non-negative")
	}

	switch f.Mode() {
	case ModeProcess, ModeGoroutine:
	default:
		return fmt.Errorf("dispatcher.mode must be %q or %q, got %q", ModeProcess, ModeGoroutine, dc.Mode)
	}

	if f.Chaos.MaxFragment < 0 {
		return fmt.Errorf("chaos.max_fragment must be non-negative")
	}

	if f.Chaos.InterruptRate < 0 || f.Chaos.InterruptRate >= 1 {
		return fmt.Errorf("chaos.interrupt_rate must be at least 0 and less than 1")
	}

	if _, err := f.LogLevel(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string          `json:"log_level" yaml:"log_level"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Detection DetectionConfig `json:"detection" yaml:"detection"`
	Weather   WeatherConfig   `json:"weather" yaml:"weather"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Publish   PublishConfig   `json:"publish" yaml:"publish"`
	API       APIConfig       `json:"api" yaml:"api"`
}

type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

type DetectionConfig struct {
	Historical HistoricalConfig   `json:"historical_spike" yaml:"historical_spike"`
	Peer       PeerConfig         `json:"peer_comparison" yaml:"peer_comparison"`
	Absolute   AbsoluteConfig     `json:"absolute_threshold" yaml:"absolute_threshold"`
	Trend      TrendConfig        `json:"trend_increase" yaml:"trend_increase"`
	Critical   CriticalDrugConfig `json:"critical_drug" yaml:"critical_drug"`
	Sustained  SustainedConfig    `json:"sustained_high_usage" yaml:"sustained_high_usage"`
}

type HistoricalConfig struct {
	MinWeeklyEvents int     `json:"min_weekly_events" yaml:"min_weekly_events"`
	SpikeFactor     float64 `json:"spike_factor" yaml:"spike_factor"`
}

type PeerConfig struct {
	SpikeFactor float64 `json:"spike_factor" yaml:"spike_factor"`
}

type AbsoluteConfig struct {
	MonthlyEventLimit int           `json:"monthly_event_limit" yaml:"monthly_event_limit"`
	Window            time.Duration `json:"window" yaml:"window"`
}

type TrendConfig struct {
	MinIncreasePercent float64 `json:"min_increase_percent" yaml:"min_increase_percent"`
}

type CriticalDrugConfig struct {
	MaxCriticalPercent float64 `json:"max_critical_percent" yaml:"max_critical_percent"`
}

type SustainedConfig struct {
	ConsecutiveWeeks int     `json:"consecutive_weeks" yaml:"consecutive_weeks"`
	LookbackWeeks    int     `json:"lookback_weeks" yaml:"lookback_weeks"`
	BaselineWeeks    int     `json:"baseline_weeks" yaml:"baseline_weeks"`
	IntensityFactor  float64 `json:"intensity_factor" yaml:"intensity_factor"`
	MinWeeklyEvents  int     `json:"min_weekly_events" yaml:"min_weekly_events"`
}

type WeatherConfig struct {
	Enabled      bool          `json:"enabled" yaml:"enabled"`
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	APIKey       string        `json:"api_key" yaml:"api_key"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
	CallInterval time.Duration `json:"call_interval" yaml:"call_interval"`
}

type SchedulerConfig struct {
	Enabled         bool          `json:"enabled" yaml:"enabled"`
	DailyInterval   time.Duration `json:"daily_interval" yaml:"daily_interval"`
	MonthlyInterval time.Duration `json:"monthly_interval" yaml:"monthly_interval"`
	RunOnStart      bool          `json:"run_on_start" yaml:"run_on_start"`
}

type PublishConfig struct {
	Kafka KafkaConfig `json:"kafka" yaml:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Storage:  StorageConfig{Driver: "sqlite", DSN: "file:amuguard.db?_pragma=busy_timeout(5000)"},
		Detection: DetectionConfig{
			Historical: HistoricalConfig{MinWeeklyEvents: 3, SpikeFactor: 2.0},
			Peer:       PeerConfig{SpikeFactor: 1.5},
			Absolute:   AbsoluteConfig{MonthlyEventLimit: 30, Window: 30 * 24 * time.Hour},
			Trend:      TrendConfig{MinIncreasePercent: 30},
			Critical:   CriticalDrugConfig{MaxCriticalPercent: 40},
			Sustained: SustainedConfig{
				ConsecutiveWeeks: 4,
				LookbackWeeks:    8,
				BaselineWeeks:    26,
				IntensityFactor:  2.0,
				MinWeeklyEvents:  3,
			},
		},
		Weather: WeatherConfig{
			Enabled:      false,
			BaseURL:      "https://api.openweathermap.org/data/2.5",
			Timeout:      10 * time.Second,
			CallInterval: 1 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			DailyInterval:   24 * time.Hour,
			MonthlyInterval: 30 * 24 * time.Hour,
			RunOnStart:      false,
		},
		Publish: PublishConfig{Kafka: KafkaConfig{Enabled: false}},
		API:     APIConfig{Enabled: true, Addr: ":8081"},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = def.Storage.Driver
	}
	if cfg.Detection.Historical.SpikeFactor <= 0 {
		cfg.Detection.Historical.SpikeFactor = def.Detection.Historical.SpikeFactor
	}
	if cfg.Detection.Historical.MinWeeklyEvents <= 0 {
		cfg.Detection.Historical.MinWeeklyEvents = def.Detection.Historical.MinWeeklyEvents
	}
	if cfg.Detection.Peer.SpikeFactor <= 0 {
		cfg.Detection.Peer.SpikeFactor = def.Detection.Peer.SpikeFactor
	}
	if cfg.Detection.Absolute.MonthlyEventLimit <= 0 {
		cfg.Detection.Absolute.MonthlyEventLimit = def.Detection.Absolute.MonthlyEventLimit
	}
	if cfg.Detection.Absolute.Window <= 0 {
		cfg.Detection.Absolute.Window = def.Detection.Absolute.Window
	}
	if cfg.Detection.Trend.MinIncreasePercent <= 0 {
		cfg.Detection.Trend.MinIncreasePercent = def.Detection.Trend.MinIncreasePercent
	}
	if cfg.Detection.Critical.MaxCriticalPercent <= 0 {
		cfg.Detection.Critical.MaxCriticalPercent = def.Detection.Critical.MaxCriticalPercent
	}
	if cfg.Detection.Sustained.ConsecutiveWeeks <= 0 {
		cfg.Detection.Sustained.ConsecutiveWeeks = def.Detection.Sustained.ConsecutiveWeeks
	}
	if cfg.Detection.Sustained.LookbackWeeks < cfg.Detection.Sustained.ConsecutiveWeeks {
		cfg.Detection.Sustained.LookbackWeeks = cfg.Detection.Sustained.ConsecutiveWeeks * 2
	}
	if cfg.Detection.Sustained.BaselineWeeks <= 0 {
		cfg.Detection.Sustained.BaselineWeeks = def.Detection.Sustained.BaselineWeeks
	}
	if cfg.Detection.Sustained.IntensityFactor <= 0 {
		cfg.Detection.Sustained.IntensityFactor = def.Detection.Sustained.IntensityFactor
	}
	if cfg.Detection.Sustained.MinWeeklyEvents <= 0 {
		cfg.Detection.Sustained.MinWeeklyEvents = def.Detection.Sustained.MinWeeklyEvents
	}
	if cfg.Weather.BaseURL == "" {
		cfg.Weather.BaseURL = def.Weather.BaseURL
	}
	if cfg.Weather.Timeout <= 0 {
		cfg.Weather.Timeout = def.Weather.Timeout
	}
	if cfg.Weather.CallInterval <= 0 {
		cfg.Weather.CallInterval = def.Weather.CallInterval
	}
	if cfg.Scheduler.DailyInterval <= 0 {
		cfg.Scheduler.DailyInterval = def.Scheduler.DailyInterval
	}
	if cfg.Scheduler.MonthlyInterval <= 0 {
		cfg.Scheduler.MonthlyInterval = def.Scheduler.MonthlyInterval
	}
}

func Validate(cfg *Config) error {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "sqlite", "postgres", "postgresql", "memory":
	default:
		return fmt.Errorf("storage.driver %q is not supported", cfg.Storage.Driver)
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Weather.Enabled && cfg.Weather.APIKey == "" {
		return errors.New("weather.api_key required when weather.enabled is true")
	}
	if cfg.Publish.Kafka.Enabled {
		if len(cfg.Publish.Kafka.Brokers) == 0 || cfg.Publish.Kafka.Topic == "" {
			return errors.New("publish.kafka requires brokers and topic")
		}
	}
	if cfg.Detection.Critical.MaxCriticalPercent > 100 {
		return errors.New("critical_drug.max_critical_percent must be <= 100")
	}
	if cfg.Detection.Sustained.LookbackWeeks < cfg.Detection.Sustained.ConsecutiveWeeks {
		return errors.New("sustained_high_usage.lookback_weeks must cover consecutive_weeks")
	}
	return nil
}

type Manager struct {
	path string
	cfg  atomic.Value
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	return m, nil
}

func NewStaticManager(cfg *Config) *Manager {
	m := &Manager{}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	if m.path == "" {
		return m.Get(), nil
	}
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	return cfg, nil
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}

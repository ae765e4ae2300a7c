package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Simulation     SimulationConfig      `yaml:"simulation"`
	Insight        InsightConfig         `yaml:"insight"`
	Scenarios      ScenarioConfig        `yaml:"scenarios"`
	Alerts         AlertConfig           `yaml:"alerts"`
	Server         ServerConfig          `yaml:"server"`
	TeamFile       string                `yaml:"team_file"`
	RegisterExport *RegisterExportConfig `yaml:"register_export"`
	Metrics        MetricsConfig         `yaml:"metrics"`
	Logging        LoggingConfig         `yaml:"logging"`
}

// ---- SIMULATION ----

type SimulationConfig struct {
	BaseAgents     int `yaml:"base_agents"`
	TickIntervalMs int `yaml:"tick_interval_ms"`
	// SpeedFactor is accepted for compatibility with the dashboard control
	// but does not change the tick cadence or the tick math.
	SpeedFactor float64 `yaml:"speed_factor"`
	HistorySize int     `yaml:"history_size"`
	Seed        uint64  `yaml:"seed"` // 0 => time-seeded
}

// ---- INSIGHT ----

type InsightConfig struct {
	Provider          string `yaml:"provider"` // gemini | disabled
	Endpoint          string `yaml:"endpoint"`
	Model             string `yaml:"model"`
	APIKeyEnv         string `yaml:"api_key_env"`
	TimeoutMs         int    `yaml:"timeout_ms"`
	RefreshIntervalMs int    `yaml:"refresh_interval_ms"`
}

// ---- SCENARIOS ----

type ScenarioConfig struct {
	BaselineAgents int   `yaml:"baseline_agents"`
	MaxRetained    int   `yaml:"max_retained"`
	AutoGenerate   *bool `yaml:"auto_generate"`
	AutoDelta      *int  `yaml:"auto_delta"`
}

// ---- ALERTS ----

type AlertConfig struct {
	CriticalBreachProbability int `yaml:"critical_breach_probability"`
}

// ---- SERVER ----

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ---- REGISTER EXPORT (Modbus TCP, opt-in) ----

type RegisterExportConfig struct {
	Endpoint    string `yaml:"endpoint"`
	SlaveID     uint8  `yaml:"slave_id"`
	BaseAddress uint16 `yaml:"base_address"`
	TimeoutMs   int    `yaml:"timeout_ms"`
}

// ---- METRICS / LOGGING ----

type MetricsConfig struct {
	PushURL string `yaml:"push_url"`
	Job     string `yaml:"job"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | console
}

// Load reads a YAML config file. It does not validate or normalize.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// TickInterval returns the simulation cadence.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Simulation.TickIntervalMs) * time.Millisecond
}

// InsightTimeout returns the per-call insight deadline.
func (c *Config) InsightTimeout() time.Duration {
	return time.Duration(c.Insight.TimeoutMs) * time.Millisecond
}

// InsightRefreshInterval returns the periodic insight refresh cadence.
func (c *Config) InsightRefreshInterval() time.Duration {
	return time.Duration(c.Insight.RefreshIntervalMs) * time.Millisecond
}

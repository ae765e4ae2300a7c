package config

import "queue-twin/simulation"

// Defaults
const (
	DefaultBaseAgents        = 8
	DefaultHistorySize       = 20
	DefaultSpeedFactor       = 1.0
	DefaultInsightProvider   = "gemini"
	DefaultInsightEndpoint   = "https://generativelanguage.googleapis.com"
	DefaultInsightModel      = "gemini-3-flash-preview"
	DefaultAPIKeyEnv         = "GEMINI_API_KEY"
	DefaultInsightTimeoutMs  = 15000
	DefaultInsightRefreshMs  = 30000
	DefaultMaxScenarios      = 5
	DefaultAutoDelta         = 2
	DefaultCriticalThreshold = 70
	DefaultServerAddr        = ":8080"
	DefaultRegisterTimeoutMs = 1000
	DefaultMetricsJob        = "queue_twin"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "console"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}

// Normalize fills unset fields with defaults.
// It is allowed to mutate configuration.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	s := &cfg.Simulation
	if s.BaseAgents == 0 {
		s.BaseAgents = DefaultBaseAgents
	}
	if s.TickIntervalMs == 0 {
		s.TickIntervalMs = int(simulation.DefaultTickInterval.Milliseconds())
	}
	if s.SpeedFactor == 0 {
		s.SpeedFactor = DefaultSpeedFactor
	}
	if s.HistorySize == 0 {
		s.HistorySize = DefaultHistorySize
	}

	in := &cfg.Insight
	if in.Provider == "" {
		in.Provider = DefaultInsightProvider
	}
	if in.Endpoint == "" {
		in.Endpoint = DefaultInsightEndpoint
	}
	if in.Model == "" {
		in.Model = DefaultInsightModel
	}
	if in.APIKeyEnv == "" {
		in.APIKeyEnv = DefaultAPIKeyEnv
	}
	if in.TimeoutMs == 0 {
		in.TimeoutMs = DefaultInsightTimeoutMs
	}
	if in.RefreshIntervalMs == 0 {
		in.RefreshIntervalMs = DefaultInsightRefreshMs
	}

	sc := &cfg.Scenarios
	if sc.BaselineAgents == 0 {
		sc.BaselineAgents = s.BaseAgents
	}
	if sc.MaxRetained == 0 {
		sc.MaxRetained = DefaultMaxScenarios
	}
	if sc.AutoGenerate == nil {
		on := true
		sc.AutoGenerate = &on
	}
	if sc.AutoDelta == nil {
		delta := DefaultAutoDelta
		sc.AutoDelta = &delta
	}

	if cfg.Alerts.CriticalBreachProbability == 0 {
		cfg.Alerts.CriticalBreachProbability = DefaultCriticalThreshold
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if re := cfg.RegisterExport; re != nil && re.TimeoutMs == 0 {
		re.TimeoutMs = DefaultRegisterTimeoutMs
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = DefaultMetricsJob
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
}

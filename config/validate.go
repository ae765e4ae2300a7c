package config

import (
	"fmt"

	customerrors "queue-twin/errors"
)

// Validate checks configuration correctness.
// It performs declarative validation only and MUST NOT mutate configuration.
// Call it after Normalize so defaults are in place.
func Validate(cfg *Config) error {
	if cfg == nil {
		return customerrors.ErrInvalidConfig
	}

	invalid := func(field, format string, args ...any) error {
		return &customerrors.ConfigError{
			Field: field,
			Err:   fmt.Errorf("%w: %s", customerrors.ErrInvalidConfig, fmt.Sprintf(format, args...)),
		}
	}

	s := cfg.Simulation
	if s.BaseAgents < 1 {
		return &customerrors.ConfigError{Field: "simulation.base_agents", Err: customerrors.ErrInvalidAgentCount}
	}
	if s.TickIntervalMs <= 0 {
		return invalid("simulation.tick_interval_ms", "must be > 0 (got %d)", s.TickIntervalMs)
	}
	if s.SpeedFactor < 0.1 || s.SpeedFactor > 5 {
		return invalid("simulation.speed_factor", "must be between 0.1 and 5 (got %g)", s.SpeedFactor)
	}
	if s.HistorySize < 1 {
		return invalid("simulation.history_size", "must be >= 1 (got %d)", s.HistorySize)
	}

	in := cfg.Insight
	switch in.Provider {
	case "gemini":
		if in.Endpoint == "" {
			return invalid("insight.endpoint", "required for gemini provider")
		}
		if in.Model == "" {
			return invalid("insight.model", "required for gemini provider")
		}
	case "disabled":
	default:
		return invalid("insight.provider", "must be one of: gemini, disabled (got %q)", in.Provider)
	}
	if in.TimeoutMs <= 0 {
		return invalid("insight.timeout_ms", "must be > 0 (got %d)", in.TimeoutMs)
	}
	if in.RefreshIntervalMs <= 0 {
		return invalid("insight.refresh_interval_ms", "must be > 0 (got %d)", in.RefreshIntervalMs)
	}

	sc := cfg.Scenarios
	if sc.BaselineAgents < 1 {
		return &customerrors.ConfigError{Field: "scenarios.baseline_agents", Err: customerrors.ErrInvalidAgentCount}
	}
	if sc.MaxRetained < 1 {
		return invalid("scenarios.max_retained", "must be >= 1 (got %d)", sc.MaxRetained)
	}
	if sc.AutoDelta == nil {
		return invalid("scenarios.auto_delta", "must be set")
	}
	if *sc.AutoDelta < 1 {
		return invalid("scenarios.auto_delta", "must be >= 1 (got %d)", *sc.AutoDelta)
	}

	if t := cfg.Alerts.CriticalBreachProbability; t < 1 || t > 100 {
		return invalid("alerts.critical_breach_probability", "must be between 1 and 100 (got %d)", t)
	}

	if re := cfg.RegisterExport; re != nil {
		if re.Endpoint == "" {
			return invalid("register_export.endpoint", "required when register export is configured")
		}
		if re.TimeoutMs <= 0 {
			return invalid("register_export.timeout_ms", "must be > 0 (got %d)", re.TimeoutMs)
		}
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logging.level", "must be one of: debug, info, warn, error (got %q)", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "console":
	default:
		return invalid("logging.format", "must be one of: json, console (got %q)", cfg.Logging.Format)
	}

	return nil
}

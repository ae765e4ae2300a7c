package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"queue-twin/alerts"
	"queue-twin/config"
	"queue-twin/dashboard"
	"queue-twin/history"
	"queue-twin/insight"
	"queue-twin/metrics"
	"queue-twin/models"
	"queue-twin/registers"
	"queue-twin/scenario"
	"queue-twin/server"
	"queue-twin/simulation"
	"queue-twin/team"

	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog"
)

func main() {
	// Define flags
	configPath := flag.String("config", "", "YAML config file (optional)")
	addr := flag.String("addr", "", "HTTP listen address (overrides server.addr)")
	agents := flag.Int("agents", 0, "Initial agent count (overrides simulation.base_agents)")
	teamFile := flag.String("team", "", "Team roster CSV (overrides team_file)")
	tui := flag.Bool("tui", false, "Show the terminal dashboard")
	pushGateway := flag.String("push-url", "", "Pushgateway URL to push metrics to on exit (e.g., http://localhost:9091)")
	logLevel := flag.String("log-level", "", "Log level: debug|info|warn|error")
	logFile := flag.String("log-file", "", "Write logs to this file instead of stderr")

	// Parse command-line flags
	flag.Parse()

	cfg := &config.Config{}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Flags win over the file
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *agents != 0 {
		cfg.Simulation.BaseAgents = *agents
	}
	if *teamFile != "" {
		cfg.TeamFile = *teamFile
	}
	if *pushGateway != "" {
		cfg.Metrics.PushURL = *pushGateway
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	config.Normalize(cfg)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := newLogger(cfg.Logging, *logFile, *tui)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *tui, logger); err != nil {
		logger.Error().Err(err).Msg("exiting")
		pushMetrics(cfg.Metrics, logger)
		closeLog()
		os.Exit(1)
	}
	pushMetrics(cfg.Metrics, logger)
}

func run(ctx context.Context, cfg *config.Config, tui bool, logger zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Simulation.SpeedFactor != config.DefaultSpeedFactor {
		logger.Info().
			Float64("speed_factor", cfg.Simulation.SpeedFactor).
			Msg("speed factor recorded; tick cadence is unchanged")
	}

	// Core
	sim := simulation.NewSimulator(simulation.NewSource(cfg.Simulation.Seed), nil)
	engine, err := simulation.NewEngine(sim, cfg.TickInterval(), logger)
	if err != nil {
		return err
	}
	recorder := history.NewRecorder(cfg.Simulation.HistorySize)
	engine.OnUpdate(recorder.Record)

	// Insight
	provider, err := newProvider(ctx, cfg.Insight, logger)
	if err != nil {
		return err
	}
	insights := insight.NewService(provider, cfg.InsightTimeout(), logger)

	// Scenarios
	planner, err := scenario.NewPlanner(
		cfg.Scenarios.BaselineAgents,
		scenario.NewStore(cfg.Scenarios.MaxRetained),
		insights,
		logger,
	)
	if err != nil {
		return err
	}

	// Alerts
	monitor := alerts.NewMonitor(cfg.Alerts.CriticalBreachProbability, logger)
	if *cfg.Scenarios.AutoGenerate {
		monitor.OnAlert(planner.AutoGenerate(ctx, *cfg.Scenarios.AutoDelta))
	}
	engine.OnUpdate(func(s models.QueueSnapshot) { monitor.Observe(s) })

	// Team
	roster, err := team.Load(cfg.TeamFile)
	if err != nil {
		return fmt.Errorf("load team: %w", err)
	}

	// HTTP + websocket
	srv, err := server.New(cfg.Server.Addr, server.Deps{
		Simulation: engine,
		History:    recorder,
		Insights:   insights,
		Scenarios:  planner,
		Alerts:     monitor,
		Team:       roster,
		Gatherer:   metrics.Registry,
	}, logger)
	if err != nil {
		return err
	}
	engine.OnUpdate(srv.Broadcast)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	goRun := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				errs <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	// Register export (opt-in)
	if re := cfg.RegisterExport; re != nil {
		client, err := registers.NewTCPClient(registers.Config{
			Endpoint: re.Endpoint,
			Timeout:  time.Duration(re.TimeoutMs) * time.Millisecond,
		})
		if err != nil {
			return err
		}
		defer client.Close()

		exporter, err := registers.NewExporter(client, re.SlaveID, re.BaseAddress, monitor.Critical, logger)
		if err != nil {
			return err
		}
		updates, unsubscribe := engine.Subscribe("registers", 4)
		defer unsubscribe()
		goRun("registers", func(ctx context.Context) error { return exporter.Run(ctx, updates) })
	}

	var (
		tuiUpdates     <-chan models.QueueSnapshot
		tuiUnsubscribe = func() {}
	)
	if tui {
		tuiUpdates, tuiUnsubscribe = engine.Subscribe("dashboard", 4)
	}
	defer tuiUnsubscribe()

	if _, err := engine.Initialize(cfg.Simulation.BaseAgents); err != nil {
		return err
	}

	goRun("engine", engine.Run)
	goRun("server", srv.Run)
	goRun("insight", func(ctx context.Context) error {
		return insights.Run(ctx, cfg.InsightRefreshInterval(), engine.Current)
	})

	if tui {
		err := dashboard.Run(ctx, dashboard.Deps{
			Simulation: engine,
			Insights:   insights,
			Scenarios:  planner,
			History:    recorder,
			Alerts:     monitor,
			Updates:    tuiUpdates,
		})
		if err != nil {
			errs <- err
		}
		cancel()
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	wg.Wait()
	close(errs)

	return <-errs
}

func newProvider(ctx context.Context, cfg config.InsightConfig, logger zerolog.Logger) (insight.Provider, error) {
	if cfg.Provider != "gemini" {
		logger.Info().Msg("insight provider disabled")
		return insight.Disabled{}, nil
	}

	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		logger.Warn().Str("env", cfg.APIKeyEnv).Msg("insight API key not set; insights disabled")
		return insight.Disabled{}, nil
	}

	return insight.NewGeminiClient(ctx, insight.GeminiConfig{
		Endpoint: cfg.Endpoint,
		Model:    cfg.Model,
		APIKey:   key,
	})
}

func newLogger(cfg config.LoggingConfig, path string, tui bool) (zerolog.Logger, func(), error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var (
		out     io.Writer = os.Stderr
		closeFn           = func() {}
	)
	switch {
	case path != "":
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), closeFn, err
		}
		var once sync.Once
		out, closeFn = f, func() { once.Do(func() { f.Close() }) }
	case tui:
		// The dashboard owns the terminal.
		return zerolog.Nop(), closeFn, nil
	}

	if cfg.Format == "console" && path == "" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Str("service", "queue-twin").Logger()
	return logger, closeFn, nil
}

func pushMetrics(cfg config.MetricsConfig, logger zerolog.Logger) {
	if cfg.PushURL == "" {
		return
	}
	if err := push.New(cfg.PushURL, cfg.Job).Gatherer(metrics.Registry).Push(); err != nil {
		logger.Error().Err(err).Str("url", cfg.PushURL).Msg("push to Pushgateway failed")
		return
	}
	logger.Info().Str("url", cfg.PushURL).Msg("metrics pushed to Pushgateway")
}

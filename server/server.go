package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	customerrors "queue-twin/errors"
	"queue-twin/formatter"
	"queue-twin/metrics"
	"queue-twin/models"
	"queue-twin/scenario"
	"queue-twin/team"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Simulation is the engine surface the API drives.
type Simulation interface {
	Current() (models.QueueSnapshot, bool)
	AgentCount() int
	SetAgentCount(n int) error
}

// History exposes the rolling snapshot window.
type History interface {
	Snapshots() []models.QueueSnapshot
	Forecast() []models.ForecastPoint
}

// Insights exposes the narrative summary service.
type Insights interface {
	Latest() (models.Insight, bool)
	InFlight() bool
	TriggerRefresh(snapshot models.QueueSnapshot) bool
}

// Scenarios runs and lists what-if scenarios.
type Scenarios interface {
	Run(ctx context.Context, snapshot models.QueueSnapshot, target int, focus models.PriorityFocus, trigger string) (models.Scenario, error)
	List() []models.Scenario
	Baseline() int
}

// Criticality classifies snapshots against the alert threshold.
type Criticality interface {
	Critical(s models.QueueSnapshot) bool
	Threshold() int
}

// Roster is the read-only team view.
type Roster interface {
	Members() []models.TeamMember
	Summary() team.Summary
}

// Deps are the collaborators the server reads from and drives.
type Deps struct {
	Simulation Simulation
	History    History
	Insights   Insights
	Scenarios  Scenarios
	Alerts     Criticality
	Team       Roster
	Gatherer   prometheus.Gatherer
}

// Server is the HTTP and websocket front of the queue twin.
type Server struct {
	addr string
	deps Deps
	log  zerolog.Logger
	hub  *wsHub
}

// New builds a server listening on addr.
func New(addr string, deps Deps, logger zerolog.Logger) (*Server, error) {
	if deps.Simulation == nil || deps.History == nil || deps.Insights == nil ||
		deps.Scenarios == nil || deps.Alerts == nil || deps.Team == nil {
		return nil, errors.New("server: missing dependency")
	}
	if deps.Gatherer == nil {
		deps.Gatherer = metrics.Registry
	}
	log := logger.With().Str("component", "server").Logger()
	return &Server{
		addr: addr,
		deps: deps,
		log:  log,
		hub:  newHub(log),
	}, nil
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHandlers(mux)
	return mux
}

func (s *Server) registerHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/forecast", s.handleForecast)
	mux.HandleFunc("GET /api/agents", s.handleGetAgents)
	mux.HandleFunc("PUT /api/agents", s.handleSetAgents)
	mux.HandleFunc("GET /api/insight", s.handleInsight)
	mux.HandleFunc("POST /api/insight/refresh", s.handleInsightRefresh)
	mux.HandleFunc("GET /api/scenarios", s.handleListScenarios)
	mux.HandleFunc("POST /api/scenarios", s.handleRunScenario)
	mux.HandleFunc("GET /api/team", s.handleTeam)
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		s.hub.handle(s.deps.Simulation, w, r)
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
}

// Broadcast pushes a snapshot to websocket clients. It never blocks and is
// meant to be registered as an engine observer.
func (s *Server) Broadcast(snap models.QueueSnapshot) {
	data, err := json.Marshal(s.snapshotBody(snap))
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal snapshot frame")
		return
	}
	s.hub.publish(data)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run over an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	defer s.Close()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info().Msg("http server stopped")
	return nil
}

// Close disconnects websocket clients. Serve calls it on exit.
func (s *Server) Close() {
	s.hub.close()
}

// ---- responses ----

type snapshotResponse struct {
	Snapshot  models.QueueSnapshot `json:"snapshot"`
	Critical  bool                 `json:"critical"`
	Threshold int                  `json:"threshold"`
}

type agentsRequest struct {
	AgentCount *int `json:"agentCount"`
}

type agentsResponse struct {
	AgentCount int    `json:"agentCount"`
	Applied    int    `json:"applied"`
	Effective  string `json:"effective"`
}

type insightResponse struct {
	Insight  models.Insight `json:"insight"`
	InFlight bool           `json:"inFlight"`
}

type scenarioRequest struct {
	TargetAgents  *int                 `json:"targetAgents"`
	PriorityFocus models.PriorityFocus `json:"priorityFocus"`
}

type teamResponse struct {
	Members []models.TeamMember `json:"members"`
	Summary team.Summary        `json:"summary"`
}

func (s *Server) snapshotBody(snap models.QueueSnapshot) snapshotResponse {
	return snapshotResponse{
		Snapshot:  snap,
		Critical:  s.deps.Alerts.Critical(snap),
		Threshold: s.deps.Alerts.Threshold(),
	}
}

// ---- handlers ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, ok := s.deps.Simulation.Current()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "initialized": ok})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.deps.Simulation.Current()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, customerrors.ErrNotInitialized.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.snapshotBody(snap))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	snaps := s.deps.History.Snapshots()
	threshold := s.deps.Alerts.Threshold()

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(formatter.FormatJSON(snaps, threshold)))
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(formatter.FormatCSV(snaps, threshold)))
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(formatter.FormatText(snaps, threshold)))
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("format must be one of: text, json, csv (got: %s)", format))
	}
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.History.Forecast())
}

func (s *Server) handleGetAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.agentsBody())
}

func (s *Server) handleSetAgents(w http.ResponseWriter, r *http.Request) {
	var req agentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AgentCount == nil {
		writeError(w, http.StatusBadRequest, "agentCount is required")
		return
	}
	if err := s.deps.Simulation.SetAgentCount(*req.AgentCount); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Info().Int("agent_count", *req.AgentCount).Msg("agent count changed")
	writeJSON(w, http.StatusOK, s.agentsBody())
}

func (s *Server) agentsBody() agentsResponse {
	resp := agentsResponse{
		AgentCount: s.deps.Simulation.AgentCount(),
		Effective:  "next_tick",
	}
	if snap, ok := s.deps.Simulation.Current(); ok {
		resp.Applied = snap.AgentCount
	}
	return resp
}

func (s *Server) handleInsight(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.deps.Insights.Latest()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, insightResponse{Insight: ins, InFlight: s.deps.Insights.InFlight()})
}

func (s *Server) handleInsightRefresh(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.deps.Simulation.Current()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, customerrors.ErrNotInitialized.Error())
		return
	}
	if !s.deps.Insights.TriggerRefresh(snap) {
		writeError(w, http.StatusConflict, customerrors.ErrRefreshInProgress.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"baseline":  s.deps.Scenarios.Baseline(),
		"scenarios": s.deps.Scenarios.List(),
	})
}

func (s *Server) handleRunScenario(w http.ResponseWriter, r *http.Request) {
	var req scenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TargetAgents == nil {
		writeError(w, http.StatusBadRequest, "targetAgents is required")
		return
	}
	snap, ok := s.deps.Simulation.Current()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, customerrors.ErrNotInitialized.Error())
		return
	}

	sc, err := s.deps.Scenarios.Run(r.Context(), snap, *req.TargetAgents, req.PriorityFocus, scenario.TriggerManual)
	if err != nil {
		if errors.Is(err, customerrors.ErrInvalidAgentCount) || errors.Is(err, customerrors.ErrInvalidFocus) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (s *Server) handleTeam(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, teamResponse{
		Members: s.deps.Team.Members(),
		Summary: s.deps.Team.Summary(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

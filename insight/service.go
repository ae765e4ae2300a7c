package insight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	customerrors "queue-twin/errors"
	"queue-twin/metrics"
	"queue-twin/models"
	"queue-twin/scheduler"

	"github.com/rs/zerolog"
)

// Service fronts a Provider with deadlines, an at-most-one in-flight summary
// policy, and failure-to-absence mapping. It never blocks the tick loop.
type Service struct {
	provider Provider
	timeout  time.Duration
	log      zerolog.Logger

	inFlight atomic.Bool
	bg       sync.WaitGroup

	mu      sync.RWMutex
	latest  *models.Insight
	lastErr error
	life    context.Context // parent of background refreshes; set by Run
	stopped bool
}

// NewService wraps provider. A non-positive timeout disables the per-call deadline.
func NewService(provider Provider, timeout time.Duration, logger zerolog.Logger) *Service {
	if provider == nil {
		provider = Disabled{}
	}
	return &Service{
		provider: provider,
		timeout:  timeout,
		log:      logger.With().Str("component", "insight").Logger(),
		life:     context.Background(),
	}
}

// Latest returns the most recent successful insight.
func (s *Service) Latest() (models.Insight, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return models.Insight{}, false
	}
	return *s.latest, true
}

// LastError returns the error of the most recent failed refresh, cleared on success.
func (s *Service) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// InFlight reports whether a summary request is outstanding.
func (s *Service) InFlight() bool {
	return s.inFlight.Load()
}

// Refresh requests a summary of snapshot and waits for it. It returns
// ErrRefreshInProgress without calling the provider when one is outstanding.
// On failure the previous insight is kept.
func (s *Service) Refresh(ctx context.Context, snapshot models.QueueSnapshot) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return customerrors.ErrRefreshInProgress
	}
	defer s.inFlight.Store(false)
	return s.refresh(ctx, snapshot)
}

// TriggerRefresh starts a background refresh and reports whether one was started.
// The refresh is bound to the context passed to Run; once Run has returned no
// new refresh is started.
func (s *Service) TriggerRefresh(snapshot models.QueueSnapshot) bool {
	s.mu.Lock()
	if s.stopped || !s.inFlight.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return false
	}
	ctx := s.life
	s.bg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.bg.Done()
		defer s.inFlight.Store(false)
		_ = s.refresh(ctx, snapshot)
	}()
	return true
}

func (s *Service) refresh(ctx context.Context, snapshot models.QueueSnapshot) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	ins, err := s.provider.Summarize(ctx, snapshot)
	metrics.InsightDurationSeconds.WithLabelValues(OpSummarize).Observe(time.Since(start).Seconds())
	metrics.InsightRequestsTotal.WithLabelValues(OpSummarize, outcome(err)).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err
		s.logFailure(OpSummarize, err)
		return err
	}
	if ins.SnapshotAt.IsZero() {
		ins.SnapshotAt = snapshot.Timestamp
	}
	s.latest = &ins
	s.lastErr = nil
	s.log.Debug().
		Str("risk_level", ins.RiskLevel).
		Time("snapshot_at", ins.SnapshotAt).
		Msg("insight refreshed")
	return nil
}

// Evaluate projects a scenario outcome. On failure the result is absent (nil).
func (s *Service) Evaluate(ctx context.Context, snapshot models.QueueSnapshot, scenario models.Scenario) (*models.ScenarioResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	res, err := s.provider.Evaluate(ctx, snapshot, scenario)
	metrics.InsightDurationSeconds.WithLabelValues(OpEvaluate).Observe(time.Since(start).Seconds())
	metrics.InsightRequestsTotal.WithLabelValues(OpEvaluate, outcome(err)).Inc()

	if err != nil {
		s.logFailure(OpEvaluate, err)
		return nil, err
	}
	return &res, nil
}

// Run refreshes immediately and then every interval using the snapshot
// returned by current, until ctx is done. Failures are logged and retried on
// the next interval. Run returns after triggered refreshes have finished.
func (s *Service) Run(ctx context.Context, interval time.Duration, current func() (models.QueueSnapshot, bool)) error {
	s.mu.Lock()
	s.life = ctx
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		s.bg.Wait()
	}()

	tick := func(time.Time) {
		snap, ok := current()
		if !ok {
			return
		}
		if err := s.Refresh(ctx, snap); errors.Is(err, customerrors.ErrRefreshInProgress) {
			s.log.Debug().Msg("refresh skipped, request in flight")
		}
	}

	tick(time.Now())
	return scheduler.Every(ctx, interval, tick)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) logFailure(op string, err error) {
	if errors.Is(err, customerrors.ErrInsightDisabled) {
		s.log.Debug().Str("operation", op).Msg("insight disabled")
		return
	}
	s.log.Warn().Err(err).Str("operation", op).Str("kind", outcome(err)).Msg("insight unavailable this cycle")
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, customerrors.ErrInsightDisabled):
		return "disabled"
	case errors.Is(err, customerrors.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, customerrors.ErrInsightUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return "unavailable"
	default:
		return "error"
	}
}

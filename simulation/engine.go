package simulation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	customerrors "queue-twin/errors"
	"queue-twin/metrics"
	"queue-twin/models"
	"queue-twin/scheduler"

	"github.com/rs/zerolog"
)

// DefaultTickInterval is the real-time cadence of the simulation clock.
const DefaultTickInterval = 2 * time.Second

// Engine owns the current snapshot and is the only thing allowed to replace it.
// It is Uninitialized until Initialize succeeds and Running afterwards.
type Engine struct {
	sim      *Simulator
	interval time.Duration
	log      zerolog.Logger

	agents atomic.Int64

	mu          sync.Mutex
	current     models.QueueSnapshot
	initialized bool
	observers   []func(models.QueueSnapshot)

	subMu   sync.RWMutex
	subs    map[int]*subscription
	nextSub int
}

type subscription struct {
	name string
	ch   chan models.QueueSnapshot
}

// NewEngine builds an engine that ticks sim every interval.
func NewEngine(sim *Simulator, interval time.Duration, logger zerolog.Logger) (*Engine, error) {
	if sim == nil {
		return nil, fmt.Errorf("engine: simulator required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("engine: interval must be > 0")
	}
	return &Engine{
		sim:      sim,
		interval: interval,
		log:      logger.With().Str("component", "engine").Logger(),
		subs:     make(map[int]*subscription),
	}, nil
}

// Initialize seeds the engine with the starting snapshot and publishes it.
func (e *Engine) Initialize(baseAgentCount int) (models.QueueSnapshot, error) {
	if baseAgentCount < 1 {
		return models.QueueSnapshot{}, fmt.Errorf("%w: got %d", customerrors.ErrInvalidAgentCount, baseAgentCount)
	}

	e.agents.Store(int64(baseAgentCount))
	snap := e.sim.Initialize(baseAgentCount)

	e.mu.Lock()
	e.current = snap
	e.initialized = true
	observers := e.observers
	e.mu.Unlock()

	metrics.ResetQueueGauges()
	metrics.RecordSnapshot(snap)
	e.publish(snap, observers)
	return snap, nil
}

// SetAgentCount changes the staffing input. It takes effect on the next tick.
func (e *Engine) SetAgentCount(n int) error {
	if n < 1 {
		e.log.Warn().Int("agent_count", n).Msg("rejected agent count")
		return fmt.Errorf("%w: got %d", customerrors.ErrInvalidAgentCount, n)
	}
	e.agents.Store(int64(n))
	return nil
}

// AgentCount returns the staffing input the next tick will use.
func (e *Engine) AgentCount() int {
	return int(e.agents.Load())
}

// Current returns the latest snapshot and whether the engine is initialized.
func (e *Engine) Current() (models.QueueSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current, e.initialized
}

// OnUpdate registers an observer called synchronously after every tick.
// Observers must return quickly; slow consumers should use Subscribe.
func (e *Engine) OnUpdate(fn func(models.QueueSnapshot)) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	e.observers = append(e.observers, fn)
	e.mu.Unlock()
}

// Subscribe returns a channel receiving every published snapshot.
// Delivery never blocks the tick; when the buffer is full the snapshot is
// dropped for that subscriber. The returned func unsubscribes and closes the channel.
func (e *Engine) Subscribe(name string, buffer int) (<-chan models.QueueSnapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscription{name: name, ch: make(chan models.QueueSnapshot, buffer)}

	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = sub
	e.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, id)
			e.subMu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Step advances the simulation by exactly one tick.
func (e *Engine) Step() (models.QueueSnapshot, error) {
	start := time.Now()

	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return models.QueueSnapshot{}, customerrors.ErrNotInitialized
	}
	next, outcome := e.sim.Advance(e.current, e.AgentCount())
	e.current = next
	observers := e.observers
	e.mu.Unlock()

	metrics.ArrivalsTotal.Add(float64(outcome.Arrivals))
	metrics.RecordSnapshot(next)
	e.publish(next, observers)

	metrics.TicksTotal.Inc()
	metrics.TickDurationSeconds.Observe(time.Since(start).Seconds())

	if outcome.Breach > 0 {
		e.log.Debug().
			Int("queue_length", next.QueueLength).
			Int("breach_count", next.BreachCount).
			Msg("breach event")
	}
	return next, nil
}

// Run ticks the engine at its interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if _, ok := e.Current(); !ok {
		return customerrors.ErrNotInitialized
	}

	e.log.Info().
		Dur("interval", e.interval).
		Int("agent_count", e.AgentCount()).
		Msg("simulation started")

	err := scheduler.Every(ctx, e.interval, func(time.Time) {
		if _, err := e.Step(); err != nil {
			e.log.Error().Err(err).Msg("tick failed")
		}
	})

	e.log.Info().Msg("simulation stopped")
	return err
}

func (e *Engine) publish(snap models.QueueSnapshot, observers []func(models.QueueSnapshot)) {
	for _, fn := range observers {
		fn(snap)
	}

	e.subMu.RLock()
	defer e.subMu.RUnlock()
	for _, sub := range e.subs {
		select {
		case sub.ch <- snap:
		default:
			metrics.SnapshotsDroppedTotal.WithLabelValues(sub.name).Inc()
		}
	}
}

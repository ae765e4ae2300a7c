package scenario

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	customerrors "queue-twin/errors"
	"queue-twin/metrics"
	"queue-twin/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Scenario run triggers, used as the metrics label.
const (
	TriggerManual = "manual"
	TriggerAuto   = "auto"
)

// Evaluator projects the outcome of a scenario. A nil result means the
// projection is unavailable; the scenario is still kept.
type Evaluator interface {
	Evaluate(ctx context.Context, snapshot models.QueueSnapshot, scenario models.Scenario) (*models.ScenarioResult, error)
}

// Planner builds what-if staffing scenarios relative to a fixed baseline
// and records them with their projected results.
type Planner struct {
	baseline int
	store    *Store
	eval     Evaluator
	log      zerolog.Logger

	now   func() time.Time
	newID func() string

	autoBusy atomic.Bool
}

// NewPlanner returns a planner comparing against baseline agents.
func NewPlanner(baseline int, store *Store, eval Evaluator, logger zerolog.Logger) (*Planner, error) {
	if baseline < 1 {
		return nil, fmt.Errorf("%w: baseline %d", customerrors.ErrInvalidAgentCount, baseline)
	}
	if store == nil {
		return nil, fmt.Errorf("scenario: store required")
	}
	if eval == nil {
		return nil, fmt.Errorf("scenario: evaluator required")
	}
	return &Planner{
		baseline: baseline,
		store:    store,
		eval:     eval,
		log:      logger.With().Str("component", "scenario").Logger(),
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// Baseline returns the agent count scenarios are measured against.
func (p *Planner) Baseline() int {
	return p.baseline
}

// Store returns the backing scenario store.
func (p *Planner) Store() *Store {
	return p.store
}

// List returns the retained scenarios, newest first.
func (p *Planner) List() []models.Scenario {
	return p.store.List()
}

// Build creates an unevaluated scenario for the target agent count.
// An empty focus means FocusNone.
func (p *Planner) Build(target int, focus models.PriorityFocus) (models.Scenario, error) {
	if target < 1 {
		return models.Scenario{}, fmt.Errorf("%w: target %d", customerrors.ErrInvalidAgentCount, target)
	}
	focus, err := ParseFocus(string(focus))
	if err != nil {
		return models.Scenario{}, err
	}

	delta := target - p.baseline
	return models.Scenario{
		ID:              p.newID(),
		Name:            Name(delta),
		AgentAdjustment: delta,
		TargetAgents:    target,
		PriorityFocus:   focus,
		CreatedAt:       p.now(),
	}, nil
}

// Run builds a scenario, asks the evaluator for a projection, and stores it.
// Evaluation failure leaves Results nil and is not an error.
func (p *Planner) Run(ctx context.Context, snapshot models.QueueSnapshot, target int, focus models.PriorityFocus, trigger string) (models.Scenario, error) {
	sc, err := p.Build(target, focus)
	if err != nil {
		return models.Scenario{}, err
	}

	res, err := p.eval.Evaluate(ctx, snapshot, sc)
	if err != nil {
		res = nil
	}
	sc.Results = res

	p.store.Add(sc)
	metrics.ScenariosTotal.WithLabelValues(trigger).Inc()

	p.log.Info().
		Str("scenario_id", sc.ID).
		Str("name", sc.Name).
		Str("trigger", trigger).
		Bool("evaluated", res != nil).
		Msg("scenario recorded")
	return sc, nil
}

// AutoGenerate returns an alert handler that runs a scenario at the
// snapshot's agent count plus delta. Runs happen on a goroutine bound to ctx,
// at most one at a time; alerts arriving while one is running are skipped.
func (p *Planner) AutoGenerate(ctx context.Context, delta int) func(models.Alert, models.QueueSnapshot) {
	return func(_ models.Alert, snap models.QueueSnapshot) {
		target := snap.AgentCount + delta
		if target < 1 {
			target = 1
		}
		if !p.autoBusy.CompareAndSwap(false, true) {
			p.log.Debug().Int("target", target).Msg("auto scenario skipped, one in flight")
			return
		}
		go func() {
			defer p.autoBusy.Store(false)
			if ctx.Err() != nil {
				return
			}
			if _, err := p.Run(ctx, snap, target, models.FocusNone, TriggerAuto); err != nil {
				p.log.Error().Err(err).Int("target", target).Msg("auto scenario failed")
			}
		}()
	}
}

// Name labels a scenario by its agent delta from the baseline.
func Name(delta int) string {
	noun := "Agents"
	if delta == 1 || delta == -1 {
		noun = "Agent"
	}
	switch {
	case delta > 0:
		return fmt.Sprintf("Add %d %s", delta, noun)
	case delta < 0:
		return fmt.Sprintf("Remove %d %s", -delta, noun)
	default:
		return "Hold Staffing"
	}
}

// ParseFocus maps a priority focus name to its value. Empty means FocusNone.
func ParseFocus(s string) (models.PriorityFocus, error) {
	switch models.PriorityFocus(s) {
	case "", models.FocusNone:
		return models.FocusNone, nil
	case models.FocusHigh:
		return models.FocusHigh, nil
	case models.FocusUrgent:
		return models.FocusUrgent, nil
	default:
		return "", fmt.Errorf("%w: %q", customerrors.ErrInvalidFocus, s)
	}
}

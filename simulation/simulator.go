package simulation

import (
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"queue-twin/models"
)

// Seed state. These are fixed, not derived.
const (
	InitialQueueLength       = 150
	InitialArrivalRate       = 25
	InitialBreachProbability = 68
)

// Tick model constants.
const (
	arrivalGate          = 0.7
	arrivalSpread        = 3 // arrivals drawn uniformly from {0, 1, 2}
	completionPerAgent   = 0.05
	breachQueueThreshold = 200
	breachGate           = 0.95
	capacityPerAgent     = 10
	riskScale            = 35
	maxProbability       = 100
)

// Source supplies uniform draws in [0, 1).
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a seeded PCG source. A zero seed uses the wall clock.
func NewSource(seed uint64) Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Outcome holds the random events drawn for one tick.
type Outcome struct {
	Arrivals    int
	Completions int
	Breach      int
}

// Simulator advances the queue by one discrete step per call.
// It holds no queue state of its own; callers own the snapshots.
type Simulator struct {
	src Source
	now func() time.Time
}

// NewSimulator builds a Simulator. A nil clock defaults to time.Now.
func NewSimulator(src Source, now func() time.Time) *Simulator {
	if now == nil {
		now = time.Now
	}
	return &Simulator{src: src, now: now}
}

// Initialize produces the starting snapshot for the given agent count.
func (s *Simulator) Initialize(baseAgentCount int) models.QueueSnapshot {
	return models.QueueSnapshot{
		Timestamp:                  s.now(),
		QueueLength:                InitialQueueLength,
		AgentCount:                 baseAgentCount,
		ArrivalRate:                InitialArrivalRate,
		ProjectedBreachProbability: InitialBreachProbability,
		ActiveCases:                []models.Case{},
		CompletedCount:             0,
		BreachCount:                0,
	}
}

// Tick returns the snapshot that follows prev when currentAgentCount agents
// are on shift. prev is not modified.
func (s *Simulator) Tick(prev models.QueueSnapshot, currentAgentCount int) models.QueueSnapshot {
	next, _ := s.Advance(prev, currentAgentCount)
	return next
}

// Advance is Tick that also reports the drawn events.
//
// Draw order is fixed: arrival gate, arrival count (gated), completion,
// breach (only when the queue was over threshold at tick start).
func (s *Simulator) Advance(prev models.QueueSnapshot, currentAgentCount int) (models.QueueSnapshot, Outcome) {
	var out Outcome

	if s.src.Float64() > arrivalGate {
		out.Arrivals = int(s.src.Float64() * arrivalSpread)
	}

	// Not clamped: above 1 always completes, at or below 0 never does.
	processingPower := float64(currentAgentCount) * completionPerAgent
	if s.src.Float64() < processingPower {
		out.Completions = 1
	}

	if prev.QueueLength > breachQueueThreshold && s.src.Float64() > breachGate {
		out.Breach = 1
	}

	queueLength := max(0, prev.QueueLength+out.Arrivals-out.Completions)

	next := prev
	next.Timestamp = s.now()
	next.QueueLength = queueLength
	next.AgentCount = currentAgentCount
	next.ProjectedBreachProbability = BreachProbability(queueLength, currentAgentCount)
	next.ActiveCases = slices.Clone(prev.ActiveCases)
	next.CompletedCount = prev.CompletedCount + out.Completions
	next.BreachCount = prev.BreachCount + out.Breach

	return next, out
}

// BreachProbability maps queue load to a bounded risk percentage:
// round(queueLength / max(1, agents*10) * 35), clamped to [0, 100].
func BreachProbability(queueLength, agentCount int) int {
	capacity := max(1, agentCount*capacityPerAgent)
	ratio := float64(queueLength) / float64(capacity)
	// Half-up rounding.
	p := int(math.Floor(ratio*riskScale + 0.5))
	return min(maxProbability, max(0, p))
}

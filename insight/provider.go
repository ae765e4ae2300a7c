package insight

import (
	"context"
	"fmt"

	customerrors "queue-twin/errors"
	"queue-twin/models"
)

// Provider is the narrow contract to the external narrative service.
// Implementations report transient failures as ErrInsightUnavailable and
// schema mismatches as ErrMalformedResponse.
type Provider interface {
	Summarize(ctx context.Context, snapshot models.QueueSnapshot) (models.Insight, error)
	Evaluate(ctx context.Context, snapshot models.QueueSnapshot, scenario models.Scenario) (models.ScenarioResult, error)
}

// Disabled is used when no insight backend is configured.
type Disabled struct{}

func (Disabled) Summarize(context.Context, models.QueueSnapshot) (models.Insight, error) {
	return models.Insight{}, &customerrors.InsightError{Op: OpSummarize, Err: customerrors.ErrInsightDisabled}
}

func (Disabled) Evaluate(context.Context, models.QueueSnapshot, models.Scenario) (models.ScenarioResult, error) {
	return models.ScenarioResult{}, &customerrors.InsightError{Op: OpEvaluate, Err: customerrors.ErrInsightDisabled}
}

// Operation names used in errors and metrics.
const (
	OpSummarize = "summarize"
	OpEvaluate  = "evaluate"
)

func summaryPrompt(s models.QueueSnapshot) string {
	return fmt.Sprintf(`Analyze the following operational state of a customer support team:
- Cases waiting in queue: %d
- Agents on shift: %d
- Case arrival rate: %d cases/hr
- Projected SLA breach probability: %d%%
- Cumulative breaches this shift: %d
- Cases completed this shift: %d

Give a concise operational insight, a risk level (low, medium, high or critical) and exactly 3 recommended actions.`,
		s.QueueLength, s.AgentCount, s.ArrivalRate, s.ProjectedBreachProbability, s.BreachCount, s.CompletedCount)
}

func scenarioPrompt(s models.QueueSnapshot, sc models.Scenario) string {
	return fmt.Sprintf(`Evaluate this what-if scenario for a support queue.
Baseline: %d cases waiting, %d agents on shift, %d%% projected breach probability.
Change: %s (agent adjustment %+d, target %d agents, priority focus %s).

Predict the outcome compared to the baseline: percentage reduction in breaches, change in average wait time in minutes, and a one-sentence recommendation. Be realistic about operational friction.`,
		s.QueueLength, s.AgentCount, s.ProjectedBreachProbability,
		sc.Name, sc.AgentAdjustment, sc.TargetAgents, sc.PriorityFocus)
}

package scenario_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	customerrors "queue-twin/errors"
	"queue-twin/models"
	"queue-twin/scenario"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEvaluator struct {
	mu     sync.Mutex
	result *models.ScenarioResult
	err    error
	seen   []models.Scenario
	block  chan struct{}
}

func (s *stubEvaluator) Evaluate(_ context.Context, _ models.QueueSnapshot, sc models.Scenario) (*models.ScenarioResult, error) {
	s.mu.Lock()
	s.seen = append(s.seen, sc)
	res, err, block := s.result, s.err, s.block
	s.mu.Unlock()

	if block != nil {
		<-block
	}
	return res, err
}

func (s *stubEvaluator) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

var snap = models.QueueSnapshot{QueueLength: 230, AgentCount: 8, ArrivalRate: 25, ProjectedBreachProbability: 100}

func newPlanner(t *testing.T, eval scenario.Evaluator, max int) *scenario.Planner {
	t.Helper()
	p, err := scenario.NewPlanner(8, scenario.NewStore(max), eval, zerolog.Nop())
	require.NoError(t, err)
	return p
}

func TestName(t *testing.T) {
	tests := map[string]struct {
		delta int
		want  string
	}{
		"AddMany":    {delta: 4, want: "Add 4 Agents"},
		"AddOne":     {delta: 1, want: "Add 1 Agent"},
		"Hold":       {delta: 0, want: "Hold Staffing"},
		"RemoveOne":  {delta: -1, want: "Remove 1 Agent"},
		"RemoveMany": {delta: -3, want: "Remove 3 Agents"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, scenario.Name(tt.delta))
		})
	}
}

func TestParseFocus(t *testing.T) {
	tests := map[string]struct {
		input   string
		want    models.PriorityFocus
		wantErr bool
	}{
		"Empty":   {input: "", want: models.FocusNone},
		"None":    {input: "None", want: models.FocusNone},
		"High":    {input: "High", want: models.FocusHigh},
		"Urgent":  {input: "Urgent", want: models.FocusUrgent},
		"Unknown": {input: "Low", wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := scenario.ParseFocus(tt.input)
			if tt.wantErr {
				assert.True(t, errors.Is(err, customerrors.ErrInvalidFocus))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewPlanner_Validation(t *testing.T) {
	_, err := scenario.NewPlanner(0, scenario.NewStore(5), &stubEvaluator{}, zerolog.Nop())
	assert.True(t, errors.Is(err, customerrors.ErrInvalidAgentCount))

	_, err = scenario.NewPlanner(8, nil, &stubEvaluator{}, zerolog.Nop())
	assert.Error(t, err)

	_, err = scenario.NewPlanner(8, scenario.NewStore(5), nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestPlanner_Build(t *testing.T) {
	p := newPlanner(t, &stubEvaluator{}, 5)

	sc, err := p.Build(12, models.FocusHigh)
	require.NoError(t, err)
	assert.Equal(t, "Add 4 Agents", sc.Name)
	assert.Equal(t, 4, sc.AgentAdjustment)
	assert.Equal(t, 12, sc.TargetAgents)
	assert.Equal(t, models.FocusHigh, sc.PriorityFocus)
	assert.False(t, sc.CreatedAt.IsZero())
	assert.Nil(t, sc.Results)
	_, err = uuid.Parse(sc.ID)
	assert.NoError(t, err)

	other, err := p.Build(12, "")
	require.NoError(t, err)
	assert.NotEqual(t, sc.ID, other.ID)
	assert.Equal(t, models.FocusNone, other.PriorityFocus)

	_, err = p.Build(0, models.FocusNone)
	assert.True(t, errors.Is(err, customerrors.ErrInvalidAgentCount))

	_, err = p.Build(10, "Whenever")
	assert.True(t, errors.Is(err, customerrors.ErrInvalidFocus))

	assert.Equal(t, 0, p.Store().Len(), "Build must not store")
}

func TestPlanner_Run(t *testing.T) {
	t.Run("Evaluated", func(t *testing.T) {
		eval := &stubEvaluator{result: &models.ScenarioResult{BreachReduction: 30, WaitTimeChange: -6, Recommendation: "Staff up"}}
		p := newPlanner(t, eval, 5)

		sc, err := p.Run(context.Background(), snap, 10, models.FocusUrgent, scenario.TriggerManual)
		require.NoError(t, err)
		require.NotNil(t, sc.Results)
		assert.Equal(t, 30.0, sc.Results.BreachReduction)

		stored := p.Store().List()
		require.Len(t, stored, 1)
		assert.Equal(t, sc, stored[0])
		require.Len(t, eval.seen, 1)
		assert.Equal(t, "Add 2 Agents", eval.seen[0].Name)
	})

	t.Run("EvaluationFailureIsAbsent", func(t *testing.T) {
		eval := &stubEvaluator{
			result: &models.ScenarioResult{Recommendation: "ignored"},
			err:    &customerrors.InsightError{Op: "evaluate", Err: customerrors.ErrInsightUnavailable},
		}
		p := newPlanner(t, eval, 5)

		sc, err := p.Run(context.Background(), snap, 6, models.FocusNone, scenario.TriggerManual)
		require.NoError(t, err)
		assert.Nil(t, sc.Results)
		assert.Equal(t, "Remove 2 Agents", sc.Name)
		assert.Equal(t, 1, p.Store().Len())
	})

	t.Run("InvalidTarget", func(t *testing.T) {
		eval := &stubEvaluator{}
		p := newPlanner(t, eval, 5)

		_, err := p.Run(context.Background(), snap, 0, models.FocusNone, scenario.TriggerManual)
		assert.True(t, errors.Is(err, customerrors.ErrInvalidAgentCount))
		assert.Equal(t, 0, eval.count())
		assert.Equal(t, 0, p.Store().Len())
	})
}

func TestStore_NewestFirstAndCapped(t *testing.T) {
	store := scenario.NewStore(scenario.DefaultMaxRetained)
	for i := 1; i <= 7; i++ {
		store.Add(models.Scenario{ID: fmt.Sprintf("s%d", i)})
	}

	list := store.List()
	require.Len(t, list, 5)
	ids := make([]string, len(list))
	for i, sc := range list {
		ids[i] = sc.ID
	}
	assert.Equal(t, []string{"s7", "s6", "s5", "s4", "s3"}, ids)

	_, ok := store.Get("s1")
	assert.False(t, ok)
	got, ok := store.Get("s5")
	assert.True(t, ok)
	assert.Equal(t, "s5", got.ID)

	list[0].ID = "mutated"
	assert.Equal(t, "s7", store.List()[0].ID)
}

func TestStore_MinimumCapacity(t *testing.T) {
	store := scenario.NewStore(0)
	store.Add(models.Scenario{ID: "a"})
	store.Add(models.Scenario{ID: "b"})
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, "b", store.List()[0].ID)
}

func TestPlanner_AutoGenerate(t *testing.T) {
	eval := &stubEvaluator{}
	p := newPlanner(t, eval, 5)

	handler := p.AutoGenerate(context.Background(), 2)
	handler(models.Alert{Threshold: 70, Probability: 100, At: time.Now()}, snap)

	require.Eventually(t, func() bool { return p.Store().Len() == 1 }, time.Second, 5*time.Millisecond)
	sc := p.Store().List()[0]
	assert.Equal(t, 10, sc.TargetAgents)
	assert.Equal(t, "Add 2 Agents", sc.Name)
	assert.Equal(t, models.FocusNone, sc.PriorityFocus)
}

func TestPlanner_AutoGenerateOneAtATime(t *testing.T) {
	eval := &stubEvaluator{block: make(chan struct{})}
	p := newPlanner(t, eval, 5)
	handler := p.AutoGenerate(context.Background(), 2)

	handler(models.Alert{Probability: 100}, snap)
	require.Eventually(t, func() bool { return eval.count() == 1 }, time.Second, 5*time.Millisecond)

	// Alerts while the first run is evaluating are dropped.
	for range 3 {
		handler(models.Alert{Probability: 100}, snap)
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, eval.count())

	close(eval.block)
	require.Eventually(t, func() bool { return p.Store().Len() == 1 }, time.Second, 5*time.Millisecond)

	// Once it finishes the next alert runs again.
	require.Eventually(t, func() bool {
		handler(models.Alert{Probability: 100}, snap)
		return eval.count() >= 2
	}, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return p.Store().Len() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestPlanner_AutoGenerateStopsAfterCancel(t *testing.T) {
	eval := &stubEvaluator{}
	p := newPlanner(t, eval, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.AutoGenerate(ctx, 2)(models.Alert{}, snap)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, eval.count())
}

package simulation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	customerrors "queue-twin/errors"
	"queue-twin/models"
	"queue-twin/simulation"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, src simulation.Source, interval time.Duration) *simulation.Engine {
	t.Helper()
	e, err := simulation.NewEngine(simulation.NewSimulator(src, nil), interval, zerolog.Nop())
	require.NoError(t, err)
	return e
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := simulation.NewEngine(nil, time.Second, zerolog.Nop())
	assert.Error(t, err)

	_, err = simulation.NewEngine(simulation.NewSimulator(simulation.NewSource(1), nil), 0, zerolog.Nop())
	assert.Error(t, err)
}

func TestEngine_StepBeforeInitialize(t *testing.T) {
	e := newEngine(t, simulation.NewSource(1), time.Second)

	_, err := e.Step()
	assert.True(t, errors.Is(err, customerrors.ErrNotInitialized))

	_, ok := e.Current()
	assert.False(t, ok)

	err = e.Run(context.Background())
	assert.True(t, errors.Is(err, customerrors.ErrNotInitialized))
}

func TestEngine_RejectsInvalidAgentCount(t *testing.T) {
	e := newEngine(t, simulation.NewSource(1), time.Second)

	_, err := e.Initialize(0)
	assert.True(t, errors.Is(err, customerrors.ErrInvalidAgentCount))

	_, err = e.Initialize(8)
	require.NoError(t, err)

	for _, n := range []int{0, -1} {
		err := e.SetAgentCount(n)
		assert.True(t, errors.Is(err, customerrors.ErrInvalidAgentCount))
	}
	assert.Equal(t, 8, e.AgentCount())
}

func TestEngine_AgentCountEffectiveNextTick(t *testing.T) {
	// Each tick: gate closed, no completion.
	src := &scripted{draws: []float64{0.1, 0.99, 0.1, 0.99}}
	e := newEngine(t, src, time.Second)

	initial, err := e.Initialize(8)
	require.NoError(t, err)

	require.NoError(t, e.SetAgentCount(12))
	current, _ := e.Current()
	assert.Equal(t, initial, current, "snapshot must not change before the next tick")

	next, err := e.Step()
	require.NoError(t, err)
	assert.Equal(t, 12, next.AgentCount)
	assert.Equal(t, simulation.BreachProbability(150, 12), next.ProjectedBreachProbability)

	current, ok := e.Current()
	assert.True(t, ok)
	assert.Equal(t, next, current)
}

func TestEngine_OnUpdateAndSubscribe(t *testing.T) {
	e := newEngine(t, simulation.NewSource(7), time.Second)

	var observed []models.QueueSnapshot
	e.OnUpdate(func(s models.QueueSnapshot) { observed = append(observed, s) })

	ch, cancel := e.Subscribe("test", 8)
	defer cancel()

	_, err := e.Initialize(8)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := e.Step()
		require.NoError(t, err)
	}

	require.Len(t, observed, 4)
	for i := 0; i < 4; i++ {
		select {
		case s := <-ch:
			assert.Equal(t, observed[i], s)
		default:
			t.Fatalf("expected snapshot %d on subscription", i)
		}
	}
}

func TestEngine_SlowSubscriberDoesNotBlock(t *testing.T) {
	e := newEngine(t, simulation.NewSource(7), time.Second)
	ch, cancel := e.Subscribe("slow", 1)

	_, err := e.Initialize(8)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := e.Step()
		require.NoError(t, err)
	}

	// Only the first snapshot fits; the rest are dropped for this subscriber.
	first := <-ch
	assert.Equal(t, 150, first.QueueLength)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestEngine_RunTicksUntilCancelled(t *testing.T) {
	e := newEngine(t, simulation.NewSource(3), 5*time.Millisecond)
	_, err := e.Initialize(8)
	require.NoError(t, err)

	ch, unsubscribe := e.Subscribe("run", 16)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	var ticks int
	timeout := time.After(2 * time.Second)
	for ticks < 3 {
		select {
		case <-ch:
			ticks++
		case <-timeout:
			t.Fatal("engine did not tick")
		}
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
}

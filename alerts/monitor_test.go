package alerts_test

import (
	"testing"
	"time"

	"queue-twin/alerts"
	"queue-twin/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(p int) models.QueueSnapshot {
	return models.QueueSnapshot{
		Timestamp:                  time.Date(2026, 1, 1, 12, 0, p, 0, time.UTC),
		QueueLength:                p * 3,
		AgentCount:                 8,
		ProjectedBreachProbability: p,
	}
}

func TestNewMonitor_Threshold(t *testing.T) {
	tests := map[string]struct {
		input int
		want  int
	}{
		"Configured": {input: 80, want: 80},
		"Zero":       {input: 0, want: alerts.DefaultCriticalThreshold},
		"TooHigh":    {input: 150, want: alerts.DefaultCriticalThreshold},
		"Max":        {input: 100, want: 100},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			m := alerts.NewMonitor(tt.input, zerolog.Nop())
			assert.Equal(t, tt.want, m.Threshold())
		})
	}
}

func TestMonitor_Critical(t *testing.T) {
	m := alerts.NewMonitor(70, zerolog.Nop())
	assert.False(t, m.Critical(at(69)))
	assert.False(t, m.Critical(at(70)))
	assert.True(t, m.Critical(at(71)))
	assert.True(t, m.Critical(at(100)))
}

func TestMonitor_EdgeTriggered(t *testing.T) {
	m := alerts.NewMonitor(70, zerolog.Nop())

	var fired []models.Alert
	m.OnAlert(func(a models.Alert, _ models.QueueSnapshot) { fired = append(fired, a) })

	// Probabilities: rise, stay high, dip below, sit on the threshold, rise again.
	sequence := []int{68, 71, 75, 100, 69, 70, 90, 40}
	var results []bool
	for _, p := range sequence {
		results = append(results, m.Observe(at(p)))
	}

	assert.Equal(t, []bool{false, true, false, false, false, false, true, false}, results)
	require.Len(t, fired, 2)
	assert.Equal(t, 71, fired[0].Probability)
	assert.Equal(t, 70, fired[0].Threshold)
	assert.Equal(t, 213, fired[0].QueueLength)
	assert.Equal(t, at(71).Timestamp, fired[0].At)
	assert.Equal(t, 90, fired[1].Probability)

	last, ok := m.Last()
	require.True(t, ok)
	assert.Equal(t, fired[1], last)
}

func TestMonitor_AtThresholdDoesNotFire(t *testing.T) {
	m := alerts.NewMonitor(70, zerolog.Nop())

	var fired int
	m.OnAlert(func(models.Alert, models.QueueSnapshot) { fired++ })

	for range 3 {
		assert.False(t, m.Observe(at(70)))
	}
	assert.Zero(t, fired)
	_, ok := m.Last()
	assert.False(t, ok)

	assert.True(t, m.Observe(at(71)))
	assert.Equal(t, 1, fired)
}

func TestMonitor_FiresOnFirstCriticalSnapshot(t *testing.T) {
	m := alerts.NewMonitor(70, zerolog.Nop())

	_, ok := m.Last()
	assert.False(t, ok)

	assert.True(t, m.Observe(at(85)))
	assert.False(t, m.Observe(at(85)))
}

func TestMonitor_HandlerReceivesSnapshot(t *testing.T) {
	m := alerts.NewMonitor(70, zerolog.Nop())
	m.OnAlert(nil)

	var got models.QueueSnapshot
	m.OnAlert(func(_ models.Alert, s models.QueueSnapshot) { got = s })

	m.Observe(at(88))
	assert.Equal(t, at(88), got)
}

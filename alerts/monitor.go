package alerts

import (
	"sync"

	"queue-twin/metrics"
	"queue-twin/models"

	"github.com/rs/zerolog"
)

// DefaultCriticalThreshold is the breach probability (percent) above which a
// snapshot is critical.
const DefaultCriticalThreshold = 70

// Handler receives an alert together with the snapshot that raised it.
type Handler func(models.Alert, models.QueueSnapshot)

// Monitor watches the snapshot stream for the breach probability crossing
// the critical threshold. It fires once per crossing and re-arms when the
// probability drops back below the threshold.
type Monitor struct {
	threshold int
	log       zerolog.Logger

	mu       sync.Mutex
	armed    bool
	last     *models.Alert
	handlers []Handler
}

// NewMonitor returns an armed monitor. Thresholds outside [1, 100] fall back to the default.
func NewMonitor(threshold int, logger zerolog.Logger) *Monitor {
	if threshold < 1 || threshold > 100 {
		threshold = DefaultCriticalThreshold
	}
	return &Monitor{
		threshold: threshold,
		log:       logger.With().Str("component", "alerts").Logger(),
		armed:     true,
	}
}

func (m *Monitor) Threshold() int {
	return m.threshold
}

// Critical reports whether s exceeds the critical threshold.
func (m *Monitor) Critical(s models.QueueSnapshot) bool {
	return s.ProjectedBreachProbability > m.threshold
}

// OnAlert registers a handler called synchronously for every alert.
func (m *Monitor) OnAlert(h Handler) {
	if h == nil {
		return
	}
	m.mu.Lock()
	m.handlers = append(m.handlers, h)
	m.mu.Unlock()
}

// Last returns the most recent alert.
func (m *Monitor) Last() (models.Alert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return models.Alert{}, false
	}
	return *m.last, true
}

// Observe feeds one snapshot through the monitor and reports whether an
// alert fired.
func (m *Monitor) Observe(s models.QueueSnapshot) bool {
	m.mu.Lock()
	if !m.Critical(s) {
		m.armed = true
		m.mu.Unlock()
		return false
	}
	if !m.armed {
		m.mu.Unlock()
		return false
	}

	m.armed = false
	alert := models.Alert{
		Threshold:   m.threshold,
		Probability: s.ProjectedBreachProbability,
		QueueLength: s.QueueLength,
		At:          s.Timestamp,
	}
	m.last = &alert
	handlers := m.handlers
	m.mu.Unlock()

	metrics.AlertsTotal.Inc()
	m.log.Warn().
		Int("breach_probability", alert.Probability).
		Int("threshold", alert.Threshold).
		Int("queue_length", alert.QueueLength).
		Int("agent_count", s.AgentCount).
		Msg("breach probability exceeded critical threshold")

	for _, h := range handlers {
		h(alert, s)
	}
	return true
}

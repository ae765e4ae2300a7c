package history

import (
	"sync"

	"queue-twin/models"
)

// DefaultSize is the number of snapshots kept for charting.
const DefaultSize = 20

// Display offsets applied to the arrival rate when projecting the queue.
const (
	upperBoundFactor = 0.8
	predictedFactor  = 0.5
	lowerBoundFactor = 0.2
)

// Forecast derives the chart point for a snapshot.
// These are display-only linear offsets, not part of the simulation state.
func Forecast(s models.QueueSnapshot) models.ForecastPoint {
	base := float64(s.QueueLength)
	rate := float64(s.ArrivalRate)
	return models.ForecastPoint{
		Time:       s.Timestamp,
		Label:      s.Timestamp.Format("15:04"),
		Actual:     s.QueueLength,
		Predicted:  base + rate*predictedFactor,
		UpperBound: base + rate*upperBoundFactor,
		LowerBound: base + rate*lowerBoundFactor,
	}
}

// Recorder keeps the rolling snapshot history. It is safe for concurrent use
// and is meant to be registered as an engine observer.
type Recorder struct {
	mu        sync.RWMutex
	snapshots *Ring[models.QueueSnapshot]
	forecast  *Ring[models.ForecastPoint]
}

// NewRecorder returns a recorder retaining size entries (DefaultSize when <= 0).
func NewRecorder(size int) *Recorder {
	if size <= 0 {
		size = DefaultSize
	}
	return &Recorder{
		snapshots: NewRing[models.QueueSnapshot](size),
		forecast:  NewRing[models.ForecastPoint](size),
	}
}

// Record appends a snapshot and its forecast point.
func (r *Recorder) Record(s models.QueueSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots.Append(s)
	r.forecast.Append(Forecast(s))
}

// Snapshots returns the retained snapshots, oldest first.
func (r *Recorder) Snapshots() []models.QueueSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshots.Items()
}

// Forecast returns the retained forecast points, oldest first.
func (r *Recorder) Forecast() []models.ForecastPoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.forecast.Items()
}

// Latest returns the newest recorded snapshot.
func (r *Recorder) Latest() (models.QueueSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshots.Latest()
}

package scenario

import (
	"sync"

	"queue-twin/models"
)

// DefaultMaxRetained is how many scenarios the store keeps.
const DefaultMaxRetained = 5

// Store holds the most recent scenarios, newest first.
type Store struct {
	mu    sync.RWMutex
	max   int
	items []models.Scenario
}

// NewStore returns a store retaining at most max scenarios (minimum 1).
func NewStore(max int) *Store {
	if max < 1 {
		max = 1
	}
	return &Store{max: max, items: make([]models.Scenario, 0, max)}
}

// Add puts sc at the front, evicting the oldest entry when full.
func (s *Store) Add(sc models.Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append([]models.Scenario{sc}, s.items...)
	if len(s.items) > s.max {
		s.items = s.items[:s.max]
	}
}

// List returns a copy of the retained scenarios, newest first.
func (s *Store) List() []models.Scenario {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Scenario, len(s.items))
	copy(out, s.items)
	return out
}

// Get looks up a retained scenario by ID.
func (s *Store) Get(id string) (models.Scenario, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sc := range s.items {
		if sc.ID == id {
			return sc, true
		}
	}
	return models.Scenario{}, false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

package team

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"queue-twin/models"
	"queue-twin/parser"
)

// Roster is the read-only operations team served alongside the queue.
type Roster struct {
	mu      sync.RWMutex
	members []models.TeamMember
}

// NewRoster returns a roster over a copy of members.
func NewRoster(members []models.TeamMember) *Roster {
	cp := make([]models.TeamMember, len(members))
	copy(cp, members)
	return &Roster{members: cp}
}

// Load reads a roster CSV file. An empty path yields the default roster.
func Load(path string) (*Roster, error) {
	if path == "" {
		return NewRoster(Default()), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open team file: %w", err)
	}
	defer f.Close()

	members, err := parser.ParseRoster(f)
	if err != nil {
		return nil, fmt.Errorf("parse team file %s: %w", path, err)
	}
	return NewRoster(members), nil
}

// Default is the built-in demonstration roster.
func Default() []models.TeamMember {
	return []models.TeamMember{
		{ID: "1", Name: "Sarah Connor", Status: models.MemberOnline, CasesResolved: 45, Efficiency: 94},
		{ID: "2", Name: "James Smith", Status: models.MemberBusy, CasesResolved: 38, Efficiency: 88},
		{ID: "3", Name: "Elena Rodriguez", Status: models.MemberOnline, CasesResolved: 52, Efficiency: 97},
		{ID: "4", Name: "Michael Chen", Status: models.MemberAway, CasesResolved: 29, Efficiency: 82},
		{ID: "5", Name: "Aisha Khan", Status: models.MemberOnline, CasesResolved: 41, Efficiency: 91},
		{ID: "6", Name: "David Wilson", Status: models.MemberBusy, CasesResolved: 33, Efficiency: 85},
	}
}

// Members returns a copy of the roster in file order.
func (r *Roster) Members() []models.TeamMember {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.TeamMember, len(r.members))
	copy(out, r.members)
	return out
}

// ByEfficiency returns members sorted by efficiency, highest first.
// Ties keep file order.
func (r *Roster) ByEfficiency() []models.TeamMember {
	out := r.Members()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Efficiency > out[j].Efficiency
	})
	return out
}

// Summary aggregates the roster for display.
type Summary struct {
	Total             int                         `json:"total"`
	ByStatus          map[models.MemberStatus]int `json:"byStatus"`
	CasesResolved     int                         `json:"casesResolved"`
	AverageEfficiency float64                     `json:"averageEfficiency"`
}

func (r *Roster) Summary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Summary{
		Total:    len(r.members),
		ByStatus: make(map[models.MemberStatus]int),
	}
	if len(r.members) == 0 {
		return s
	}

	var eff int
	for _, m := range r.members {
		s.ByStatus[m.Status]++
		s.CasesResolved += m.CasesResolved
		eff += m.Efficiency
	}
	s.AverageEfficiency = float64(eff) / float64(len(r.members))
	return s
}

package models

import "time"

// QueueSnapshot is the simulated support-queue state at one tick.
// Once produced it is never mutated; observers receive it by value.
type QueueSnapshot struct {
	Timestamp                  time.Time `json:"timestamp"`
	QueueLength                int       `json:"queueLength"`
	AgentCount                 int       `json:"agentCount"`
	ArrivalRate                int       `json:"arrivalRate"`
	ProjectedBreachProbability int       `json:"projectedBreachProbability"`
	ActiveCases                []Case    `json:"activeCases"`
	CompletedCount             int       `json:"completedCount"`
	BreachCount                int       `json:"breachCount"`
}

// CasePriority ranks an in-flight case.
type CasePriority string

const (
	PriorityHigh   CasePriority = "High"
	PriorityMedium CasePriority = "Medium"
	PriorityLow    CasePriority = "Low"
)

// CaseStatus is the lifecycle state of a case.
type CaseStatus string

const (
	CasePending    CaseStatus = "Pending"
	CaseInProgress CaseStatus = "In Progress"
	CaseCompleted  CaseStatus = "Completed"
	CaseBreached   CaseStatus = "Breached"
)

// Case is an individual support case. The queue core keeps the slot in the
// snapshot schema but does not populate it.
type Case struct {
	ID                     string       `json:"id"`
	ArrivalTime            time.Time    `json:"arrivalTime"`
	Priority               CasePriority `json:"priority"`
	SLADeadline            time.Time    `json:"slaDeadline"`
	EstimatedEffortMinutes int          `json:"estimatedEffort"`
	Status                 CaseStatus   `json:"status"`
}

// ForecastPoint is a chart-ready derivation of one snapshot.
type ForecastPoint struct {
	Time       time.Time `json:"time"`
	Label      string    `json:"label"`
	Actual     int       `json:"actual"`
	Predicted  float64   `json:"predicted"`
	UpperBound float64   `json:"upperBound"`
	LowerBound float64   `json:"lowerBound"`
}

// Insight is a narrative summary of a snapshot produced by the insight service.
type Insight struct {
	Summary         string    `json:"summary"`
	RiskLevel       string    `json:"riskLevel"`
	Recommendations []string  `json:"recommendations"`
	GeneratedAt     time.Time `json:"generatedAt"`
	// SnapshotAt is the timestamp of the snapshot the insight was computed from.
	SnapshotAt time.Time `json:"snapshotAt"`
}

// PriorityFocus is the queue strategy attached to a what-if scenario.
type PriorityFocus string

const (
	FocusNone   PriorityFocus = "None"
	FocusHigh   PriorityFocus = "High"
	FocusUrgent PriorityFocus = "Urgent"
)

// Scenario is a hypothetical staffing change relative to the baseline.
type Scenario struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	AgentAdjustment int             `json:"agentAdjustment"`
	TargetAgents    int             `json:"targetAgents"`
	PriorityFocus   PriorityFocus   `json:"priorityFocus"`
	CreatedAt       time.Time       `json:"createdAt"`
	Results         *ScenarioResult `json:"results,omitempty"`
}

// ScenarioResult is the projected outcome of a scenario.
type ScenarioResult struct {
	BreachReduction float64 `json:"breachReduction"`
	WaitTimeChange  float64 `json:"waitTimeChange"`
	Recommendation  string  `json:"recommendation"`
}

// MemberStatus is the presence state of a team member.
type MemberStatus string

const (
	MemberOnline MemberStatus = "Online"
	MemberBusy   MemberStatus = "Busy"
	MemberAway   MemberStatus = "Away"
)

// TeamMember is one entry of the operations roster.
type TeamMember struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Status        MemberStatus `json:"status"`
	CasesResolved int          `json:"casesResolved"`
	Efficiency    int          `json:"efficiency"`
}

// Alert records a crossing of the critical breach-probability threshold.
type Alert struct {
	Threshold   int       `json:"threshold"`
	Probability int       `json:"probability"`
	QueueLength int       `json:"queueLength"`
	At          time.Time `json:"at"`
}

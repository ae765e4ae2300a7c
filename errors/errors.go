package errors

import "fmt"

// ParseError wraps a specific error with context about where it occurred.
type ParseError struct {
	Line   int
	Record []string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d: %v (record: %v)", e.Line, e.Err, e.Record)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// InsightError wraps a failed call to the insight provider.
// Op is "summarize" or "evaluate".
type InsightError struct {
	Op  string
	Err error
}

func (e *InsightError) Error() string {
	return fmt.Sprintf("insight %s: %v", e.Op, e.Err)
}

func (e *InsightError) Unwrap() error {
	return e.Err
}

// Simulation and insight errors
var (
	ErrInvalidAgentCount  = fmt.Errorf("agent count must be at least 1")
	ErrNotInitialized     = fmt.Errorf("simulation not initialized")
	ErrInsightUnavailable = fmt.Errorf("insight service unavailable")
	ErrMalformedResponse  = fmt.Errorf("malformed insight response")
	ErrInsightDisabled    = fmt.Errorf("insight service disabled")
	ErrRefreshInProgress  = fmt.Errorf("insight refresh already in progress")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrInvalidFocus       = fmt.Errorf("invalid priority focus")
)

// Roster parse errors
var (
	ErrInvalidFieldCount    = fmt.Errorf("invalid field count")
	ErrEmptyName            = fmt.Errorf("empty name")
	ErrInvalidStatus        = fmt.Errorf("invalid status")
	ErrInvalidCasesResolved = fmt.Errorf("invalid cases resolved")
	ErrInvalidEfficiency    = fmt.Errorf("invalid efficiency")
)

package model

import "time"

// BreakerState represents the admission state of a circuit breaker.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// BreakerStatus is a point-in-time snapshot of one breaker's state machine.
type BreakerStatus struct {
	Name          string       `json:"name"`
	State         BreakerState `json:"state"`
	FailureCount  int          `json:"failure_count"`
	SuccessCount  int          `json:"success_count"`
	TotalRequests int64        `json:"total_requests"`
	LastFailureAt *time.Time   `json:"last_failure_at,omitempty"`
	LastSuccessAt *time.Time   `json:"last_success_at,omitempty"`
	NextAttemptAt *time.Time   `json:"next_attempt_at,omitempty"`
}

// BreakerMetrics are cumulative counters over a breaker's lifetime. Unlike
// the window counters in BreakerStatus they are never reset by state
// transitions.
type BreakerMetrics struct {
	Name           string `json:"name"`
	TotalRequests  int64  `json:"total_requests"`
	TotalFailures  int64  `json:"total_failures"`
	TotalSuccesses int64  `json:"total_successes"`
	TotalRejected  int64  `json:"total_rejected"`
	TimesOpened    int64  `json:"times_opened"`
}

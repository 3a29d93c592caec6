package model

import "time"

// BreakerStateChangeEvent is emitted when a breaker moves between states.
type BreakerStateChangeEvent struct {
	Name      string
	From      BreakerState
	To        BreakerState
	At        time.Time
	LastError string
}

// BreakerFailureEvent is emitted for every failed call through a breaker.
type BreakerFailureEvent struct {
	Name         string
	State        BreakerState
	FailureCount int
	Err          string
	At           time.Time
}

// BreakerRejectedEvent is emitted when an open breaker fast-fails a call
// without invoking it.
type BreakerRejectedEvent struct {
	Name       string
	RetryAfter time.Duration
	At         time.Time
}

// PowerTransitionEvent is emitted when the power monitor detects a state
// transition.
type PowerTransitionEvent struct {
	From           PowerState
	To             PowerState
	ChargePercent  float64
	RuntimeSeconds int64
	At             time.Time
}

// ApprovalRequestedEvent is emitted when an alert maps to an action that
// needs a human decision.
type ApprovalRequestedEvent struct {
	AlertID    string
	AlertType  AlertType
	ActionType ActionType
	Risk       RiskLevel
	At         time.Time
}

// SequenceFinishedEvent is emitted when a shutdown sequence completes,
// including dry runs.
type SequenceFinishedEvent struct {
	SequenceID   string
	Trigger      string
	TriggerState PowerState
	DryRun       bool
	StepsTotal   int
	StepsFailed  int
	At           time.Time
}

package biz

import (
	"context"

	"LabSentry/internal/model"
)

// Notifier delivers structured observability events to whatever transport
// the host wires in (webhook, log sink). The core never depends on a
// particular notification transport; implementations live in the data layer.
type Notifier interface {
	// BreakerStateChanged is called on every CLOSED/OPEN/HALF_OPEN move.
	BreakerStateChanged(ctx context.Context, event *model.BreakerStateChangeEvent) error

	// BreakerFailure is called for every failed call through a breaker.
	BreakerFailure(ctx context.Context, event *model.BreakerFailureEvent) error

	// BreakerRejected is called when an open breaker fast-fails a call.
	BreakerRejected(ctx context.Context, event *model.BreakerRejectedEvent) error

	// PowerTransition is called on every detected power state transition.
	PowerTransition(ctx context.Context, event *model.PowerTransitionEvent) error

	// ApprovalRequested is called when an alert is parked for human approval.
	ApprovalRequested(ctx context.Context, event *model.ApprovalRequestedEvent) error

	// SequenceFinished is called when a shutdown sequence completes.
	SequenceFinished(ctx context.Context, event *model.SequenceFinishedEvent) error
}

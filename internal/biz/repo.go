package biz

import (
	"context"
	"time"

	"LabSentry/internal/data"
	"LabSentry/internal/model"
)

// ApprovalRepo persists pending approvals. The claim step must be atomic
// against concurrent approve calls for the same alert id so an action can
// never execute twice.
type ApprovalRepo interface {
	// CreatePending inserts a pending approval. It fails with
	// data.ErrDuplicatePending if a live pending row already exists for
	// the alert id.
	CreatePending(ctx context.Context, approval *data.PendingApproval) error

	// ClaimPending atomically moves the pending row for alertID to
	// approved and returns it. It fails with data.ErrNoPendingApproval if
	// no pending row exists, including when a concurrent claim won.
	ClaimPending(ctx context.Context, alertID, approvedBy string) (*data.PendingApproval, error)

	// MarkOutcome archives a claimed approval with its terminal status.
	MarkOutcome(ctx context.Context, id int64, status model.ApprovalStatus) error

	// ListPending returns live pending approvals, newest first.
	ListPending(ctx context.Context) ([]*data.PendingApproval, error)
}

// RemediationRepo is the append-only audit trail of executed actions.
type RemediationRepo interface {
	Append(ctx context.Context, record *data.RemediationRecord) error

	// ListRecent returns up to limit records, newest first.
	ListRecent(ctx context.Context, limit int) ([]*data.RemediationRecord, error)

	// PruneBefore removes records older than the cutoff and returns how
	// many rows were deleted.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PowerEventRepo is the append-only audit trail of power state transitions.
type PowerEventRepo interface {
	Append(ctx context.Context, event *data.PowerEvent) error

	// ListRecent returns up to limit events, newest first.
	ListRecent(ctx context.Context, limit int) ([]*data.PowerEvent, error)

	// PruneBefore removes events older than the cutoff and returns how
	// many rows were deleted.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SequenceRepo persists one row per executed shutdown sequence.
type SequenceRepo interface {
	Append(ctx context.Context, seq *data.ShutdownSequence) error

	// ListRecent returns up to limit sequences, newest first.
	ListRecent(ctx context.Context, limit int) ([]*data.ShutdownSequence, error)

	// PruneBefore removes sequences older than the cutoff and returns how
	// many rows were deleted.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SequenceGuard is a best-effort cross-process marker preventing two
// LabSentry instances from double-triggering shutdown sequences. The local
// in-process lock remains authoritative; guard failures degrade to it.
type SequenceGuard interface {
	// TryAcquire returns false if another process holds the marker.
	TryAcquire(ctx context.Context, ttl time.Duration) (bool, error)
	Release(ctx context.Context) error
}

// CooldownRepo counts remediation executions per action type in a fixed
// window, backing the auto-remediation rate limit.
type CooldownRepo interface {
	// Increment bumps the window counter for actionType and returns the
	// new count.
	Increment(ctx context.Context, actionType string, window time.Duration) (int64, error)
}

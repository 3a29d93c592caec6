package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"LabSentry/internal/conf"
	"LabSentry/internal/data"
	"LabSentry/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// ActionExecutor performs one remediation action against an external system
// and returns a human-readable result message.
type ActionExecutor func(ctx context.Context, alert *model.Alert) (string, error)

// RemediationAction couples an action type with its risk tier and executor.
// Actions are immutable and registered once at startup.
type RemediationAction struct {
	Type             model.ActionType
	Risk             model.RiskLevel
	RequiresApproval bool
	Execute          ActionExecutor
}

// alertRoutes is the fixed alert-type to action-type mapping. An alert type
// missing from this table is a deliberate "unmapped" case: logged, never
// persisted, never executed.
var alertRoutes = map[model.AlertType]model.ActionType{
	model.AlertWorkloadUnhealthy:   model.ActionRestartWorkload,
	model.AlertWorkloadDown:        model.ActionRestartWorkload,
	model.AlertPoolDegraded:        model.ActionSnapshotVolume,
	model.AlertVolumeUsageCritical: model.ActionPruneImages,
	model.AlertMemoryPressure:      model.ActionStopWorkload,
}

// RemediationUsecase maps alerts to at most one remediation action each,
// gated by risk tier: low-risk actions execute immediately, higher tiers
// park a pending approval for a human. Every execution outcome, success or
// failure, lands in the append-only audit trail.
type RemediationUsecase struct {
	approvals ApprovalRepo
	records   RemediationRepo
	cooldown  CooldownRepo
	notifier  Notifier
	actions   map[model.ActionType]*RemediationAction
	logger    *log.Helper

	execTimeout    time.Duration
	cooldownWindow time.Duration
	cooldownLimit  int64
}

// NewRemediationUsecase builds the engine and registers the action table
// against the workload and snapshot capabilities.
func NewRemediationUsecase(
	c *conf.Remediation,
	approvals ApprovalRepo,
	records RemediationRepo,
	cooldown CooldownRepo,
	notifier Notifier,
	workloads WorkloadController,
	snapshots Snapshotter,
	logger log.Logger,
) *RemediationUsecase {
	uc := &RemediationUsecase{
		approvals:      approvals,
		records:        records,
		cooldown:       cooldown,
		notifier:       notifier,
		logger:         log.NewHelper(logger),
		execTimeout:    60 * time.Second,
		cooldownWindow: 10 * time.Minute,
		cooldownLimit:  3,
	}
	if c != nil {
		if c.ExecTimeout != nil && c.ExecTimeout.AsDuration() > 0 {
			uc.execTimeout = c.ExecTimeout.AsDuration()
		}
		if c.CooldownWindow != nil && c.CooldownWindow.AsDuration() > 0 {
			uc.cooldownWindow = c.CooldownWindow.AsDuration()
		}
		if c.CooldownLimit > 0 {
			uc.cooldownLimit = int64(c.CooldownLimit)
		}
	}

	uc.actions = map[model.ActionType]*RemediationAction{
		model.ActionRestartWorkload: {
			Type:             model.ActionRestartWorkload,
			Risk:             model.RiskLow,
			RequiresApproval: false,
			Execute: func(ctx context.Context, alert *model.Alert) (string, error) {
				target := alert.Target()
				if target == "" {
					return "", fmt.Errorf("alert %s carries no target workload", alert.ID)
				}
				if err := workloads.Restart(ctx, target); err != nil {
					return "", err
				}
				return fmt.Sprintf("workload %s restarted", target), nil
			},
		},
		model.ActionStopWorkload: {
			Type:             model.ActionStopWorkload,
			Risk:             model.RiskHigh,
			RequiresApproval: true,
			Execute: func(ctx context.Context, alert *model.Alert) (string, error) {
				target := alert.Target()
				if target == "" {
					return "", fmt.Errorf("alert %s carries no target workload", alert.ID)
				}
				if err := workloads.Stop(ctx, target); err != nil {
					return "", err
				}
				return fmt.Sprintf("workload %s stopped", target), nil
			},
		},
		model.ActionSnapshotVolume: {
			Type:             model.ActionSnapshotVolume,
			Risk:             model.RiskLow,
			RequiresApproval: false,
			Execute: func(ctx context.Context, alert *model.Alert) (string, error) {
				target := alert.Target()
				if target == "" {
					return "", fmt.Errorf("alert %s carries no target volume", alert.ID)
				}
				name, err := snapshots.Snapshot(ctx, target)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("snapshot %s created", name), nil
			},
		},
		model.ActionPruneImages: {
			Type:             model.ActionPruneImages,
			Risk:             model.RiskMedium,
			RequiresApproval: true,
			Execute: func(ctx context.Context, alert *model.Alert) (string, error) {
				return workloads.PruneImages(ctx)
			},
		},
	}

	return uc
}

// HandleAlert translates an alert into at most one remediation action.
// Unmapped alert types produce no state change. Actions requiring approval
// are parked as a pending approval; the rest execute immediately, subject to
// the per-action-type cooldown.
func (uc *RemediationUsecase) HandleAlert(ctx context.Context, alert *model.Alert) error {
	actionType, ok := alertRoutes[alert.Type]
	if !ok {
		uc.logger.Warnw("no remediation mapped for alert type",
			"alert_id", alert.ID,
			"alert_type", alert.Type,
			"severity", alert.Severity)
		return nil
	}

	action := uc.actions[actionType]

	if action.RequiresApproval {
		approval := &data.PendingApproval{
			AlertID:     alert.ID,
			AlertType:   string(alert.Type),
			ActionType:  string(action.Type),
			Status:      string(model.ApprovalPending),
			RequestedAt: time.Now(),
		}
		if err := approval.SetDetails(alert.Details); err != nil {
			uc.logger.Warnw("failed to encode approval details, persisting without them",
				"alert_id", alert.ID,
				"error", err)
		}

		if err := uc.approvals.CreatePending(ctx, approval); err != nil {
			if errors.Is(err, data.ErrDuplicatePending) {
				uc.logger.Warnw("pending approval already exists for alert",
					"alert_id", alert.ID,
					"action_type", action.Type)
				return nil
			}
			return fmt.Errorf("failed to create pending approval: %w", err)
		}

		uc.logger.Infow("remediation awaiting approval",
			"alert_id", alert.ID,
			"alert_type", alert.Type,
			"action_type", action.Type,
			"risk", action.Risk)

		if uc.notifier != nil {
			if err := uc.notifier.ApprovalRequested(ctx, &model.ApprovalRequestedEvent{
				AlertID:    alert.ID,
				AlertType:  alert.Type,
				ActionType: action.Type,
				Risk:       action.Risk,
				At:         time.Now(),
			}); err != nil {
				uc.logger.Warnw("failed to deliver approval requested event", "alert_id", alert.ID, "error", err)
			}
		}
		return nil
	}

	if !uc.allowAutoExecution(ctx, action.Type) {
		uc.logger.Warnw("auto remediation suppressed by cooldown",
			"alert_id", alert.ID,
			"action_type", action.Type,
			"window", uc.cooldownWindow)
		return nil
	}

	uc.execute(ctx, action, alert, "auto")
	return nil
}

// ApproveAction claims the pending approval for alertID and executes the
// associated action exactly once. The claim is a single compare-and-swap on
// the persisted row, so concurrent approvals for the same alert id cannot
// both execute; the loser gets ApprovalNotFoundError.
func (uc *RemediationUsecase) ApproveAction(ctx context.Context, alertID, approvedBy string) error {
	approval, err := uc.approvals.ClaimPending(ctx, alertID, approvedBy)
	if err != nil {
		if errors.Is(err, data.ErrNoPendingApproval) {
			return &ApprovalNotFoundError{AlertID: alertID}
		}
		return fmt.Errorf("failed to claim pending approval: %w", err)
	}

	uc.logger.Infow("approval claimed",
		"alert_id", alertID,
		"action_type", approval.ActionType,
		"approved_by", approvedBy)

	action, ok := uc.actions[model.ActionType(approval.ActionType)]
	if !ok {
		// An approval row referencing an unregistered action can only come
		// from a version skew; archive it as failed rather than leave it live.
		uc.logger.Errorw("approved action type is not registered",
			"alert_id", alertID,
			"action_type", approval.ActionType)
		if err := uc.approvals.MarkOutcome(ctx, approval.ID, model.ApprovalFailed); err != nil {
			uc.logger.Errorw("failed to archive approval", "alert_id", alertID, "error", err)
		}
		return nil
	}

	alert := &model.Alert{
		ID:      approval.AlertID,
		Type:    model.AlertType(approval.AlertType),
		Details: approval.GetDetails(),
	}

	status := model.ApprovalExecuted
	if failed := uc.execute(ctx, action, alert, approvedBy); failed {
		status = model.ApprovalFailed
	}

	if err := uc.approvals.MarkOutcome(ctx, approval.ID, status); err != nil {
		uc.logger.Errorw("failed to archive approval", "alert_id", alertID, "error", err)
	}
	return nil
}

// execute runs the action and always persists the outcome. Executor errors
// are swallowed after being logged and recorded: a single bad remediation
// must not interrupt the alert pipeline. Returns true if the action failed.
func (uc *RemediationUsecase) execute(ctx context.Context, action *RemediationAction, alert *model.Alert, triggeredBy string) bool {
	execCtx, cancel := context.WithTimeout(ctx, uc.execTimeout)
	defer cancel()

	message, execErr := action.Execute(execCtx, alert)

	record := &data.RemediationRecord{
		AlertID:     alert.ID,
		ActionType:  string(action.Type),
		TriggeredBy: triggeredBy,
		ExecutedAt:  time.Now(),
	}
	if execErr != nil {
		wrapped := &ExecutionError{Action: action.Type, Err: execErr}
		record.Status = string(model.RemediationFailed)
		record.Message = wrapped.Error()
		uc.logger.Errorw("remediation action failed",
			"alert_id", alert.ID,
			"action_type", action.Type,
			"triggered_by", triggeredBy,
			"error", execErr)
	} else {
		record.Status = string(model.RemediationCompleted)
		record.Message = message
		uc.logger.Infow("remediation action completed",
			"alert_id", alert.ID,
			"action_type", action.Type,
			"triggered_by", triggeredBy,
			"result", message)
	}

	if err := uc.records.Append(ctx, record); err != nil {
		uc.logger.Errorw("failed to persist remediation record",
			"alert_id", alert.ID,
			"action_type", action.Type,
			"error", err)
	}

	return execErr != nil
}

// allowAutoExecution enforces the fixed-window per-action-type rate limit on
// autonomous executions. Counter failures fail open: losing Redis must not
// stop low-risk remediations.
func (uc *RemediationUsecase) allowAutoExecution(ctx context.Context, actionType model.ActionType) bool {
	count, err := uc.cooldown.Increment(ctx, string(actionType), uc.cooldownWindow)
	if err != nil {
		uc.logger.Warnw("cooldown counter unavailable, allowing execution",
			"action_type", actionType,
			"error", err)
		return true
	}
	return count <= uc.cooldownLimit
}

// PendingApprovals returns live pending approvals, newest first.
func (uc *RemediationUsecase) PendingApprovals(ctx context.Context) ([]*data.PendingApproval, error) {
	return uc.approvals.ListPending(ctx)
}

// History returns up to limit executed remediation records, newest first.
func (uc *RemediationUsecase) History(ctx context.Context, limit int) ([]*data.RemediationRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return uc.records.ListRecent(ctx, limit)
}

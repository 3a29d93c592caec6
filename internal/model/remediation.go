package model

// RiskLevel classifies how dangerous a remediation action is. Low risk runs
// autonomously, higher tiers wait for a human approval.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ActionType is the closed set of remediation action kinds registered at
// startup.
type ActionType string

const (
	ActionRestartWorkload ActionType = "restart_workload"
	ActionStopWorkload    ActionType = "stop_workload"
	ActionSnapshotVolume  ActionType = "snapshot_volume"
	ActionPruneImages     ActionType = "prune_images"
)

// ApprovalStatus tracks the lifecycle of a pending approval row.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalExecuted ApprovalStatus = "executed"
	ApprovalFailed   ApprovalStatus = "failed"
)

// RemediationStatus is the terminal status of an executed action.
type RemediationStatus string

const (
	RemediationCompleted RemediationStatus = "completed"
	RemediationFailed    RemediationStatus = "failed"
)

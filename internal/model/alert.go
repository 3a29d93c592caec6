package model

import "time"

// AlertType is the closed set of alert kinds the remediation engine knows.
// Anything outside this set is treated as a deliberate "unmapped" case.
type AlertType string

const (
	AlertWorkloadUnhealthy   AlertType = "workload_unhealthy"
	AlertWorkloadDown        AlertType = "workload_down"
	AlertPoolDegraded        AlertType = "pool_degraded"
	AlertVolumeUsageCritical AlertType = "volume_usage_critical"
	AlertMemoryPressure      AlertType = "memory_pressure"
)

// AlertSeverity classifies how urgent an alert is.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is a single alert record handed to the remediation engine by the
// monitoring pipeline.
type Alert struct {
	ID        string
	Type      AlertType
	Severity  AlertSeverity
	Message   string
	Details   map[string]any
	CreatedAt time.Time
}

// Target returns the workload or volume name the alert refers to, if the
// pipeline attached one.
func (a *Alert) Target() string {
	if a.Details == nil {
		return ""
	}
	if t, ok := a.Details["target"].(string); ok {
		return t
	}
	return ""
}

// Package biz contains the incident-response core: circuit breakers,
// alert remediation with approval gating, the power-loss state machine and
// the shutdown orchestrator.
package biz

import (
	"LabSentry/internal/data"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewBreakerRegistry,
	NewRemediationUsecase,
	NewPowerMonitor,
	NewShutdownOrchestrator,
	NewHousekeepingTask,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(ApprovalRepo), new(*data.ApprovalRepo)),
	wire.Bind(new(RemediationRepo), new(*data.RemediationRepo)),
	wire.Bind(new(PowerEventRepo), new(*data.PowerEventRepo)),
	wire.Bind(new(SequenceRepo), new(*data.SequenceRepo)),
	wire.Bind(new(SequenceGuard), new(*data.RedisSequenceGuard)),
	wire.Bind(new(CooldownRepo), new(*data.CooldownRepo)),
	wire.Bind(new(Notifier), new(*data.WebhookNotifier)),
	wire.Bind(new(PowerSource), new(*data.UPSClient)),
	wire.Bind(new(WorkloadController), new(*data.DockerClient)),
	wire.Bind(new(Snapshotter), new(*data.ZFSManager)),
	wire.Bind(new(SyncFlusher), new(*data.ZFSManager)),
)

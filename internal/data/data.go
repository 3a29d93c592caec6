// Package data provides data access layer implementations.
// It handles database connections, Redis markers, and the external
// infrastructure clients (UPS daemon, container engine, ZFS).
package data

import (
	"github.com/google/wire"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewMySQLClient,
	NewRedisClient,
	NewApprovalRepo,
	NewRemediationRepo,
	NewPowerEventRepo,
	NewSequenceRepo,
	NewRedisSequenceGuard,
	NewCooldownRepo,
	NewWebhookNotifier,
	NewUPSClient,
	NewDockerClient,
	NewZFSManager,
)

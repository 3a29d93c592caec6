package biz

import (
	"context"

	"LabSentry/internal/model"
)

// PowerSource polls the UPS/power-supply status. Implemented by the NUT
// upsd client in the data layer.
type PowerSource interface {
	Poll(ctx context.Context) (*model.PowerReading, error)
}

// WorkloadController drives the managed workload layer (Docker Engine in the
// data layer). Stop and Restart treat "already stopped" and "not found" as
// success.
type WorkloadController interface {
	Stop(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error

	// StopAll stops every running managed workload with one bounded bulk
	// command and returns how many were stopped.
	StopAll(ctx context.Context) (int, error)

	// PruneImages removes dangling images and returns a human-readable
	// summary of what was reclaimed.
	PruneImages(ctx context.Context) (string, error)
}

// Snapshotter drives the storage snapshot layer (ZFS in the data layer).
type Snapshotter interface {
	// Snapshot creates a point-in-time snapshot of the volume and returns
	// its full name.
	Snapshot(ctx context.Context, volume string) (string, error)

	// Healthy reports whether the volume's pool is currently healthy.
	Healthy(ctx context.Context, volume string) (bool, error)
}

// SyncFlusher flushes filesystem buffers to disk.
type SyncFlusher interface {
	SyncBuffers(ctx context.Context) error
}

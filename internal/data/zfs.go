package data

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"LabSentry/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	defaultSnapshotPrefix = "labsentry"
	defaultZfsTimeout     = 60 * time.Second
)

// ZFSManager implements biz.Snapshotter and biz.SyncFlusher by shelling
// out to the zfs/zpool CLI tools. Snapshot names follow
// <volume>@<prefix>-<UTC timestamp>.
type ZFSManager struct {
	prefix  string
	timeout time.Duration
	logger  *log.Helper

	// run is swapped out in tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewZFSManager creates a ZFS manager from configuration.
func NewZFSManager(c *conf.Data, logger log.Logger) *ZFSManager {
	prefix := defaultSnapshotPrefix
	timeout := defaultZfsTimeout
	if c != nil && c.Zfs != nil {
		if c.Zfs.SnapshotPrefix != "" {
			prefix = c.Zfs.SnapshotPrefix
		}
		if c.Zfs.Timeout != nil {
			timeout = c.Zfs.Timeout.AsDuration()
		}
	}
	return &ZFSManager{
		prefix:  prefix,
		timeout: timeout,
		logger:  log.NewHelper(logger),
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// Snapshot creates a point-in-time snapshot of the volume and returns its
// full name.
func (z *ZFSManager) Snapshot(ctx context.Context, volume string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, z.timeout)
	defer cancel()

	name := fmt.Sprintf("%s@%s-%s", volume, z.prefix, time.Now().UTC().Format("20060102-150405"))
	if out, err := z.run(ctx, "zfs", "snapshot", name); err != nil {
		return "", fmt.Errorf("zfs snapshot %s failed: %w: %s", name, err, strings.TrimSpace(string(out)))
	}

	z.logger.Infof("created snapshot %s", name)
	return name, nil
}

// Healthy reports whether the volume's pool is ONLINE. The pool is the
// dataset path up to the first slash.
func (z *ZFSManager) Healthy(ctx context.Context, volume string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, z.timeout)
	defer cancel()

	pool := volume
	if idx := strings.IndexByte(volume, '/'); idx > 0 {
		pool = volume[:idx]
	}

	out, err := z.run(ctx, "zpool", "list", "-H", "-o", "health", pool)
	if err != nil {
		return false, fmt.Errorf("zpool health check for %s failed: %w: %s", pool, err, strings.TrimSpace(string(out)))
	}

	return strings.TrimSpace(string(out)) == "ONLINE", nil
}

// SyncBuffers flushes filesystem buffers to disk.
func (z *ZFSManager) SyncBuffers(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, z.timeout)
	defer cancel()

	if out, err := z.run(ctx, "sync"); err != nil {
		return fmt.Errorf("sync failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

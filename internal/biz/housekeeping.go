package biz

import (
	"context"
	"time"

	"LabSentry/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

const defaultRetentionMaxAge = 90 * 24 * time.Hour

// HousekeepingTask prunes aged rows from the audit tables. It runs on a
// cron schedule wired in main; each table is pruned independently so one
// failure does not block the others.
type HousekeepingTask struct {
	records   RemediationRepo
	events    PowerEventRepo
	sequences SequenceRepo
	maxAge    time.Duration
	logger    *log.Helper
}

// NewHousekeepingTask creates the retention pruning task.
func NewHousekeepingTask(
	c *conf.Retention,
	records RemediationRepo,
	events PowerEventRepo,
	sequences SequenceRepo,
	logger log.Logger,
) *HousekeepingTask {
	maxAge := defaultRetentionMaxAge
	if c != nil && c.MaxAge != nil {
		maxAge = c.MaxAge.AsDuration()
	}
	return &HousekeepingTask{
		records:   records,
		events:    events,
		sequences: sequences,
		maxAge:    maxAge,
		logger:    log.NewHelper(logger),
	}
}

// PruneAudit removes audit rows older than the retention window. The last
// error is returned so the cron wrapper can log the run as failed, but
// every table is always attempted.
func (t *HousekeepingTask) PruneAudit(ctx context.Context) error {
	cutoff := time.Now().Add(-t.maxAge)

	var lastErr error

	if n, err := t.records.PruneBefore(ctx, cutoff); err != nil {
		t.logger.Errorw("failed to prune remediation records", "error", err)
		lastErr = err
	} else if n > 0 {
		t.logger.Infow("pruned remediation records", "rows", n)
	}

	if n, err := t.events.PruneBefore(ctx, cutoff); err != nil {
		t.logger.Errorw("failed to prune power events", "error", err)
		lastErr = err
	} else if n > 0 {
		t.logger.Infow("pruned power events", "rows", n)
	}

	if n, err := t.sequences.PruneBefore(ctx, cutoff); err != nil {
		t.logger.Errorw("failed to prune shutdown sequences", "error", err)
		lastErr = err
	} else if n > 0 {
		t.logger.Infow("pruned shutdown sequences", "rows", n)
	}

	return lastErr
}

package main

import (
	"context"
	"time"

	"LabSentry/internal/biz"
	"LabSentry/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// defaultRetentionSchedule runs the prune nightly at 03:30
// (seconds minutes hours dom month dow).
const defaultRetentionSchedule = "0 30 3 * * *"

// StartRetentionCron starts the audit table retention job. Returns nil if
// the job could not be registered; the app still runs, tables just grow.
func StartRetentionCron(c *conf.Retention, task *biz.HousekeepingTask, logger log.Logger) *cron.Cron {
	helper := log.NewHelper(logger)

	schedule := defaultRetentionSchedule
	if c != nil && c.Schedule != "" {
		schedule = c.Schedule
	}

	cr := cron.New(cron.WithSeconds())

	_, err := cr.AddFunc(schedule, func() {
		helper.Info("Starting audit retention prune...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if err := task.PruneAudit(ctx); err != nil {
			helper.Errorw("audit retention prune failed", "error", err)
		} else {
			helper.Info("audit retention prune completed successfully")
		}
	})

	if err != nil {
		helper.Errorw("failed to register retention cron job", "schedule", schedule, "error", err)
		return nil
	}

	cr.Start()
	helper.Infow("retention cron job started", "schedule", schedule)

	return cr
}

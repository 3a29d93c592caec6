package biz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"LabSentry/internal/conf"
	"LabSentry/internal/data"
	"LabSentry/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// Sequence severities. A running sequence suppresses new triggers of the
// same or lower severity; a higher-severity trigger waits for the running
// one to finish and then runs. Sequences never run concurrently and a
// started sequence is never cancelled.
const (
	severityGraceful  = 1
	severityEmergency = 2
)

const guardTTL = 15 * time.Minute

// ShutdownOrchestrator executes graduated, best-effort shutdown sequences
// over the workload and storage layers. Every step is independently fault
// tolerant: a failing step is recorded in the sequence audit row and the
// remaining steps still run. The orchestrator never powers off the host.
type ShutdownOrchestrator struct {
	workloads WorkloadController
	snapshots Snapshotter
	flusher   SyncFlusher
	sequences SequenceRepo
	guard     SequenceGuard
	notifier  Notifier
	logger    *log.Helper

	// enabled is the single safety gate. When false every external call
	// is replaced by a logged no-op while the state machine and audit
	// trail stay identical.
	enabled bool

	nonEssential    []string
	trackedVolumes  []string
	stopTimeout     time.Duration
	bulkStopTimeout time.Duration
	snapshotTimeout time.Duration

	mu      sync.Mutex
	cond    *sync.Cond
	running int // 0 idle, otherwise severity of the in-flight sequence
}

// NewShutdownOrchestrator wires the orchestrator against its capabilities.
func NewShutdownOrchestrator(
	c *conf.Shutdown,
	workloads WorkloadController,
	snapshots Snapshotter,
	flusher SyncFlusher,
	sequences SequenceRepo,
	guard SequenceGuard,
	notifier Notifier,
	logger log.Logger,
) *ShutdownOrchestrator {
	o := &ShutdownOrchestrator{
		workloads:       workloads,
		snapshots:       snapshots,
		flusher:         flusher,
		sequences:       sequences,
		guard:           guard,
		notifier:        notifier,
		logger:          log.NewHelper(logger),
		stopTimeout:     30 * time.Second,
		bulkStopTimeout: 2 * time.Minute,
		snapshotTimeout: 60 * time.Second,
	}
	if c != nil {
		o.enabled = c.Enabled
		o.nonEssential = c.NonEssentialWorkloads
		o.trackedVolumes = c.TrackedVolumes
		if c.StopTimeout != nil && c.StopTimeout.AsDuration() > 0 {
			o.stopTimeout = c.StopTimeout.AsDuration()
		}
		if c.BulkStopTimeout != nil && c.BulkStopTimeout.AsDuration() > 0 {
			o.bulkStopTimeout = c.BulkStopTimeout.AsDuration()
		}
		if c.SnapshotTimeout != nil && c.SnapshotTimeout.AsDuration() > 0 {
			o.snapshotTimeout = c.SnapshotTimeout.AsDuration()
		}
	}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// Enabled reports whether destructive external calls are armed.
func (o *ShutdownOrchestrator) Enabled() bool {
	return o.enabled
}

// Graceful snapshots every currently-healthy tracked volume and stops the
// configured non-essential workloads. Returns the persisted sequence, or nil
// if the trigger was suppressed by a sequence already in flight.
func (o *ShutdownOrchestrator) Graceful(ctx context.Context, triggerState model.PowerState) *data.ShutdownSequence {
	if !o.begin(severityGraceful, "graceful") {
		return nil
	}
	defer o.end()

	// A started sequence runs to completion even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	if !o.acquireGuard(ctx, "graceful") {
		return nil
	}
	defer o.releaseGuard(ctx)

	seq := o.newSequence("graceful", triggerState)
	o.logger.Infow("graceful shutdown sequence started",
		"sequence_id", seq.SequenceID,
		"trigger_state", triggerState,
		"dry_run", seq.DryRun)

	var steps []data.SequenceStep

	for _, volume := range o.trackedVolumes {
		volume := volume
		steps = append(steps, o.runStep(ctx, "snapshot:"+volume,
			fmt.Sprintf("would snapshot volume %s", volume),
			func(ctx context.Context) (string, error) {
				healthy, err := o.snapshots.Healthy(ctx, volume)
				if err != nil {
					return "", fmt.Errorf("health check failed: %w", err)
				}
				if !healthy {
					return fmt.Sprintf("skipped, volume %s is not healthy", volume), nil
				}
				stepCtx, cancel := context.WithTimeout(ctx, o.snapshotTimeout)
				defer cancel()
				name, err := o.snapshots.Snapshot(stepCtx, volume)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("snapshot %s created", name), nil
			}))
	}

	for _, workload := range o.nonEssential {
		workload := workload
		steps = append(steps, o.runStep(ctx, "stop:"+workload,
			fmt.Sprintf("would stop workload %s", workload),
			func(ctx context.Context) (string, error) {
				stepCtx, cancel := context.WithTimeout(ctx, o.stopTimeout)
				defer cancel()
				if err := o.workloads.Stop(stepCtx, workload); err != nil {
					return "", err
				}
				return fmt.Sprintf("workload %s stopped", workload), nil
			}))
	}

	return o.finish(ctx, seq, steps)
}

// Emergency bulk-stops all running workloads, makes a best-effort final
// snapshot pass and flushes filesystem buffers. Returns the persisted
// sequence, or nil if the trigger was suppressed.
func (o *ShutdownOrchestrator) Emergency(ctx context.Context, triggerState model.PowerState) *data.ShutdownSequence {
	if !o.begin(severityEmergency, "emergency") {
		return nil
	}
	defer o.end()

	ctx = context.WithoutCancel(ctx)

	if !o.acquireGuard(ctx, "emergency") {
		return nil
	}
	defer o.releaseGuard(ctx)

	seq := o.newSequence("emergency", triggerState)
	o.logger.Warnw("emergency shutdown sequence started",
		"sequence_id", seq.SequenceID,
		"trigger_state", triggerState,
		"dry_run", seq.DryRun)

	var steps []data.SequenceStep

	steps = append(steps, o.runStep(ctx, "stop-all",
		"would bulk-stop all running workloads",
		func(ctx context.Context) (string, error) {
			stepCtx, cancel := context.WithTimeout(ctx, o.bulkStopTimeout)
			defer cancel()
			stopped, err := o.workloads.StopAll(stepCtx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d workloads stopped", stopped), nil
		}))

	for _, volume := range o.trackedVolumes {
		volume := volume
		steps = append(steps, o.runStep(ctx, "snapshot:"+volume,
			fmt.Sprintf("would snapshot volume %s", volume),
			func(ctx context.Context) (string, error) {
				stepCtx, cancel := context.WithTimeout(ctx, o.snapshotTimeout)
				defer cancel()
				name, err := o.snapshots.Snapshot(stepCtx, volume)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("snapshot %s created", name), nil
			}))
	}

	steps = append(steps, o.runStep(ctx, "sync",
		"would flush filesystem buffers",
		func(ctx context.Context) (string, error) {
			if err := o.flusher.SyncBuffers(ctx); err != nil {
				return "", err
			}
			return "filesystem buffers flushed", nil
		}))

	return o.finish(ctx, seq, steps)
}

// Sequences returns up to limit executed sequences, newest first.
func (o *ShutdownOrchestrator) Sequences(ctx context.Context, limit int) ([]*data.ShutdownSequence, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	return o.sequences.ListRecent(ctx, limit)
}

// begin claims the in-flight slot. Same-or-lower severity triggers are
// suppressed while a sequence runs; a strictly higher severity trigger
// blocks until the running sequence finishes, then claims the slot.
func (o *ShutdownOrchestrator) begin(severity int, trigger string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	for o.running != 0 {
		if severity <= o.running {
			o.logger.Warnw("shutdown sequence suppressed, another sequence is in flight",
				"trigger", trigger,
				"running_severity", o.running)
			return false
		}
		o.cond.Wait()
	}
	o.running = severity
	return true
}

func (o *ShutdownOrchestrator) end() {
	o.mu.Lock()
	o.running = 0
	o.cond.Broadcast()
	o.mu.Unlock()
}

// acquireGuard takes the cross-process marker. Guard outages degrade to the
// local lock; only a positive "another process holds it" suppresses.
func (o *ShutdownOrchestrator) acquireGuard(ctx context.Context, trigger string) bool {
	if o.guard == nil {
		return true
	}
	ok, err := o.guard.TryAcquire(ctx, guardTTL)
	if err != nil {
		o.logger.Warnw("sequence guard unavailable, proceeding on local lock",
			"trigger", trigger,
			"error", err)
		return true
	}
	if !ok {
		o.logger.Warnw("shutdown sequence suppressed, another instance holds the guard",
			"trigger", trigger)
		return false
	}
	return true
}

func (o *ShutdownOrchestrator) releaseGuard(ctx context.Context) {
	if o.guard == nil {
		return
	}
	if err := o.guard.Release(ctx); err != nil {
		o.logger.Warnw("failed to release sequence guard", "error", err)
	}
}

func (o *ShutdownOrchestrator) newSequence(trigger string, triggerState model.PowerState) *data.ShutdownSequence {
	return &data.ShutdownSequence{
		SequenceID:   uuid.NewString(),
		Trigger:      trigger,
		TriggerState: string(triggerState),
		DryRun:       !o.enabled,
		StartedAt:    time.Now(),
	}
}

// runStep executes one sequence step and captures its result. With the
// safety gate off the external call is replaced by a logged no-op that still
// produces an identical audit entry.
func (o *ShutdownOrchestrator) runStep(ctx context.Context, name, dryRunMsg string, fn func(ctx context.Context) (string, error)) data.SequenceStep {
	step := data.SequenceStep{Step: name, At: time.Now()}

	if !o.enabled {
		step.Succeeded = true
		step.Message = "dry-run: " + dryRunMsg
		o.logger.Infow("shutdown step skipped (dry-run)", "step", name)
		return step
	}

	message, err := fn(ctx)
	if err != nil {
		failure := &StepFailure{Step: name, Err: err}
		step.Succeeded = false
		step.Message = failure.Error()
		o.logger.Errorw("shutdown step failed, continuing sequence",
			"step", name,
			"error", err)
		return step
	}

	step.Succeeded = true
	step.Message = message
	o.logger.Infow("shutdown step completed", "step", name, "result", message)
	return step
}

// finish persists the sequence row and emits the completion event.
func (o *ShutdownOrchestrator) finish(ctx context.Context, seq *data.ShutdownSequence, steps []data.SequenceStep) *data.ShutdownSequence {
	seq.FinishedAt = time.Now()
	if err := seq.SetSteps(steps); err != nil {
		o.logger.Errorw("failed to encode sequence steps, row will carry an empty step list",
			"sequence_id", seq.SequenceID,
			"error", err)
	}

	failed := 0
	for _, s := range steps {
		if !s.Succeeded {
			failed++
		}
	}

	if err := o.sequences.Append(ctx, seq); err != nil {
		o.logger.Errorw("failed to persist shutdown sequence",
			"sequence_id", seq.SequenceID,
			"error", err)
	}

	o.logger.Infow("shutdown sequence finished",
		"sequence_id", seq.SequenceID,
		"trigger", seq.Trigger,
		"steps_total", len(steps),
		"steps_failed", failed,
		"dry_run", seq.DryRun)

	if o.notifier != nil {
		if err := o.notifier.SequenceFinished(ctx, &model.SequenceFinishedEvent{
			SequenceID:   seq.SequenceID,
			Trigger:      seq.Trigger,
			TriggerState: model.PowerState(seq.TriggerState),
			DryRun:       seq.DryRun,
			StepsTotal:   len(steps),
			StepsFailed:  failed,
			At:           seq.FinishedAt,
		}); err != nil {
			o.logger.Warnw("failed to deliver sequence finished event",
				"sequence_id", seq.SequenceID,
				"error", err)
		}
	}

	return seq
}

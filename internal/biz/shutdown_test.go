package biz

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"LabSentry/internal/conf"
	"LabSentry/internal/data"
	"LabSentry/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"google.golang.org/protobuf/types/known/durationpb"
)

type shutdownFixture struct {
	o         *ShutdownOrchestrator
	workloads *MockWorkloadController
	snapshots *MockSnapshotter
	flusher   *MockSyncFlusher
	sequences *MockSequenceRepo
	guard     *MockSequenceGuard
	notifier  *recordingNotifier
}

func newTestOrchestrator(c *conf.Shutdown, guard SequenceGuard) *shutdownFixture {
	f := &shutdownFixture{
		workloads: new(MockWorkloadController),
		snapshots: new(MockSnapshotter),
		flusher:   new(MockSyncFlusher),
		sequences: new(MockSequenceRepo),
		notifier:  &recordingNotifier{},
	}
	if g, ok := guard.(*MockSequenceGuard); ok {
		f.guard = g
	}
	f.o = NewShutdownOrchestrator(c, f.workloads, f.snapshots, f.flusher,
		f.sequences, guard, f.notifier, log.NewStdLogger(os.Stdout))
	return f
}

func enabledConf() *conf.Shutdown {
	return &conf.Shutdown{
		Enabled:               true,
		NonEssentialWorkloads: []string{"plex", "qbittorrent"},
		TrackedVolumes:        []string{"tank/media"},
		StopTimeout:           durationpb.New(5 * time.Second),
		BulkStopTimeout:       durationpb.New(10 * time.Second),
		SnapshotTimeout:       durationpb.New(5 * time.Second),
	}
}

// TestGraceful_DryRunMakesNoExternalCalls verifies the disabled safety gate
// replaces every step with a logged no-op while the persisted audit record
// keeps the full step list.
func TestGraceful_DryRunMakesNoExternalCalls(t *testing.T) {
	c := enabledConf()
	c.Enabled = false
	f := newTestOrchestrator(c, nil)

	f.sequences.On("Append", mock.Anything, mock.Anything).Return(nil)

	seq := f.o.Graceful(context.Background(), model.PowerOnBattery)

	assert.NotNil(t, seq)
	assert.True(t, seq.DryRun)
	assert.Equal(t, "graceful", seq.Trigger)
	assert.Equal(t, string(model.PowerOnBattery), seq.TriggerState)

	steps := seq.GetSteps()
	assert.Len(t, steps, 3) // 1 volume + 2 workloads
	for _, s := range steps {
		assert.True(t, s.Succeeded)
		assert.True(t, strings.HasPrefix(s.Message, "dry-run: "))
	}

	f.workloads.AssertNotCalled(t, "Stop", mock.Anything, mock.Anything)
	f.snapshots.AssertNotCalled(t, "Snapshot", mock.Anything, mock.Anything)
	f.snapshots.AssertNotCalled(t, "Healthy", mock.Anything, mock.Anything)
	f.sequences.AssertExpectations(t)

	assert.Len(t, f.notifier.finished, 1)
	assert.True(t, f.notifier.finished[0].DryRun)
	assert.Equal(t, 3, f.notifier.finished[0].StepsTotal)
	assert.Equal(t, 0, f.notifier.finished[0].StepsFailed)
}

// TestGraceful_SnapshotsHealthyVolumesAndStopsWorkloads verifies the armed
// graceful sequence runs snapshots before stops and records each result.
func TestGraceful_SnapshotsHealthyVolumesAndStopsWorkloads(t *testing.T) {
	f := newTestOrchestrator(enabledConf(), nil)

	f.snapshots.On("Healthy", mock.Anything, "tank/media").Return(true, nil)
	f.snapshots.On("Snapshot", mock.Anything, "tank/media").Return("tank/media@labsentry-20260829-120000", nil)
	f.workloads.On("Stop", mock.Anything, "plex").Return(nil)
	f.workloads.On("Stop", mock.Anything, "qbittorrent").Return(nil)
	f.sequences.On("Append", mock.Anything, mock.Anything).Return(nil)

	seq := f.o.Graceful(context.Background(), model.PowerOnBattery)

	assert.NotNil(t, seq)
	assert.False(t, seq.DryRun)

	steps := seq.GetSteps()
	assert.Len(t, steps, 3)
	assert.Equal(t, "snapshot:tank/media", steps[0].Step)
	assert.Equal(t, "stop:plex", steps[1].Step)
	assert.Equal(t, "stop:qbittorrent", steps[2].Step)
	for _, s := range steps {
		assert.True(t, s.Succeeded)
	}

	f.snapshots.AssertExpectations(t)
	f.workloads.AssertExpectations(t)
}

// TestGraceful_UnhealthyVolumeIsSkippedNotFailed verifies a degraded pool
// skips its snapshot step without marking the step failed.
func TestGraceful_UnhealthyVolumeIsSkippedNotFailed(t *testing.T) {
	c := enabledConf()
	c.NonEssentialWorkloads = nil
	f := newTestOrchestrator(c, nil)

	f.snapshots.On("Healthy", mock.Anything, "tank/media").Return(false, nil)
	f.sequences.On("Append", mock.Anything, mock.Anything).Return(nil)

	seq := f.o.Graceful(context.Background(), model.PowerLowBattery)

	steps := seq.GetSteps()
	assert.Len(t, steps, 1)
	assert.True(t, steps[0].Succeeded)
	assert.Contains(t, steps[0].Message, "not healthy")

	f.snapshots.AssertNotCalled(t, "Snapshot", mock.Anything, mock.Anything)
}

// TestGraceful_StepFailureContinuesSequence verifies a failing step is
// recorded and the remaining steps still run.
func TestGraceful_StepFailureContinuesSequence(t *testing.T) {
	f := newTestOrchestrator(enabledConf(), nil)

	f.snapshots.On("Healthy", mock.Anything, "tank/media").Return(true, nil)
	f.snapshots.On("Snapshot", mock.Anything, "tank/media").Return("", errors.New("dataset is busy"))
	f.workloads.On("Stop", mock.Anything, "plex").Return(nil)
	f.workloads.On("Stop", mock.Anything, "qbittorrent").Return(nil)
	f.sequences.On("Append", mock.Anything, mock.Anything).Return(nil)

	seq := f.o.Graceful(context.Background(), model.PowerOnBattery)

	steps := seq.GetSteps()
	assert.Len(t, steps, 3)
	assert.False(t, steps[0].Succeeded)
	assert.Contains(t, steps[0].Message, "dataset is busy")
	assert.True(t, steps[1].Succeeded)
	assert.True(t, steps[2].Succeeded)

	f.workloads.AssertExpectations(t)

	assert.Len(t, f.notifier.finished, 1)
	assert.Equal(t, 1, f.notifier.finished[0].StepsFailed)
}

// TestEmergency_RunsBulkStopThenSnapshotsThenSync verifies the emergency
// step order and that snapshots skip the health check entirely.
func TestEmergency_RunsBulkStopThenSnapshotsThenSync(t *testing.T) {
	f := newTestOrchestrator(enabledConf(), nil)

	f.workloads.On("StopAll", mock.Anything).Return(14, nil)
	f.snapshots.On("Snapshot", mock.Anything, "tank/media").Return("tank/media@labsentry-20260829-120500", nil)
	f.flusher.On("SyncBuffers", mock.Anything).Return(nil)
	f.sequences.On("Append", mock.Anything, mock.Anything).Return(nil)

	seq := f.o.Emergency(context.Background(), model.PowerCritical)

	assert.NotNil(t, seq)
	assert.Equal(t, "emergency", seq.Trigger)

	steps := seq.GetSteps()
	assert.Len(t, steps, 3)
	assert.Equal(t, "stop-all", steps[0].Step)
	assert.Equal(t, "snapshot:tank/media", steps[1].Step)
	assert.Equal(t, "sync", steps[2].Step)
	assert.Contains(t, steps[0].Message, "14 workloads stopped")

	f.snapshots.AssertNotCalled(t, "Healthy", mock.Anything, mock.Anything)
	f.flusher.AssertExpectations(t)
}

// TestGraceful_SuppressedWhileSequenceInFlight verifies a same-severity
// trigger during a running sequence returns nil without executing anything.
func TestGraceful_SuppressedWhileSequenceInFlight(t *testing.T) {
	c := enabledConf()
	c.NonEssentialWorkloads = []string{"plex"}
	c.TrackedVolumes = nil
	f := newTestOrchestrator(c, nil)

	firstEntered := make(chan struct{})
	releaseFirst := make(chan struct{})

	f.workloads.On("Stop", mock.Anything, "plex").Run(func(args mock.Arguments) {
		close(firstEntered)
		<-releaseFirst
	}).Return(nil).Once()
	f.sequences.On("Append", mock.Anything, mock.Anything).Return(nil).Once()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.o.Graceful(context.Background(), model.PowerOnBattery)
	}()

	<-firstEntered
	suppressed := f.o.Graceful(context.Background(), model.PowerLowBattery)
	assert.Nil(t, suppressed)

	close(releaseFirst)
	wg.Wait()

	f.workloads.AssertExpectations(t)
	f.sequences.AssertExpectations(t)
}

// TestEmergency_WaitsForRunningGraceful verifies a higher-severity trigger
// is never dropped: it waits out the running graceful sequence and then
// runs.
func TestEmergency_WaitsForRunningGraceful(t *testing.T) {
	c := enabledConf()
	c.NonEssentialWorkloads = []string{"plex"}
	c.TrackedVolumes = nil
	f := newTestOrchestrator(c, nil)

	gracefulEntered := make(chan struct{})
	releaseGraceful := make(chan struct{})

	f.workloads.On("Stop", mock.Anything, "plex").Run(func(args mock.Arguments) {
		close(gracefulEntered)
		<-releaseGraceful
	}).Return(nil).Once()
	f.workloads.On("StopAll", mock.Anything).Return(3, nil).Once()
	f.flusher.On("SyncBuffers", mock.Anything).Return(nil).Once()
	f.sequences.On("Append", mock.Anything, mock.Anything).Return(nil).Twice()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.o.Graceful(context.Background(), model.PowerOnBattery)
	}()
	<-gracefulEntered

	emergencyDone := make(chan *data.ShutdownSequence, 1)
	go func() {
		emergencyDone <- f.o.Emergency(context.Background(), model.PowerCritical)
	}()

	// The emergency trigger must be parked, not dropped
	select {
	case <-emergencyDone:
		t.Fatal("emergency ran while graceful sequence was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(releaseGraceful)
	wg.Wait()

	select {
	case seq := <-emergencyDone:
		assert.NotNil(t, seq)
		assert.Equal(t, "emergency", seq.Trigger)
	case <-time.After(2 * time.Second):
		t.Fatal("emergency sequence never ran after graceful finished")
	}

	f.workloads.AssertExpectations(t)
}

// TestGraceful_GuardHeldByAnotherInstance verifies a held cross-process
// guard suppresses the sequence.
func TestGraceful_GuardHeldByAnotherInstance(t *testing.T) {
	guard := new(MockSequenceGuard)
	f := newTestOrchestrator(enabledConf(), guard)

	guard.On("TryAcquire", mock.Anything, guardTTL).Return(false, nil)

	seq := f.o.Graceful(context.Background(), model.PowerOnBattery)

	assert.Nil(t, seq)
	f.sequences.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	guard.AssertExpectations(t)
}

// TestGraceful_GuardOutageDegradesToLocalLock verifies a guard error never
// blocks the sequence; the in-process lock remains authoritative.
func TestGraceful_GuardOutageDegradesToLocalLock(t *testing.T) {
	c := enabledConf()
	c.TrackedVolumes = nil
	c.NonEssentialWorkloads = []string{"plex"}
	guard := new(MockSequenceGuard)
	f := newTestOrchestrator(c, guard)

	guard.On("TryAcquire", mock.Anything, guardTTL).Return(false, errors.New("redis down"))
	guard.On("Release", mock.Anything).Return(nil)
	f.workloads.On("Stop", mock.Anything, "plex").Return(nil)
	f.sequences.On("Append", mock.Anything, mock.Anything).Return(nil)

	seq := f.o.Graceful(context.Background(), model.PowerOnBattery)

	assert.NotNil(t, seq)
	f.workloads.AssertExpectations(t)
	guard.AssertExpectations(t)
}

// TestGraceful_PersistFailureStillReturnsSequence verifies a broken audit
// store does not abort the sequence result.
func TestGraceful_PersistFailureStillReturnsSequence(t *testing.T) {
	c := enabledConf()
	c.TrackedVolumes = nil
	c.NonEssentialWorkloads = []string{"plex"}
	f := newTestOrchestrator(c, nil)

	f.workloads.On("Stop", mock.Anything, "plex").Return(nil)
	f.sequences.On("Append", mock.Anything, mock.Anything).Return(errors.New("database gone"))

	seq := f.o.Graceful(context.Background(), model.PowerOnBattery)

	assert.NotNil(t, seq)
	assert.Len(t, f.notifier.finished, 1)
}

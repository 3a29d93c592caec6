package biz

import (
	"context"
	"sync"
	"time"

	"LabSentry/internal/data"
	"LabSentry/internal/model"

	"github.com/stretchr/testify/mock"
)

// MockApprovalRepo mocks the pending approval store.
type MockApprovalRepo struct {
	mock.Mock
}

func (m *MockApprovalRepo) CreatePending(ctx context.Context, approval *data.PendingApproval) error {
	args := m.Called(ctx, approval)
	return args.Error(0)
}

func (m *MockApprovalRepo) ClaimPending(ctx context.Context, alertID, approvedBy string) (*data.PendingApproval, error) {
	args := m.Called(ctx, alertID, approvedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*data.PendingApproval), args.Error(1)
}

func (m *MockApprovalRepo) MarkOutcome(ctx context.Context, id int64, status model.ApprovalStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockApprovalRepo) ListPending(ctx context.Context) ([]*data.PendingApproval, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*data.PendingApproval), args.Error(1)
}

// MockRemediationRepo mocks the remediation audit trail.
type MockRemediationRepo struct {
	mock.Mock
}

func (m *MockRemediationRepo) Append(ctx context.Context, record *data.RemediationRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRemediationRepo) ListRecent(ctx context.Context, limit int) ([]*data.RemediationRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*data.RemediationRecord), args.Error(1)
}

func (m *MockRemediationRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockPowerEventRepo mocks the power transition audit trail.
type MockPowerEventRepo struct {
	mock.Mock
}

func (m *MockPowerEventRepo) Append(ctx context.Context, event *data.PowerEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPowerEventRepo) ListRecent(ctx context.Context, limit int) ([]*data.PowerEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*data.PowerEvent), args.Error(1)
}

func (m *MockPowerEventRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockSequenceRepo mocks the shutdown sequence audit trail.
type MockSequenceRepo struct {
	mock.Mock
}

func (m *MockSequenceRepo) Append(ctx context.Context, seq *data.ShutdownSequence) error {
	args := m.Called(ctx, seq)
	return args.Error(0)
}

func (m *MockSequenceRepo) ListRecent(ctx context.Context, limit int) ([]*data.ShutdownSequence, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*data.ShutdownSequence), args.Error(1)
}

func (m *MockSequenceRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockCooldownRepo mocks the auto-remediation rate limit counter.
type MockCooldownRepo struct {
	mock.Mock
}

func (m *MockCooldownRepo) Increment(ctx context.Context, actionType string, window time.Duration) (int64, error) {
	args := m.Called(ctx, actionType, window)
	return args.Get(0).(int64), args.Error(1)
}

// MockSequenceGuard mocks the cross-process sequence marker.
type MockSequenceGuard struct {
	mock.Mock
}

func (m *MockSequenceGuard) TryAcquire(ctx context.Context, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockSequenceGuard) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockWorkloadController mocks the workload layer.
type MockWorkloadController struct {
	mock.Mock
}

func (m *MockWorkloadController) Stop(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockWorkloadController) Restart(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockWorkloadController) StopAll(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockWorkloadController) PruneImages(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// MockSnapshotter mocks the storage snapshot layer.
type MockSnapshotter struct {
	mock.Mock
}

func (m *MockSnapshotter) Snapshot(ctx context.Context, volume string) (string, error) {
	args := m.Called(ctx, volume)
	return args.String(0), args.Error(1)
}

func (m *MockSnapshotter) Healthy(ctx context.Context, volume string) (bool, error) {
	args := m.Called(ctx, volume)
	return args.Bool(0), args.Error(1)
}

// MockSyncFlusher mocks the filesystem buffer flush.
type MockSyncFlusher struct {
	mock.Mock
}

func (m *MockSyncFlusher) SyncBuffers(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockPowerSource mocks the UPS status source.
type MockPowerSource struct {
	mock.Mock
}

func (m *MockPowerSource) Poll(ctx context.Context) (*model.PowerReading, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PowerReading), args.Error(1)
}

// recordingNotifier captures every delivered event so tests can assert on
// the notification stream without ordering expectations.
type recordingNotifier struct {
	mu           sync.Mutex
	stateChanges []*model.BreakerStateChangeEvent
	failures     []*model.BreakerFailureEvent
	rejected     []*model.BreakerRejectedEvent
	transitions  []*model.PowerTransitionEvent
	approvals    []*model.ApprovalRequestedEvent
	finished     []*model.SequenceFinishedEvent
}

func (n *recordingNotifier) BreakerStateChanged(_ context.Context, event *model.BreakerStateChangeEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stateChanges = append(n.stateChanges, event)
	return nil
}

func (n *recordingNotifier) BreakerFailure(_ context.Context, event *model.BreakerFailureEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, event)
	return nil
}

func (n *recordingNotifier) BreakerRejected(_ context.Context, event *model.BreakerRejectedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejected = append(n.rejected, event)
	return nil
}

func (n *recordingNotifier) PowerTransition(_ context.Context, event *model.PowerTransitionEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transitions = append(n.transitions, event)
	return nil
}

func (n *recordingNotifier) ApprovalRequested(_ context.Context, event *model.ApprovalRequestedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approvals = append(n.approvals, event)
	return nil
}

func (n *recordingNotifier) SequenceFinished(_ context.Context, event *model.SequenceFinishedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.finished = append(n.finished, event)
	return nil
}

package biz

import (
	"context"
	"sync"
	"time"

	"LabSentry/internal/conf"
	"LabSentry/internal/data"
	"LabSentry/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// upsBreakerName keys the circuit breaker wrapping upsd polls.
const upsBreakerName = "ups"

// PowerMonitor is a state machine over discrete power states, driven by
// periodic polling of the UPS status source. On a transition it persists a
// power event, emits a transition event and dispatches the matching shutdown
// response directly - never through the approval workflow, since a shutdown
// response must not block on a human during imminent power loss.
type PowerMonitor struct {
	source       PowerSource
	breakers     *BreakerRegistry
	orchestrator *ShutdownOrchestrator
	events       PowerEventRepo
	notifier     Notifier
	logger       *log.Helper

	pollOnline        time.Duration
	pollOnBattery     time.Duration
	lowBatteryPercent float64
	criticalRuntime   time.Duration

	mu           sync.RWMutex
	current      model.PowerState
	previous     model.PowerState
	transitionAt time.Time
	lastReading  *model.PowerReading
	// gracefulRun marks that the graceful sequence already ran during the
	// current on-battery episode; it resets when power returns online.
	gracefulRun bool
}

// NewPowerMonitor builds the monitor. The stored state starts as online;
// the first poll corrects it if the process starts during an outage.
func NewPowerMonitor(
	c *conf.Power,
	source PowerSource,
	breakers *BreakerRegistry,
	orchestrator *ShutdownOrchestrator,
	events PowerEventRepo,
	notifier Notifier,
	logger log.Logger,
) *PowerMonitor {
	m := &PowerMonitor{
		source:            source,
		breakers:          breakers,
		orchestrator:      orchestrator,
		events:            events,
		notifier:          notifier,
		logger:            log.NewHelper(logger),
		pollOnline:        60 * time.Second,
		pollOnBattery:     10 * time.Second,
		lowBatteryPercent: 25,
		criticalRuntime:   10 * time.Minute,
		current:           model.PowerOnline,
		previous:          model.PowerOnline,
	}
	if c != nil {
		if c.PollIntervalOnline != nil && c.PollIntervalOnline.AsDuration() > 0 {
			m.pollOnline = c.PollIntervalOnline.AsDuration()
		}
		if c.PollIntervalOnBattery != nil && c.PollIntervalOnBattery.AsDuration() > 0 {
			m.pollOnBattery = c.PollIntervalOnBattery.AsDuration()
		}
		if c.LowBatteryPercent > 0 {
			m.lowBatteryPercent = float64(c.LowBatteryPercent)
		}
		if c.CriticalRuntime != nil && c.CriticalRuntime.AsDuration() > 0 {
			m.criticalRuntime = c.CriticalRuntime.AsDuration()
		}
	}
	return m
}

// Run polls until ctx is cancelled. The poll cadence adapts: a longer
// interval while online, a shorter one once any on-battery state is active.
func (m *PowerMonitor) Run(ctx context.Context) error {
	m.logger.Infow("power monitor started",
		"poll_interval_online", m.pollOnline,
		"poll_interval_on_battery", m.pollOnBattery,
		"low_battery_percent", m.lowBatteryPercent,
		"critical_runtime", m.criticalRuntime)

	timer := time.NewTimer(m.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("power monitor stopped")
			return nil
		case <-timer.C:
			m.poll(ctx)
			timer.Reset(m.interval())
		}
	}
}

func (m *PowerMonitor) interval() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == model.PowerOnline {
		return m.pollOnline
	}
	return m.pollOnBattery
}

// poll fetches one reading through the ups breaker. Poll failures leave the
// stored state untouched; the state machine only advances on evidence.
func (m *PowerMonitor) poll(ctx context.Context) {
	var reading *model.PowerReading
	err := m.breakers.Get(upsBreakerName).Execute(ctx, func(ctx context.Context) error {
		r, err := m.source.Poll(ctx)
		if err != nil {
			return err
		}
		reading = r
		return nil
	})
	if err != nil {
		m.logger.Warnw("power status poll failed", "error", err)
		return
	}

	m.evaluate(ctx, reading)
}

// classify derives the discrete power state from one reading. Evaluated
// most-severe first so a reading that is both low-charge and low-runtime
// lands in critical.
func (m *PowerMonitor) classify(r *model.PowerReading) model.PowerState {
	if !r.OnBattery {
		return model.PowerOnline
	}
	if float64(r.RuntimeSeconds) <= m.criticalRuntime.Seconds() {
		return model.PowerCritical
	}
	if r.ChargePercent <= m.lowBatteryPercent {
		return model.PowerLowBattery
	}
	return model.PowerOnBattery
}

// evaluate applies one reading to the state machine. Repeated readings in
// the same state never re-emit a transition.
func (m *PowerMonitor) evaluate(ctx context.Context, reading *model.PowerReading) {
	newState := m.classify(reading)

	m.mu.Lock()
	from := m.current
	m.lastReading = reading
	if newState == from {
		m.mu.Unlock()
		return
	}

	now := time.Now()
	m.previous = from
	m.current = newState
	m.transitionAt = now

	runGraceful := false
	runEmergency := false
	switch {
	case newState == model.PowerOnline:
		m.gracefulRun = false
	case from == model.PowerOnline && newState == model.PowerOnBattery:
		runGraceful = !m.gracefulRun
		m.gracefulRun = true
	case newState.Severity() > from.Severity():
		// Escalation into low-battery or critical
		runGraceful = !m.gracefulRun
		m.gracefulRun = true
		runEmergency = newState == model.PowerCritical
	}
	m.mu.Unlock()

	m.logger.Warnw("power state transition",
		"from", from,
		"to", newState,
		"charge_percent", reading.ChargePercent,
		"runtime_seconds", reading.RuntimeSeconds,
		"raw_status", reading.RawStatus)

	if err := m.events.Append(ctx, &data.PowerEvent{
		FromState:      string(from),
		ToState:        string(newState),
		ChargePercent:  reading.ChargePercent,
		RuntimeSeconds: reading.RuntimeSeconds,
		RecordedAt:     now,
	}); err != nil {
		m.logger.Errorw("failed to persist power event", "from", from, "to", newState, "error", err)
	}

	if m.notifier != nil {
		if err := m.notifier.PowerTransition(ctx, &model.PowerTransitionEvent{
			From:           from,
			To:             newState,
			ChargePercent:  reading.ChargePercent,
			RuntimeSeconds: reading.RuntimeSeconds,
			At:             now,
		}); err != nil {
			m.logger.Warnw("failed to deliver power transition event", "error", err)
		}
	}

	if newState == model.PowerOnline {
		m.logger.Infow("power restored, no automatic resumption", "previous_state", from)
		return
	}

	if runGraceful {
		m.orchestrator.Graceful(ctx, newState)
	}
	if runEmergency {
		m.orchestrator.Emergency(ctx, newState)
	}
}

// Status returns the monitor's externally visible state.
func (m *PowerMonitor) Status() *model.PowerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := &model.PowerStatus{
		State:         m.current,
		PreviousState: m.previous,
	}
	if m.lastReading != nil {
		st.ChargePercent = m.lastReading.ChargePercent
		st.RuntimeSecs = m.lastReading.RuntimeSeconds
	}
	if !m.transitionAt.IsZero() {
		t := m.transitionAt
		st.TransitionAt = &t
	}
	return st
}

// Events returns up to limit persisted power transitions, newest first.
func (m *PowerMonitor) Events(ctx context.Context, limit int) ([]*data.PowerEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return m.events.ListRecent(ctx, limit)
}

package biz

import (
	"context"
	"sort"
	"sync"
	"time"

	"LabSentry/internal/conf"
	"LabSentry/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// Operation is a single call to an external dependency, wrapped by a breaker.
type Operation func(ctx context.Context) error

// BreakerConfig holds the thresholds of one circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens a
	// closed breaker.
	FailureThreshold int
	// SuccessThreshold is the probe-success count that closes a half-open
	// breaker.
	SuccessThreshold int
	// VolumeThreshold is the minimum call volume before failures are
	// allowed to open the breaker at all.
	VolumeThreshold int
	// Timeout is how long an open breaker rejects calls before admitting
	// a half-open probe.
	Timeout time.Duration
}

// BreakerConfigFromConf converts the bootstrap config section into a
// BreakerConfig, falling back to safe values for unset fields.
func BreakerConfigFromConf(c *conf.Breaker) BreakerConfig {
	cfg := BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		VolumeThreshold:  10,
		Timeout:          60 * time.Second,
	}
	if c == nil {
		return cfg
	}
	if c.FailureThreshold > 0 {
		cfg.FailureThreshold = int(c.FailureThreshold)
	}
	if c.SuccessThreshold > 0 {
		cfg.SuccessThreshold = int(c.SuccessThreshold)
	}
	if c.VolumeThreshold > 0 {
		cfg.VolumeThreshold = int(c.VolumeThreshold)
	}
	if c.Timeout != nil && c.Timeout.AsDuration() > 0 {
		cfg.Timeout = c.Timeout.AsDuration()
	}
	return cfg
}

// CircuitBreaker is a per-dependency fault isolation wrapper. It fails fast
// toward a known-bad dependency, periodically admits a probe to test for
// recovery, and never retries on the caller's behalf. The wrapped operation's
// error is always propagated unchanged; the breaker only adds admission
// control and bookkeeping.
type CircuitBreaker struct {
	name     string
	cfg      BreakerConfig
	notifier Notifier
	logger   *log.Helper

	// now is replaceable for deterministic tests
	now func() time.Time

	mu            sync.Mutex
	state         model.BreakerState
	failureCount  int
	successCount  int
	totalRequests int64
	lastFailureAt time.Time
	lastSuccessAt time.Time
	nextAttemptAt time.Time

	// lifetime counters, never reset by state transitions
	lifetimeRequests  int64
	lifetimeFailures  int64
	lifetimeSuccesses int64
	lifetimeRejected  int64
	timesOpened       int64
}

// NewCircuitBreaker creates a closed breaker for the named dependency.
func NewCircuitBreaker(name string, cfg BreakerConfig, notifier Notifier, logger log.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		name:     name,
		cfg:      cfg,
		notifier: notifier,
		logger:   log.NewHelper(logger),
		now:      time.Now,
		state:    model.BreakerClosed,
	}
}

// Execute runs op through the breaker. If the breaker is open and the
// timeout has not elapsed, op is never invoked and a CircuitOpenError is
// returned. Otherwise op runs and its error (or nil) is returned unchanged
// after bookkeeping.
func (b *CircuitBreaker) Execute(ctx context.Context, op Operation) error {
	if err := b.admit(ctx); err != nil {
		return err
	}

	err := op(ctx)
	if err != nil {
		b.onFailure(ctx, err)
		return err
	}

	b.onSuccess(ctx)
	return nil
}

// admit decides whether a call may proceed. An open breaker whose timeout
// has elapsed moves to half-open and admits exactly this call as a probe.
func (b *CircuitBreaker) admit(ctx context.Context) error {
	b.mu.Lock()

	if b.state != model.BreakerOpen {
		b.mu.Unlock()
		return nil
	}

	now := b.now()
	if now.Before(b.nextAttemptAt) {
		retryAfter := b.nextAttemptAt.Sub(now)
		b.lifetimeRejected++
		b.mu.Unlock()

		b.emitRejected(ctx, &model.BreakerRejectedEvent{
			Name:       b.name,
			RetryAfter: retryAfter,
			At:         now,
		})

		return &CircuitOpenError{Name: b.name, RetryAfter: retryAfter}
	}

	// Timeout elapsed: admit this call as a half-open probe
	from := b.state
	b.state = model.BreakerHalfOpen
	b.successCount = 0
	b.mu.Unlock()

	b.emitStateChange(ctx, from, model.BreakerHalfOpen, now, "")

	return nil
}

// onSuccess records a successful call and closes a half-open breaker once
// enough probes have succeeded.
func (b *CircuitBreaker) onSuccess(ctx context.Context) {
	b.mu.Lock()

	now := b.now()
	b.totalRequests++
	b.lifetimeRequests++
	b.lifetimeSuccesses++
	b.failureCount = 0
	b.lastSuccessAt = now

	var closed bool
	if b.state == model.BreakerHalfOpen {
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = model.BreakerClosed
			b.failureCount = 0
			b.successCount = 0
			b.totalRequests = 0
			b.nextAttemptAt = time.Time{}
			closed = true
		}
	}
	b.mu.Unlock()

	if closed {
		b.emitStateChange(ctx, model.BreakerHalfOpen, model.BreakerClosed, now, "")
	}
}

// onFailure records a failed call. A half-open breaker reopens on a single
// probe failure; a closed breaker opens once both the volume and failure
// thresholds are met.
func (b *CircuitBreaker) onFailure(ctx context.Context, opErr error) {
	b.mu.Lock()

	now := b.now()
	b.totalRequests++
	b.lifetimeRequests++
	b.lifetimeFailures++
	b.failureCount++
	b.lastFailureAt = now

	from := b.state
	var opened bool
	switch b.state {
	case model.BreakerHalfOpen:
		// A single failed probe reopens immediately
		opened = true
	case model.BreakerClosed:
		if b.totalRequests >= int64(b.cfg.VolumeThreshold) && b.failureCount >= b.cfg.FailureThreshold {
			opened = true
		}
	}
	if opened {
		b.state = model.BreakerOpen
		b.nextAttemptAt = now.Add(b.cfg.Timeout)
		b.successCount = 0
		b.timesOpened++
	}

	state := b.state
	failureCount := b.failureCount
	b.mu.Unlock()

	b.emitFailure(ctx, &model.BreakerFailureEvent{
		Name:         b.name,
		State:        state,
		FailureCount: failureCount,
		Err:          opErr.Error(),
		At:           now,
	})

	if opened {
		b.emitStateChange(ctx, from, model.BreakerOpen, now, opErr.Error())
	}
}

// Status returns a snapshot of the breaker's current state machine.
func (b *CircuitBreaker) Status() *model.BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := &model.BreakerStatus{
		Name:          b.name,
		State:         b.state,
		FailureCount:  b.failureCount,
		SuccessCount:  b.successCount,
		TotalRequests: b.totalRequests,
	}
	if !b.lastFailureAt.IsZero() {
		t := b.lastFailureAt
		st.LastFailureAt = &t
	}
	if !b.lastSuccessAt.IsZero() {
		t := b.lastSuccessAt
		st.LastSuccessAt = &t
	}
	if !b.nextAttemptAt.IsZero() && b.state == model.BreakerOpen {
		t := b.nextAttemptAt
		st.NextAttemptAt = &t
	}
	return st
}

// Metrics returns the breaker's lifetime counters.
func (b *CircuitBreaker) Metrics() *model.BreakerMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	return &model.BreakerMetrics{
		Name:           b.name,
		TotalRequests:  b.lifetimeRequests,
		TotalFailures:  b.lifetimeFailures,
		TotalSuccesses: b.lifetimeSuccesses,
		TotalRejected:  b.lifetimeRejected,
		TimesOpened:    b.timesOpened,
	}
}

func (b *CircuitBreaker) emitStateChange(ctx context.Context, from, to model.BreakerState, at time.Time, lastErr string) {
	b.logger.Infow("circuit breaker state changed",
		"breaker", b.name,
		"from", from,
		"to", to,
		"last_error", lastErr)

	if b.notifier == nil {
		return
	}
	if err := b.notifier.BreakerStateChanged(ctx, &model.BreakerStateChangeEvent{
		Name:      b.name,
		From:      from,
		To:        to,
		At:        at,
		LastError: lastErr,
	}); err != nil {
		b.logger.Warnw("failed to deliver breaker state change event", "breaker", b.name, "error", err)
	}
}

func (b *CircuitBreaker) emitFailure(ctx context.Context, event *model.BreakerFailureEvent) {
	b.logger.Debugw("call failed through circuit breaker",
		"breaker", b.name,
		"state", event.State,
		"failure_count", event.FailureCount,
		"error", event.Err)

	if b.notifier == nil {
		return
	}
	if err := b.notifier.BreakerFailure(ctx, event); err != nil {
		b.logger.Warnw("failed to deliver breaker failure event", "breaker", b.name, "error", err)
	}
}

func (b *CircuitBreaker) emitRejected(ctx context.Context, event *model.BreakerRejectedEvent) {
	b.logger.Debugw("call rejected by open circuit breaker",
		"breaker", b.name,
		"retry_after", event.RetryAfter)

	if b.notifier == nil {
		return
	}
	if err := b.notifier.BreakerRejected(ctx, event); err != nil {
		b.logger.Warnw("failed to deliver breaker rejected event", "breaker", b.name, "error", err)
	}
}

// BreakerRegistry holds one breaker per dependency name. It is constructed
// once at process start and passed by reference to every consumer; there is
// no package-level registry.
type BreakerRegistry struct {
	cfg      BreakerConfig
	notifier Notifier
	logger   log.Logger

	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewBreakerRegistry creates an empty registry applying cfg to every breaker
// it creates.
func NewBreakerRegistry(c *conf.Breaker, notifier Notifier, logger log.Logger) *BreakerRegistry {
	return &BreakerRegistry{
		cfg:      BreakerConfigFromConf(c),
		notifier: notifier,
		logger:   logger,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for the named dependency, creating it on first use.
func (r *BreakerRegistry) Get(name string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[name]; ok {
		return cb
	}
	cb = NewCircuitBreaker(name, r.cfg, r.notifier, r.logger)
	r.breakers[name] = cb
	return cb
}

// Statuses returns a snapshot of every registered breaker, sorted by name.
func (r *BreakerRegistry) Statuses() []*model.BreakerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.BreakerStatus, 0, len(r.breakers))
	for _, cb := range r.breakers {
		out = append(out, cb.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Metrics returns lifetime counters for every registered breaker, sorted by
// name.
func (r *BreakerRegistry) Metrics() []*model.BreakerMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.BreakerMetrics, 0, len(r.breakers))
	for _, cb := range r.breakers {
		out = append(out, cb.Metrics())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

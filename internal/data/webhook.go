package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"LabSentry/internal/conf"
	"LabSentry/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	webhookTimeout      = 10 * time.Second
	webhookCooldownSize = 256
	defaultCooldown     = 5 * time.Minute
)

// webhookPayload is the JSON body posted to the configured endpoint.
type webhookPayload struct {
	Level     string         `json:"level"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// WebhookNotifier implements biz.Notifier by posting JSON events to a
// single configured webhook URL. When disabled it degrades to a logged
// no-op so the core never has to care whether notifications are wired.
// A per-event-key LRU cooldown keeps chatty events (repeated breaker
// failures, flapping power states) from flooding the endpoint.
type WebhookNotifier struct {
	enabled  bool
	url      string
	cooldown time.Duration
	client   *http.Client
	recent   *lru.Cache[string, time.Time]
	logger   *log.Helper
}

// NewWebhookNotifier creates a webhook notifier from configuration.
func NewWebhookNotifier(c *conf.Notify, logger log.Logger) (*WebhookNotifier, error) {
	helper := log.NewHelper(logger)

	cooldown := defaultCooldown
	enabled := false
	url := ""
	if c != nil {
		enabled = c.Enabled
		url = c.Url
		if c.Cooldown != nil {
			cooldown = c.Cooldown.AsDuration()
		}
	}

	recent, err := lru.New[string, time.Time](webhookCooldownSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook cooldown cache: %w", err)
	}

	if !enabled {
		helper.Info("webhook notifier disabled, events will be logged only")
	}

	return &WebhookNotifier{
		enabled:  enabled,
		url:      url,
		cooldown: cooldown,
		client:   &http.Client{Timeout: webhookTimeout},
		recent:   recent,
		logger:   helper,
	}, nil
}

// BreakerStateChanged posts a breaker state transition. State changes are
// exempt from the cooldown; every one matters.
func (n *WebhookNotifier) BreakerStateChanged(ctx context.Context, event *model.BreakerStateChangeEvent) error {
	level := "warning"
	if event.To == model.BreakerClosed {
		level = "info"
	}
	return n.send(ctx, "", level,
		fmt.Sprintf("Circuit breaker %s: %s -> %s", event.Name, event.From, event.To),
		fmt.Sprintf("breaker %q moved from %s to %s", event.Name, event.From, event.To),
		map[string]any{
			"breaker":    event.Name,
			"from":       string(event.From),
			"to":         string(event.To),
			"last_error": event.LastError,
		})
}

// BreakerFailure posts a failed call, throttled per breaker name.
func (n *WebhookNotifier) BreakerFailure(ctx context.Context, event *model.BreakerFailureEvent) error {
	return n.send(ctx, "breaker_failure:"+event.Name, "warning",
		fmt.Sprintf("Circuit breaker %s recorded a failure", event.Name),
		event.Err,
		map[string]any{
			"breaker":       event.Name,
			"state":         string(event.State),
			"failure_count": event.FailureCount,
		})
}

// BreakerRejected posts a fast-failed call, throttled per breaker name.
func (n *WebhookNotifier) BreakerRejected(ctx context.Context, event *model.BreakerRejectedEvent) error {
	return n.send(ctx, "breaker_rejected:"+event.Name, "warning",
		fmt.Sprintf("Circuit breaker %s rejected a call", event.Name),
		fmt.Sprintf("breaker open, retry after %s", event.RetryAfter),
		map[string]any{
			"breaker":     event.Name,
			"retry_after": event.RetryAfter.String(),
		})
}

// PowerTransition posts a power state transition. Never throttled.
func (n *WebhookNotifier) PowerTransition(ctx context.Context, event *model.PowerTransitionEvent) error {
	level := "warning"
	if event.To == model.PowerOnline {
		level = "info"
	} else if event.To == model.PowerCritical {
		level = "critical"
	}
	return n.send(ctx, "", level,
		fmt.Sprintf("Power state: %s -> %s", event.From, event.To),
		fmt.Sprintf("battery %.0f%%, runtime %ds", event.ChargePercent, event.RuntimeSeconds),
		map[string]any{
			"from":            string(event.From),
			"to":              string(event.To),
			"charge_percent":  event.ChargePercent,
			"runtime_seconds": event.RuntimeSeconds,
		})
}

// ApprovalRequested posts a parked approval. Never throttled.
func (n *WebhookNotifier) ApprovalRequested(ctx context.Context, event *model.ApprovalRequestedEvent) error {
	return n.send(ctx, "", "warning",
		fmt.Sprintf("Approval required for alert %s", event.AlertID),
		fmt.Sprintf("action %s (risk %s) awaits a human decision", event.ActionType, event.Risk),
		map[string]any{
			"alert_id":    event.AlertID,
			"alert_type":  string(event.AlertType),
			"action_type": string(event.ActionType),
			"risk":        string(event.Risk),
		})
}

// SequenceFinished posts a completed shutdown sequence. Never throttled.
func (n *WebhookNotifier) SequenceFinished(ctx context.Context, event *model.SequenceFinishedEvent) error {
	level := "critical"
	if event.DryRun {
		level = "info"
	}
	return n.send(ctx, "", level,
		fmt.Sprintf("Shutdown sequence %s finished", event.Trigger),
		fmt.Sprintf("%d/%d steps succeeded (dry_run=%v)", event.StepsTotal-event.StepsFailed, event.StepsTotal, event.DryRun),
		map[string]any{
			"sequence_id":   event.SequenceID,
			"trigger":       event.Trigger,
			"trigger_state": string(event.TriggerState),
			"dry_run":       event.DryRun,
			"steps_total":   event.StepsTotal,
			"steps_failed":  event.StepsFailed,
		})
}

// send posts one payload. A non-empty cooldownKey throttles repeat sends
// of the same key within the cooldown window. Disabled notifiers log the
// event at debug level and report success.
func (n *WebhookNotifier) send(ctx context.Context, cooldownKey, level, title, message string, details map[string]any) error {
	if !n.enabled {
		n.logger.Debugw("webhook disabled, dropping event", "title", title, "level", level)
		return nil
	}

	if cooldownKey != "" {
		if last, ok := n.recent.Get(cooldownKey); ok && time.Since(last) < n.cooldown {
			n.logger.Debugw("webhook event suppressed by cooldown", "key", cooldownKey)
			return nil
		}
		n.recent.Add(cooldownKey, time.Now())
	}

	payload := webhookPayload{
		Level:     level,
		Title:     title,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Details:   details,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(raw))
	}

	return nil
}

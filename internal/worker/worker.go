// Package worker provides async application tracking for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-commerce/tern/internal/domain"
)

// Worker consumes rule-applied events from the EventBus and tracks
// per-rule application counts over a rolling daily window. Rules
// whose count crosses the configured alert threshold are logged so
// operators can spot runaway promotions.
type Worker struct {
	bus   domain.EventBus
	cache domain.Cache

	alertThreshold int64
	window         time.Duration

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// DailyApplicationAlert is the per-rule daily application count
	// above which a warning is logged. Zero disables alerting.
	DailyApplicationAlert int64
}

// NewWorker creates a new application-tracking worker.
func NewWorker(bus domain.EventBus, cache domain.Cache, cfg Config) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:            bus,
		cache:          cache,
		alertThreshold: cfg.DailyApplicationAlert,
		window:         24 * time.Hour,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start subscribes to the rule-applied topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicRuleApplied, w.handleRuleApplied)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("application tracker started",
		"topic", domain.TopicRuleApplied,
		"alert_threshold", w.alertThreshold,
	)

	return nil
}

// handleRuleApplied increments the daily counter for the applied rule.
func (w *Worker) handleRuleApplied(ctx context.Context, msg *domain.Message) error {
	var app domain.RuleApplication
	if err := json.Unmarshal(msg.Payload, &app); err != nil {
		slog.Error("failed to parse rule application message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	key := fmt.Sprintf("rule:%d:applied", app.RuleID)
	count, err := w.cache.IncrementCounter(ctx, key, w.window)
	if err != nil {
		slog.Error("failed to increment application counter",
			"rule_id", app.RuleID,
			"error", err,
		)
		return err
	}

	slog.Debug("rule application tracked",
		"rule_id", app.RuleID,
		"order_reference", app.OrderReference,
		"daily_count", count,
	)

	if w.alertThreshold > 0 && count > w.alertThreshold {
		slog.Warn("rule exceeded daily application threshold",
			"rule_id", app.RuleID,
			"daily_count", count,
			"threshold", w.alertThreshold,
		)
	}

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("application tracker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}

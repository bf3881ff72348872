package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/opensource-commerce/tern/internal/bus"
	"github.com/opensource-commerce/tern/internal/cache"
	"github.com/opensource-commerce/tern/internal/domain"
)

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	counters := cache.NewLRUCache(100)
	defer counters.Close()

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, counters, Config{DailyApplicationAlert: 100})

		if err := w.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}
		if stats.Topics[0] != domain.TopicRuleApplied {
			t.Errorf("expected topic '%s', got '%s'", domain.TopicRuleApplied, stats.Topics[0])
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = w.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("TracksApplications", func(t *testing.T) {
		w := NewWorker(eventBus, counters, Config{DailyApplicationAlert: 100})
		w.Start()
		defer w.Stop()

		time.Sleep(50 * time.Millisecond)

		app := &domain.RuleApplication{
			ID:             "app-001",
			RuleID:         100,
			OrderReference: "EVAL_TEST0001",
			DiscountAmount: 25.00,
			CreatedAt:      time.Now(),
		}

		payload, _ := json.Marshal(app)
		if err := eventBus.Publish(context.Background(), domain.TopicRuleApplied, payload); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		eventBus.Publish(context.Background(), domain.TopicRuleApplied, payload)

		time.Sleep(100 * time.Millisecond)

		// A third increment continues the same daily window
		count, err := counters.IncrementCounter(context.Background(), "rule:100:applied", 24*time.Hour)
		if err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if count != 3 {
			t.Errorf("expected count 3 after 2 tracked events, got %d", count)
		}
	})

	t.Run("MalformedPayload", func(t *testing.T) {
		w := NewWorker(eventBus, counters, Config{})
		w.Start()
		defer w.Stop()

		time.Sleep(50 * time.Millisecond)

		// Should not panic or break the subscription
		eventBus.Publish(context.Background(), domain.TopicRuleApplied, []byte("not json"))
		time.Sleep(50 * time.Millisecond)
	})
}

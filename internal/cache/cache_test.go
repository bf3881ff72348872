package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/opensource-commerce/tern/internal/domain"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		err := cache.Set(ctx, "key1", []byte("value1"), time.Minute)
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, "key2", []byte("value2"), time.Minute)

		err := cache.Delete(ctx, "key2")
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, "expiring", []byte("temp"), 10*time.Millisecond)

		// Should be available immediately
		val, _ := cache.Get(ctx, "expiring")
		if val == nil {
			t.Error("expected value before expiration")
		}

		// Wait for expiration
		time.Sleep(20 * time.Millisecond)

		val, _ = cache.Get(ctx, "expiring")
		if val != nil {
			t.Error("expected nil after expiration")
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, "c", []byte("3"), time.Minute)

		// Access 'a' to make it recently used
		_, _ = smallCache.Get(ctx, "a")

		// Add 'd' - should evict 'b' (oldest accessed)
		_ = smallCache.Set(ctx, "d", []byte("4"), time.Minute)

		// 'b' should be evicted
		val, _ := smallCache.Get(ctx, "b")
		if val != nil {
			t.Error("expected 'b' to be evicted")
		}

		// 'a' should still be there
		val, _ = smallCache.Get(ctx, "a")
		if val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("IncrementCounter", func(t *testing.T) {
		window := 100 * time.Millisecond

		count1, err := cache.IncrementCounter(ctx, "rule:100:applied", window)
		if err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if count1 != 1 {
			t.Errorf("expected count 1, got %d", count1)
		}

		count2, _ := cache.IncrementCounter(ctx, "rule:100:applied", window)
		if count2 != 2 {
			t.Errorf("expected count 2, got %d", count2)
		}

		// Wait for window to expire
		time.Sleep(150 * time.Millisecond)

		count3, _ := cache.IncrementCounter(ctx, "rule:100:applied", window)
		if count3 != 1 {
			t.Errorf("expected count 1 after window reset, got %d", count3)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsCache := NewLRUCache(50)
		_ = statsCache.Set(ctx, "k1", []byte("v1"), time.Minute)
		_ = statsCache.Set(ctx, "k2", []byte("v2"), time.Minute)

		size, capacity := statsCache.Stats()
		if size != 2 {
			t.Errorf("expected size 2, got %d", size)
		}
		if capacity != 50 {
			t.Errorf("expected capacity 50, got %d", capacity)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := cache.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("Close", func(t *testing.T) {
		testCache := NewLRUCache(10)
		_ = testCache.Set(ctx, "k", []byte("v"), time.Minute)

		err := testCache.Close()
		if err != nil {
			t.Errorf("Close failed: %v", err)
		}

		// Cache should be empty after close
		val, _ := testCache.Get(ctx, "k")
		if val != nil {
			t.Error("expected cache to be cleared after close")
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type:         "memory",
			LocalMaxSize: 100,
		}

		cache, err := New(cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cache.Close()

		_, ok := cache.(*LRUCache)
		if !ok {
			t.Error("expected LRUCache for memory type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type: "memcached",
		}

		_, err := New(cfg)
		if err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

type countingRuleStore struct {
	calls int
	rules []*domain.PromotionRule
}

func (s *countingRuleStore) GetActiveRules(ctx context.Context, now time.Time) ([]*domain.PromotionRule, error) {
	s.calls++
	return s.rules, nil
}

func TestCachedRuleStore(t *testing.T) {
	ctx := context.Background()

	makeRule := func(id int64, validUntil *time.Time) *domain.PromotionRule {
		return &domain.PromotionRule{
			ID:         id,
			Name:       "rule",
			Salience:   10,
			IsActive:   true,
			Conditions: json.RawMessage(`[{"field":"line.quantity","operator":"GREATER_THAN","value":1}]`),
			Actions:    json.RawMessage(`[{"type":"PERCENT_DISCOUNT","parameters":{"percent":5}}]`),
			ValidUntil: validUntil,
		}
	}

	t.Run("SecondReadHitsCache", func(t *testing.T) {
		store := &countingRuleStore{rules: []*domain.PromotionRule{makeRule(1, nil)}}
		cached := NewCachedRuleStore(store, NewLRUCache(10), time.Minute)

		now := time.Now()
		if _, err := cached.GetActiveRules(ctx, now); err != nil {
			t.Fatalf("GetActiveRules failed: %v", err)
		}
		ruleList, err := cached.GetActiveRules(ctx, now)
		if err != nil {
			t.Fatalf("GetActiveRules failed: %v", err)
		}

		if store.calls != 1 {
			t.Errorf("expected 1 store call, got %d", store.calls)
		}
		if len(ruleList) != 1 || ruleList[0].ID != 1 {
			t.Errorf("unexpected rules: %+v", ruleList)
		}
	})

	t.Run("InvalidateForcesReload", func(t *testing.T) {
		store := &countingRuleStore{rules: []*domain.PromotionRule{makeRule(1, nil)}}
		cached := NewCachedRuleStore(store, NewLRUCache(10), time.Minute)

		now := time.Now()
		_, _ = cached.GetActiveRules(ctx, now)
		cached.Invalidate(ctx)
		_, _ = cached.GetActiveRules(ctx, now)

		if store.calls != 2 {
			t.Errorf("expected 2 store calls after invalidate, got %d", store.calls)
		}
	})

	t.Run("ExpiredRuleFilteredFromCachedSet", func(t *testing.T) {
		soon := time.Now().Add(time.Hour)
		store := &countingRuleStore{rules: []*domain.PromotionRule{
			makeRule(1, nil),
			makeRule(2, &soon),
		}}
		cached := NewCachedRuleStore(store, NewLRUCache(10), time.Minute)

		_, _ = cached.GetActiveRules(ctx, time.Now())

		// Cached set is re-filtered when read past a rule's validity
		ruleList, err := cached.GetActiveRules(ctx, time.Now().Add(2*time.Hour))
		if err != nil {
			t.Fatalf("GetActiveRules failed: %v", err)
		}
		if len(ruleList) != 1 || ruleList[0].ID != 1 {
			t.Errorf("expected only rule 1 after expiry, got %+v", ruleList)
		}
	})
}

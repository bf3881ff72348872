package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-commerce/tern/internal/domain"
)

// activeRulesKey caches the full active rule set. The set is small and
// read on every evaluation, so one key is enough.
const activeRulesKey = "rules:active"

// CachedRuleStore wraps a RuleStore with a read-through cache.
// Cache failures fall back to the underlying store so a cold or
// unreachable cache never blocks evaluation.
type CachedRuleStore struct {
	store domain.RuleStore
	cache domain.Cache
	ttl   time.Duration
}

// NewCachedRuleStore creates a read-through rule store.
func NewCachedRuleStore(store domain.RuleStore, cache domain.Cache, ttl time.Duration) *CachedRuleStore {
	if ttl == 0 {
		ttl = 60 * time.Second
	}
	return &CachedRuleStore{
		store: store,
		cache: cache,
		ttl:   ttl,
	}
}

// GetActiveRules returns cached rules when fresh, loading from the
// underlying store otherwise. Validity windows are re-checked against
// now because a cached rule may have expired since it was stored.
func (s *CachedRuleStore) GetActiveRules(ctx context.Context, now time.Time) ([]*domain.PromotionRule, error) {
	if data, err := s.cache.Get(ctx, activeRulesKey); err == nil && data != nil {
		var cached []*domain.PromotionRule
		if err := json.Unmarshal(data, &cached); err == nil {
			valid := cached[:0]
			for _, rule := range cached {
				if rule.ValidAt(now) {
					valid = append(valid, rule)
				}
			}
			return valid, nil
		}
	}

	ruleList, err := s.store.GetActiveRules(ctx, now)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(ruleList); err == nil {
		if err := s.cache.Set(ctx, activeRulesKey, data, s.ttl); err != nil {
			slog.Warn("failed to cache active rules", "error", err)
		}
	}

	return ruleList, nil
}

// Invalidate drops the cached rule set. Called after rule writes.
func (s *CachedRuleStore) Invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, activeRulesKey); err != nil {
		slog.Warn("failed to invalidate rule cache", "error", err)
	}
}

package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/opensource-commerce/tern/internal/domain"
)

// SeedDemo loads the demo catalog and promotion rules used by the
// quickstart. Existing rows with the same IDs are left alone so the
// seed is safe to run on every startup.
func SeedDemo(ctx context.Context, repo domain.Repository) error {
	sqlRepo, ok := repo.(*SQLRepository)
	if !ok {
		return nil
	}

	if err := sqlRepo.seedCatalog(ctx); err != nil {
		return err
	}
	return sqlRepo.seedRules(ctx)
}

func (r *SQLRepository) seedCatalog(ctx context.Context) error {
	now := time.Now().UTC()

	categories := []struct {
		id   int64
		name string
	}{
		{10, "Electronics"},
		{20, "Home"},
		{99, "Clearance"},
	}
	for _, c := range categories {
		if _, err := r.db.ExecContext(ctx,
			r.rebind(`INSERT INTO categories (id, name) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`),
			c.id, c.name,
		); err != nil {
			return err
		}
	}

	products := []struct {
		id         int64
		name       string
		categoryID int64
		unitPrice  float64
	}{
		{123, "Widget A", 10, 100.00},
		{456, "Gadget B", 20, 80.00},
		{789, "Flash Deal C", 10, 120.00},
		{555, "Intro SKU D", 20, 60.00},
		{888, "Legacy Thing E", 99, 50.00},
	}
	for _, p := range products {
		if _, err := r.db.ExecContext(ctx,
			r.rebind(`INSERT INTO products (id, name, category_id, unit_price, created_at) VALUES (?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`),
			p.id, p.name, p.categoryID, p.unitPrice, now,
		); err != nil {
			return err
		}
	}

	customers := []struct {
		id          int64
		email       string
		typ         string
		loyaltyTier string
		ordersCount int
		city        string
	}{
		{1, "alice@apple.com", "restaurants", "silver", 3, "Riyadh"},
		{2, "bob@techcorp.io", "retail", "gold", 15, "Jeddah"},
		{3, "carol@diner.sa", "restaurants", "none", 0, "Jeddah"},
		{4, "dave@example.com", "retail", "gold", 7, "Tabuk"},
	}
	for _, c := range customers {
		if _, err := r.db.ExecContext(ctx,
			r.rebind(`INSERT INTO customers (id, email, type, loyalty_tier, orders_count, city, created_at) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`),
			c.id, c.email, c.typ, c.loyaltyTier, c.ordersCount, c.city, now,
		); err != nil {
			return err
		}
	}

	return nil
}

func (r *SQLRepository) seedRules(ctx context.Context) error {
	flashSaleEnd := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	for _, rule := range demoRules(flashSaleEnd) {
		var exists int
		err := r.db.QueryRowContext(ctx,
			r.rebind(`SELECT COUNT(1) FROM promotion_rules WHERE id = ?`), rule.ID,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if exists > 0 {
			continue
		}
		if err := r.CreateRule(ctx, rule); err != nil {
			return err
		}
	}

	return nil
}

func demoRules(flashSaleEnd time.Time) []*domain.PromotionRule {
	return []*domain.PromotionRule{
		{
			ID:          100,
			Name:        "Buy 5 Get 1 Free on SKU 123",
			Description: "Get 1 free unit when purchasing 5 or more of Widget A",
			Salience:    10,
			Stackable:   false,
			IsActive:    true,
			Conditions: conditionsJSON(`[{
				"operator": "AND",
				"conditions": [
					{"field": "line.productId", "operator": "EQUALS", "value": 123},
					{"field": "line.quantity", "operator": "GREATER_THAN_OR_EQUAL", "value": 5}
				]
			}]`),
			Actions: conditionsJSON(`[{"type": "FREE_UNITS", "parameters": {"quantity": 1}}]`),
		},
		{
			ID:          101,
			Name:        "Tiered Discount SKU 456",
			Description: "Tiered percentage discount on Gadget B",
			Salience:    20,
			Stackable:   true,
			IsActive:    true,
			Conditions: conditionsJSON(`[{
				"operator": "AND",
				"conditions": [
					{"field": "line.productId", "operator": "EQUALS", "value": 456},
					{"field": "line.quantity", "operator": "GREATER_THAN_OR_EQUAL", "value": 5}
				]
			}]`),
			Actions: conditionsJSON(`[{
				"type": "TIERED_PERCENT",
				"parameters": {
					"tiers": [
						{"min_quantity": 5, "max_quantity": 9, "percent": 5},
						{"min_quantity": 10, "max_quantity": null, "percent": 10}
					]
				}
			}]`),
		},
		{
			ID:          102,
			Name:        "20% off Electronics",
			Description: "20% discount on all electronics products",
			Salience:    15,
			Stackable:   true,
			IsActive:    true,
			Conditions:  conditionsJSON(`[{"field": "line.categoryId", "operator": "EQUALS", "value": 10}]`),
			Actions:     conditionsJSON(`[{"type": "PERCENT_DISCOUNT", "parameters": {"percent": 20}}]`),
		},
		{
			ID:          103,
			Name:        "10% off for Restaurants",
			Description: "10% discount for restaurant customers",
			Salience:    30,
			Stackable:   true,
			IsActive:    true,
			Conditions:  conditionsJSON(`[{"field": "customer.type", "operator": "EQUALS", "value": "restaurants"}]`),
			Actions:     conditionsJSON(`[{"type": "PERCENT_DISCOUNT", "parameters": {"percent": 10}}]`),
		},
		{
			ID:          104,
			Name:        "5% off apple.com Corporate",
			Description: "5% discount for Apple corporate customers",
			Salience:    25,
			Stackable:   true,
			IsActive:    true,
			Conditions:  conditionsJSON(`[{"field": "customer.email", "operator": "ENDS_WITH", "value": "@apple.com"}]`),
			Actions:     conditionsJSON(`[{"type": "PERCENT_DISCOUNT", "parameters": {"percent": 5}}]`),
		},
		{
			ID:          105,
			Name:        "Flash Sale SKU 789",
			Description: "Time-limited 25% discount on Flash Deal C",
			Salience:    5,
			Stackable:   false,
			IsActive:    true,
			Conditions: conditionsJSON(`[{
				"operator": "AND",
				"conditions": [
					{"field": "line.productId", "operator": "EQUALS", "value": 789},
					{"field": "system.currentDateTime", "operator": "LESS_THAN", "value": "2025-07-01T00:00:00Z"}
				]
			}]`),
			Actions:    conditionsJSON(`[{"type": "PERCENT_DISCOUNT", "parameters": {"percent": 25}}]`),
			ValidUntil: &flashSaleEnd,
		},
		{
			ID:          106,
			Name:        "Clearance Category Obsolete",
			Description: "50% discount on all clearance items",
			Salience:    40,
			Stackable:   true,
			IsActive:    true,
			Conditions:  conditionsJSON(`[{"field": "line.categoryId", "operator": "EQUALS", "value": 99}]`),
			Actions:     conditionsJSON(`[{"type": "PERCENT_DISCOUNT", "parameters": {"percent": 50}}]`),
		},
		{
			ID:          107,
			Name:        "Gold Tier Multiplier",
			Description: "5% additional discount for gold loyalty customers",
			Salience:    35,
			Stackable:   true,
			IsActive:    true,
			Conditions:  conditionsJSON(`[{"field": "customer.loyaltyTier", "operator": "EQUALS", "value": "gold"}]`),
			Actions:     conditionsJSON(`[{"type": "PERCENT_DISCOUNT", "parameters": {"percent": 5}}]`),
		},
		{
			ID:          108,
			Name:        "First Purchase SKU 555",
			Description: "15% discount on first purchase of Intro SKU D",
			Salience:    12,
			Stackable:   true,
			IsActive:    true,
			Conditions: conditionsJSON(`[{
				"operator": "AND",
				"conditions": [
					{"field": "line.productId", "operator": "EQUALS", "value": 555},
					{"field": "customer.ordersCount", "operator": "EQUALS", "value": 0}
				]
			}]`),
			Actions: conditionsJSON(`[{"type": "PERCENT_DISCOUNT", "parameters": {"percent": 15}}]`),
		},
		{
			ID:          109,
			Name:        "City Promo (Jeddah)",
			Description: "3% discount for customers in Jeddah",
			Salience:    18,
			Stackable:   true,
			IsActive:    true,
			Conditions:  conditionsJSON(`[{"field": "customer.city", "operator": "EQUALS", "value": "Jeddah"}]`),
			Actions:     conditionsJSON(`[{"type": "PERCENT_DISCOUNT", "parameters": {"percent": 3}}]`),
		},
	}
}

// conditionsJSON compacts an indented literal so stored rule
// definitions match what the API would have persisted.
func conditionsJSON(s string) json.RawMessage {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		panic(err)
	}
	compact, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return compact
}

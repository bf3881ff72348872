package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/opensource-commerce/tern/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "tern-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("CreateAndGetRule", func(t *testing.T) {
		rule := &domain.PromotionRule{
			Name:        "10% off electronics",
			Description: "category discount",
			Salience:    15,
			Stackable:   true,
			IsActive:    true,
			Conditions:  json.RawMessage(`[{"field":"line.categoryId","operator":"EQUALS","value":10}]`),
			Actions:     json.RawMessage(`[{"type":"PERCENT_DISCOUNT","parameters":{"percent":10}}]`),
		}

		if err := repo.CreateRule(ctx, rule); err != nil {
			t.Fatalf("CreateRule failed: %v", err)
		}
		if rule.ID == 0 {
			t.Fatal("expected CreateRule to assign an ID")
		}

		retrieved, err := repo.GetRule(ctx, rule.ID)
		if err != nil {
			t.Fatalf("GetRule failed: %v", err)
		}

		if retrieved.Name != rule.Name {
			t.Errorf("expected Name %q, got %q", rule.Name, retrieved.Name)
		}
		if retrieved.Salience != 15 {
			t.Errorf("expected Salience 15, got %d", retrieved.Salience)
		}
		if !retrieved.Stackable || !retrieved.IsActive {
			t.Errorf("expected stackable active rule, got stackable=%v active=%v",
				retrieved.Stackable, retrieved.IsActive)
		}
		if string(retrieved.Conditions) != string(rule.Conditions) {
			t.Errorf("conditions round-trip mismatch: %s", retrieved.Conditions)
		}
		if retrieved.ValidFrom != nil || retrieved.ValidUntil != nil {
			t.Error("expected nil validity window")
		}
	})

	t.Run("RequiresName", func(t *testing.T) {
		err := repo.CreateRule(ctx, &domain.PromotionRule{
			Conditions: json.RawMessage(`[]`),
			Actions:    json.RawMessage(`[]`),
		})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for empty name, got: %v", err)
		}
	})

	t.Run("UpdateRule", func(t *testing.T) {
		rule := &domain.PromotionRule{
			Name:       "before",
			Salience:   20,
			IsActive:   true,
			Conditions: json.RawMessage(`[{"field":"line.quantity","operator":"GREATER_THAN","value":1}]`),
			Actions:    json.RawMessage(`[{"type":"FIXED_DISCOUNT","parameters":{"amount":5}}]`),
		}
		if err := repo.CreateRule(ctx, rule); err != nil {
			t.Fatalf("CreateRule failed: %v", err)
		}

		rule.Name = "after"
		rule.Salience = 7
		rule.IsActive = false
		if err := repo.UpdateRule(ctx, rule); err != nil {
			t.Fatalf("UpdateRule failed: %v", err)
		}

		retrieved, err := repo.GetRule(ctx, rule.ID)
		if err != nil {
			t.Fatalf("GetRule failed: %v", err)
		}
		if retrieved.Name != "after" || retrieved.Salience != 7 || retrieved.IsActive {
			t.Errorf("update not persisted: %+v", retrieved)
		}
	})

	t.Run("UpdateMissingRule", func(t *testing.T) {
		err := repo.UpdateRule(ctx, &domain.PromotionRule{
			ID:         99999,
			Name:       "ghost",
			Conditions: json.RawMessage(`[]`),
			Actions:    json.RawMessage(`[]`),
		})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("DeleteRule", func(t *testing.T) {
		rule := &domain.PromotionRule{
			Name:       "short lived",
			Salience:   1,
			IsActive:   true,
			Conditions: json.RawMessage(`[]`),
			Actions:    json.RawMessage(`[]`),
		}
		if err := repo.CreateRule(ctx, rule); err != nil {
			t.Fatalf("CreateRule failed: %v", err)
		}

		if err := repo.DeleteRule(ctx, rule.ID); err != nil {
			t.Fatalf("DeleteRule failed: %v", err)
		}
		if _, err := repo.GetRule(ctx, rule.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got: %v", err)
		}
		if err := repo.DeleteRule(ctx, rule.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on double delete, got: %v", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := repo.GetRule(ctx, 424242); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
		if _, err := repo.GetProduct(ctx, 424242); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
		if _, err := repo.GetCustomer(ctx, 424242); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestGetActiveRules(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	seed := []*domain.PromotionRule{
		{ID: 1, Name: "late", Salience: 30, IsActive: true},
		{ID: 2, Name: "early", Salience: 5, IsActive: true},
		{ID: 3, Name: "disabled", Salience: 1, IsActive: false},
		{ID: 4, Name: "expired", Salience: 2, IsActive: true, ValidUntil: &past},
		{ID: 5, Name: "not yet", Salience: 3, IsActive: true, ValidFrom: &future},
		{ID: 6, Name: "windowed", Salience: 10, IsActive: true, ValidFrom: &past, ValidUntil: &future},
		{ID: 7, Name: "tied", Salience: 10, IsActive: true},
	}
	for _, rule := range seed {
		rule.Conditions = json.RawMessage(`[]`)
		rule.Actions = json.RawMessage(`[]`)
		if err := repo.CreateRule(ctx, rule); err != nil {
			t.Fatalf("CreateRule(%s) failed: %v", rule.Name, err)
		}
	}

	active, err := repo.GetActiveRules(ctx, now)
	if err != nil {
		t.Fatalf("GetActiveRules failed: %v", err)
	}

	// Inactive, expired and future rules are filtered out. The rest
	// come back in ascending salience with id breaking the tie.
	wantIDs := []int64{2, 6, 7, 1}
	if len(active) != len(wantIDs) {
		t.Fatalf("expected %d rules, got %d", len(wantIDs), len(active))
	}
	for i, want := range wantIDs {
		if active[i].ID != want {
			t.Errorf("position %d: expected rule %d, got %d (%s)", i, want, active[i].ID, active[i].Name)
		}
	}
}

func TestRuleApplications(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := &domain.PromotionRule{
		ID:         50,
		Name:       "audit me",
		Salience:   10,
		IsActive:   true,
		Conditions: json.RawMessage(`[]`),
		Actions:    json.RawMessage(`[]`),
	}
	if err := repo.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	customerID := int64(7)
	catID := int64(10)
	first := &domain.RuleApplication{
		ID:             "app-001",
		RuleID:         50,
		CustomerID:     &customerID,
		OrderReference: "EVAL_abc12345",
		LineItem:       domain.LineItem{ProductID: 123, Quantity: 5, UnitPrice: 100, CategoryID: &catID},
		Customer:       domain.CustomerInfo{ID: &customerID, Email: "alice@apple.com"},
		DiscountAmount: 100.00,
		CreatedAt:      time.Now().UTC().Add(-time.Minute),
	}
	second := &domain.RuleApplication{
		ID:             "app-002",
		RuleID:         50,
		OrderReference: "EVAL_def67890",
		LineItem:       domain.LineItem{ProductID: 456, Quantity: 2, UnitPrice: 80},
		DiscountAmount: 8.00,
		CreatedAt:      time.Now().UTC(),
	}

	if err := repo.RecordApplication(ctx, first); err != nil {
		t.Fatalf("RecordApplication failed: %v", err)
	}
	if err := repo.RecordApplication(ctx, second); err != nil {
		t.Fatalf("RecordApplication failed: %v", err)
	}

	t.Run("RequiresID", func(t *testing.T) {
		err := repo.RecordApplication(ctx, &domain.RuleApplication{RuleID: 50})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got: %v", err)
		}
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		apps, err := repo.ListApplications(ctx, 50)
		if err != nil {
			t.Fatalf("ListApplications failed: %v", err)
		}
		if len(apps) != 2 {
			t.Fatalf("expected 2 applications, got %d", len(apps))
		}
		if apps[0].ID != "app-002" || apps[1].ID != "app-001" {
			t.Errorf("expected newest first, got %s then %s", apps[0].ID, apps[1].ID)
		}
	})

	t.Run("RoundTripsLineAndCustomer", func(t *testing.T) {
		apps, err := repo.ListApplications(ctx, 50)
		if err != nil {
			t.Fatalf("ListApplications failed: %v", err)
		}

		got := apps[1]
		if got.LineItem.ProductID != 123 || got.LineItem.Quantity != 5 {
			t.Errorf("line item mismatch: %+v", got.LineItem)
		}
		if got.LineItem.CategoryID == nil || *got.LineItem.CategoryID != 10 {
			t.Errorf("category mismatch: %+v", got.LineItem.CategoryID)
		}
		if got.CustomerID == nil || *got.CustomerID != 7 {
			t.Errorf("customer id mismatch: %+v", got.CustomerID)
		}
		if got.Customer.Email != "alice@apple.com" {
			t.Errorf("customer payload mismatch: %+v", got.Customer)
		}
		if got.DiscountAmount != 100.00 {
			t.Errorf("expected discount 100.00, got %.2f", got.DiscountAmount)
		}
	})

	t.Run("AnonymousCustomer", func(t *testing.T) {
		apps, err := repo.ListApplications(ctx, 50)
		if err != nil {
			t.Fatalf("ListApplications failed: %v", err)
		}
		if apps[0].CustomerID != nil {
			t.Errorf("expected nil customer id, got %v", *apps[0].CustomerID)
		}
	})

	t.Run("EmptyForOtherRule", func(t *testing.T) {
		apps, err := repo.ListApplications(ctx, 51)
		if err != nil {
			t.Fatalf("ListApplications failed: %v", err)
		}
		if len(apps) != 0 {
			t.Errorf("expected no applications, got %d", len(apps))
		}
	})
}

func TestSeedDemo(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := SeedDemo(ctx, repo); err != nil {
		t.Fatalf("SeedDemo failed: %v", err)
	}
	// Running the seed twice must not duplicate anything.
	if err := SeedDemo(ctx, repo); err != nil {
		t.Fatalf("second SeedDemo failed: %v", err)
	}

	rulesList, err := repo.ListRules(ctx)
	if err != nil {
		t.Fatalf("ListRules failed: %v", err)
	}
	if len(rulesList) != 10 {
		t.Errorf("expected 10 demo rules, got %d", len(rulesList))
	}

	products, err := repo.ListProducts(ctx)
	if err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	if len(products) != 5 {
		t.Errorf("expected 5 demo products, got %d", len(products))
	}

	customers, err := repo.ListCustomers(ctx)
	if err != nil {
		t.Fatalf("ListCustomers failed: %v", err)
	}
	if len(customers) != 4 {
		t.Errorf("expected 4 demo customers, got %d", len(customers))
	}

	categories, err := repo.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories failed: %v", err)
	}
	if len(categories) != 3 {
		t.Errorf("expected 3 demo categories, got %d", len(categories))
	}

	// The flash sale rule carries its end date from the seed data.
	flash, err := repo.GetRule(ctx, 105)
	if err != nil {
		t.Fatalf("GetRule(105) failed: %v", err)
	}
	if flash.ValidUntil == nil || !flash.ValidUntil.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected flash sale window: %v", flash.ValidUntil)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

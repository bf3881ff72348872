// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-commerce/tern/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const ruleColumns = `id, name, description, salience, stackable, is_active, conditions, actions, valid_from, valid_until, created_at, updated_at`

// GetActiveRules returns rules that are active and valid at the given
// time, ordered by ascending salience. Ties break on id so evaluation
// order is deterministic.
func (r *SQLRepository) GetActiveRules(ctx context.Context, now time.Time) ([]*domain.PromotionRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM promotion_rules
		WHERE is_active = 1
		  AND (valid_from IS NULL OR valid_from <= ?)
		  AND (valid_until IS NULL OR valid_until >= ?)
		ORDER BY salience ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), now, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRules(rows)
}

// CreateRule stores a new promotion rule. A zero ID is assigned the
// next free one.
func (r *SQLRepository) CreateRule(ctx context.Context, rule *domain.PromotionRule) error {
	if rule.Name == "" {
		return fmt.Errorf("%w: rule name is required", ErrInvalidInput)
	}

	if rule.ID == 0 {
		var next sql.NullInt64
		if err := r.db.QueryRowContext(ctx, `SELECT MAX(id) FROM promotion_rules`).Scan(&next); err != nil {
			return err
		}
		rule.ID = next.Int64 + 1
	}

	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	query := `
		INSERT INTO promotion_rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description,
		rule.Salience, boolToInt(rule.Stackable), boolToInt(rule.IsActive),
		string(rule.Conditions), string(rule.Actions),
		nullableTime(rule.ValidFrom), nullableTime(rule.ValidUntil),
		rule.CreatedAt, rule.UpdatedAt,
	)
	return err
}

// GetRule retrieves a rule by ID.
func (r *SQLRepository) GetRule(ctx context.Context, id int64) (*domain.PromotionRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM promotion_rules WHERE id = ?`

	rule, err := scanRule(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rule, err
}

// UpdateRule replaces a stored rule's mutable fields.
func (r *SQLRepository) UpdateRule(ctx context.Context, rule *domain.PromotionRule) error {
	rule.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE promotion_rules
		SET name = ?, description = ?, salience = ?, stackable = ?, is_active = ?,
		    conditions = ?, actions = ?, valid_from = ?, valid_until = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.Name, rule.Description, rule.Salience,
		boolToInt(rule.Stackable), boolToInt(rule.IsActive),
		string(rule.Conditions), string(rule.Actions),
		nullableTime(rule.ValidFrom), nullableTime(rule.ValidUntil),
		rule.UpdatedAt, rule.ID,
	)
	if err != nil {
		return err
	}

	return requireRows(result)
}

// DeleteRule removes a rule.
func (r *SQLRepository) DeleteRule(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM promotion_rules WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return requireRows(result)
}

// ListRules returns all stored rules in evaluation order.
func (r *SQLRepository) ListRules(ctx context.Context) ([]*domain.PromotionRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM promotion_rules ORDER BY salience ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRules(rows)
}

// RecordApplication persists one audit row for an applied rule.
func (r *SQLRepository) RecordApplication(ctx context.Context, app *domain.RuleApplication) error {
	if app.ID == "" {
		return fmt.Errorf("%w: application id is required", ErrInvalidInput)
	}

	lineData, _ := json.Marshal(app.LineItem)
	customerData, _ := json.Marshal(app.Customer)

	query := `
		INSERT INTO rule_applications (
			id, rule_id, customer_id, order_reference,
			line_item_data, customer_data, discount_amount, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		app.ID, app.RuleID, app.CustomerID, app.OrderReference,
		string(lineData), string(customerData),
		app.DiscountAmount, app.CreatedAt,
	)
	return err
}

// ListApplications returns the audit trail for one rule, most recent
// first.
func (r *SQLRepository) ListApplications(ctx context.Context, ruleID int64) ([]*domain.RuleApplication, error) {
	query := `
		SELECT id, rule_id, customer_id, order_reference,
		       line_item_data, customer_data, discount_amount, created_at
		FROM rule_applications
		WHERE rule_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*domain.RuleApplication
	for rows.Next() {
		var app domain.RuleApplication
		var customerID sql.NullInt64
		var lineData, customerData string

		if err := rows.Scan(
			&app.ID, &app.RuleID, &customerID, &app.OrderReference,
			&lineData, &customerData, &app.DiscountAmount, &app.CreatedAt,
		); err != nil {
			return nil, err
		}

		if customerID.Valid {
			app.CustomerID = &customerID.Int64
		}
		json.Unmarshal([]byte(lineData), &app.LineItem)
		json.Unmarshal([]byte(customerData), &app.Customer)

		apps = append(apps, &app)
	}

	return apps, rows.Err()
}

// ListProducts returns the product catalog.
func (r *SQLRepository) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, category_id, unit_price, created_at FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.CategoryID, &p.UnitPrice, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, &p)
	}
	return products, rows.Err()
}

// GetProduct retrieves a product by ID.
func (r *SQLRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx,
		r.rebind(`SELECT id, name, category_id, unit_price, created_at FROM products WHERE id = ?`), id,
	).Scan(&p.ID, &p.Name, &p.CategoryID, &p.UnitPrice, &p.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListCustomers returns all customer profiles.
func (r *SQLRepository) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, email, type, loyalty_tier, orders_count, city, created_at FROM customers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []*domain.Customer
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Email, &c.Type, &c.LoyaltyTier, &c.OrdersCount, &c.City, &c.CreatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, &c)
	}
	return customers, rows.Err()
}

// GetCustomer retrieves a customer by ID.
func (r *SQLRepository) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	var c domain.Customer
	err := r.db.QueryRowContext(ctx,
		r.rebind(`SELECT id, email, type, loyalty_tier, orders_count, city, created_at FROM customers WHERE id = ?`), id,
	).Scan(&c.ID, &c.Email, &c.Type, &c.LoyaltyTier, &c.OrdersCount, &c.City, &c.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories returns all categories.
func (r *SQLRepository) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []*domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*domain.PromotionRule, error) {
	var rule domain.PromotionRule
	var description sql.NullString
	var stackable, isActive int
	var conditions, actions string
	var validFrom, validUntil sql.NullTime

	err := row.Scan(
		&rule.ID, &rule.Name, &description,
		&rule.Salience, &stackable, &isActive,
		&conditions, &actions,
		&validFrom, &validUntil,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.Stackable = stackable == 1
	rule.IsActive = isActive == 1
	rule.Conditions = json.RawMessage(conditions)
	rule.Actions = json.RawMessage(actions)
	if validFrom.Valid {
		t := validFrom.Time
		rule.ValidFrom = &t
	}
	if validUntil.Valid {
		t := validUntil.Time
		rule.ValidUntil = &t
	}

	return &rule, nil
}

func scanRules(rows *sql.Rows) ([]*domain.PromotionRule, error) {
	var ruleList []*domain.PromotionRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		ruleList = append(ruleList, rule)
	}
	return ruleList, rows.Err()
}

func requireRows(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

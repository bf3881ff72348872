// Package domain defines the core interfaces and types for tern.
package domain

import (
	"context"
	"time"
)

// RuleStore is the collaborator the evaluation core reads rules from.
type RuleStore interface {
	// GetActiveRules returns rules that are active and valid at the
	// given time, ordered by ascending salience.
	GetActiveRules(ctx context.Context, now time.Time) ([]*PromotionRule, error)
}

// AuditSink persists one RuleApplication per applied rule. The core
// requires the write to complete (or fail loudly) before it moves on
// to the next rule, so partial evaluations stay traceable.
type AuditSink interface {
	RecordApplication(ctx context.Context, app *RuleApplication) error
}

// Repository is the full persistence surface: the evaluation
// collaborators plus rule management and catalog reads.
type Repository interface {
	RuleStore
	AuditSink

	// Rule management
	CreateRule(ctx context.Context, rule *PromotionRule) error
	GetRule(ctx context.Context, id int64) (*PromotionRule, error)
	UpdateRule(ctx context.Context, rule *PromotionRule) error
	DeleteRule(ctx context.Context, id int64) error
	ListRules(ctx context.Context) ([]*PromotionRule, error)

	// Audit trail
	ListApplications(ctx context.Context, ruleID int64) ([]*RuleApplication, error)

	// Catalog reads
	ListProducts(ctx context.Context) ([]*Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	ListCustomers(ctx context.Context) ([]*Customer, error)
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	ListCategories(ctx context.Context) ([]*Category, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `yaml:"driver"`

	// SQLite specific
	SQLitePath string `yaml:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `yaml:"postgresHost"`
	PostgresPort     int    `yaml:"postgresPort"`
	PostgresUser     string `yaml:"postgresUser"`
	PostgresPassword string `yaml:"postgresPassword"`
	PostgresDB       string `yaml:"postgresDb"`
	PostgresSSLMode  string `yaml:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`

	// SeedDemo loads the demo catalog and promotion rules at startup.
	SeedDemo bool `yaml:"seedDemo"`
}

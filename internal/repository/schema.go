package repository

// Schema definitions for the tern database.
// Compatible with both SQLite and PostgreSQL.

const schemaPromotionRules = `
CREATE TABLE IF NOT EXISTS promotion_rules (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    salience INTEGER NOT NULL DEFAULT 10,
    stackable INTEGER NOT NULL DEFAULT 1,
    is_active INTEGER NOT NULL DEFAULT 1,
    conditions TEXT NOT NULL,
    actions TEXT NOT NULL,
    valid_from TIMESTAMP,
    valid_until TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_promotion_rules_active ON promotion_rules(is_active);
CREATE INDEX IF NOT EXISTS idx_promotion_rules_salience ON promotion_rules(salience);
`

const schemaRuleApplications = `
CREATE TABLE IF NOT EXISTS rule_applications (
    id TEXT PRIMARY KEY,
    rule_id INTEGER NOT NULL,
    customer_id INTEGER,
    order_reference TEXT NOT NULL,
    line_item_data TEXT NOT NULL,
    customer_data TEXT NOT NULL,
    discount_amount REAL NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rule_applications_rule ON rule_applications(rule_id);
CREATE INDEX IF NOT EXISTS idx_rule_applications_order ON rule_applications(order_reference);
CREATE INDEX IF NOT EXISTS idx_rule_applications_created ON rule_applications(created_at);
`

const schemaCatalog = `
CREATE TABLE IF NOT EXISTS categories (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    category_id INTEGER NOT NULL,
    unit_price REAL NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS customers (
    id INTEGER PRIMARY KEY,
    email TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT 'retail',
    loyalty_tier TEXT NOT NULL DEFAULT 'none',
    orders_count INTEGER NOT NULL DEFAULT 0,
    city TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaPromotionRules,
		schemaRuleApplications,
		schemaCatalog,
	}
}

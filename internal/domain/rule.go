package domain

import (
	"encoding/json"
	"time"
)

// PromotionRule is a discount rule as stored by the rule store.
// Conditions and Actions are kept as raw JSON: rule authoring tools
// store them either as structured documents or as JSON-encoded text,
// and the translators in internal/rules normalize both forms.
type PromotionRule struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Salience orders evaluation: lower value runs first.
	Salience int `json:"salience"`

	// Stackable controls whether evaluation continues to
	// lower-priority rules after this rule matches.
	Stackable bool `json:"stackable"`

	IsActive bool `json:"isActive"`

	Conditions json.RawMessage `json:"conditions"`
	Actions    json.RawMessage `json:"actions"`

	// Validity window, both bounds inclusive and optional.
	ValidFrom  *time.Time `json:"validFrom,omitempty"`
	ValidUntil *time.Time `json:"validUntil,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ValidAt reports whether the rule's validity window contains t.
func (r *PromotionRule) ValidAt(t time.Time) bool {
	if r.ValidFrom != nil && r.ValidFrom.After(t) {
		return false
	}
	if r.ValidUntil != nil && r.ValidUntil.Before(t) {
		return false
	}
	return true
}

// Stored action type vocabulary.
const (
	ActionPercentDiscount = "PERCENT_DISCOUNT"
	ActionFixedDiscount   = "FIXED_DISCOUNT"
	ActionFreeUnits       = "FREE_UNITS"
	ActionTieredPercent   = "TIERED_PERCENT"
)

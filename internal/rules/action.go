package rules

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// ActionKind is the normalized discount action vocabulary.
type ActionKind string

const (
	ActionPercent       ActionKind = "percent"
	ActionFixed         ActionKind = "fixed"
	ActionFreeUnits     ActionKind = "free_units"
	ActionTieredPercent ActionKind = "tiered_percent"
)

// Tier maps a quantity range to a discount percent. MaxQuantity nil
// means the range is open-ended. Tiers are matched in list order,
// first match wins; they are not required to be sorted.
type Tier struct {
	MinQuantity int     `json:"minQuantity"`
	MaxQuantity *int    `json:"maxQuantity"`
	Percent     float64 `json:"percent"`
}

// Contains reports whether quantity falls inside the tier's range.
func (t Tier) Contains(quantity int) bool {
	if quantity < t.MinQuantity {
		return false
	}
	return t.MaxQuantity == nil || quantity <= *t.MaxQuantity
}

// Action is one normalized discount action. Value carries the percent,
// flat amount, or free-unit count depending on Kind; Tiers is only set
// for tiered_percent.
type Action struct {
	Kind  ActionKind `json:"kind"`
	Value float64    `json:"value"`
	Tiers []Tier     `json:"tiers,omitempty"`
}

// TranslateActions normalizes a rule's stored action descriptors.
// Input may be structured JSON or a JSON-encoded string of it.
// Unknown action types are skipped with a warning so one malformed
// action does not void an otherwise valid rule; missing parameters
// default to zero values.
func TranslateActions(raw json.RawMessage) ([]Action, error) {
	doc, err := decodeStored(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JSON in actions: %v", ErrInvalidRuleDefinition, err)
	}
	if doc == nil {
		return nil, nil
	}

	items, ok := asNodeList(doc)
	if !ok {
		return nil, fmt.Errorf("%w: actions must be an object or list", ErrInvalidRuleDefinition)
	}

	out := make([]Action, 0, len(items))
	for _, item := range items {
		desc, ok := item.(map[string]any)
		if !ok {
			continue
		}

		typ, _ := desc["type"].(string)
		params, _ := desc["parameters"].(map[string]any)

		switch normalizeActionType(typ) {
		case ActionPercent:
			out = append(out, Action{Kind: ActionPercent, Value: numParam(params, desc, "percent")})
		case ActionFixed:
			out = append(out, Action{Kind: ActionFixed, Value: numParam(params, desc, "amount")})
		case ActionFreeUnits:
			out = append(out, Action{Kind: ActionFreeUnits, Value: numParam(params, desc, "quantity")})
		case ActionTieredPercent:
			out = append(out, Action{Kind: ActionTieredPercent, Tiers: tiersParam(params, desc)})
		default:
			slog.Warn("skipping unknown action type", "type", typ)
		}
	}
	return out, nil
}

// normalizeActionType maps stored type spellings (PERCENT_DISCOUNT,
// percent, FREE_UNITS, ...) onto the normalized kind.
func normalizeActionType(typ string) ActionKind {
	t := strings.ToLower(strings.TrimSpace(typ))
	t = strings.TrimSuffix(t, "_discount")
	switch t {
	case "percent", "percentage":
		return ActionPercent
	case "fixed":
		return ActionFixed
	case "free_units":
		return ActionFreeUnits
	case "tiered_percent":
		return ActionTieredPercent
	default:
		return ActionKind("")
	}
}

// numParam reads a numeric parameter, preferring parameters[name] and
// falling back to a top-level "value" field. Missing values default
// to zero.
func numParam(params, desc map[string]any, name string) float64 {
	for _, src := range []map[string]any{params, desc} {
		if src == nil {
			continue
		}
		if v, ok := toNumber(src[name]); ok {
			return v
		}
		if v, ok := toNumber(src["value"]); ok {
			return v
		}
	}
	return 0
}

func tiersParam(params, desc map[string]any) []Tier {
	var rawTiers []any
	if params != nil {
		rawTiers, _ = params["tiers"].([]any)
	}
	if rawTiers == nil && desc != nil {
		rawTiers, _ = desc["tiers"].([]any)
	}

	tiers := make([]Tier, 0, len(rawTiers))
	for _, rt := range rawTiers {
		m, ok := rt.(map[string]any)
		if !ok {
			continue
		}

		tier := Tier{}
		if v, ok := toNumber(firstOf(m, "min_quantity", "minQuantity")); ok {
			tier.MinQuantity = int(v)
		}
		if v, ok := toNumber(firstOf(m, "max_quantity", "maxQuantity")); ok {
			max := int(v)
			tier.MaxQuantity = &max
		}
		if v, ok := toNumber(firstOf(m, "percent", "discount_percent")); ok {
			tier.Percent = v
		}
		tiers = append(tiers, tier)
	}
	return tiers
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

package rules

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestTranslateActions(t *testing.T) {
	t.Run("PercentDiscount", func(t *testing.T) {
		actions, err := TranslateActions(json.RawMessage(
			`[{"type": "PERCENT_DISCOUNT", "parameters": {"percent": 20}}]`,
		))
		if err != nil {
			t.Fatalf("TranslateActions failed: %v", err)
		}
		if len(actions) != 1 {
			t.Fatalf("expected 1 action, got %d", len(actions))
		}
		if actions[0].Kind != ActionPercent || actions[0].Value != 20 {
			t.Errorf("unexpected action: %+v", actions[0])
		}
	})

	t.Run("TypeSpellings", func(t *testing.T) {
		tests := []struct {
			raw  string
			kind ActionKind
		}{
			{`[{"type": "percent", "parameters": {"percent": 5}}]`, ActionPercent},
			{`[{"type": "PERCENTAGE_DISCOUNT", "parameters": {"percent": 5}}]`, ActionPercent},
			{`[{"type": "FIXED_DISCOUNT", "parameters": {"amount": 5}}]`, ActionFixed},
			{`[{"type": "fixed", "parameters": {"amount": 5}}]`, ActionFixed},
			{`[{"type": "FREE_UNITS", "parameters": {"quantity": 1}}]`, ActionFreeUnits},
			{`[{"type": "TIERED_PERCENT", "parameters": {"tiers": []}}]`, ActionTieredPercent},
		}
		for _, tt := range tests {
			actions, err := TranslateActions(json.RawMessage(tt.raw))
			if err != nil {
				t.Errorf("TranslateActions(%s) failed: %v", tt.raw, err)
				continue
			}
			if len(actions) != 1 || actions[0].Kind != tt.kind {
				t.Errorf("TranslateActions(%s) = %+v, want kind %q", tt.raw, actions, tt.kind)
			}
		}
	})

	t.Run("ValueFallback", func(t *testing.T) {
		// Legacy rows carry the number in a top-level "value" field
		// instead of a named parameter.
		actions, err := TranslateActions(json.RawMessage(
			`[{"type": "PERCENT_DISCOUNT", "value": 15}]`,
		))
		if err != nil {
			t.Fatalf("TranslateActions failed: %v", err)
		}
		if actions[0].Value != 15 {
			t.Errorf("expected value 15, got %v", actions[0].Value)
		}
	})

	t.Run("MissingParameterDefaultsToZero", func(t *testing.T) {
		actions, err := TranslateActions(json.RawMessage(`[{"type": "FIXED_DISCOUNT"}]`))
		if err != nil {
			t.Fatalf("TranslateActions failed: %v", err)
		}
		if actions[0].Value != 0 {
			t.Errorf("expected zero value, got %v", actions[0].Value)
		}
	})

	t.Run("Tiers", func(t *testing.T) {
		actions, err := TranslateActions(json.RawMessage(`[{
			"type": "TIERED_PERCENT",
			"parameters": {
				"tiers": [
					{"min_quantity": 5, "max_quantity": 9, "percent": 5},
					{"minQuantity": 10, "maxQuantity": null, "discount_percent": 10}
				]
			}
		}]`))
		if err != nil {
			t.Fatalf("TranslateActions failed: %v", err)
		}

		tiers := actions[0].Tiers
		if len(tiers) != 2 {
			t.Fatalf("expected 2 tiers, got %d", len(tiers))
		}
		if tiers[0].MinQuantity != 5 || tiers[0].MaxQuantity == nil || *tiers[0].MaxQuantity != 9 || tiers[0].Percent != 5 {
			t.Errorf("unexpected first tier: %+v", tiers[0])
		}
		if tiers[1].MinQuantity != 10 || tiers[1].MaxQuantity != nil || tiers[1].Percent != 10 {
			t.Errorf("unexpected second tier: %+v", tiers[1])
		}
	})

	t.Run("UnknownTypeSkipped", func(t *testing.T) {
		actions, err := TranslateActions(json.RawMessage(`[
			{"type": "TELEPORT_ITEMS", "parameters": {"percent": 50}},
			{"type": "PERCENT_DISCOUNT", "parameters": {"percent": 10}}
		]`))
		if err != nil {
			t.Fatalf("TranslateActions failed: %v", err)
		}
		if len(actions) != 1 || actions[0].Kind != ActionPercent {
			t.Errorf("expected unknown action skipped, got %+v", actions)
		}
	})

	t.Run("StringEncodedJSON", func(t *testing.T) {
		stored, _ := json.Marshal(`[{"type": "FREE_UNITS", "parameters": {"quantity": 2}}]`)

		actions, err := TranslateActions(stored)
		if err != nil {
			t.Fatalf("TranslateActions failed: %v", err)
		}
		if len(actions) != 1 || actions[0].Kind != ActionFreeUnits || actions[0].Value != 2 {
			t.Errorf("unexpected actions: %+v", actions)
		}
	})

	t.Run("EmptyIsAllowed", func(t *testing.T) {
		// Unlike conditions, a rule with no actions translates to an
		// empty set; write-time validation rejects it separately.
		for _, raw := range []string{"", "[]", "null"} {
			actions, err := TranslateActions(json.RawMessage(raw))
			if err != nil {
				t.Errorf("TranslateActions(%q) failed: %v", raw, err)
			}
			if len(actions) != 0 {
				t.Errorf("TranslateActions(%q) = %+v, want empty", raw, actions)
			}
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		_, err := TranslateActions(json.RawMessage(`[{]`))
		if !errors.Is(err, ErrInvalidRuleDefinition) {
			t.Errorf("expected ErrInvalidRuleDefinition, got %v", err)
		}
	})
}

func TestTierContains(t *testing.T) {
	nine := 9
	tests := []struct {
		tier     Tier
		quantity int
		want     bool
	}{
		{Tier{MinQuantity: 5, MaxQuantity: &nine}, 4, false},
		{Tier{MinQuantity: 5, MaxQuantity: &nine}, 5, true},
		{Tier{MinQuantity: 5, MaxQuantity: &nine}, 9, true},
		{Tier{MinQuantity: 5, MaxQuantity: &nine}, 10, false},
		{Tier{MinQuantity: 10}, 10, true},
		{Tier{MinQuantity: 10}, 1000, true},
		{Tier{MinQuantity: 10}, 9, false},
	}

	for _, tt := range tests {
		if got := tt.tier.Contains(tt.quantity); got != tt.want {
			t.Errorf("Tier%+v.Contains(%d) = %v, want %v", tt.tier, tt.quantity, got, tt.want)
		}
	}
}

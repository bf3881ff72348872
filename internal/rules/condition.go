package rules

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Condition is a normalized boolean expression over fact paths.
// It is either a Leaf comparison or a Group of child conditions.
type Condition interface {
	isCondition()
}

// Leaf compares one fact path against a literal value.
type Leaf struct {
	Path     string
	Operator Operator
	Value    any
}

// Group combines child conditions. Any=false means all children must
// match (AND); Any=true means at least one must (OR). The stored rule
// format only nests one level deep, but evaluation supports arbitrary
// depth.
type Group struct {
	Any      bool
	Children []Condition
}

func (Leaf) isCondition()  {}
func (Group) isCondition() {}

// TranslateConditions normalizes a rule's stored condition tree.
// Input may be a structured JSON document or a JSON-encoded string of
// one. The top-level list is combined with AND. A rule with no usable
// conditions is a data-integrity violation.
func TranslateConditions(raw json.RawMessage) (Condition, error) {
	doc, err := decodeStored(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JSON in conditions: %v", ErrInvalidRuleDefinition, err)
	}
	if doc == nil {
		return nil, ErrRuleMustHaveConditions
	}

	nodes, ok := asNodeList(doc)
	if !ok {
		return nil, fmt.Errorf("%w: conditions must be an object or list", ErrInvalidRuleDefinition)
	}
	if len(nodes) == 0 {
		return nil, ErrRuleMustHaveConditions
	}

	children, err := translateNodes(nodes)
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, ErrRuleMustHaveConditions
	}

	return Group{Children: children}, nil
}

// decodeStored unwraps the stored form: raw JSON, or a JSON string
// that itself encodes JSON.
func decodeStored(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	if s, ok := doc.(string); ok {
		if err := json.Unmarshal([]byte(s), &doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func asNodeList(doc any) ([]any, bool) {
	switch v := doc.(type) {
	case []any:
		return v, true
	case map[string]any:
		return []any{v}, true
	default:
		return nil, false
	}
}

// translateNodes converts raw nodes to conditions, skipping entries
// that are not usable (malformed leaves, empty groups). Unknown
// operators on an otherwise well-formed leaf stay fatal.
func translateNodes(nodes []any) ([]Condition, error) {
	out := make([]Condition, 0, len(nodes))
	for _, n := range nodes {
		node, ok := n.(map[string]any)
		if !ok {
			continue
		}

		cond, err := translateNode(node)
		if err != nil {
			return nil, err
		}
		if cond != nil {
			out = append(out, cond)
		}
	}
	return out, nil
}

func translateNode(node map[string]any) (Condition, error) {
	op, _ := node["operator"].(string)

	// A node declaring AND/OR together with a conditions list is a
	// group; everything else is treated as a leaf.
	if children, ok := node["conditions"].([]any); ok {
		switch strings.ToUpper(op) {
		case "AND", "OR":
			translated, err := translateNodes(children)
			if err != nil {
				return nil, err
			}
			if len(translated) == 0 {
				return nil, nil
			}
			return Group{Any: strings.EqualFold(op, "OR"), Children: translated}, nil
		}
	}

	field, _ := node["field"].(string)
	if field == "" || op == "" {
		// Malformed leaf: skipped, not fatal.
		return nil, nil
	}

	canonical, err := MapOperator(op)
	if err != nil {
		return nil, err
	}

	// A leaf without a value compares against null.
	return Leaf{Path: field, Operator: canonical, Value: node["value"]}, nil
}

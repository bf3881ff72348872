package rules

import (
	"fmt"
	"strings"
)

// Operator is the canonical comparison vocabulary used by the
// evaluator. The names follow the json-rules-engine convention the
// remote engine wire contract expects.
type Operator string

const (
	OpEqual                Operator = "equal"
	OpNotEqual             Operator = "notEqual"
	OpGreaterThan          Operator = "greaterThan"
	OpGreaterThanInclusive Operator = "greaterThanInclusive"
	OpLessThan             Operator = "lessThan"
	OpLessThanInclusive    Operator = "lessThanInclusive"
	OpContains             Operator = "contains"
	OpStartsWith           Operator = "startsWith"
	OpEndsWith             Operator = "endsWith"
	OpIn                   Operator = "in"
	OpNotIn                Operator = "notIn"
)

// operatorAliases maps every accepted public spelling, lowercased,
// onto its canonical operator. Word forms, symbol forms, and the
// canonical names themselves are all accepted.
var operatorAliases = map[string]Operator{
	"equal":      OpEqual,
	"equals":     OpEqual,
	"eq":         OpEqual,
	"==":         OpEqual,
	"notequal":   OpNotEqual,
	"not_equal":  OpNotEqual,
	"not_equals": OpNotEqual,
	"neq":        OpNotEqual,
	"!=":         OpNotEqual,

	"greaterthan":  OpGreaterThan,
	"greater_than": OpGreaterThan,
	"gt":           OpGreaterThan,
	">":            OpGreaterThan,

	"greaterthaninclusive":  OpGreaterThanInclusive,
	"greater_than_equals":   OpGreaterThanInclusive,
	"greater_than_or_equal": OpGreaterThanInclusive,
	"gte":                   OpGreaterThanInclusive,
	">=":                    OpGreaterThanInclusive,

	"lessthan":  OpLessThan,
	"less_than": OpLessThan,
	"lt":        OpLessThan,
	"<":         OpLessThan,

	"lessthaninclusive":  OpLessThanInclusive,
	"less_than_equals":   OpLessThanInclusive,
	"less_than_or_equal": OpLessThanInclusive,
	"lte":                OpLessThanInclusive,
	"<=":                 OpLessThanInclusive,

	"contains": OpContains,

	// Anchored prefix/suffix tests. Earlier generations of this
	// engine degraded both to contains, which loses anchoring.
	"startswith":  OpStartsWith,
	"starts_with": OpStartsWith,
	"endswith":    OpEndsWith,
	"ends_with":   OpEndsWith,

	"in":     OpIn,
	"notin":  OpNotIn,
	"not_in": OpNotIn,
}

// MapOperator translates a public operator string, case-insensitively,
// into its canonical form. Unknown operators are fatal for the rule
// being processed.
func MapOperator(op string) (Operator, error) {
	canonical, ok := operatorAliases[strings.ToLower(strings.TrimSpace(op))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedOperator, op)
	}
	return canonical, nil
}

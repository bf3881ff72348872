package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/opensource-commerce/tern/internal/domain"
)

// Result is the outcome of evaluating one rule against facts.
// Discount carries full precision; rounding happens at the response
// boundary.
type Result struct {
	Matched  bool    `json:"matched"`
	Discount float64 `json:"discount"`
}

// Evaluator evaluates one rule's conditions and actions against a
// facts document. LocalEvaluator walks the tree in process;
// RemoteEvaluator delegates to an external engine service.
type Evaluator interface {
	Evaluate(ctx context.Context, rule *domain.PromotionRule, facts *domain.Facts) (Result, error)
}

// LocalEvaluator is the in-process rule evaluator.
type LocalEvaluator struct{}

// NewLocalEvaluator creates an in-process evaluator.
func NewLocalEvaluator() *LocalEvaluator {
	return &LocalEvaluator{}
}

// Evaluate translates the rule's stored conditions and actions, then
// matches the condition tree against the facts. The discount is only
// computed when the rule matched.
func (e *LocalEvaluator) Evaluate(ctx context.Context, rule *domain.PromotionRule, facts *domain.Facts) (Result, error) {
	cond, err := TranslateConditions(rule.Conditions)
	if err != nil {
		return Result{}, fmt.Errorf("rule %d: %w", rule.ID, err)
	}

	actions, err := TranslateActions(rule.Actions)
	if err != nil {
		return Result{}, fmt.Errorf("rule %d: %w", rule.ID, err)
	}

	if !matchCondition(cond, facts) {
		return Result{}, nil
	}

	return Result{Matched: true, Discount: ComputeDiscount(actions, facts)}, nil
}

// matchCondition evaluates a normalized condition against facts.
// AND groups match iff all children match, OR groups iff any child
// matches.
func matchCondition(cond Condition, facts *domain.Facts) bool {
	switch c := cond.(type) {
	case Group:
		for _, child := range c.Children {
			matched := matchCondition(child, facts)
			if c.Any && matched {
				return true
			}
			if !c.Any && !matched {
				return false
			}
		}
		return !c.Any
	case Leaf:
		return matchLeaf(c, facts)
	default:
		return false
	}
}

func matchLeaf(leaf Leaf, facts *domain.Facts) bool {
	factVal, present := facts.Resolve(leaf.Path)

	// Comparisons against an absent fact are false, except the
	// negated operators which hold vacuously.
	if !present || factVal == nil {
		return leaf.Operator == OpNotEqual || leaf.Operator == OpNotIn
	}

	switch leaf.Operator {
	case OpEqual:
		return looseEqual(factVal, leaf.Value)
	case OpNotEqual:
		return !looseEqual(factVal, leaf.Value)
	case OpGreaterThan:
		cmp, ok := compareOrdered(factVal, leaf.Value)
		return ok && cmp > 0
	case OpGreaterThanInclusive:
		cmp, ok := compareOrdered(factVal, leaf.Value)
		return ok && cmp >= 0
	case OpLessThan:
		cmp, ok := compareOrdered(factVal, leaf.Value)
		return ok && cmp < 0
	case OpLessThanInclusive:
		cmp, ok := compareOrdered(factVal, leaf.Value)
		return ok && cmp <= 0
	case OpContains:
		f, v, ok := bothStrings(factVal, leaf.Value)
		return ok && strings.Contains(f, v)
	case OpStartsWith:
		f, v, ok := bothStrings(factVal, leaf.Value)
		return ok && strings.HasPrefix(f, v)
	case OpEndsWith:
		f, v, ok := bothStrings(factVal, leaf.Value)
		return ok && strings.HasSuffix(f, v)
	case OpIn:
		return inList(factVal, leaf.Value)
	case OpNotIn:
		return !inList(factVal, leaf.Value)
	default:
		return false
	}
}

// ComputeDiscount sums the discount contribution of every normalized
// action. Multiple actions on one rule are additive.
func ComputeDiscount(actions []Action, facts *domain.Facts) float64 {
	total := 0.0
	for _, a := range actions {
		switch a.Kind {
		case ActionPercent:
			total += facts.Line.Total * (a.Value / 100)
		case ActionFixed:
			total += a.Value
		case ActionFreeUnits:
			total += facts.Line.UnitPrice * a.Value
		case ActionTieredPercent:
			// First tier containing the quantity applies, in list
			// order. Tiers may arrive unsorted; order changes the
			// result, deliberately.
			for _, tier := range a.Tiers {
				if tier.Contains(facts.Line.Quantity) {
					total += facts.Line.Total * (tier.Percent / 100)
					break
				}
			}
		}
	}
	return total
}

// looseEqual compares values the way rule authors expect: numbers
// numerically regardless of Go type, everything else by exact match.
func looseEqual(a, b any) bool {
	if an, ok := toNumber(a); ok {
		if bn, ok := toNumber(b); ok {
			return an == bn
		}
		return false
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	return false
}

// compareOrdered returns -1/0/+1 for values with an ordering: numbers
// numerically, strings lexicographically (which orders RFC3339
// timestamps correctly). Mixed or unordered types report !ok.
func compareOrdered(a, b any) (int, bool) {
	if an, ok := toNumber(a); ok {
		bn, ok := toNumber(b)
		if !ok {
			return 0, false
		}
		switch {
		case an < bn:
			return -1, true
		case an > bn:
			return 1, true
		default:
			return 0, true
		}
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func bothStrings(a, b any) (string, string, bool) {
	as, aok := a.(string)
	bs, bok := b.(string)
	return as, bs, aok && bok
}

func inList(fact, value any) bool {
	list, ok := value.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if looseEqual(fact, item) {
			return true
		}
	}
	return false
}

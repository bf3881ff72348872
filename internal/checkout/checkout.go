// Package checkout orchestrates cart promotion evaluation: it fetches
// the ordered active rules, runs the evaluator per rule, applies the
// stacking policy, and records one audit row per applied rule.
package checkout

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-commerce/tern/internal/domain"
	"github.com/opensource-commerce/tern/internal/rules"
)

// ErrInvalidLineItem marks a cart line that fails the evaluation
// preconditions. The whole evaluation aborts before any rule runs.
var ErrInvalidLineItem = errors.New("invalid line item")

var tracer = otel.Tracer("tern-checkout")

// Service evaluates carts against the active promotion rules.
type Service struct {
	store     domain.RuleStore
	audit     domain.AuditSink
	evaluator rules.Evaluator
	bus       domain.EventBus // optional
	now       func() time.Time
}

// NewService creates a cart evaluation service. bus may be nil when
// event publication is not wanted.
func NewService(store domain.RuleStore, audit domain.AuditSink, evaluator rules.Evaluator, bus domain.EventBus) *Service {
	return &Service{
		store:     store,
		audit:     audit,
		evaluator: evaluator,
		bus:       bus,
		now:       time.Now,
	}
}

// EvaluateCart runs one cart line through the rule set.
//
// Rules are processed in ascending salience order. A matched rule's
// discount is capped at the line total remaining after earlier rules,
// an audit record is persisted before the next rule runs, and a
// non-stackable match stops processing entirely.
func (s *Service) EvaluateCart(ctx context.Context, line domain.LineItem, customer domain.CustomerInfo, orderReference string) (*domain.EvaluationResult, error) {
	if err := validateLineItem(line); err != nil {
		return nil, err
	}

	now := s.now().UTC()

	ctx, span := tracer.Start(ctx, "checkout.EvaluateCart")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("line.product_id", line.ProductID),
		attribute.Int("line.quantity", line.Quantity),
	)

	ruleList, err := s.store.GetActiveRules(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active rules: %w", err)
	}

	original := line.Total()
	if len(ruleList) == 0 {
		return formatResult(nil, original, 0), nil
	}

	facts := rules.BuildFacts(line, customer, now)

	if orderReference == "" {
		orderReference = generateOrderReference()
	}

	var (
		applied       []domain.AppliedRule
		totalDiscount float64
		remaining     = original
	)

	for _, rule := range ruleList {
		result, err := s.evaluator.Evaluate(ctx, rule, facts)
		if err != nil {
			return nil, err
		}
		if !result.Matched {
			continue
		}

		// Never discount below zero remaining on this line.
		discount := math.Min(result.Discount, remaining)

		applied = append(applied, domain.AppliedRule{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Discount: discount,
		})
		totalDiscount += discount
		remaining -= discount

		if err := s.recordApplication(ctx, rule, line, customer, orderReference, discount, now); err != nil {
			return nil, err
		}

		// Hard short-circuit: no lower-priority rule runs after a
		// non-stackable match.
		if !rule.Stackable {
			break
		}
	}

	result := formatResult(applied, original, totalDiscount)
	span.SetAttributes(
		attribute.Int("rules.applied", len(applied)),
		attribute.Float64("discount.total", result.TotalDiscount),
	)

	s.publishCompleted(ctx, orderReference, result)

	return result, nil
}

func validateLineItem(line domain.LineItem) error {
	if line.ProductID == 0 || line.Quantity == 0 || line.UnitPrice == 0 {
		return fmt.Errorf("%w: lineItem must have productId, quantity, and unitPrice", ErrInvalidLineItem)
	}
	if line.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidLineItem)
	}
	if line.UnitPrice < 0 {
		return fmt.Errorf("%w: unitPrice must be non-negative", ErrInvalidLineItem)
	}
	return nil
}

// recordApplication persists the audit row for one applied rule. The
// write must complete before the next rule is evaluated, so partial
// evaluations stay traceable.
func (s *Service) recordApplication(ctx context.Context, rule *domain.PromotionRule, line domain.LineItem, customer domain.CustomerInfo, orderReference string, discount float64, now time.Time) error {
	app := &domain.RuleApplication{
		ID:             uuid.New().String(),
		RuleID:         rule.ID,
		CustomerID:     customer.ID,
		OrderReference: orderReference,
		LineItem:       line,
		Customer:       customer,
		DiscountAmount: round2(discount),
		CreatedAt:      now,
	}

	if err := s.audit.RecordApplication(ctx, app); err != nil {
		return fmt.Errorf("failed to record rule application for rule %d: %w", rule.ID, err)
	}

	if s.bus != nil {
		payload, _ := json.Marshal(app)
		if err := s.bus.Publish(ctx, domain.TopicRuleApplied, payload); err != nil {
			slog.Warn("failed to publish rule applied event",
				"rule_id", rule.ID,
				"error", err,
			)
		}
	}

	return nil
}

func (s *Service) publishCompleted(ctx context.Context, orderReference string, result *domain.EvaluationResult) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"orderReference": orderReference,
		"result":         result,
	})
	if err := s.bus.Publish(ctx, domain.TopicEvaluationCompleted, payload); err != nil {
		slog.Warn("failed to publish evaluation completed event", "error", err)
	}
}

func formatResult(applied []domain.AppliedRule, original, totalDiscount float64) *domain.EvaluationResult {
	if applied == nil {
		applied = []domain.AppliedRule{}
	}
	for i := range applied {
		applied[i].Discount = round2(applied[i].Discount)
	}
	return &domain.EvaluationResult{
		Applied:           applied,
		TotalDiscount:     round2(totalDiscount),
		FinalLineTotal:    round2(math.Max(0, original-totalDiscount)),
		OriginalLineTotal: round2(original),
	}
}

// round2 rounds to 2 decimal places. Used only at boundaries: internal
// accumulation keeps full precision.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

const orderRefCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateOrderReference returns "EVAL_" plus 8 random uppercase
// alphanumerics, used when the caller did not supply a reference.
func generateOrderReference() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is unrecoverable for anything that
		// matters more than a reference token; fall back to uuid.
		return "EVAL_" + uuid.New().String()[:8]
	}
	for i, b := range buf {
		buf[i] = orderRefCharset[int(b)%len(orderRefCharset)]
	}
	return "EVAL_" + string(buf)
}

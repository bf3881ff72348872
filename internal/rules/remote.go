package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/opensource-commerce/tern/internal/domain"
)

// RemoteEvaluator delegates rule evaluation to an external rule-engine
// service speaking the json-rules-engine wire contract:
//
//	POST /evaluate {rule: {conditions: {all: [...]}, event: {...}}, facts}
//	GET  /health
//
// The base URL and HTTP client are injected so tests can substitute an
// in-process server.
type RemoteEvaluator struct {
	baseURL string
	client  *http.Client
}

// NewRemoteEvaluator creates an evaluator backed by the engine at
// baseURL. A nil client falls back to http.DefaultClient; callers
// wanting a timeout pass a configured client.
func NewRemoteEvaluator(baseURL string, client *http.Client) *RemoteEvaluator {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteEvaluator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type engineRequest struct {
	Rule  engineRule    `json:"rule"`
	Facts *domain.Facts `json:"facts"`
}

type engineRule struct {
	Conditions map[string]any `json:"conditions"`
	Event      engineEvent    `json:"event"`
}

type engineEvent struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

type engineResponse struct {
	Matched  bool           `json:"matched"`
	Discount float64        `json:"discount"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Evaluate translates the rule locally (so malformed rules fail with
// the same typed errors as the in-process path) and ships the
// normalized form to the engine.
func (e *RemoteEvaluator) Evaluate(ctx context.Context, rule *domain.PromotionRule, facts *domain.Facts) (Result, error) {
	cond, err := TranslateConditions(rule.Conditions)
	if err != nil {
		return Result{}, fmt.Errorf("rule %d: %w", rule.ID, err)
	}

	actions, err := TranslateActions(rule.Actions)
	if err != nil {
		return Result{}, fmt.Errorf("rule %d: %w", rule.ID, err)
	}

	payload := engineRequest{
		Rule: engineRule{
			Conditions: wireConditions(cond),
			Event: engineEvent{
				Type: "discount",
				Params: map[string]any{
					"ruleId":    rule.ID,
					"ruleName":  rule.Name,
					"actions":   wireActions(actions),
					"lineTotal": facts.Line.Total,
				},
			},
		},
		Facts: facts,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode engine request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("%w: engine returned %d: %s", ErrEngineUnavailable, resp.StatusCode, msg)
	}

	var engineResp engineResponse
	if err := json.NewDecoder(resp.Body).Decode(&engineResp); err != nil {
		return Result{}, fmt.Errorf("%w: invalid engine response: %v", ErrEngineUnavailable, err)
	}

	return Result{Matched: engineResp.Matched, Discount: engineResp.Discount}, nil
}

// Health checks the engine's /health endpoint.
func (e *RemoteEvaluator) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", ErrEngineUnavailable, resp.StatusCode)
	}
	return nil
}

// wireConditions renders a normalized condition tree into the engine's
// all/any document. Leaves carry the fact namespace plus a JSON path
// for nested attributes.
func wireConditions(cond Condition) map[string]any {
	switch c := cond.(type) {
	case Group:
		children := make([]any, 0, len(c.Children))
		for _, child := range c.Children {
			children = append(children, wireConditions(child))
		}
		key := "all"
		if c.Any {
			key = "any"
		}
		return map[string]any{key: children}
	case Leaf:
		ns, attr, _ := strings.Cut(c.Path, ".")
		leaf := map[string]any{
			"fact":     ns,
			"operator": string(c.Operator),
			"value":    c.Value,
		}
		if attr != "" {
			leaf["path"] = "$." + attr
		}
		return leaf
	default:
		return map[string]any{}
	}
}

// wireActions renders normalized actions in the engine's flat format.
func wireActions(actions []Action) []map[string]any {
	out := make([]map[string]any, 0, len(actions))
	for _, a := range actions {
		wa := map[string]any{
			"type":  string(a.Kind),
			"value": a.Value,
		}
		if a.Kind == ActionTieredPercent {
			tiers := make([]map[string]any, 0, len(a.Tiers))
			for _, t := range a.Tiers {
				wt := map[string]any{
					"min_quantity":     t.MinQuantity,
					"discount_percent": t.Percent,
				}
				if t.MaxQuantity != nil {
					wt["max_quantity"] = *t.MaxQuantity
				} else {
					wt["max_quantity"] = nil
				}
				tiers = append(tiers, wt)
			}
			wa["tiers"] = tiers
		}
		out = append(out, wa)
	}
	return out
}

// Package rules implements promotion rule translation and evaluation:
// stored condition trees and action descriptors are normalized into
// typed forms and evaluated against a facts document.
package rules

import "errors"

var (
	// ErrRuleMustHaveConditions marks a rule stored with an empty
	// conditions list. This is a data-integrity violation and aborts
	// the whole cart evaluation rather than skipping the rule.
	ErrRuleMustHaveConditions = errors.New("rule must have conditions")

	// ErrInvalidRuleDefinition marks unparseable condition or action
	// JSON on a stored rule.
	ErrInvalidRuleDefinition = errors.New("invalid rule definition")

	// ErrUnsupportedOperator marks an operator string outside the
	// public vocabulary.
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrEngineUnavailable marks a network failure, timeout, or
	// non-success response from a remote evaluation engine.
	ErrEngineUnavailable = errors.New("rule engine service unavailable")
)

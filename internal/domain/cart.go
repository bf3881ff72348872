package domain

import (
	"strings"
	"time"
)

// LineItem is one cart line submitted for promotion evaluation.
type LineItem struct {
	ProductID  int64   `json:"productId"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	CategoryID *int64  `json:"categoryId,omitempty"`
}

// Total returns the undiscounted line total.
func (l *LineItem) Total() float64 {
	return float64(l.Quantity) * l.UnitPrice
}

// CustomerInfo carries the customer attributes promotion rules can
// condition on. All fields are optional on the wire; BuildFacts fills
// the defaults.
type CustomerInfo struct {
	ID          *int64 `json:"id,omitempty"`
	Email       string `json:"email,omitempty"`
	Type        string `json:"type,omitempty"`
	LoyaltyTier string `json:"loyaltyTier,omitempty"`
	OrdersCount int    `json:"ordersCount,omitempty"`
	City        string `json:"city,omitempty"`
}

// Facts is the immutable evaluation input built once per cart
// evaluation. Condition leaves reference it through dotted paths like
// "line.quantity" or "customer.loyaltyTier".
type Facts struct {
	Line struct {
		ProductID  int64   `json:"productId"`
		Quantity   int     `json:"quantity"`
		UnitPrice  float64 `json:"unitPrice"`
		CategoryID any     `json:"categoryId"`
		Total      float64 `json:"total"`
	} `json:"line"`

	Customer struct {
		ID          any    `json:"id"`
		Email       string `json:"email"`
		Type        string `json:"type"`
		LoyaltyTier string `json:"loyaltyTier"`
		OrdersCount int    `json:"ordersCount"`
		City        string `json:"city"`
		EmailDomain string `json:"emailDomain"`
	} `json:"customer"`

	System struct {
		CurrentDateTime string `json:"currentDateTime"`
	} `json:"system"`
}

// Resolve looks up a dotted fact path. The first segment selects the
// namespace (line, customer, system), the second the attribute.
// Unknown paths resolve to (nil, false); comparison semantics for
// absent values live in the evaluator.
func (f *Facts) Resolve(path string) (any, bool) {
	ns, attr, ok := strings.Cut(path, ".")
	if !ok {
		return nil, false
	}

	switch ns {
	case "line":
		switch attr {
		case "productId":
			return f.Line.ProductID, true
		case "quantity":
			return f.Line.Quantity, true
		case "unitPrice":
			return f.Line.UnitPrice, true
		case "categoryId":
			return f.Line.CategoryID, f.Line.CategoryID != nil
		case "total":
			return f.Line.Total, true
		}
	case "customer":
		switch attr {
		case "id":
			return f.Customer.ID, f.Customer.ID != nil
		case "email":
			return f.Customer.Email, true
		case "type":
			return f.Customer.Type, true
		case "loyaltyTier":
			return f.Customer.LoyaltyTier, true
		case "ordersCount":
			return f.Customer.OrdersCount, true
		case "city":
			return f.Customer.City, true
		case "emailDomain":
			return f.Customer.EmailDomain, true
		}
	case "system":
		if attr == "currentDateTime" {
			return f.System.CurrentDateTime, true
		}
	}
	return nil, false
}

// AppliedRule records one matched rule's contribution in a response.
type AppliedRule struct {
	RuleID   int64   `json:"ruleId"`
	RuleName string  `json:"ruleName"`
	Discount float64 `json:"discount"`
}

// EvaluationResult is the outcome of one cart evaluation. Monetary
// fields are rounded to 2 decimal places at this boundary only.
type EvaluationResult struct {
	Applied           []AppliedRule `json:"applied"`
	TotalDiscount     float64       `json:"totalDiscount"`
	FinalLineTotal    float64       `json:"finalLineTotal"`
	OriginalLineTotal float64       `json:"originalLineTotal"`
}

// RuleApplication is the audit record written for every applied rule,
// one row per rule per evaluation. It snapshots the inputs as
// submitted and the discount actually granted after capping.
type RuleApplication struct {
	ID             string       `json:"id"`
	RuleID         int64        `json:"ruleId"`
	CustomerID     *int64       `json:"customerId,omitempty"`
	OrderReference string       `json:"orderReference"`
	LineItem       LineItem     `json:"lineItem"`
	Customer       CustomerInfo `json:"customer"`
	DiscountAmount float64      `json:"discountAmount"`
	CreatedAt      time.Time    `json:"createdAt"`
}

package rules

import (
	"strings"
	"time"

	"github.com/opensource-commerce/tern/internal/domain"
)

// BuildFacts assembles the evaluation input from a cart line item and
// customer attributes. Pure function: every default is applied here so
// evaluation never sees a missing field, and the returned snapshot is
// never mutated afterwards.
func BuildFacts(line domain.LineItem, customer domain.CustomerInfo, now time.Time) *domain.Facts {
	f := &domain.Facts{}

	f.Line.ProductID = line.ProductID
	f.Line.Quantity = line.Quantity
	f.Line.UnitPrice = line.UnitPrice
	if line.CategoryID != nil {
		f.Line.CategoryID = *line.CategoryID
	}
	f.Line.Total = line.Total()

	if customer.ID != nil {
		f.Customer.ID = *customer.ID
	}
	f.Customer.Email = customer.Email
	f.Customer.Type = customer.Type
	if f.Customer.Type == "" {
		f.Customer.Type = "retail"
	}
	f.Customer.LoyaltyTier = customer.LoyaltyTier
	if f.Customer.LoyaltyTier == "" {
		f.Customer.LoyaltyTier = "none"
	}
	f.Customer.OrdersCount = customer.OrdersCount
	f.Customer.City = customer.City
	f.Customer.EmailDomain = extractEmailDomain(customer.Email)

	f.System.CurrentDateTime = now.UTC().Format(time.RFC3339)

	return f
}

// extractEmailDomain returns the part after the last "@", or "" for
// strings that do not look like an address.
func extractEmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}

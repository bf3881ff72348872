package domain

import "time"

// Product is a catalog entry used by the read endpoints and demo data.
type Product struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	CategoryID int64     `json:"categoryId"`
	UnitPrice  float64   `json:"price"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Customer is a stored customer profile. CustomerInfo in cart.go is
// the evaluation-time view; this is the catalog row.
type Customer struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	Type        string    `json:"type"`
	LoyaltyTier string    `json:"loyaltyTier"`
	OrdersCount int       `json:"ordersCount"`
	City        string    `json:"city"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Category groups products for category-scoped promotions.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Info converts a catalog customer to its evaluation-time view.
func (c *Customer) Info() CustomerInfo {
	id := c.ID
	return CustomerInfo{
		ID:          &id,
		Email:       c.Email,
		Type:        c.Type,
		LoyaltyTier: c.LoyaltyTier,
		OrdersCount: c.OrdersCount,
		City:        c.City,
	}
}

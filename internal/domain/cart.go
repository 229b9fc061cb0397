package domain

import "time"

type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusCompleted CartStatus = "completed"
)

// Cart is the per-user container for line items. At most one cart per user
// is active at a time; the store enforces this with a partial unique index.
type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Status    CartStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartLineItem is one product within a cart. PriceAtTime is captured on the
// first add and stays fixed for the life of the line.
type CartLineItem struct {
	ID          string    `json:"id"`
	CartID      string    `json:"cart_id"`
	ProductID   string    `json:"product_id"`
	Quantity    int       `json:"quantity"`
	PriceAtTime int64     `json:"price_at_time"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CartViewItem is a cart line joined with its product row.
type CartViewItem struct {
	ID           string `json:"id"`
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	ProductImage string `json:"product_image,omitempty"`
	Quantity     int    `json:"quantity"`
	PriceAtTime  int64  `json:"price_at_time"`
}

// CartView is the projector's materialized view of a cart. It is rebuilt in
// full on every change notification, never patched incrementally.
type CartView struct {
	CartID string         `json:"cart_id"`
	Items  []CartViewItem `json:"items"`
}

func (v CartView) Total() int64 {
	var total int64
	for _, item := range v.Items {
		total += int64(item.Quantity) * item.PriceAtTime
	}
	return total
}

func (v CartView) ItemCount() int {
	var count int
	for _, item := range v.Items {
		count += item.Quantity
	}
	return count
}

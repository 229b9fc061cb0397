package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Order is the immutable result of a checkout. Only Status and UpdatedAt
// change after creation; cancellation is permitted while pending only.
type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	CartID      string          `json:"cart_id"`
	OrderNumber string          `json:"order_number"`
	TotalAmount int64           `json:"total_amount"`
	Status      OrderStatus     `json:"status"`
	Items       []OrderLineItem `json:"items,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type OrderLineItem struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	TotalPrice int64  `json:"total_price"`
}

package domain

import "time"

type OrderCreatedItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type OrderCreatedEvent struct {
	OrderID     string             `json:"order_id"`
	UserID      string             `json:"user_id"`
	OrderNumber string             `json:"order_number"`
	TotalAmount int64              `json:"total_amount"`
	Items       []OrderCreatedItem `json:"items"`
	Timestamp   time.Time          `json:"timestamp"`
}

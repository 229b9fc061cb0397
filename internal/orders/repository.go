package orders

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/shopkit-labs/shopkit/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertOrder writes the order header only. Line items are a separate step
// so the checkout orchestrator can compensate a header whose lines failed.
func (r *Repository) InsertOrder(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, cart_id, order_number, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, order.ID, order.UserID, order.CartID, order.OrderNumber, order.TotalAmount, order.Status, order.CreatedAt)
	return err
}

func (r *Repository) InsertOrderItems(ctx context.Context, orderID string, items []domain.OrderLineItem) error {
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.New().String()
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, items[i].ID, orderID, items[i].ProductID, items[i].Quantity, items[i].UnitPrice, items[i].TotalPrice)
		if err != nil {
			return err
		}
	}
	return nil
}

// DeleteOrder removes an order header and, via cascade, any line items that
// made it in. Only the checkout compensation path calls this.
func (r *Repository) DeleteOrder(ctx context.Context, orderID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM orders WHERE id = $1
	`, orderID)
	return err
}

func (r *Repository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	order := &domain.Order{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, cart_id, order_number, total_amount, status, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, orderID).Scan(&order.ID, &order.UserID, &order.CartID, &order.OrderNumber,
		&order.TotalAmount, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, total_price
		FROM order_items
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderLineItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.TotalPrice); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, cart_id, order_number, total_amount, status, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.UserID, &order.CartID, &order.OrderNumber,
			&order.TotalAmount, &order.Status, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		order.Items = []domain.OrderLineItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, total_price
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var item domain.OrderLineItem
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.TotalPrice); err != nil {
			return nil, err
		}
		order := orderMap[item.OrderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

// CancelPending flips a pending order owned by userID to cancelled. Returns
// false when no row matched: unknown order, wrong owner, or a status past
// pending.
func (r *Repository) CancelPending(ctx context.Context, userID, orderID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = 'pending'
	`, orderID, userID)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// AdvanceStatus transitions from -> to in a single guarded update so two
// workers racing on the same event cannot double-advance. Returns false
// when the order is missing or no longer in from.
func (r *Repository) AdvanceStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, orderID, from, to)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

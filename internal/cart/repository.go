package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/shopkit-labs/shopkit/internal/domain"
)

const uniqueViolation = "23505"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindActiveCart returns the id of the user's active cart, or "" when none
// exists.
func (r *Repository) FindActiveCart(ctx context.Context, userID string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM carts
		WHERE user_id = $1 AND status = 'active'
	`, userID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

// CreateCart inserts a new active cart for the user. A concurrent creator
// losing the race against the partial unique index surfaces as
// domain.ErrConflict.
func (r *Repository) CreateCart(ctx context.Context, userID string) (string, error) {
	id := uuid.New().String()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO carts (id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, 'active', NOW(), NOW())
	`, id, userID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return "", fmt.Errorf("active cart already exists for user %s: %w", userID, domain.ErrConflict)
		}
		return "", err
	}
	return id, nil
}

func (r *Repository) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	cart := &domain.Cart{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, created_at, updated_at
		FROM carts
		WHERE id = $1
	`, cartID).Scan(&cart.ID, &cart.UserID, &cart.Status, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return cart, nil
}

// CompleteCart transitions the cart out of active, freeing the user's slot
// under the partial unique index.
func (r *Repository) CompleteCart(ctx context.Context, cartID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE carts SET status = 'completed', updated_at = NOW()
		WHERE id = $1
	`, cartID)
	return err
}

// FindLineItem returns the line for (cartID, productID), or nil when the
// product is not yet in the cart.
func (r *Repository) FindLineItem(ctx context.Context, cartID, productID string) (*domain.CartLineItem, error) {
	item := &domain.CartLineItem{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, cart_id, product_id, quantity, price_at_time, updated_at
		FROM cart_items
		WHERE cart_id = $1 AND product_id = $2
	`, cartID, productID).Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.PriceAtTime, &item.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

func (r *Repository) InsertLineItem(ctx context.Context, cartID, productID string, quantity int, priceAtTime int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, price_at_time, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, uuid.New().String(), cartID, productID, quantity, priceAtTime)
	return err
}

// UpdateLineItemQuantity overwrites the quantity unconditionally. There is
// no version check; concurrent writers race last-writer-wins.
func (r *Repository) UpdateLineItemQuantity(ctx context.Context, cartID, lineItemID string, quantity int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE cart_items SET quantity = $3, updated_at = NOW()
		WHERE id = $2 AND cart_id = $1
	`, cartID, lineItemID, quantity)
	return err
}

// DeleteLineItem removes one line. Deleting an id that is already gone is
// not an error.
func (r *Repository) DeleteLineItem(ctx context.Context, cartID, lineItemID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE id = $2 AND cart_id = $1
	`, cartID, lineItemID)
	return err
}

func (r *Repository) DeleteLineItems(ctx context.Context, cartID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE cart_id = $1
	`, cartID)
	return err
}

func (r *Repository) ListLineItems(ctx context.Context, cartID string) ([]domain.CartLineItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, cart_id, product_id, quantity, price_at_time, updated_at
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY updated_at
	`, cartID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []domain.CartLineItem
	for rows.Next() {
		var item domain.CartLineItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.PriceAtTime, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// FetchView runs the full cart_items x products join the projector
// materializes. Line items whose product row disappeared still show up,
// with an empty name.
func (r *Repository) FetchView(ctx context.Context, cartID string) ([]domain.CartViewItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ci.id, ci.product_id, ci.quantity, ci.price_at_time,
		       COALESCE(p.name, ''), COALESCE(p.image_url, '')
		FROM cart_items ci
		LEFT JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.updated_at
	`, cartID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []domain.CartViewItem
	for rows.Next() {
		var item domain.CartViewItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &item.PriceAtTime, &item.ProductName, &item.ProductImage); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

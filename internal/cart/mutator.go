package cart

import (
	"context"
	"log/slog"

	"github.com/shopkit-labs/shopkit/internal/domain"
)

// MutatorStore is the slice of the cart repository the mutator needs.
type MutatorStore interface {
	FindLineItem(ctx context.Context, cartID, productID string) (*domain.CartLineItem, error)
	InsertLineItem(ctx context.Context, cartID, productID string, quantity int, priceAtTime int64) error
	UpdateLineItemQuantity(ctx context.Context, cartID, lineItemID string, quantity int) error
	DeleteLineItem(ctx context.Context, cartID, lineItemID string) error
	DeleteLineItems(ctx context.Context, cartID string) error
}

// Mutator applies cart writes against the backing store. Operations are
// fire-and-forget from the caller's point of view: the updated view arrives
// through the projector's next notification, never as a return value.
// Concurrent writers race last-writer-wins; there is no version check.
type Mutator struct {
	store  MutatorStore
	logger *slog.Logger
}

func NewMutator(store MutatorStore, logger *slog.Logger) *Mutator {
	return &Mutator{store: store, logger: logger}
}

// AddItem puts quantity units of the product into the cart. Adding a product
// already present accumulates onto the existing line instead of creating a
// duplicate; the line keeps the price captured on the first add.
func (m *Mutator) AddItem(ctx context.Context, cartID string, product domain.Product, quantity int) error {
	if cartID == "" {
		return domain.Preconditionf("add item: missing cart id")
	}
	if product.ID == "" {
		return domain.Preconditionf("add item: missing product id")
	}
	if quantity < 1 {
		return domain.Preconditionf("add item: quantity %d below minimum", quantity)
	}

	existing, err := m.store.FindLineItem(ctx, cartID, product.ID)
	if err != nil {
		return domain.WrapStore("find line item", err)
	}

	if existing != nil {
		return m.UpdateQuantity(ctx, cartID, existing.ID, existing.Quantity+quantity)
	}

	if err := m.store.InsertLineItem(ctx, cartID, product.ID, quantity, product.Price); err != nil {
		return domain.WrapStore("insert line item", err)
	}

	m.logger.Info("line item added", "cart_id", cartID, "product_id", product.ID, "quantity", quantity)
	return nil
}

func (m *Mutator) UpdateQuantity(ctx context.Context, cartID, lineItemID string, quantity int) error {
	if cartID == "" {
		return domain.Preconditionf("update quantity: missing cart id")
	}
	if lineItemID == "" {
		return domain.Preconditionf("update quantity: missing line item id")
	}
	if quantity < 1 {
		return domain.Preconditionf("update quantity: quantity %d below minimum", quantity)
	}

	if err := m.store.UpdateLineItemQuantity(ctx, cartID, lineItemID, quantity); err != nil {
		return domain.WrapStore("update line item quantity", err)
	}

	m.logger.Info("line item quantity updated", "cart_id", cartID, "line_item_id", lineItemID, "quantity", quantity)
	return nil
}

// RemoveItem deletes one line. Removing an id that is already gone succeeds.
func (m *Mutator) RemoveItem(ctx context.Context, cartID, lineItemID string) error {
	if cartID == "" {
		return domain.Preconditionf("remove item: missing cart id")
	}
	if lineItemID == "" {
		return domain.Preconditionf("remove item: missing line item id")
	}

	if err := m.store.DeleteLineItem(ctx, cartID, lineItemID); err != nil {
		return domain.WrapStore("delete line item", err)
	}

	m.logger.Info("line item removed", "cart_id", cartID, "line_item_id", lineItemID)
	return nil
}

// ClearCart deletes every line in the cart. Used for explicit emptying and
// as the first half of checkout teardown.
func (m *Mutator) ClearCart(ctx context.Context, cartID string) error {
	if cartID == "" {
		return domain.Preconditionf("clear cart: missing cart id")
	}

	if err := m.store.DeleteLineItems(ctx, cartID); err != nil {
		return domain.WrapStore("delete line items", err)
	}

	m.logger.Info("cart cleared", "cart_id", cartID)
	return nil
}

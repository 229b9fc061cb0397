package checkout

import (
	"context"

	"github.com/shopkit-labs/shopkit/internal/domain"
)

// mockOrderStore captures writes and fails on demand per step.
type mockOrderStore struct {
	insertOrderErr error
	insertItemsErr error
	deleteErr      error
	cancelOK       bool
	cancelErr      error

	insertedOrder  *domain.Order
	insertedItems  []domain.OrderLineItem
	deletedOrderID string
	cancelledBy    string
	cancelledID    string
}

func (m *mockOrderStore) InsertOrder(_ context.Context, order *domain.Order) error {
	if m.insertOrderErr != nil {
		return m.insertOrderErr
	}
	if order.ID == "" {
		order.ID = "order-1"
	}
	m.insertedOrder = order
	return nil
}

func (m *mockOrderStore) InsertOrderItems(_ context.Context, orderID string, items []domain.OrderLineItem) error {
	if m.insertItemsErr != nil {
		return m.insertItemsErr
	}
	m.insertedItems = items
	return nil
}

func (m *mockOrderStore) DeleteOrder(_ context.Context, orderID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletedOrderID = orderID
	if m.insertedOrder != nil && m.insertedOrder.ID == orderID {
		m.insertedOrder = nil
	}
	return nil
}

func (m *mockOrderStore) CancelPending(_ context.Context, userID, orderID string) (bool, error) {
	if m.cancelErr != nil {
		return false, m.cancelErr
	}
	m.cancelledBy = userID
	m.cancelledID = orderID
	return m.cancelOK, nil
}

// mockCartStore tracks teardown calls against a scripted cart row.
type mockCartStore struct {
	cart         *domain.Cart
	getErr       error
	clearErr     error
	completeErr  error
	clearedCarts []string
	completed    []string
}

func (m *mockCartStore) GetCart(context.Context, string) (*domain.Cart, error) {
	return m.cart, m.getErr
}

func (m *mockCartStore) DeleteLineItems(_ context.Context, cartID string) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.clearedCarts = append(m.clearedCarts, cartID)
	return nil
}

func (m *mockCartStore) CompleteCart(_ context.Context, cartID string) error {
	if m.completeErr != nil {
		return m.completeErr
	}
	m.completed = append(m.completed, cartID)
	return nil
}

// mockPublisher records published events.
type mockPublisher struct {
	err    error
	keys   []string
	events []any
}

func (m *mockPublisher) Publish(_ context.Context, key string, event any) error {
	if m.err != nil {
		return m.err
	}
	m.keys = append(m.keys, key)
	m.events = append(m.events, event)
	return nil
}

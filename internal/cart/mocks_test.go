package cart

import (
	"context"
	"sync"

	"github.com/shopkit-labs/shopkit/internal/domain"
	"github.com/shopkit-labs/shopkit/internal/notify"
)

// mockStore implements ResolverStore, MutatorStore and ViewStore with
// scriptable results and call capture.
type mockStore struct {
	mu sync.Mutex

	activeCartID  string
	findCartErr   error
	createdCartID string
	createErr     error
	findCalls     int
	createCalls   int

	lineItem    *domain.CartLineItem
	findItemErr error

	insertErr     error
	inserted      []insertedLine
	updateErr     error
	updates       []updatedLine
	deleteErr     error
	deletedItems  []string
	deleteAllErr  error
	clearedCarts  []string
	viewItems     []domain.CartViewItem
	fetchViewErr  error
	fetchCalls    int
	cartRow       *domain.Cart
	getCartErr    error
}

type insertedLine struct {
	cartID      string
	productID   string
	quantity    int
	priceAtTime int64
}

type updatedLine struct {
	cartID     string
	lineItemID string
	quantity   int
}

func (m *mockStore) FindActiveCart(context.Context, string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	return m.activeCartID, m.findCartErr
}

func (m *mockStore) CreateCart(context.Context, string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	return m.createdCartID, m.createErr
}

func (m *mockStore) FindLineItem(context.Context, string, string) (*domain.CartLineItem, error) {
	return m.lineItem, m.findItemErr
}

func (m *mockStore) InsertLineItem(_ context.Context, cartID, productID string, quantity int, priceAtTime int64) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, insertedLine{cartID, productID, quantity, priceAtTime})
	return nil
}

func (m *mockStore) UpdateLineItemQuantity(_ context.Context, cartID, lineItemID string, quantity int) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, updatedLine{cartID, lineItemID, quantity})
	return nil
}

func (m *mockStore) DeleteLineItem(_ context.Context, _, lineItemID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletedItems = append(m.deletedItems, lineItemID)
	return nil
}

func (m *mockStore) DeleteLineItems(_ context.Context, cartID string) error {
	if m.deleteAllErr != nil {
		return m.deleteAllErr
	}
	m.clearedCarts = append(m.clearedCarts, cartID)
	return nil
}

func (m *mockStore) FetchView(context.Context, string) ([]domain.CartViewItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	return m.viewItems, m.fetchViewErr
}

func (m *mockStore) GetCart(context.Context, string) (*domain.Cart, error) {
	return m.cartRow, m.getCartErr
}

func (m *mockStore) setView(items []domain.CartViewItem, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewItems = items
	m.fetchViewErr = err
}

// fakeFeed is a notify.Feed delivering events synchronously from the test.
type fakeFeed struct {
	mu   sync.Mutex
	subs []fakeSub
}

type fakeSub struct {
	table  string
	cartID string
	fn     func(notify.Change)
	live   *bool
}

func (f *fakeFeed) Subscribe(table, cartID string, fn func(notify.Change)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	live := true
	f.subs = append(f.subs, fakeSub{table: table, cartID: cartID, fn: fn, live: &live})
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		live = false
	}
}

func (f *fakeFeed) emit(change notify.Change) {
	f.mu.Lock()
	subs := append([]fakeSub(nil), f.subs...)
	f.mu.Unlock()
	for _, sub := range subs {
		if *sub.live && sub.table == change.Table && sub.cartID == change.CartID {
			sub.fn(change)
		}
	}
}

func (f *fakeFeed) activeSubs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, sub := range f.subs {
		if *sub.live {
			count++
		}
	}
	return count
}

package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopkit-labs/shopkit/internal/domain"
	"github.com/shopkit-labs/shopkit/internal/notify"
)

func subscribeCollecting(t *testing.T, p *Projector, cartID string) (*[]domain.CartView, func()) {
	t.Helper()
	var got []domain.CartView
	cancel, err := p.Subscribe(context.Background(), cartID, func(view domain.CartView) {
		got = append(got, view)
	})
	require.NoError(t, err)
	return &got, cancel
}

func TestProjector_SeedsViewOnSubscribe(t *testing.T) {
	store := &mockStore{viewItems: []domain.CartViewItem{
		{ID: "line-1", ProductID: "prod-1", ProductName: "Widget", Quantity: 2, PriceAtTime: 1000},
	}}
	feed := &fakeFeed{}
	p := NewProjector(store, feed, testLogger())

	views, cancel := subscribeCollecting(t, p, "cart-1")
	defer cancel()

	require.Len(t, *views, 1)
	assert.Equal(t, int64(2000), (*views)[0].Total())
	assert.Equal(t, 2, feed.activeSubs(), "one registration per table")
}

func TestProjector_RefreshesOnItemChange(t *testing.T) {
	store := &mockStore{viewItems: []domain.CartViewItem{
		{ID: "line-1", ProductID: "prod-1", Quantity: 1, PriceAtTime: 500},
	}}
	feed := &fakeFeed{}
	p := NewProjector(store, feed, testLogger())

	views, cancel := subscribeCollecting(t, p, "cart-1")
	defer cancel()

	store.setView([]domain.CartViewItem{
		{ID: "line-1", ProductID: "prod-1", Quantity: 4, PriceAtTime: 500},
	}, nil)
	feed.emit(notify.Change{Table: "cart_items", Op: notify.OpUpdate, ID: "line-1", CartID: "cart-1"})

	require.Len(t, *views, 2)
	assert.Equal(t, 4, (*views)[1].Items[0].Quantity)
	assert.Equal(t, int64(2000), p.CurrentView("cart-1").Total())
}

func TestProjector_IgnoresOtherCarts(t *testing.T) {
	store := &mockStore{}
	feed := &fakeFeed{}
	p := NewProjector(store, feed, testLogger())

	views, cancel := subscribeCollecting(t, p, "cart-1")
	defer cancel()

	feed.emit(notify.Change{Table: "cart_items", Op: notify.OpInsert, CartID: "cart-other"})

	assert.Len(t, *views, 1, "only the seed view")
}

func TestProjector_RefreshFailureKeepsLastView(t *testing.T) {
	store := &mockStore{viewItems: []domain.CartViewItem{
		{ID: "line-1", Quantity: 2, PriceAtTime: 1000},
	}}
	feed := &fakeFeed{}
	p := NewProjector(store, feed, testLogger())

	views, cancel := subscribeCollecting(t, p, "cart-1")
	defer cancel()

	store.setView(nil, errors.New("connection reset"))
	feed.emit(notify.Change{Table: "cart_items", Op: notify.OpUpdate, CartID: "cart-1"})

	assert.Len(t, *views, 1, "failed refresh emits nothing")
	assert.Equal(t, int64(2000), p.CurrentView("cart-1").Total(), "last-known view survives")
}

func TestProjector_CartCompletionEmitsEmptyViewAndGoesInert(t *testing.T) {
	store := &mockStore{viewItems: []domain.CartViewItem{
		{ID: "line-1", Quantity: 1, PriceAtTime: 500},
	}}
	feed := &fakeFeed{}
	p := NewProjector(store, feed, testLogger())

	views, cancel := subscribeCollecting(t, p, "cart-1")
	defer cancel()

	feed.emit(notify.Change{Table: "carts", Op: notify.OpUpdate, ID: "cart-1", CartID: "cart-1", Status: "completed"})

	require.Len(t, *views, 2)
	assert.Empty(t, (*views)[1].Items)

	// Later item events must not resurrect the dead subscription.
	feed.emit(notify.Change{Table: "cart_items", Op: notify.OpInsert, CartID: "cart-1"})
	assert.Len(t, *views, 2)
}

func TestProjector_CartDeleteEmitsEmptyView(t *testing.T) {
	store := &mockStore{}
	feed := &fakeFeed{}
	p := NewProjector(store, feed, testLogger())

	views, cancel := subscribeCollecting(t, p, "cart-1")
	defer cancel()

	feed.emit(notify.Change{Table: "carts", Op: notify.OpDelete, ID: "cart-1", CartID: "cart-1", Status: "active"})

	require.Len(t, *views, 2)
	assert.Empty(t, (*views)[1].Items)
}

func TestProjector_ResyncChecksCartStatus(t *testing.T) {
	store := &mockStore{
		viewItems: []domain.CartViewItem{{ID: "line-1", Quantity: 1, PriceAtTime: 500}},
		cartRow:   &domain.Cart{ID: "cart-1", UserID: "user-1", Status: domain.CartStatusCompleted},
	}
	feed := &fakeFeed{}
	p := NewProjector(store, feed, testLogger())

	views, cancel := subscribeCollecting(t, p, "cart-1")
	defer cancel()

	// The cart was completed while the listener was disconnected.
	feed.emit(notify.Change{Table: "carts", Op: notify.OpResync, CartID: "cart-1"})

	require.Len(t, *views, 2)
	assert.Empty(t, (*views)[1].Items)
}

func TestProjector_CancelReleasesRegistrations(t *testing.T) {
	store := &mockStore{}
	feed := &fakeFeed{}
	p := NewProjector(store, feed, testLogger())

	_, cancel := subscribeCollecting(t, p, "cart-1")
	assert.Equal(t, 2, feed.activeSubs())

	cancel()
	cancel() // idempotent

	assert.Equal(t, 0, feed.activeSubs())
}

func TestProjector_CurrentViewStableWithoutMutation(t *testing.T) {
	store := &mockStore{viewItems: []domain.CartViewItem{
		{ID: "line-1", Quantity: 2, PriceAtTime: 1000},
		{ID: "line-2", Quantity: 1, PriceAtTime: 500},
	}}
	feed := &fakeFeed{}
	p := NewProjector(store, feed, testLogger())

	_, cancel := subscribeCollecting(t, p, "cart-1")
	defer cancel()

	first := p.CurrentView("cart-1")
	second := p.CurrentView("cart-1")

	assert.Equal(t, first, second)
	assert.Equal(t, int64(2500), first.Total())
	assert.Equal(t, 3, first.ItemCount())
}

func TestProjector_SubscribeSeedFailure(t *testing.T) {
	store := &mockStore{fetchViewErr: errors.New("no connection")}
	p := NewProjector(store, &fakeFeed{}, testLogger())

	_, err := p.Subscribe(context.Background(), "cart-1", nil)

	require.Error(t, err)
}

func TestProjector_SubscribeMissingCartID(t *testing.T) {
	p := NewProjector(&mockStore{}, &fakeFeed{}, testLogger())

	_, err := p.Subscribe(context.Background(), "", nil)

	assert.ErrorIs(t, err, domain.ErrPrecondition)
}

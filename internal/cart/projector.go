package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopkit-labs/shopkit/internal/domain"
	"github.com/shopkit-labs/shopkit/internal/notify"
)

// ViewStore is the slice of the cart repository the projector needs.
type ViewStore interface {
	FetchView(ctx context.Context, cartID string) ([]domain.CartViewItem, error)
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
}

// Projector keeps materialized cart views current against the change feed.
// Every in-scope notification triggers a full fetch-and-join; carts are
// small, so correctness wins over incremental patching.
type Projector struct {
	store        ViewStore
	feed         notify.Feed
	logger       *slog.Logger
	fetchTimeout time.Duration

	mu    sync.Mutex
	views map[string]domain.CartView
}

func NewProjector(store ViewStore, feed notify.Feed, logger *slog.Logger) *Projector {
	return &Projector{
		store:        store,
		feed:         feed,
		logger:       logger,
		fetchTimeout: 5 * time.Second,
		views:        make(map[string]domain.CartView),
	}
}

// SetFetchTimeout overrides the default deadline on view refetches.
func (p *Projector) SetFetchTimeout(d time.Duration) {
	if d > 0 {
		p.fetchTimeout = d
	}
}

// Subscribe seeds a view for cartID with one full fetch, then keeps it
// refreshed from the change feed, invoking onChange with each new view.
// When the cart row itself leaves active (deleted, or status changed) the
// subscription emits one final empty view and goes inert; the caller must
// resolve a fresh cart id instead of reusing the old one.
//
// The returned cancel releases both feed registrations. Failing to call it
// leaks the subscription; tie it to the consumer's lifetime.
func (p *Projector) Subscribe(ctx context.Context, cartID string, onChange func(domain.CartView)) (func(), error) {
	if cartID == "" {
		return nil, domain.Preconditionf("subscribe: missing cart id")
	}

	items, err := p.store.FetchView(ctx, cartID)
	if err != nil {
		return nil, domain.WrapStore("seed cart view", err)
	}

	sub := &viewSub{projector: p, cartID: cartID, onChange: onChange}
	sub.publish(domain.CartView{CartID: cartID, Items: items})

	cancelItems := p.feed.Subscribe("cart_items", cartID, sub.onItemsChange)
	cancelCart := p.feed.Subscribe("carts", cartID, sub.onCartChange)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancelItems()
			cancelCart()
		})
	}, nil
}

// CurrentView returns the last materialized view for cartID. It may be
// stale between notifications; an unknown cart id yields an empty view.
func (p *Projector) CurrentView(cartID string) domain.CartView {
	p.mu.Lock()
	defer p.mu.Unlock()
	if view, ok := p.views[cartID]; ok {
		return view
	}
	return domain.CartView{CartID: cartID}
}

type viewSub struct {
	projector *Projector
	cartID    string
	onChange  func(domain.CartView)

	mu       sync.Mutex
	inactive bool
}

func (s *viewSub) onItemsChange(notify.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inactive {
		return
	}
	s.refresh()
}

func (s *viewSub) onCartChange(change notify.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inactive {
		return
	}

	switch {
	case change.Op == notify.OpDelete,
		change.Op == notify.OpUpdate && change.Status != string(domain.CartStatusActive):
		s.deactivate()
	case change.Op == notify.OpResync:
		s.recheck()
	default:
		// Active-cart row touched (e.g. updated_at bump); nothing to redo
		// but a refresh is harmless and keeps the view honest.
		s.refresh()
	}
}

// refresh re-runs the fetch-and-join. A failure logs and leaves the
// last-known view in place; it never propagates past the feed boundary.
func (s *viewSub) refresh() {
	p := s.projector
	ctx, cancel := context.WithTimeout(context.Background(), p.fetchTimeout)
	defer cancel()

	items, err := p.store.FetchView(ctx, s.cartID)
	if err != nil {
		p.logger.Error("cart view refresh failed, keeping last view", "error", err, "cart_id", s.cartID)
		return
	}

	s.publish(domain.CartView{CartID: s.cartID, Items: items})
}

// recheck handles a feed resync, where the cart may have been completed or
// deleted while the listener was disconnected.
func (s *viewSub) recheck() {
	p := s.projector
	ctx, cancel := context.WithTimeout(context.Background(), p.fetchTimeout)
	defer cancel()

	current, err := p.store.GetCart(ctx, s.cartID)
	if err != nil {
		p.logger.Error("cart recheck failed, keeping last view", "error", err, "cart_id", s.cartID)
		return
	}
	if current == nil || current.Status != domain.CartStatusActive {
		s.deactivate()
		return
	}
	s.refresh()
}

func (s *viewSub) deactivate() {
	s.inactive = true
	s.projector.logger.Info("cart no longer active, emitting empty view", "cart_id", s.cartID)
	s.publish(domain.CartView{CartID: s.cartID})
}

func (s *viewSub) publish(view domain.CartView) {
	p := s.projector
	p.mu.Lock()
	p.views[s.cartID] = view
	p.mu.Unlock()

	if s.onChange != nil {
		s.onChange(view)
	}
}

package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"
)

// Channel is the Postgres NOTIFY channel the schema triggers publish to.
const Channel = "cart_changes"

type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
	// OpResync is synthesized locally after a listener reconnect, when
	// notifications may have been dropped. Subscribers must treat it as
	// "anything could have changed" and refetch.
	OpResync Op = "RESYNC"
)

// Change is the trigger payload for a single row event. For carts rows ID is
// the cart id and CartID duplicates it; for cart_items rows ID is the line
// item id. Status carries the carts row status (new row, or old row on
// delete) and is empty for cart_items events.
type Change struct {
	Table  string `json:"table"`
	Op     Op     `json:"op"`
	ID     string `json:"id"`
	CartID string `json:"cart_id"`
	Status string `json:"status,omitempty"`
}

// Feed delivers row change events filtered by table and cart id. Handlers
// run on the feed's dispatch goroutine and must not block indefinitely.
type Feed interface {
	Subscribe(table, cartID string, fn func(Change)) (cancel func())
}

type subscription struct {
	table  string
	cartID string
	fn     func(Change)
}

// Listener consumes the cart_changes channel over a dedicated connection and
// fans events out to in-process subscriptions.
type Listener struct {
	pl     *pq.Listener
	logger *slog.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]subscription
}

func NewListener(connStr string, logger *slog.Logger) (*Listener, error) {
	pl := pq.NewListener(connStr, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Error("notification listener event", "event", int(ev), "error", err)
		}
	})

	if err := pl.Listen(Channel); err != nil {
		_ = pl.Close()
		return nil, err
	}

	return &Listener{
		pl:     pl,
		logger: logger,
		subs:   make(map[int]subscription),
	}, nil
}

// Run dispatches notifications until ctx is cancelled. A nil notification
// from pq signals a reconnect; every subscriber gets a resync event since
// changes may have been missed while disconnected.
func (l *Listener) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-l.pl.Notify:
			if !ok {
				return
			}
			if n == nil {
				l.resyncAll()
				continue
			}
			var change Change
			if err := json.Unmarshal([]byte(n.Extra), &change); err != nil {
				l.logger.Error("malformed change payload", "error", err, "payload", n.Extra)
				continue
			}
			l.dispatch(change)
		case <-time.After(90 * time.Second):
			go func() {
				if err := l.pl.Ping(); err != nil {
					l.logger.Error("listener ping failed", "error", err)
				}
			}()
		}
	}
}

func (l *Listener) dispatch(change Change) {
	for _, sub := range l.snapshot() {
		if sub.table == change.Table && sub.cartID == change.CartID {
			sub.fn(change)
		}
	}
}

func (l *Listener) resyncAll() {
	l.logger.Warn("listener reconnected, resyncing subscribers")
	for _, sub := range l.snapshot() {
		sub.fn(Change{Table: sub.table, Op: OpResync, CartID: sub.cartID})
	}
}

func (l *Listener) snapshot() []subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	subs := make([]subscription, 0, len(l.subs))
	for _, sub := range l.subs {
		subs = append(subs, sub)
	}
	return subs
}

// Subscribe registers fn for events on table scoped to cartID. The returned
// cancel releases the registration; callers must invoke it when done or the
// subscription leaks for the life of the listener.
func (l *Listener) Subscribe(table, cartID string, fn func(Change)) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = subscription{table: table, cartID: cartID, fn: fn}
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

func (l *Listener) Close() error {
	return l.pl.Close()
}

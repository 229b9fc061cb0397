package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopkit-labs/shopkit/internal/domain"
)

// OrderStore is the slice of the orders repository the orchestrator needs.
type OrderStore interface {
	InsertOrder(ctx context.Context, order *domain.Order) error
	InsertOrderItems(ctx context.Context, orderID string, items []domain.OrderLineItem) error
	DeleteOrder(ctx context.Context, orderID string) error
	CancelPending(ctx context.Context, userID, orderID string) (bool, error)
}

// CartStore is the slice of the cart repository the orchestrator needs for
// precondition checks and post-checkout teardown.
type CartStore interface {
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	DeleteLineItems(ctx context.Context, cartID string) error
	CompleteCart(ctx context.Context, cartID string) error
}

// Publisher emits domain events after a successful checkout. A nil publisher
// is valid; publish failures never fail the checkout.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Orchestrator converts a cart into an immutable order through a multi-step,
// partially compensable write sequence. The steps are deliberately ordered
// header, lines, teardown: an order is never left without lines for longer
// than one request, and a cart is never marked completed before its order
// exists.
type Orchestrator struct {
	orders      OrderStore
	carts       CartStore
	publisher   Publisher
	logger      *slog.Logger
	stepTimeout time.Duration
	now         func() time.Time
}

func NewOrchestrator(orders OrderStore, carts CartStore, publisher Publisher, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		orders:      orders,
		carts:       carts,
		publisher:   publisher,
		logger:      logger,
		stepTimeout: 5 * time.Second,
		now:         time.Now,
	}
}

// SetStepTimeout overrides the default per-step store deadline.
func (o *Orchestrator) SetStepTimeout(d time.Duration) {
	if d > 0 {
		o.stepTimeout = d
	}
}

// Checkout materializes the given cart lines into an order and returns the
// new order id.
//
// A failure before or during the header insert leaves nothing behind and the
// caller may retry freely. A failure inserting line items deletes the header
// (compensation) and then reports the original error; if that delete also
// fails, the distinct *domain.CompensationError signals a dangling order
// needing manual remediation. A failure tearing the cart down after the
// lines are in is non-fatal: the order is durable and correct, so the id is
// returned and the leftover cart state is logged as a recoverable anomaly.
func (o *Orchestrator) Checkout(ctx context.Context, userID, cartID string, items []domain.CartLineItem, total int64) (string, error) {
	if userID == "" {
		return "", domain.Preconditionf("checkout: missing user id")
	}
	if cartID == "" {
		return "", domain.Preconditionf("checkout: missing cart id")
	}
	if len(items) == 0 {
		return "", domain.Preconditionf("checkout: cart %s has no items", cartID)
	}

	current, err := o.getCart(ctx, cartID)
	if err != nil {
		return "", err
	}
	if current == nil || current.UserID != userID || current.Status != domain.CartStatusActive {
		return "", domain.Preconditionf("checkout: cart %s is not active for user %s", cartID, userID)
	}

	order := &domain.Order{
		UserID:      userID,
		CartID:      cartID,
		OrderNumber: fmt.Sprintf("ORD-%d", o.now().UnixNano()),
		TotalAmount: total,
		Status:      domain.OrderStatusPending,
		CreatedAt:   o.now().UTC(),
	}

	// Step 1: order header. Nothing to undo on failure.
	if err := o.insertOrder(ctx, order); err != nil {
		return "", domain.WrapStore("insert order", err)
	}

	lines := make([]domain.OrderLineItem, 0, len(items))
	for _, item := range items {
		lines = append(lines, domain.OrderLineItem{
			OrderID:    order.ID,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitPrice:  item.PriceAtTime,
			TotalPrice: int64(item.Quantity) * item.PriceAtTime,
		})
	}

	// Step 2: line items. On failure the header is compensated away so the
	// checkout never happened and the untouched cart supports a retry.
	if err := o.insertOrderItems(ctx, order.ID, lines); err != nil {
		o.logger.Error("order line insert failed, compensating order header", "error", err, "order_id", order.ID)
		if undoErr := o.deleteOrder(ctx, order.ID); undoErr != nil {
			return "", &domain.CompensationError{OrderID: order.ID, Cause: err, Undo: undoErr}
		}
		return "", domain.WrapStore("insert order items", err)
	}

	// Step 3: cart teardown. The order already exists and is correct, so a
	// failure here cannot fail the checkout; it only leaves cart rows that
	// want cleaning up.
	if err := o.teardownCart(ctx, cartID); err != nil {
		o.logger.Error("checkout teardown incomplete, order stands", "error", err, "order_id", order.ID, "cart_id", cartID)
	}

	if o.publisher != nil {
		event := domain.OrderCreatedEvent{
			OrderID:     order.ID,
			UserID:      order.UserID,
			OrderNumber: order.OrderNumber,
			TotalAmount: order.TotalAmount,
			Timestamp:   order.CreatedAt,
		}
		for _, line := range lines {
			event.Items = append(event.Items, domain.OrderCreatedItem{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
			})
		}
		if err := o.publisher.Publish(ctx, order.ID, event); err != nil {
			o.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
		}
	}

	o.logger.Info("checkout complete", "order_id", order.ID, "order_number", order.OrderNumber, "total_amount", order.TotalAmount)
	return order.ID, nil
}

// CancelOrder transitions a pending order to cancelled. Any other status
// rejects the cancellation with a precondition error and leaves the order
// unchanged.
func (o *Orchestrator) CancelOrder(ctx context.Context, userID, orderID string) error {
	if userID == "" {
		return domain.Preconditionf("cancel order: missing user id")
	}
	if orderID == "" {
		return domain.Preconditionf("cancel order: missing order id")
	}

	ctx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	cancelled, err := o.orders.CancelPending(ctx, userID, orderID)
	if err != nil {
		return domain.WrapStore("cancel order", err)
	}
	if !cancelled {
		return domain.Preconditionf("cancel order: order %s is not pending for user %s", orderID, userID)
	}

	o.logger.Info("order cancelled", "order_id", orderID)
	return nil
}

func (o *Orchestrator) getCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()
	current, err := o.carts.GetCart(ctx, cartID)
	if err != nil {
		return nil, domain.WrapStore("get cart", err)
	}
	return current, nil
}

func (o *Orchestrator) insertOrder(ctx context.Context, order *domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()
	return o.orders.InsertOrder(ctx, order)
}

func (o *Orchestrator) insertOrderItems(ctx context.Context, orderID string, lines []domain.OrderLineItem) error {
	ctx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()
	return o.orders.InsertOrderItems(ctx, orderID, lines)
}

// deleteOrder compensates a failed checkout on a fresh context: the step
// context may already be dead, and the undo must still get its chance.
func (o *Orchestrator) deleteOrder(ctx context.Context, orderID string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.stepTimeout)
	defer cancel()
	return o.orders.DeleteOrder(ctx, orderID)
}

func (o *Orchestrator) teardownCart(ctx context.Context, cartID string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.stepTimeout)
	defer cancel()

	if err := o.carts.DeleteLineItems(ctx, cartID); err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}
	if err := o.carts.CompleteCart(ctx, cartID); err != nil {
		return fmt.Errorf("complete cart: %w", err)
	}
	return nil
}

// IsCompensationFailure reports whether err carries a dangling-order
// compensation failure, which callers must surface differently from a plain
// store error.
func IsCompensationFailure(err error) bool {
	var ce *domain.CompensationError
	return errors.As(err, &ce)
}

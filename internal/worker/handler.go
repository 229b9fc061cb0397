package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shopkit-labs/shopkit/internal/domain"
)

// OrderAdvancer is the slice of the orders repository the worker needs.
type OrderAdvancer interface {
	AdvanceStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) (bool, error)
}

// FulfillmentHandler moves freshly checked-out orders from pending to
// processing. Everything past processing belongs to order management and
// stays out of this repo.
type FulfillmentHandler struct {
	orders OrderAdvancer
	logger *slog.Logger
}

func NewFulfillmentHandler(orders OrderAdvancer, logger *slog.Logger) *FulfillmentHandler {
	return &FulfillmentHandler{orders: orders, logger: logger}
}

// Handle processes one order.created payload. An order that is missing or
// already past pending (cancelled by the user, or a redelivered event) is
// logged and skipped, not retried: redelivery would never change the
// outcome.
func (h *FulfillmentHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order created event: %w", err)
	}

	h.logger.Info("processing order created event", "order_id", event.OrderID, "order_number", event.OrderNumber)

	advanced, err := h.orders.AdvanceStatus(ctx, event.OrderID, domain.OrderStatusPending, domain.OrderStatusProcessing)
	if err != nil {
		h.logger.Error("failed to advance order", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("advance order %s: %w", event.OrderID, err)
	}
	if !advanced {
		h.logger.Warn("order not pending, skipping", "order_id", event.OrderID)
		return nil
	}

	h.logger.Info("order moved to processing", "order_id", event.OrderID)
	return nil
}
